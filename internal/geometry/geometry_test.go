package geometry

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustWKB(t *testing.T, g orb.Geometry) []byte {
	t.Helper()
	b, err := wkb.Marshal(g)
	require.NoError(t, err)
	return b
}

func TestOrbCodec_WKT(t *testing.T) {
	codec := NewOrbCodec()

	s, err := codec.WKT(mustWKB(t, orb.Point{4.9, 52.37}))
	require.NoError(t, err)
	assert.Equal(t, "POINT(4.9 52.37)", s)

	_, err = codec.WKT(nil)
	assert.ErrorIs(t, err, ErrEmptyGeometry)

	_, err = codec.WKT([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestOrbCodec_GeoJSON(t *testing.T) {
	codec := NewOrbCodec()

	out, err := codec.GeoJSON(mustWKB(t, orb.Point{4.9, 52.37}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Point","coordinates":[4.9,52.37]}`, string(out))
}

type stubCodec struct {
	calls int
}

func (s *stubCodec) WKT([]byte) (string, error) {
	s.calls++
	return "POINT(1 2)", nil
}

func (s *stubCodec) GeoJSON([]byte) (json.RawMessage, error) {
	s.calls++
	return json.RawMessage(`{}`), nil
}

func TestAdapter_InclusionPolicy(t *testing.T) {
	codec := &stubCodec{}
	a := NewAdapter(codec)

	_, ok, err := a.WKT([]byte{1}, false)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = a.WKT(nil, true)
	require.NoError(t, err)
	assert.False(t, ok)

	raw, err := a.GeoJSON(nil, true)
	require.NoError(t, err)
	assert.Nil(t, raw)

	assert.Equal(t, 0, codec.calls)

	s, ok, err := a.WKT([]byte{1}, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "POINT(1 2)", s)

	raw, err = a.GeoJSON([]byte{1}, true)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{}`), raw)
	assert.Equal(t, 2, codec.calls)
}
