// Package geometry converts stored WKB bounding boxes into the textual
// and structured encodings used in catalog output.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// ErrEmptyGeometry is returned when there are no bytes to decode
var ErrEmptyGeometry = errors.New("geometry: empty wkb")

// Codec converts WKB into WKT and GeoJSON
type Codec interface {
	WKT(wkbData []byte) (string, error)
	GeoJSON(wkbData []byte) (json.RawMessage, error)
}

// OrbCodec implements Codec with paulmach/orb
type OrbCodec struct{}

// NewOrbCodec returns the default codec
func NewOrbCodec() *OrbCodec {
	return &OrbCodec{}
}

func (OrbCodec) decode(data []byte) (orb.Geometry, error) {
	if len(data) == 0 {
		return nil, ErrEmptyGeometry
	}
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("geometry: invalid wkb: %w", err)
	}
	return g, nil
}

// WKT renders WKB as Well-Known Text
func (c OrbCodec) WKT(data []byte) (string, error) {
	g, err := c.decode(data)
	if err != nil {
		return "", err
	}
	return wkt.MarshalString(g), nil
}

// GeoJSON renders WKB as a GeoJSON geometry object
func (c OrbCodec) GeoJSON(data []byte) (json.RawMessage, error) {
	g, err := c.decode(data)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return nil, fmt.Errorf("geometry: encoding geojson: %w", err)
	}
	return out, nil
}

// Adapter applies the inclusion policy on top of a Codec: geometry is
// only produced when the caller asked for it and a bbox is stored.
type Adapter struct {
	codec Codec
}

// NewAdapter wraps codec; a nil codec selects OrbCodec
func NewAdapter(codec Codec) *Adapter {
	if codec == nil {
		codec = NewOrbCodec()
	}
	return &Adapter{codec: codec}
}

// WKT returns the WKT of bbox and whether it should be emitted
func (a *Adapter) WKT(bbox []byte, include bool) (string, bool, error) {
	if !include || len(bbox) == 0 {
		return "", false, nil
	}
	s, err := a.codec.WKT(bbox)
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

// GeoJSON returns the GeoJSON of bbox, or nil when it should be omitted
func (a *Adapter) GeoJSON(bbox []byte, include bool) (json.RawMessage, error) {
	if !include || len(bbox) == 0 {
		return nil, nil
	}
	return a.codec.GeoJSON(bbox)
}
