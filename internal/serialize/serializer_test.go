package serialize

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citysdk/layercatalog/internal/layer"
)

type mapPrefixes map[string]string

func (m mapPrefixes) Prefix(_ context.Context, prefix string) (*layer.PrefixMapping, error) {
	url, ok := m[prefix]
	if !ok {
		return nil, errors.New("record not found")
	}
	return &layer.PrefixMapping{Prefix: prefix, URL: url}, nil
}

func newTestSerializer() *Serializer {
	return New(Config{BaseURI: "http://rdf.citysdk.eu/", EndpointCode: "ams"},
		mapPrefixes{"foaf:": "http://xmlns.com/foaf/0.1/"}, nil, nil)
}

func roadsDoc(t *testing.T) LayerDocument {
	bbox, err := wkb.Marshal(orb.Point{4.9, 52.37})
	require.NoError(t, err)

	rate := int64(60)
	return LayerDocument{
		Layer: &layer.Layer{
			ID:           1,
			Name:         "osm.roads",
			Category:     "mobility",
			Description:  "  Road network  ",
			Organization: " OpenStreetMap ",
			OwnerEmail:   "owner@example.org ",
			DataSources:  []string{"src=osm", "planet"},
			UpdateRate:   &rate,
			BBox:         bbox,
			ImportedAt:   time.Date(2014, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Properties: []*layer.Property{
			{Key: "length", Type: "integer", Unit: "m"},
			{Key: "name", Type: "xsd:string", Lang: "nl", Descr: "Street\nname"},
		},
	}
}

func TestSerializer_Turtle(t *testing.T) {
	s := newTestSerializer()
	doc := roadsDoc(t)

	out, err := s.SerializeLayer(context.Background(), FormatTurtle, doc, Params{IncludeGeometry: true}, Request{})
	require.NoError(t, err)

	expected := strings.Join([]string{
		"@base <http://rdf.citysdk.eu/ams/> .",
		"@prefix : <http://rdf.citysdk.eu/> .",
		"@prefix rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#> .",
		"@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .",
		"@prefix foaf: <http://xmlns.com/foaf/0.1/> .",
		"@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .",
		"@prefix geos: <http://www.opengis.net/ont/geosparql#> .",
		"",
		"<layer/osm.roads>",
		"  a :Layer ;",
		`  rdfs:description "Road network" ;`,
		"  :createdBy [",
		`    foaf:name "OpenStreetMap" ;`,
		`    foaf:mbox "owner@example.org"`,
		"  ] ;",
		`  :dataSource "osm" ;`,
		`  :dataSource "planet" ;`,
		"  :hasDataField [",
		"    rdfs:label length ;",
		"    :valueType integer ;",
		"    :valueUnit m",
		"  ] ;",
		"  :hasDataField [",
		"    rdfs:label name ;",
		"    :valueType xsd:string ;",
		`    :valueLanguange "nl" ;`,
		"    rdfs:description \"\"\"Street\nname\"\"\"",
		"  ] ;",
		`  geos:hasGeometry "POINT(4.9 52.37)" .`,
		"",
	}, "\n")
	assert.Equal(t, expected, string(out))
}

func TestSerializer_TurtleStructure(t *testing.T) {
	s := newTestSerializer()
	doc := roadsDoc(t)

	tc := NewTurtleContext()
	triples, err := s.LayerTriples(doc, Params{}, tc)
	require.NoError(t, err)

	// Exactly one outermost terminator, on the final statement line
	var terminators int
	for _, line := range triples {
		if strings.HasSuffix(line, " .") {
			terminators++
		}
	}
	assert.Equal(t, 1, terminators)
	assert.Equal(t, "  ] .", triples[len(triples)-2])
	assert.Equal(t, "", triples[len(triples)-1])

	// The last line inside every bracketed node has no separator
	for i, line := range triples {
		if strings.HasPrefix(line, "  ]") {
			assert.False(t, strings.HasSuffix(triples[i-1], ";"), "line %q", triples[i-1])
		}
	}

	// Geometry was not requested
	assert.NotContains(t, tc.Prefixes(), "geos:")
}

func TestSerializer_TurtleMinimalLayer(t *testing.T) {
	s := newTestSerializer()
	doc := LayerDocument{Layer: &layer.Layer{Name: "empty", Description: "", Organization: "Org", OwnerEmail: "a@b"}}

	triples, err := s.LayerTriples(doc, Params{IncludeGeometry: true}, NewTurtleContext())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"<layer/empty>",
		"  a :Layer ;",
		`  rdfs:description "" ;`,
		"  :createdBy [",
		`    foaf:name "Org" ;`,
		`    foaf:mbox "a@b"`,
		"  ] .",
		"",
	}, triples)
}

func TestSerializer_TurtleEscapesQuotes(t *testing.T) {
	s := newTestSerializer()
	doc := LayerDocument{Layer: &layer.Layer{
		Name:         "quoted",
		Description:  `The "best" layer`,
		Organization: "Org",
		OwnerEmail:   "a@b",
		DataSources:  []string{`q=say "x"`},
	}}

	triples, err := s.LayerTriples(doc, Params{}, NewTurtleContext())
	require.NoError(t, err)
	assert.Contains(t, triples, `  rdfs:description "The \"best\" layer" ;`)
	assert.Contains(t, triples, `  :dataSource "say \"x\"" .`)
}

func TestSerializer_TurtleMultiLineDescription(t *testing.T) {
	s := newTestSerializer()
	doc := LayerDocument{Layer: &layer.Layer{Name: "m", Description: "\nfirst\nsecond\n", Organization: "O", OwnerEmail: "e"}}

	triples, err := s.LayerTriples(doc, Params{}, NewTurtleContext())
	require.NoError(t, err)
	assert.Equal(t, "  rdfs:description \"\"\"first\nsecond\"\"\" ;", triples[2])
}

func TestSerializer_TurtleMultipleLayersShareOnePreamble(t *testing.T) {
	s := newTestSerializer()
	a := LayerDocument{Layer: &layer.Layer{Name: "a", Organization: "O", OwnerEmail: "e"}}
	b := LayerDocument{
		Layer:      &layer.Layer{Name: "b", Organization: "O", OwnerEmail: "e"},
		Properties: []*layer.Property{{Key: "k", Type: "other", EqProp: "x"}},
	}

	out, err := s.Serialize(context.Background(), FormatTurtle, []LayerDocument{a, b}, Params{}, Request{})
	require.NoError(t, err)

	text := string(out)
	assert.Equal(t, 1, strings.Count(text, "@base"))
	assert.Equal(t, 1, strings.Count(text, "@prefix owl:"))
	assert.Contains(t, text, "<layer/a>")
	assert.Contains(t, text, "<layer/b>")
	assert.Equal(t, 2, strings.Count(text, "\n  ] .\n"))
}

func TestSerializer_UnknownPrefixIsOmitted(t *testing.T) {
	s := newTestSerializer()
	doc := LayerDocument{
		Layer:      &layer.Layer{Name: "a", Organization: "O", OwnerEmail: "e"},
		Properties: []*layer.Property{{Key: "k", Type: "csdk:thing"}},
	}

	out, err := s.SerializeLayer(context.Background(), FormatTurtle, doc, Params{}, Request{})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "@prefix csdk:")
	assert.Contains(t, string(out), ":valueType csdk:thing")
}

func TestSerializer_JSON(t *testing.T) {
	s := newTestSerializer()
	doc := roadsDoc(t)
	doc.Layer.Realtime = true
	doc.Layer.SampleURL = "http://example.org/sample"

	out, err := s.SerializeLayer(context.Background(), FormatJSON, doc, Params{IncludeGeometry: true}, Request{URL: "http://api.example.org/layers/osm.roads"})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"status": "success",
		"url": "http://api.example.org/layers/osm.roads",
		"results": [{
			"name": "osm.roads",
			"category": "mobility",
			"organization": " OpenStreetMap ",
			"owner": "owner@example.org ",
			"description": "  Road network  ",
			"data_sources": ["osm", "planet"],
			"imported_at": "2014-03-01T12:00:00Z",
			"fields": [
				{"key": "length", "type": "integer", "valueUnit": "m"},
				{"key": "name", "type": "xsd:string", "valueLanguange": "nl", "description": "Street\nname"}
			],
			"sample_url": "http://example.org/sample",
			"update_rate": 60,
			"bbox": {"type": "Point", "coordinates": [4.9, 52.37]}
		}]
	}`, string(out))

	// Key order is fixed
	text := string(out)
	order := []string{`"name"`, `"category"`, `"organization"`, `"owner"`, `"description"`, `"data_sources"`, `"imported_at"`, `"fields"`, `"sample_url"`, `"update_rate"`, `"bbox"`}
	last := -1
	for _, key := range order {
		idx := strings.Index(text, key)
		require.Greater(t, idx, last, key)
		last = idx
	}
}

func TestSerializer_JSONOmissions(t *testing.T) {
	s := newTestSerializer()
	doc := roadsDoc(t)
	doc.Properties = nil
	doc.Layer.Realtime = false
	doc.Layer.Validity = "[2014-01-01,2015-01-01)"
	doc.Layer.DataSources = nil

	h, err := s.LayerHash(doc, Params{})
	require.NoError(t, err)

	data, err := json.Marshal(h)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.NotContains(t, fields, "fields")
	assert.NotContains(t, fields, "update_rate")
	assert.NotContains(t, fields, "validity")
	assert.NotContains(t, fields, "bbox")
	assert.NotContains(t, fields, "sample_url")
	assert.Equal(t, []interface{}{}, fields["data_sources"])
}

func TestSerializer_JSONRealtimeWithoutRate(t *testing.T) {
	s := newTestSerializer()
	doc := roadsDoc(t)
	doc.Layer.Realtime = true
	doc.Layer.UpdateRate = nil

	h, err := s.LayerHash(doc, Params{})
	require.NoError(t, err)

	data, err := json.Marshal(h)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	require.Contains(t, fields, "update_rate")
	assert.Nil(t, fields["update_rate"])
}

func TestSerializer_UnsupportedFormat(t *testing.T) {
	s := newTestSerializer()

	_, err := s.SerializeLayer(context.Background(), Format(42), roadsDoc(t), Params{}, Request{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSerializer_NoLayers(t *testing.T) {
	s := newTestSerializer()

	_, err := s.Serialize(context.Background(), FormatJSON, nil, Params{}, Request{})
	assert.ErrorIs(t, err, ErrNoLayers)
}

func TestSerializer_InvalidGeometry(t *testing.T) {
	s := newTestSerializer()
	doc := roadsDoc(t)
	doc.Layer.BBox = []byte{0xde, 0xad}

	_, err := s.SerializeLayer(context.Background(), FormatTurtle, doc, Params{IncludeGeometry: true}, Request{})
	assert.Error(t, err)

	// Without the geometry flag the bbox is never decoded
	_, err = s.SerializeLayer(context.Background(), FormatTurtle, doc, Params{}, Request{})
	assert.NoError(t, err)
}

func TestSerializer_ConcurrentCallsAreIndependent(t *testing.T) {
	s := newTestSerializer()
	plain := LayerDocument{Layer: &layer.Layer{Name: "plain", Organization: "O", OwnerEmail: "e"}}
	withOwl := LayerDocument{
		Layer:      &layer.Layer{Name: "owl", Organization: "O", OwnerEmail: "e"},
		Properties: []*layer.Property{{Key: "k", Type: "other", EqProp: "x"}},
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			out, err := s.SerializeLayer(context.Background(), FormatTurtle, plain, Params{}, Request{})
			assert.NoError(t, err)
			assert.NotContains(t, string(out), "owl:")
			assert.NotContains(t, string(out), "<layer/owl>")
		}()
		go func() {
			defer wg.Done()
			out, err := s.SerializeLayer(context.Background(), FormatTurtle, withOwl, Params{}, Request{})
			assert.NoError(t, err)
			assert.Contains(t, string(out), "@prefix owl:")
			assert.NotContains(t, string(out), "<layer/plain>")
		}()
	}
	wg.Wait()
}
