// Package serialize renders layer metadata as RDF Turtle or as the JSON
// envelope served by the catalog.
package serialize

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/citysdk/layercatalog/internal/geometry"
	"github.com/citysdk/layercatalog/internal/layer"
)

// ErrNoLayers is returned when there is nothing to serialize
var ErrNoLayers = errors.New("no layers to serialize")

// PrefixResolver looks up the namespace URL of a prefix token
type PrefixResolver interface {
	Prefix(ctx context.Context, prefix string) (*layer.PrefixMapping, error)
}

// LayerDocument is one layer with its properties in storage order
type LayerDocument struct {
	Layer      *layer.Layer
	Properties []*layer.Property
}

// Params are the request options that change the rendering
type Params struct {
	// IncludeGeometry adds the bounding box when one is stored
	IncludeGeometry bool
}

// Request carries the parts of the HTTP request echoed in the output
type Request struct {
	URL string
}

// Config holds the RDF base settings
type Config struct {
	// BaseURI is the catalog's RDF base, e.g. http://rdf.citysdk.eu/
	BaseURI string
	// EndpointCode identifies this endpoint below BaseURI, e.g. ams
	EndpointCode string
}

// Serializer renders layer documents. It holds no per-call state and is
// safe for concurrent use.
type Serializer struct {
	config   Config
	prefixes PrefixResolver
	geometry *geometry.Adapter
	logger   *zap.Logger
}

// New creates a serializer
func New(config Config, prefixes PrefixResolver, geom *geometry.Adapter, logger *zap.Logger) *Serializer {
	if geom == nil {
		geom = geometry.NewAdapter(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Serializer{
		config:   config,
		prefixes: prefixes,
		geometry: geom,
		logger:   logger.Named("serialize"),
	}
}

type encoder func(ctx context.Context, docs []LayerDocument, params Params, req Request) ([]byte, error)

func (s *Serializer) encoderFor(format Format) (encoder, error) {
	switch format {
	case FormatTurtle:
		return s.encodeTurtle, nil
	case FormatJSON:
		return s.encodeJSON, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, format)
	}
}

// Serialize renders docs as a complete response document
func (s *Serializer) Serialize(ctx context.Context, format Format, docs []LayerDocument, params Params, req Request) ([]byte, error) {
	enc, err := s.encoderFor(format)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoLayers
	}
	return enc(ctx, docs, params, req)
}

// SerializeLayer renders a single layer
func (s *Serializer) SerializeLayer(ctx context.Context, format Format, doc LayerDocument, params Params, req Request) ([]byte, error) {
	return s.Serialize(ctx, format, []LayerDocument{doc}, params, req)
}
