// Package store reads layers, their property schemas and RDF prefix
// mappings from the relational database.
package store

import (
	"context"

	"github.com/citysdk/layercatalog/internal/layer"
)

// Store is the read side of layer storage
type Store interface {
	// LayerByID returns a single layer or ErrNotFound
	LayerByID(ctx context.Context, id int64) (*layer.Layer, error)

	// Layers iterates the full layer table ordered by id
	Layers(ctx context.Context) ([]*layer.Layer, error)

	// LayersByNamePrefix returns layers whose name starts with prefix
	LayersByNamePrefix(ctx context.Context, prefix string) ([]*layer.Layer, error)

	// Properties returns a layer's properties in storage order
	Properties(ctx context.Context, layerID int64) ([]*layer.Property, error)

	// Prefix looks up the namespace URL of an RDF prefix token, or ErrNotFound
	Prefix(ctx context.Context, prefix string) (*layer.PrefixMapping, error)
}
