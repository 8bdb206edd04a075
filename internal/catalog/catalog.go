// Package catalog ties the registry, the store and the serializer
// together: it resolves layer-name tokens, loads the matching layers and
// renders them, and answers attribute queries about single layers.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/citysdk/layercatalog/internal/layer"
	"github.com/citysdk/layercatalog/internal/registry"
	"github.com/citysdk/layercatalog/internal/serialize"
	"github.com/citysdk/layercatalog/internal/store"
	"github.com/citysdk/layercatalog/internal/webservice"
)

// DefaultDataTimeout applies to webservice fetches of layers without an
// update rate
const DefaultDataTimeout = 3000 * time.Millisecond

// ReservedNamespaceLayer is never treated as a webservice layer
const ReservedNamespaceLayer = "ns"

var (
	// ErrNoLayers is returned when no layer matched the requested names
	ErrNoLayers = errors.New("no matching layers")

	// ErrLayerNotFound is returned for ids unknown to the registry
	ErrLayerNotFound = errors.New("layer not found")

	// ErrNotWebservice is returned by GetData for layers without a webservice
	ErrNotWebservice = errors.New("layer has no webservice")
)

// Config holds catalog settings
type Config struct {
	// DefaultDataTimeout replaces DefaultDataTimeout when positive
	DefaultDataTimeout time.Duration
}

// Catalog serves layer metadata
type Catalog struct {
	store      store.Store
	registry   *registry.Registry
	serializer *serialize.Serializer
	loader     webservice.Loader
	config     Config
	logger     *zap.Logger
}

// New creates a catalog
func New(st store.Store, reg *registry.Registry, ser *serialize.Serializer, loader webservice.Loader, config Config, logger *zap.Logger) *Catalog {
	if config.DefaultDataTimeout <= 0 {
		config.DefaultDataTimeout = DefaultDataTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		store:      st,
		registry:   reg,
		serializer: ser,
		loader:     loader,
		config:     config,
		logger:     logger.Named("catalog"),
	}
}

// Resolve maps layer-name tokens to the ids of matching layers
func (c *Catalog) Resolve(ctx context.Context, tokens []string) ([]int64, error) {
	return c.registry.ResolveAll(ctx, tokens)
}

// Names returns the registered layer names with their ids
func (c *Catalog) Names(ctx context.Context) (map[string]int64, error) {
	if err := c.registry.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return c.registry.Names(ctx)
}

// Documents loads the layer records and properties for ids. Ids whose
// record has disappeared since the registry was built are skipped.
func (c *Catalog) Documents(ctx context.Context, ids []int64) ([]serialize.LayerDocument, error) {
	docs := make([]serialize.LayerDocument, 0, len(ids))
	for _, id := range ids {
		l, err := c.store.LayerByID(ctx, id)
		if err != nil {
			if store.IsNotFound(err) {
				c.logger.Warn("registered layer missing from store", zap.Int64("layer_id", id))
				continue
			}
			return nil, fmt.Errorf("loading layer %d: %w", id, err)
		}

		props, err := c.store.Properties(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading properties of layer %d: %w", id, err)
		}

		docs = append(docs, serialize.LayerDocument{Layer: l, Properties: props})
	}
	return docs, nil
}

// Render resolves tokens and serializes every matching layer as one
// document
func (c *Catalog) Render(ctx context.Context, tokens []string, format serialize.Format, params serialize.Params, req serialize.Request) ([]byte, error) {
	ids, err := c.Resolve(ctx, tokens)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoLayers
	}

	docs, err := c.Documents(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoLayers
	}

	return c.serializer.Serialize(ctx, format, docs, params, req)
}

// InvalidateCache drops the registry so the next request rebuilds it
func (c *Catalog) InvalidateCache(ctx context.Context) error {
	return c.registry.Invalidate(ctx)
}

// RebuildCache drops and reloads the registry
func (c *Catalog) RebuildCache(ctx context.Context) error {
	return c.registry.Rebuild(ctx)
}

// NameFromID returns the name of a layer
func (c *Catalog) NameFromID(ctx context.Context, id int64) (string, error) {
	name, err := c.registry.NameFromID(ctx, id)
	if errors.Is(err, registry.ErrUnknownLayer) {
		return "", fmt.Errorf("%w: %d", ErrLayerNotFound, id)
	}
	return name, err
}

// layer returns the registry snapshot of a layer
func (c *Catalog) layer(ctx context.Context, id int64) (*layer.Layer, error) {
	if err := c.registry.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	l, err := c.registry.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("%w: %d", ErrLayerNotFound, id)
	}
	return l, nil
}
