// Package registry keeps the derived name -> id index of all layers, plus
// a full snapshot of every layer record, in the shared key-value cache.
//
// The registry never expires and never notices writes to the layer table
// on its own: after layers are inserted, updated or deleted, callers must
// Invalidate (or Rebuild) it.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/citysdk/layercatalog/internal/cache"
	"github.com/citysdk/layercatalog/internal/layer"
)

// UnavailableMessage is reported to clients when the registry cannot be used
const UnavailableMessage = "Layer cache unavailable"

// ErrUnavailable is returned when the registry cannot be loaded or read
var ErrUnavailable = errors.New("layer cache unavailable")

// errSuperseded aborts a load whose scan predates an Invalidate
var errSuperseded = errors.New("registry load superseded by invalidation")

// maxLoadAttempts bounds how often EnsureLoaded retries a superseded load
const maxLoadAttempts = 3

// LayerSource is the source of truth the registry is built from
type LayerSource interface {
	Layers(ctx context.Context) ([]*layer.Layer, error)
}

// Registry is the cache-backed layer index
type Registry struct {
	source LayerSource
	cache  cache.Cache
	logger *zap.Logger
	flight singleflight.Group

	// mu orders load writes against generation bumps. A load only writes
	// when the generation it scanned under is still current.
	mu  sync.Mutex
	gen uint64
}

// New creates a registry over source, stored in c
func New(source LayerSource, c cache.Cache, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		source: source,
		cache:  c,
		logger: logger.Named("registry"),
	}
}

// EnsureLoaded populates the registry unless the populated marker is set.
// Concurrent callers of one generation share a single rebuild; a rebuild
// that started before the last Invalidate is never joined.
func (r *Registry) EnsureLoaded(ctx context.Context) error {
	// The rebuild outlives any single caller, so it runs detached from
	// the cancellation of whichever request happened to start it.
	flightCtx := context.WithoutCancel(ctx)

	for attempt := 0; attempt < maxLoadAttempts; attempt++ {
		gen := r.generation()

		loaded, err := r.cache.Exists(ctx, cache.KeyLayersAvailable)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if loaded {
			return nil
		}

		_, err, shared := r.flight.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
			return nil, r.load(flightCtx, gen)
		})
		if shared {
			r.logger.Debug("joined in-flight registry rebuild", zap.Uint64("generation", gen))
		}
		if !errors.Is(err, errSuperseded) {
			return err
		}
		r.logger.Debug("registry invalidated during rebuild, retrying", zap.Uint64("generation", gen))
	}

	return fmt.Errorf("%w: registry invalidated during every rebuild", ErrUnavailable)
}

func (r *Registry) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

func (r *Registry) load(ctx context.Context, gen uint64) error {
	start := time.Now()

	// Another flight may have finished between the marker check and now
	if loaded, err := r.cache.Exists(ctx, cache.KeyLayersAvailable); err == nil && loaded {
		return nil
	}

	layers, err := r.source.Layers(ctx)
	if err != nil {
		r.logger.Error("failed to scan layers", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(layers) == 0 {
		r.logger.Warn("no layers available to build registry")
		return fmt.Errorf("%w: no layers", ErrUnavailable)
	}

	entries := make(map[string][]byte, len(layers)+2)
	names := make(map[string]int64, len(layers))
	for _, l := range layers {
		data, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("failed to encode layer %d: %w", l.ID, err)
		}
		entries[cache.LayerKey(l.ID)] = data
		names[l.Name] = l.ID
	}

	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("failed to encode layer names: %w", err)
	}
	entries[cache.KeyLayerNames] = data
	entries[cache.KeyLayersAvailable] = []byte("true")

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return errSuperseded
	}

	// Index, snapshots and marker land together, so readers never see
	// the marker without the index
	if err := r.cache.SetMany(ctx, entries, cache.NoExpiration); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	r.logger.Info("layer registry rebuilt",
		zap.Int("layers", len(layers)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Names returns the name -> id mapping. It does not load the registry;
// call EnsureLoaded first.
func (r *Registry) Names(ctx context.Context) (map[string]int64, error) {
	data, err := r.cache.Get(ctx, cache.KeyLayerNames)
	if err != nil {
		if cache.IsCacheMiss(err) {
			return nil, fmt.Errorf("%w: layer names not cached", ErrUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var names map[string]int64
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("%w: corrupt layer names: %v", ErrUnavailable, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no layer names", ErrUnavailable)
	}

	return names, nil
}

// ByID returns the cached snapshot of a layer, or nil when it is absent
func (r *Registry) ByID(ctx context.Context, id int64) (*layer.Layer, error) {
	data, err := r.cache.Get(ctx, cache.LayerKey(id))
	if err != nil {
		if cache.IsCacheMiss(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var l layer.Layer
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: corrupt snapshot of layer %d: %v", ErrUnavailable, id, err)
	}

	return &l, nil
}

// Invalidate drops the registry so the next EnsureLoaded rebuilds it.
// Loads that scanned before the call are discarded.
func (r *Registry) Invalidate(ctx context.Context) error {
	r.mu.Lock()
	r.gen++
	r.mu.Unlock()

	keys := []string{cache.KeyLayersAvailable, cache.KeyLayerNames}
	names, err := r.Names(ctx)
	if err == nil {
		for _, id := range names {
			keys = append(keys, cache.LayerKey(id))
		}
	}

	// Marker and index go in one batch; a reload racing with this call
	// leaves the registry either fully loaded or fully empty
	if err := r.cache.DeleteMany(ctx, keys...); err != nil {
		return fmt.Errorf("failed to drop layer registry: %w", err)
	}

	r.logger.Info("layer registry invalidated", zap.Int("layers", len(names)))
	return nil
}

// Rebuild invalidates and reloads the registry
func (r *Registry) Rebuild(ctx context.Context) error {
	if err := r.Invalidate(ctx); err != nil {
		return err
	}
	return r.EnsureLoaded(ctx)
}
