package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/citysdk/layercatalog/internal/cache"
	"github.com/citysdk/layercatalog/internal/catalog"
	"github.com/citysdk/layercatalog/internal/cli/config"
	"github.com/citysdk/layercatalog/internal/geometry"
	"github.com/citysdk/layercatalog/internal/logging"
	"github.com/citysdk/layercatalog/internal/registry"
	"github.com/citysdk/layercatalog/internal/serialize"
	"github.com/citysdk/layercatalog/internal/store"
	"github.com/citysdk/layercatalog/internal/webservice"
)

// app holds the wired catalog components shared by the commands
type app struct {
	config   *config.Config
	logger   *zap.Logger
	store    *store.SQLStore
	cache    cache.Cache
	registry *registry.Registry
	catalog  *catalog.Catalog
}

// loadConfig reads the file named by --config, or the default search path
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url not set (use database.url, %s_DATABASE_URL or DATABASE_URL)", config.EnvPrefix)
	}
	return cfg, nil
}

// newApp opens the store and cache and wires the registry, serializer
// and catalog on top of them
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.New(logging.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return nil, err
	}

	storeCfg := store.DefaultConfig(cfg.Database.URL)
	storeCfg.Driver = cfg.Database.Driver
	storeCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	storeCfg.MaxIdleConns = cfg.Database.MaxIdleConns

	st, err := store.Open(ctx, storeCfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	c, err := openCache(ctx, cfg.Cache)
	if err != nil {
		_ = st.Close()
		_ = logger.Sync()
		return nil, err
	}

	reg := registry.New(st, c, logger)
	ser := serialize.New(serialize.Config{
		BaseURI:      cfg.RDF.BaseURI,
		EndpointCode: cfg.RDF.EPCode,
	}, st, geometry.NewAdapter(geometry.NewOrbCodec()), logger)
	loader := webservice.NewHTTPLoader(nil, logger)

	cat := catalog.New(st, reg, ser, loader, catalog.Config{
		DefaultDataTimeout: cfg.Webservice.DataTimeout(),
	}, logger)

	return &app{
		config:   cfg,
		logger:   logger,
		store:    st,
		cache:    c,
		registry: reg,
		catalog:  cat,
	}, nil
}

func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	common := cache.CacheConfig{Prefix: cfg.Prefix}

	switch cfg.Backend {
	case config.CacheRedis:
		c, err := cache.NewRedisCacheWithConfig(ctx, cache.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			CacheConfig: common,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return c, nil
	default:
		return cache.NewMemoryCacheWithConfig(common), nil
	}
}

// Close releases the cache and the database pool
func (a *app) Close() error {
	err := errors.Join(a.cache.Close(), a.store.Close())
	_ = a.logger.Sync()
	return err
}
