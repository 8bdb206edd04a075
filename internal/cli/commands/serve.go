package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/citysdk/layercatalog/internal/api"
	"github.com/citysdk/layercatalog/internal/cache"
	"github.com/citysdk/layercatalog/internal/cli/config"
	"github.com/citysdk/layercatalog/internal/web/middleware"
	"github.com/citysdk/layercatalog/internal/web/ratelimit"
	"github.com/citysdk/layercatalog/internal/web/server"
)

var (
	servePortFlag   int
	serveAdminFlag  bool
	serveNoWarmFlag bool
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog HTTP server",
		Long: `Run the catalog HTTP server.

Endpoints:
  GET  /health                 dependency health
  GET  /layers?name=<names>    layer metadata (JSON or Turtle)
  GET  /layers/<name>          metadata of one name or wildcard
  POST /admin/cache/rebuild    reload the layer registry (with --admin)

The output format follows ?format= or the Accept header.`,
		Example: `  # Serve with catalog.yml from the working directory
  layercatalog serve

  # Override the port and enable the admin endpoint
  layercatalog serve --port 3000 --admin`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().IntVarP(&servePortFlag, "port", "p", 0, "Override server.port")
	cmd.Flags().BoolVar(&serveAdminFlag, "admin", false, "Enable the admin endpoints")
	cmd.Flags().BoolVar(&serveNoWarmFlag, "no-warm", false, "Skip loading the layer registry at startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if servePortFlag != 0 {
		cfg.Server.Port = servePortFlag
	}
	if serveAdminFlag {
		cfg.Server.AdminEnabled = true
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	if !serveNoWarmFlag {
		if err := a.registry.EnsureLoaded(ctx); err != nil {
			// Requests retry the load, so a cold start is not fatal
			a.logger.Warn("layer registry not loaded at startup", zap.Error(err))
		}
	}

	opts := handlerOptions(a)
	trusted, err := ratelimit.ParseTrustedProxies(cfg.Server.RateLimit.TrustedProxies)
	if err != nil {
		_ = a.Close()
		return fmt.Errorf("server.rate_limit.trusted_proxies: %w", err)
	}
	opts.RateLimitKey = ratelimit.ForwardedFor(trusted)

	limiter, closeLimiter, err := newRateLimiter(a)
	if err != nil {
		_ = a.Close()
		return err
	}
	opts.RateLimiter = limiter

	srv, err := server.New(serverConfig(cfg, opts))
	if err != nil {
		_ = closeLimiter()
		_ = a.Close()
		return err
	}

	gs := server.NewGracefulShutdown(srv, &server.ShutdownConfig{
		Timeout: cfg.Server.ShutdownTimeout,
		Logger:  a.logger,
	})
	gs.RegisterHook("ratelimit", func(ctx context.Context) error {
		return closeLimiter()
	})
	gs.RegisterHook("cache", func(ctx context.Context) error {
		return a.cache.Close()
	})
	gs.RegisterHook("store", func(ctx context.Context) error {
		return a.store.Close()
	})

	color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "✓ Serving layer catalog on %s\n", cfg.Server.Address())

	err = gs.Run(ctx)
	_ = a.logger.Sync()
	return err
}

func handlerOptions(a *app) api.Options {
	opts := api.Options{
		Catalog:      a.catalog,
		Logger:       a.logger,
		AdminEnabled: a.config.Server.AdminEnabled,
		Profiling:    a.config.Server.Profiling,
		Health: map[string]api.HealthCheck{
			"database": func(ctx context.Context) error {
				return a.store.DB().PingContext(ctx)
			},
			"cache": func(ctx context.Context) error {
				_, err := a.cache.Exists(ctx, "ping")
				return err
			},
		},
	}
	if len(a.config.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = a.config.Server.CORSOrigins
		opts.CORS = &cors
	}
	return opts
}

// newRateLimiter shares the redis of the cache when there is one, so the
// limit holds across servers. It returns nil when rate limiting is off.
func newRateLimiter(a *app) (ratelimit.Limiter, func() error, error) {
	rl := a.config.Server.RateLimit
	noop := func() error { return nil }
	if rl.Requests <= 0 {
		return nil, noop, nil
	}

	if rc, ok := a.cache.(*cache.RedisCache); ok {
		limiter, err := ratelimit.NewRedisLimiter(ratelimit.RedisConfig{
			Client: rc.Client(),
			Limit:  rl.Requests,
			Window: rl.Window,
			Prefix: a.config.Cache.Prefix + "ratelimit:",
		})
		if err != nil {
			return nil, noop, err
		}
		return limiter, noop, nil
	}

	tb := ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{
		Capacity:        rl.Requests,
		Window:          rl.Window,
		CleanupInterval: rl.Window,
	})
	return tb, tb.Close, nil
}

func serverConfig(cfg *config.Config, opts api.Options) *server.Config {
	sc := server.DefaultConfig(api.NewRouter(opts))
	sc.Address = cfg.Server.Address()
	if cfg.Server.ReadTimeout > 0 {
		sc.ReadTimeout = cfg.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout > 0 {
		sc.WriteTimeout = cfg.Server.WriteTimeout
	}
	return sc
}
