package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/alecgard/saasboard/internal/activity"
	"github.com/alecgard/saasboard/internal/auth"
	"github.com/alecgard/saasboard/internal/config"
	"github.com/alecgard/saasboard/internal/inventory"
	"github.com/alecgard/saasboard/internal/locale"
	"github.com/alecgard/saasboard/internal/metrics"
	"github.com/alecgard/saasboard/internal/plan"
	"github.com/alecgard/saasboard/internal/ratelimit"
	"github.com/alecgard/saasboard/internal/sales"
	"github.com/alecgard/saasboard/internal/tenant"
	"github.com/alecgard/saasboard/internal/user"
	"github.com/alecgard/saasboard/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SaaSBoard web server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	m := metrics.New()
	m.RegisterDBPoolCollector(func() metrics.PoolStats {
		s := pool.Stat()
		return metrics.PoolStats{
			Total:        s.TotalConns(),
			Idle:         s.IdleConns(),
			Acquired:     s.AcquiredConns(),
			Max:          s.MaxConns(),
			AcquireCount: s.AcquireCount(),
		}
	})

	activityStore := activity.NewStore(pool)
	collector := activity.NewCollector(activityStore,
		cfg.Activity.BatchSize, cfg.Activity.MaxBuffer, cfg.Activity.FlushInterval,
		activity.WithFlushHook(func(n int, err error) {
			m.ObserveActivityFlush(n, err)
		}),
		activity.WithDropHook(m.IncActivityDropped),
	)
	go collector.Start(ctx)

	tenantStore := tenant.NewStore(pool)
	planStore := plan.NewStore(pool)
	userStore := user.NewStore(pool)

	tokens := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	resolverOpts := []auth.ResolverOption{
		auth.WithEventLogger(collector),
		auth.WithObserver(m),
	}
	if cfg.Auth.CheckTenant {
		resolverOpts = append(resolverOpts, auth.WithTenantChecker(tenantStore))
	}
	resolver := auth.NewResolver(tokens, cfg.Auth.CookieName, resolverOpts...)

	gate := plan.NewGate(planStore,
		plan.WithEventLogger(collector),
		plan.WithDenialObserver(m),
	)

	locales, err := locale.New(cfg.Locale.Default, cfg.Locale.Supported)
	if err != nil {
		return err
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.LoginAttempts > 0 {
		limiter = ratelimit.New(cfg.RateLimit.LoginAttempts, cfg.RateLimit.Window)
		go pruneLimiter(ctx, limiter, cfg.RateLimit.Window)
	}
	go reportBuffer(ctx, collector, m)

	router := web.NewRouter(web.Deps{
		Resolver:       resolver,
		Locales:        locales,
		Users:          user.NewAuthenticator(userStore),
		Tokens:         tokens,
		Gate:           gate,
		Entitlements:   planStore,
		Tenants:        tenant.NewService(tenantStore, collector),
		Products:       inventory.NewStore(pool),
		Sales:          sales.NewStore(pool),
		Plans:          planStore,
		Activity:       activityStore,
		Events:         collector,
		Metrics:        m,
		LoginLimiter:   limiter,
		DB:             pool,
		CookieName:     cfg.Auth.CookieName,
		CookieSecure:   cfg.Auth.CookieSecure,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "locales", cfg.Locale.Supported)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
	case err := <-errCh:
		slog.Error("server error", "error", err)
		collector.Stop()
		return err
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err = srv.Shutdown(shutdownCtx)
	collector.Stop()
	return err
}

// pruneLimiter drops idle login buckets once per window.
func pruneLimiter(ctx context.Context, l *ratelimit.Limiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Prune(); n > 0 {
				slog.Debug("pruned login rate limit buckets", "removed", n, "remaining", l.Len())
			}
		}
	}
}

// reportBuffer publishes the activity buffer depth as a gauge.
func reportBuffer(ctx context.Context, c *activity.Collector, m *metrics.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetActivityBuffer(c.Buffered())
		}
	}
}
