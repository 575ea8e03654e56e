package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cms-api/internal/audit"
	"cms-api/internal/auth"
	"cms-api/internal/config"
	"cms-api/internal/httpapi"
	"cms-api/internal/users"
	"cms-api/migrations"
	"cms-api/pkg/logger"
	"cms-api/pkg/metrics"
	"cms-api/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(rootCtx); err != nil {
		slog.Error("command failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cms-api",
		Short:         "CMS API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context())
		},
	})
	return root
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)
	return cfg, log, nil
}

func migrate(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		return err
	}
	log.Info("schema applied")
	return nil
}

func serve(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	authMetrics := metrics.NewAuth(reg)

	tokens, err := auth.NewManager(cfg.Auth, auth.WithMetrics(authMetrics))
	if err != nil {
		return err
	}

	db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return err
	}
	defer db.Close()

	var limiter httpapi.LoginLimiter
	if addr := cfg.RedisAddr(); addr != "" {
		var rdb *redis.Client
		rdb, err = utils.OpenRedis(ctx, utils.RedisConfig{Addr: addr})
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter = httpapi.NewRedisLoginLimiter(rdb, cfg.Login.MaxAttempts, cfg.Login.Window)
	} else {
		log.Warn("redis not configured, login throttling disabled")
	}

	userStore := users.NewPostgresRepo(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	cookies := auth.NewCookieManager(tokens, cfg.Auth.SecureCookies)
	refresher := auth.NewRefresher(auth.RefresherConfig{
		Tokens:  tokens,
		Users:   userStore,
		Cookies: cookies,
		Audit:   auditSvc,
		Metrics: authMetrics,
	})

	h := httpapi.Handlers{
		Users:       userStore,
		Tokens:      tokens,
		Credentials: auth.NewCredentialValidator(userStore),
		Cookies:     cookies,
		Refresher:   refresher,
		Audit:       auditSvc,
		Metrics:     authMetrics,
		Limiter:     limiter,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(auth.ErrorClassifier(authMetrics))

	registerRoutes(r, db, reg, h, refresher.AutoRefresh(auth.NewGuard(tokens)))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error("http server failed", "err", err)
			return err
		}
	}
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
		return err
	}
	return nil
}
