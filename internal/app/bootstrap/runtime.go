package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/adapters/cache"
	graphadapter "github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/adapters/graph"
	httpadapter "github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/adapters/http"
	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/adapters/realtime"
	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/adapters/security"
	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/application"
	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping m34 change notification service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("build redis client: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	keyProvider, err := loadPrivateKey(cfg)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("load decryption key: %w", err)
	}

	tokenVerifier, err := security.NewTokenVerifier(ctx, security.TokenVerifierConfig{
		ExpectedAppID:    cfg.AppID,
		ExpectedTenantID: cfg.TenantID,
		JWKSURL:          cfg.JWKSURL,
		RefreshInterval:  cfg.TokenRefreshInterval,
	})
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token verifier: %w", err)
	}

	repos := postgres.NewRepositories(pool)
	subscriptions := cacheadapter.NewRedisSubscriptionCache(redisClient, repos.Subscriptions, cfg.SubscriptionCacheTTL)

	fetcher := graphadapter.NewClient(ctx, graphadapter.ClientConfig{
		BaseURL:      cfg.GraphBaseURL,
		TenantID:     cfg.TenantID,
		ClientID:     cfg.AppID,
		ClientSecret: cfg.ClientSecret,
		Timeout:      cfg.GraphHTTPTimeout,
	})

	var publisher ports.EventPublisher
	switch cfg.DispatchTransport {
	case "log":
		publisher = realtime.NewLoggingPublisher(logger)
	default:
		publisher = realtime.NewRedisPublisher(redisClient)
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ClientStateSecret: cfg.ClientStateSecret,
			FetchSelectFields: cfg.FetchSelectFields,
			MaxConcurrency:    cfg.BatchMaxConcurrency,
		},
		TokenVerifier: tokenVerifier,
		Decryptor:     security.NewPayloadDecryptor(keyProvider),
		Subscriptions: subscriptions,
		Fetcher:       fetcher,
		Publisher:     publisher,
	})

	readiness := func(ctx context.Context) error {
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	}

	handler := httpadapter.NewHandler(svc, readiness)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		cleanupFn: func(ctx context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func loadPrivateKey(cfg Config) (*security.PEMKeyProvider, error) {
	pemData := cfg.PrivateKeyPEM
	if pemData == "" {
		raw, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key file: %w", err)
		}
		pemData = string(raw)
	}
	return security.NewPEMKeyProvider(pemData)
}
