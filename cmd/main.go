package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc/reflection"

	apicontext "github.com/dtroode/identity-server/internal/api/context"
	"github.com/dtroode/identity-server/internal/api/grpc/router"
	grpcServer "github.com/dtroode/identity-server/internal/api/grpc/server"
	"github.com/dtroode/identity-server/internal/api/rest"
	"github.com/dtroode/identity-server/internal/config"
	"github.com/dtroode/identity-server/internal/credential"
	"github.com/dtroode/identity-server/internal/events"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/metrics"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/repository/memory"
	"github.com/dtroode/identity-server/internal/server"
	"github.com/dtroode/identity-server/internal/service"
	"github.com/dtroode/identity-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	codec, err := credential.NewCodec(cfg.Codec.Algorithm, cfg.Codec.BcryptCost, credential.Argon2Params{
		Memory:      cfg.Codec.Argon2Memory,
		Iterations:  cfg.Codec.Argon2Iterations,
		Parallelism: cfg.Codec.Argon2Parallelism,
	})
	if err != nil {
		logger.Fatal("failed to initialize password codec", "error", err)
	}

	publisher, closePublisher := newPublisher(ctx, cfg.Redis, logger)
	defer closePublisher()

	tokenService := service.NewTokenService(token.NewJWT(cfg.JWT.Secret), cfg.JWT.TTL(), logger)
	userRepo := memory.NewUserRepository()
	identityService := service.NewIdentity(userRepo, codec, tokenService, publisher, logger)

	ctxMgr := apicontext.NewManager()
	m := metrics.New()

	var sl model.SecurityLayer = server.NewPlainListener()
	if cfg.GRPC.EnableHTTPS {
		sl, err = server.NewTLSListener(cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)
		if err != nil {
			logger.Fatal("failed to initialize TLS", "error", err)
		}
	}

	servers := []model.Server{
		registerGRPCServer(logger, identityService, ctxMgr, m, fmt.Sprintf(":%s", cfg.GRPC.Port)),
		rest.NewHTTPServer(
			rest.NewRouter(identityService, ctxMgr, m, logger),
			fmt.Sprintf(":%s", cfg.HTTP.Port),
			cfg.HTTP.ReadTimeout,
			cfg.HTTP.WriteTimeout,
			cfg.HTTP.IdleTimeout,
		),
	}

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(s model.Server) {
			defer wg.Done()
			logger.Info("Starting server on", "address", s.Address())
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start server", "error", err, "address", s.Address())
				stop()
			}
		}(s)
	}

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	for _, s := range servers {
		if err := s.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", s.Address())
		}
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

func registerGRPCServer(
	logger *logger.Logger,
	identityService *service.Identity,
	ctxMgr model.ContextManager,
	m *metrics.Metrics,
	addr string,
) *grpcServer.GRPCServer {
	r := router.New(identityService, ctxMgr, m, logger)
	s := r.Register()

	reflection.Register(s)

	return grpcServer.NewGRPCServer(s, addr)
}

// newPublisher connects to Redis when an address is configured and falls back
// to a no-op publisher otherwise.
func newPublisher(ctx context.Context, cfg config.Redis, logger *logger.Logger) (model.EventPublisher, func()) {
	if cfg.Addr == "" {
		logger.Info("Redis address not set, user events are not published")
		return events.NopPublisher{}, func() {}
	}

	client, err := events.NewRedisClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		logger.Fatal("failed to connect to redis", "error", err, "addr", cfg.Addr)
	}

	return events.NewRedisPublisher(client, cfg.Channel), func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}
}
