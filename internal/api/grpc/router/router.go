package router

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/identity-server/internal/api/grpc/handler"
	"github.com/dtroode/identity-server/internal/api/grpc/middleware"
	"github.com/dtroode/identity-server/internal/api/grpc/proto"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/metrics"
	"github.com/dtroode/identity-server/internal/model"
)

// IdentityService is the service the router exposes and authenticates with.
type IdentityService interface {
	handler.IdentityService
	middleware.Authenticator
}

// Router represents a gRPC router for identity operations.
// It manages gRPC service registration and middleware configuration.
type Router struct {
	identityService IdentityService
	contextManager  model.ContextManager
	metrics         *metrics.Metrics
	logger          *logger.Logger
}

// New creates new gRPC Router instance.
func New(
	identityService IdentityService,
	contextManager model.ContextManager,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Router {
	return &Router{
		identityService: identityService,
		contextManager:  contextManager,
		metrics:         metrics,
		logger:          logger,
	}
}

var publicMethods = map[string]struct{}{
	proto.Identity_Register_FullMethodName: {},
	proto.Identity_Login_FullMethodName:    {},
}

func requiresAuth(_ context.Context, c interceptors.CallMeta) bool {
	_, public := publicMethods[c.FullMethod()]
	return !public
}

// Register registers all gRPC services and middleware.
// It sets up the gRPC server with panic recovery, metrics, request logging
// and authentication interceptors.
//
// Returns the configured gRPC server instance.
func (r *Router) Register(opts ...grpc.ServerOption) *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.identityService, r.contextManager, r.logger)

	unary := []grpc.UnaryServerInterceptor{
		recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(r.recoverPanic)),
	}
	if r.metrics != nil {
		unary = append(unary, r.metrics.UnaryServerInterceptor())
	}
	unary = append(unary,
		logging.HandleGRPC,
		selector.UnaryServerInterceptor(
			auth.UnaryServerInterceptor(authenticate.AuthFunc),
			selector.MatchFunc(requiresAuth),
		),
	)

	opts = append(opts, grpc.ChainUnaryInterceptor(unary...))

	s := grpc.NewServer(opts...)
	r.registerIdentityRoutes(s)

	return s
}

func (r *Router) registerIdentityRoutes(server *grpc.Server) {
	identityHandler := handler.NewIdentity(r.identityService, r.contextManager, r.logger)
	proto.RegisterIdentityServer(server, identityHandler)
}

func (r *Router) recoverPanic(p any) error {
	r.logger.Error("gRPC handler panicked",
		"panic", fmt.Sprint(p))
	return status.Error(codes.Internal, "internal server error")
}
