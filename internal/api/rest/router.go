package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/metrics"
	"github.com/dtroode/identity-server/internal/model"
)

// IdentityAPI is the service the router exposes and authenticates with.
type IdentityAPI interface {
	IdentityService
	Authenticator
}

// NewRouter builds the HTTP routes. metrics may be nil.
func NewRouter(
	identity IdentityAPI,
	contextManager model.ContextManager,
	m *metrics.Metrics,
	lg *logger.Logger,
) http.Handler {
	h := NewHandler(identity, contextManager, lg)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(RequestLogger(lg))
	r.Use(chiMiddleware.Recoverer)
	if m != nil {
		r.Use(m.Middleware)
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Get("/health", h.health)
	r.Post("/register", h.register)
	r.Post("/login", h.login)

	r.Route("/users", func(users chi.Router) {
		users.Use(Authenticate(identity, contextManager))
		users.Get("/", h.listUsers)
		users.Get("/{id}", h.getUser)
		users.Delete("/{id}", h.deleteUser)
	})

	return r
}
