package daemon

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/spectrum-hq/spectrum/internal/config"
	"github.com/spectrum-hq/spectrum/internal/coordinator"
	"github.com/spectrum-hq/spectrum/pkg/clog"
)

// Server exposes the coordinator over a JSON API so editors and bots can
// drive assignment without shelling out to the CLI.
type Server struct {
	server *http.Server
	env    *config.Env
	coord  *coordinator.Coordinator
	logger *slog.Logger
}

func NewServer(env *config.Env, coord *coordinator.Coordinator, logger *slog.Logger) *Server {
	return &Server{env: env, coord: coord, logger: logger}
}

// Handler builds the full routing table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(clog.SlogChiMiddleware())

		r.Route("/dependencies", func(r chi.Router) {
			r.Post("/", s.handleAddDependency)
			r.Delete("/", s.handleRemoveDependency)
		})
		r.Get("/ready", s.handleReadySet)
		r.Get("/cycles", s.handleCycles)
		r.Get("/balance", s.handleBalance)

		r.Route("/tickets/{ticketID}", func(r chi.Router) {
			r.Get("/", s.handleGetTicket)
			r.Patch("/status", s.handleSetStatus)
			r.Post("/quality", s.handleSetQuality)
			r.Post("/children", s.handleLinkChild)
			r.Get("/critical-path", s.handleCriticalPath)
			r.Get("/tree", s.handleTree)
		})

		r.Route("/agents", func(r chi.Router) {
			r.Post("/", s.handleRegisterAgent)
			r.Route("/{agentID}", func(r chi.Router) {
				r.Get("/", s.handleGetAgent)
				r.Post("/queue", s.handleEnqueue)
				r.Post("/assign", s.handleAssign)
				r.Post("/complete", s.handleComplete)
			})
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)
	return mux
}

// ListenAndServe starts the HTTP server. The provided context is the base
// context for all incoming requests, so cancelling it on shutdown also
// cancels in-flight handlers.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	s.logger.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(s.Handler()), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
