// Package server exposes the engine over HTTP. Commands travel as
// plain REST calls; events come back through the websocket feed.
// The two never share a channel, mirroring the append/stream split
// of the engine underneath.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"

	"cinematch/auth"
	"cinematch/observability"
	"cinematch/services"
	"cinematch/session"
)

type Server struct {
	log      *slog.Logger
	tokens   *auth.Manager
	match    services.IMatchService
	rooms    services.IRoomService
	chat     services.IChatService
	reveal   services.IRevealService
	sessions *session.Manager
	metrics  *observability.Metrics

	allowedOrigins []string
	upgrader       websocket.Upgrader
	http           *http.Server
}

func NewServer(log *slog.Logger, addr string, tokens *auth.Manager,
	match services.IMatchService, rooms services.IRoomService,
	chat services.IChatService, reveal services.IRevealService,
	sessions *session.Manager, metrics *observability.Metrics,
	allowedOrigins []string, requestsPerMinute, tokenRequestsPerMinute int) *Server {
	s := &Server{
		log:            log,
		tokens:         tokens,
		match:          match,
		rooms:          rooms,
		chat:           chat,
		reveal:         reveal,
		sessions:       sessions,
		metrics:        metrics,
		allowedOrigins: allowedOrigins,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.routes(requestsPerMinute, tokenRequestsPerMinute),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(requestsPerMinute, tokenRequestsPerMinute int) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	// Token issuing is the only public API route, so it carries the
	// strictest rate limit.
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(tokenRequestsPerMinute, time.Minute))
		r.Post("/token", s.handleToken)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByIP(requestsPerMinute, time.Minute))
		r.Use(auth.Middleware(s.tokens))

		r.Post("/match", s.handleRequestMatch)
		r.Delete("/match", s.handleCancelMatch)

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", s.handleListRooms)
			r.Route("/{roomID}", func(r chi.Router) {
				r.Get("/", s.handleGetRoom)
				r.Get("/messages", s.handleHistory)
				r.Post("/messages", s.handleAppend)
				r.Get("/search", s.handleSearch)
				r.Get("/reveal", s.handleRevealState)
				r.Post("/reveal", s.handleReveal)
			})
		})
	})

	// The websocket handshake authenticates through the token query
	// parameter because browsers cannot set headers on an Upgrade.
	r.With(auth.Middleware(s.tokens)).Get("/ws", s.handleWebsocket)

	return r
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients do not send an Origin header.
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Handler returns the assembled routing tree, mostly for tests that
// want to drive the API through httptest.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start blocks serving requests until Shutdown is called or the
// listener fails. The caller decides what ErrServerClosed means.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "address", s.http.Addr)
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server...")
	return s.http.Shutdown(ctx)
}
