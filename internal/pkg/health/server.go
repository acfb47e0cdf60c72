package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Vodeneev/betrunner/internal/pkg/health/handlers"
	"github.com/Vodeneev/betrunner/internal/pkg/storage"
)

// Deps are the services the reporting API reads from. Nil handlers are not routed.
type Deps struct {
	Store          storage.HistoryStorage
	Metrics        http.Handler
	Events         http.Handler
	Checks         []handlers.HealthFunc
	AllowedOrigins []string
	Now            func() time.Time
}

// NewRouter builds the reporting API.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Health endpoints
	r.Get("/ping", handlers.HandlePing)
	r.Get("/health", handlers.HandleHealth(deps.Checks...))

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	if deps.Events != nil {
		r.Method(http.MethodGet, "/ws", deps.Events)
	}

	if deps.Store != nil {
		h := &handlers.History{Store: deps.Store, Now: deps.Now}
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/history", h.HandleHistory)
			r.Get("/stats", h.HandleStats)
		})
	}
	return r
}

// Run serves the reporting API on addr until ctx is done.
func Run(ctx context.Context, addr string, service string, deps Deps, readHeaderTimeout time.Duration) error {
	if readHeaderTimeout <= 0 {
		return errors.New("read_header_timeout must be specified in config")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		slog.Info("Health server listening", "service", service, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Health server error", "service", service, "error", err)
		}
	}()
	return nil
}

func AddrFor(port int) string {
	return fmt.Sprintf(":%d", port)
}
