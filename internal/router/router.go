package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/talx-hub/gopher-billpay/internal/api/middlewares"
	"github.com/talx-hub/gopher-billpay/internal/config"
)

type CustomRouter struct {
	router *chi.Mux
	logger *slog.Logger
	cfg    *config.Config
}

func New(cfg *config.Config, log *slog.Logger) *CustomRouter {
	if log == nil {
		log = slog.Default()
	}
	router := &CustomRouter{
		router: chi.NewRouter(),
		logger: log,
		cfg:    cfg,
	}

	return router
}

type BatchHandler interface {
	StartBatch(w http.ResponseWriter, r *http.Request)
	ListBatches(w http.ResponseWriter, r *http.Request)
	GetBatch(w http.ResponseWriter, r *http.Request)
	StopBatch(w http.ResponseWriter, r *http.Request)
}

type PendingHandler interface {
	ListPending(w http.ResponseWriter, r *http.Request)
}

type HealthHandler interface {
	Ping(w http.ResponseWriter, r *http.Request)
}

type Handler interface {
	BatchHandler
	PendingHandler
	HealthHandler
}

func (cr *CustomRouter) SetRouter(h Handler) {
	cr.router.Use(middleware.Recoverer, middlewares.WithLogger(cr.logger))

	cr.router.Route("/api", func(r chi.Router) {
		if cr.cfg != nil && cr.cfg.SecretKey != "" {
			r.Use(middlewares.Authentication([]byte(cr.cfg.SecretKey), cr.logger))
		}

		r.Route("/batches", func(r chi.Router) {
			r.With(middleware.AllowContentType("application/json")).
				Post("/", h.StartBatch)
			r.Get("/", h.ListBatches)
			r.Get("/{id}", h.GetBatch)
			r.Post("/{id}/stop", h.StopBatch)
		})
		r.Get("/services/{service}/pending", h.ListPending)
	})
	cr.router.Get("/ping", h.Ping)

	cr.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w,
			http.StatusText(http.StatusMethodNotAllowed),
			http.StatusMethodNotAllowed)
	})
}

func (cr *CustomRouter) GetRouter() *chi.Mux {
	return cr.router
}
