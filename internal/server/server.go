package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parking-facility/internal/config"
	"parking-facility/internal/logging"
)

type Server struct {
	httpServer *http.Server
	handler    *Handler
}

func NewServer(cfg config.ServerConfig, handler *Handler) *Server {
	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      NewRouter(handler, NewRegistry(handler)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
	}
}

func NewRouter(handler *Handler, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(TracingMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(CORSMiddleware)

	r.Get("/health", handler.HealthCheck)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	r.Route("/api/facility", func(r chi.Router) {
		r.Post("/", handler.CreateFacility)
		r.Post("/park", handler.ParkVehicle)
		r.Post("/leave", handler.LeaveFacility)
		r.Post("/invoice", handler.InvoiceVehicle)
		r.Get("/locate/{plate}", handler.LocateVehicle)
		r.Get("/status", handler.GetStatus)
		r.Get("/stats", handler.GetStats)
		r.Get("/tickets", handler.ListTickets)
		r.Get("/tickets/{id}", handler.GetTicket)
		r.Post("/tickets/{id}/settle", handler.SettleTicket)
		r.Post("/tickets/{id}/refund", handler.RefundTicket)
		r.Post("/spots/{number}/{action}", handler.UpdateSpot)
	})

	return r
}

func (s *Server) Start() error {
	logging.Info(context.Background()).Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info(ctx).Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
