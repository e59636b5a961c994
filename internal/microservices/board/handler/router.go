package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kitchen-sync/internal/common/logger"
)

func Router(h *Handler, gatherer prometheus.Gatherer, lg *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, requestLog(lg))

	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/board", func(r chi.Router) {
		r.Get("/", h.BoardHandler.GetBoard)
		r.Post("/refresh", h.BoardHandler.Refresh)
		r.Get("/ws", h.BoardHandler.ServeWS)
		r.Post("/orders/{id}/actions/{action}", h.BoardHandler.Act)
		r.Get("/orders/{id}/timeline", h.BoardHandler.Timeline)
	})
	return r
}
