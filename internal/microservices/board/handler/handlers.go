package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"kitchen-sync/internal/common/logger"
)

type Handler struct {
	BoardHandler *BoardHandler
}

func New(board *BoardHandler) *Handler {
	return &Handler{BoardHandler: board}
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLog logs one line per request with the request id chi assigned.
func requestLog(lg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			lg.WithRequestID(middleware.GetReqID(r.Context())).Debug("http_request", map[string]any{
				"method": r.Method, "path": r.URL.Path, "status": ww.Status(), "duration_ms": time.Since(start).Milliseconds(),
			})
		})
	}
}
