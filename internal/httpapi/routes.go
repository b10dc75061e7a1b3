package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/hub"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, log *zap.Logger, wsOpts ws.Options) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, log, wsOpts))

	r.Route("/rooms/{code}", func(r chi.Router) {
		r.Get("/", RoomView(h, log))
		r.Get("/roles", AvailableRoles(h, log))
		r.Post("/roles/{role}/claim", ClaimRole(h, log))
		r.Get("/ledger", Ledger(h, log))
		r.Get("/ledger/{role}", RoleAccount(h, log))
		r.Post("/transfers", Transfer(h, log))
		r.Post("/end", EndSession(h, log))
	})
	return r
}

// requestLogger logs one line per request once the handler returns.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Debug("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("took", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
