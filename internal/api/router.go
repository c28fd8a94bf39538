package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atmx/roulette-engine/internal/live"
	"github.com/atmx/roulette-engine/internal/metrics"
)

// NewRouter assembles the chi router for the roulette engine: round
// lifecycle endpoints, the live WebSocket feed, health check, and
// Prometheus metrics.
func NewRouter(srv *Server, hub *live.Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"roulette-engine"}`))
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if hub != nil {
			r.Get("/ws", hub.HandleWS)
		}

		r.Get("/rounds", srv.ListRounds)
		r.Post("/rounds", srv.CreateRound)
		r.Get("/rounds/{round}", srv.GetRound)
		r.Patch("/rounds/{round}", srv.UpdateRound)
		r.Post("/rounds/{round}/bets", srv.PlaceBet)
		r.Post("/rounds/{round}/finish", srv.Finish)
		r.Post("/rounds/{round}/withdraw", srv.Withdraw)
		r.Get("/rounds/{round}/payouts", srv.ListPayouts)

		r.Get("/audit/rounds", srv.AuditListRounds)
		r.Get("/audit/rounds/{round}", srv.AuditGetRound)
	})

	return r
}
