package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"codesync/internal/api"
	"codesync/internal/relay"
	"codesync/internal/session"
)

func New(log *zap.SugaredLogger, rly *relay.Relay, hub *session.Hub) http.Handler {
	h := api.NewHandlers(log, rly, hub)
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/api/v1/healthz", h.Health)
	r.Get("/api/v1/stats", h.Stats)

	r.Get("/ws", h.RoomWS)

	return r
}
