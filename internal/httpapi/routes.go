package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/studyden/quiz-battle-backend/internal/registry"
	"github.com/studyden/quiz-battle-backend/internal/ws"
)

func SetupRoutes(reg *registry.Registry, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(reg, log))
	r.Get("/rooms/{code}", RoomStatus(reg))
	return r
}
