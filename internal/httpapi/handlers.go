package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/studyden/quiz-battle-backend/internal/protocol"
	"github.com/studyden/quiz-battle-backend/internal/registry"
	"github.com/studyden/quiz-battle-backend/internal/room"
)

type roomStatusResponse struct {
	Code         string                `json:"code"`
	Status       room.Status           `json:"status"`
	Players      []protocol.PlayerView `json:"players"`
	NumQuestions int                   `json:"num_questions"`
	CreatedAt    time.Time             `json:"created_at"`
}

// RoomStatus exposes a read-only snapshot of a room, handy for a share page
// showing who is in before the game starts. Same privacy rule as the wire
// protocol: names and scores only.
func RoomStatus(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		lookup := make(chan *room.Room, 1)
		reg.Inbox() <- registry.GetRoom{Code: code, Reply: lookup}
		rm := <-lookup
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		view, ok := snapshot(rm)
		if !ok {
			// Room emptied out between lookup and snapshot.
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(roomStatusResponse{
			Code:         view.Code,
			Status:       view.Status,
			Players:      view.Players,
			NumQuestions: view.NumQuestions,
			CreatedAt:    view.CreatedAt,
		})
	}
}

// snapshot asks the room for its state without ever blocking on a room whose
// loop has exited.
func snapshot(rm *room.Room) (room.View, bool) {
	reply := make(chan room.View, 1)
	select {
	case rm.Inbox() <- room.GetState{Reply: reply}:
	case <-rm.Done():
		return room.View{}, false
	}
	select {
	case view := <-reply:
		return view, true
	case <-rm.Done():
		// The loop may have answered right before exiting.
		select {
		case view := <-reply:
			return view, true
		default:
			return room.View{}, false
		}
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
