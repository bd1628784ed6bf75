package registry

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/studyden/quiz-battle-backend/internal/protocol"
	"github.com/studyden/quiz-battle-backend/internal/provider"
	"github.com/studyden/quiz-battle-backend/internal/quiz"
	"github.com/studyden/quiz-battle-backend/internal/room"
)

func testProvider() provider.Func {
	return func(context.Context, string, int) ([]quiz.Question, error) {
		return []quiz.Question{
			{Text: "What is 2 + 2?", Options: []string{"3", "4"}, Answer: "4"},
		}, nil
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := room.Config{MinPlayers: 2, QuestionCount: 1, QuestionTimeSec: 15, GenerateTimeout: time.Second}
	return New(ctx, cfg, testProvider(), zap.NewNop())
}

func createRoom(t *testing.T, reg *Registry, sessionID, name string) CreateResult {
	t.Helper()
	reply := make(chan CreateResult, 1)
	reg.Inbox() <- CreateRoom{
		OwnerSessionID:   sessionID,
		OwnerDisplayName: name,
		QuestionSource:   "photosynthesis notes",
		Outbox:           make(chan protocol.ServerMessage, 16),
		Reply:            reply,
	}
	select {
	case res := <-reply:
		if res.Err != nil {
			t.Fatalf("create room: %v", res.Err)
		}
		return res
	case <-time.After(time.Second):
		t.Fatalf("timed out creating room")
		return CreateResult{} // unreachable
	}
}

func getRoom(t *testing.T, reg *Registry, code string) *room.Room {
	t.Helper()
	reply := make(chan *room.Room, 1)
	reg.Inbox() <- GetRoom{Code: code, Reply: reply}
	select {
	case rm := <-reply:
		return rm
	case <-time.After(time.Second):
		t.Fatalf("timed out looking up room")
		return nil // unreachable
	}
}

func TestRegistry_CreateThenGet_SamePointer(t *testing.T) {
	reg := newTestRegistry(t)

	res := createRoom(t, reg, "s1", "alice")
	if len(res.Code) != codeLength {
		t.Fatalf("want %d-char code, got %q", codeLength, res.Code)
	}

	if got := getRoom(t, reg, res.Code); got != res.Room {
		t.Fatalf("expected same room pointer")
	}
}

func TestRegistry_CodesAreUniqueAmongLiveRooms(t *testing.T) {
	reg := newTestRegistry(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		res := createRoom(t, reg, "s1", "alice")
		if seen[res.Code] {
			t.Fatalf("code %q issued twice", res.Code)
		}
		seen[res.Code] = true
	}
}

func TestRegistry_UnknownCodeIsNotFound(t *testing.T) {
	reg := newTestRegistry(t)
	if rm := getRoom(t, reg, "ZZZZ"); rm != nil {
		t.Fatalf("expected nil for unknown code")
	}
}

func TestRegistry_EmptyRoomIsRemoved(t *testing.T) {
	reg := newTestRegistry(t)
	res := createRoom(t, reg, "s1", "alice")

	res.Room.Inbox() <- room.Leave{SessionID: "s1"}

	deadline := time.After(time.Second)
	for {
		if rm := getRoom(t, reg, res.Code); rm == nil {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("room still resolvable after last player left")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
