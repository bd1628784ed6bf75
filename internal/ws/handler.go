// Package ws binds one websocket connection to at most one room and
// translates between wire events and room/registry messages.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/studyden/quiz-battle-backend/internal/protocol"
	"github.com/studyden/quiz-battle-backend/internal/registry"
	"github.com/studyden/quiz-battle-backend/internal/room"
)

const writeTimeout = 3 * time.Second

// session is the per-connection state. The session id is opaque and lives
// only as long as the connection; it never reaches other clients.
type session struct {
	id     string
	conn   *websocket.Conn
	outbox chan protocol.ServerMessage
	room   *room.Room
	code   string
	log    *zap.Logger
}

func Handler(reg *registry.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		id := uuid.NewString()
		s := &session{
			id:     id,
			conn:   conn,
			outbox: make(chan protocol.ServerMessage, 16),
			log:    log.With(zap.String("session", id[:8])),
		}

		// Writer goroutine: drains room broadcasts. Once the session has
		// joined a room, the room owns closing the outbox; when that
		// happens the connection is shut so the reader unblocks too.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range s.outbox {
				s.write(writeCtx, msg)
			}
			conn.Close(websocket.StatusGoingAway, "room closed")
		}()

		defer func() {
			if s.room != nil {
				select {
				case s.room.Inbox() <- room.Leave{SessionID: s.id}:
				case <-s.room.Done():
					// Room already tore itself down and closed the outbox.
				}
			} else {
				close(s.outbox)
			}
		}()

		s.readLoop(r.Context(), reg)
	}
}

func (s *session) readLoop(ctx context.Context, reg *registry.Registry) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			// Clean close or dead peer, either way the deferred Leave
			// handles room cleanup.
			return
		}

		var cm protocol.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			s.writeError(ctx, "malformed message")
			continue
		}
		s.dispatch(ctx, reg, cm)
	}
}

func (s *session) dispatch(ctx context.Context, reg *registry.Registry, cm protocol.ClientMessage) {
	switch cm.Type {
	case protocol.EventCreateRoom:
		s.handleCreate(ctx, reg, cm)
	case protocol.EventJoinRoom:
		s.handleJoin(ctx, reg, cm)
	case protocol.EventStartGame:
		s.handleStart(ctx, cm)
	case protocol.EventSubmitAnswer:
		s.handleSubmit(ctx, cm)
	default:
		s.writeError(ctx, protocol.ErrUnknownEvent.Error())
	}
}

func (s *session) handleCreate(ctx context.Context, reg *registry.Registry, cm protocol.ClientMessage) {
	payload, err := protocol.DecodePayload[protocol.CreateRoomPayload](cm)
	if err != nil || payload.DisplayName == "" {
		s.writeError(ctx, "create_room needs question_source and display_name")
		return
	}
	if s.room != nil {
		s.writeError(ctx, "already in a room")
		return
	}

	reply := make(chan registry.CreateResult, 1)
	reg.Inbox() <- registry.CreateRoom{
		OwnerSessionID:   s.id,
		OwnerDisplayName: payload.DisplayName,
		QuestionSource:   payload.QuestionSource,
		Outbox:           s.outbox,
		Reply:            reply,
	}
	result := <-reply
	if result.Err != nil {
		s.log.Error("room creation failed", zap.Error(result.Err))
		s.writeError(ctx, "could not create room")
		return
	}
	s.room, s.code = result.Room, result.Code
	s.write(ctx, protocol.RoomCreated(result.Code))
}

func (s *session) handleJoin(ctx context.Context, reg *registry.Registry, cm protocol.ClientMessage) {
	payload, err := protocol.DecodePayload[protocol.JoinRoomPayload](cm)
	if err != nil || payload.RoomCode == "" || payload.DisplayName == "" {
		s.writeError(ctx, "join_room needs room_code and display_name")
		return
	}
	if s.room != nil {
		s.writeError(ctx, "already in a room")
		return
	}

	lookup := make(chan *room.Room, 1)
	reg.Inbox() <- registry.GetRoom{Code: payload.RoomCode, Reply: lookup}
	rm := <-lookup
	if rm == nil {
		s.writeError(ctx, "room not found")
		return
	}

	reply := make(chan error, 1)
	err = room.Call(ctx, rm, room.Join{
		SessionID:   s.id,
		DisplayName: payload.DisplayName,
		Outbox:      s.outbox,
		Reply:       reply,
	}, reply)
	switch {
	case errors.Is(err, room.ErrRoomClosed):
		// The last player left between lookup and join; the registry will
		// have dropped the code already.
		s.writeError(ctx, "room not found")
		return
	case err != nil:
		s.writeError(ctx, err.Error())
		return
	}
	s.room, s.code = rm, rm.Code()
}

func (s *session) handleStart(ctx context.Context, cm protocol.ClientMessage) {
	payload, err := protocol.DecodePayload[protocol.StartGamePayload](cm)
	if err != nil {
		s.writeError(ctx, "start_game needs room_code")
		return
	}
	if s.room == nil || payload.RoomCode != s.code {
		s.writeError(ctx, "not in that room")
		return
	}

	reply := make(chan error, 1)
	if err := room.Call(ctx, s.room, room.Start{SessionID: s.id, Reply: reply}, reply); err != nil {
		s.writeError(ctx, err.Error())
	}
}

func (s *session) handleSubmit(ctx context.Context, cm protocol.ClientMessage) {
	payload, err := protocol.DecodePayload[protocol.SubmitAnswerPayload](cm)
	if err != nil {
		s.writeError(ctx, "submit_answer needs room_code and answer")
		return
	}
	if s.room == nil || payload.RoomCode != s.code {
		s.writeError(ctx, "not in that room")
		return
	}

	reply := make(chan error, 1)
	err = room.Call(ctx, s.room, room.SubmitAnswer{
		SessionID:        s.id,
		Answer:           payload.Answer,
		TimeRemainingSec: payload.TimeRemainingSec,
		Reply:            reply,
	}, reply)
	if err != nil {
		s.writeError(ctx, err.Error())
	}
}

func (s *session) write(ctx context.Context, msg protocol.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("marshal server message", zap.Error(err))
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = s.conn.Write(wctx, websocket.MessageText, payload)
}

func (s *session) writeError(ctx context.Context, message string) {
	s.write(ctx, protocol.Error(message))
}
