// Package protocol defines the websocket wire format: one closed set of
// event types per direction, each with its own payload struct. Handlers
// switch over the type tag and decode the payload they expect; anything
// outside these sets is a validation error.
package protocol

import (
	"encoding/json"
	"errors"
)

var ErrUnknownEvent = errors.New("unknown event type")
var ErrBadPayload = errors.New("malformed event payload")

// Client -> Server

type ClientEventType string

const (
	EventCreateRoom   ClientEventType = "create_room"
	EventJoinRoom     ClientEventType = "join_room"
	EventStartGame    ClientEventType = "start_game"
	EventSubmitAnswer ClientEventType = "submit_answer"
)

type ClientMessage struct {
	Type    ClientEventType `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type CreateRoomPayload struct {
	QuestionSource string `json:"question_source"`
	DisplayName    string `json:"display_name"`
}

type JoinRoomPayload struct {
	RoomCode    string `json:"room_code"`
	DisplayName string `json:"display_name"`
}

type StartGamePayload struct {
	RoomCode string `json:"room_code"`
}

type SubmitAnswerPayload struct {
	RoomCode         string `json:"room_code"`
	Answer           string `json:"answer"`
	TimeRemainingSec int    `json:"time_remaining_sec"`
}

// DecodePayload unmarshals a client payload into its typed form. A missing
// or syntactically invalid payload maps to ErrBadPayload so the session
// layer can reject it without touching room state.
func DecodePayload[T any](m ClientMessage) (T, error) {
	var out T
	if len(m.Payload) == 0 {
		return out, ErrBadPayload
	}
	if err := json.Unmarshal(m.Payload, &out); err != nil {
		return out, ErrBadPayload
	}
	return out, nil
}

// Server -> Client

type ServerEventType string

const (
	EventRoomCreated   ServerEventType = "room_created"
	EventUpdatePlayers ServerEventType = "update_players"
	EventGameStatus    ServerEventType = "game_status"
	EventGameStarted   ServerEventType = "game_started"
	EventUpdateScores  ServerEventType = "update_scores"
	EventGameFinished  ServerEventType = "game_finished"
	EventError         ServerEventType = "error"
)

type ServerMessage struct {
	Type    ServerEventType `json:"type"`
	Payload any             `json:"payload,omitempty"`
}

// PlayerView is the only shape a roster ever crosses the wire in: name and
// score, never the session id of another connection.
type PlayerView struct {
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
}

// QuestionView strips the correct answer; scoring stays server-side.
type QuestionView struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type RoomCreatedPayload struct {
	RoomCode string `json:"room_code"`
}

type RosterPayload struct {
	Players []PlayerView `json:"players"`
}

type GameStatusPayload struct {
	Phase string `json:"phase"`
}

type GameStartedPayload struct {
	Questions []QuestionView `json:"questions"`
}

type GameFinishedPayload struct {
	Leaderboard []PlayerView `json:"leaderboard"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func RoomCreated(code string) ServerMessage {
	return ServerMessage{Type: EventRoomCreated, Payload: RoomCreatedPayload{RoomCode: code}}
}

func UpdatePlayers(players []PlayerView) ServerMessage {
	return ServerMessage{Type: EventUpdatePlayers, Payload: RosterPayload{Players: players}}
}

func GameStatus(phase string) ServerMessage {
	return ServerMessage{Type: EventGameStatus, Payload: GameStatusPayload{Phase: phase}}
}

func GameStarted(questions []QuestionView) ServerMessage {
	return ServerMessage{Type: EventGameStarted, Payload: GameStartedPayload{Questions: questions}}
}

func UpdateScores(players []PlayerView) ServerMessage {
	return ServerMessage{Type: EventUpdateScores, Payload: RosterPayload{Players: players}}
}

func GameFinished(leaderboard []PlayerView) ServerMessage {
	return ServerMessage{Type: EventGameFinished, Payload: GameFinishedPayload{Leaderboard: leaderboard}}
}

func Error(msg string) ServerMessage {
	return ServerMessage{Type: EventError, Payload: ErrorPayload{Message: msg}}
}
