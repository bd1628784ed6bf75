package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	raw := []byte(`{"type":"submit_answer","payload":{"room_code":"AB12","answer":"4","time_remaining_sec":8}}`)

	var cm ClientMessage
	require.NoError(t, json.Unmarshal(raw, &cm))
	require.Equal(t, EventSubmitAnswer, cm.Type)

	payload, err := DecodePayload[SubmitAnswerPayload](cm)
	require.NoError(t, err)
	require.Equal(t, SubmitAnswerPayload{
		RoomCode:         "AB12",
		Answer:           "4",
		TimeRemainingSec: 8,
	}, payload)
}

func TestDecodePayload_MissingPayload(t *testing.T) {
	cm := ClientMessage{Type: EventStartGame}
	_, err := DecodePayload[StartGamePayload](cm)
	require.ErrorIs(t, err, ErrBadPayload)
}

func TestDecodePayload_MalformedPayload(t *testing.T) {
	cm := ClientMessage{Type: EventJoinRoom, Payload: json.RawMessage(`"not an object"`)}
	_, err := DecodePayload[JoinRoomPayload](cm)
	require.ErrorIs(t, err, ErrBadPayload)
}

func TestServerMessages_WireShape(t *testing.T) {
	cases := []struct {
		name string
		msg  ServerMessage
		want string
	}{
		{
			name: "room_created",
			msg:  RoomCreated("AB12"),
			want: `{"type":"room_created","payload":{"room_code":"AB12"}}`,
		},
		{
			name: "update_players",
			msg:  UpdatePlayers([]PlayerView{{DisplayName: "alice", Score: 0}}),
			want: `{"type":"update_players","payload":{"players":[{"display_name":"alice","score":0}]}}`,
		},
		{
			name: "game_status",
			msg:  GameStatus("generating_questions"),
			want: `{"type":"game_status","payload":{"phase":"generating_questions"}}`,
		},
		{
			name: "error",
			msg:  Error("room not found"),
			want: `{"type":"error","payload":{"message":"room not found"}}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := json.Marshal(tc.msg)
			require.NoError(t, err)
			require.JSONEq(t, tc.want, string(raw))
		})
	}
}

// The roster view must never leak transport identity.
func TestPlayerView_OmitsSessionID(t *testing.T) {
	raw, err := json.Marshal(UpdateScores([]PlayerView{{DisplayName: "bob", Score: 116}}))
	require.NoError(t, err)
	require.NotContains(t, string(raw), "session")
	require.JSONEq(t,
		`{"type":"update_scores","payload":{"players":[{"display_name":"bob","score":116}]}}`,
		string(raw))
}
