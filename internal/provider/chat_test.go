package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyden/quiz-battle-backend/internal/quiz"
)

const goodContent = `[
  {"text":"What is 2 + 2?","options":[{"text":"3","is_correct":false},{"text":"4","is_correct":true}]},
  {"text":"Largest planet?","options":[{"text":"Jupiter","is_correct":true},{"text":"Mars","is_correct":false}]}
]`

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req["model"])

		w.WriteHeader(status)
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%s}}]}`, mustJSONString(content))
	}))
}

func mustJSONString(s string) string {
	raw, _ := json.Marshal(s)
	return string(raw)
}

func newClient(url string) *ChatClient {
	return NewChatClient(url, "test-key", "test-model", 5*time.Second, zap.NewNop())
}

func TestChatClient_ParsesQuestions(t *testing.T) {
	srv := chatServer(t, http.StatusOK, goodContent)
	defer srv.Close()

	questions, err := newClient(srv.URL).GenerateQuestions(context.Background(), "arithmetic and planets", 2)
	require.NoError(t, err)
	require.Equal(t, []quiz.Question{
		{Text: "What is 2 + 2?", Options: []string{"3", "4"}, Answer: "4"},
		{Text: "Largest planet?", Options: []string{"Jupiter", "Mars"}, Answer: "Jupiter"},
	}, questions)
}

func TestChatClient_StripsCodeFences(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "```json\n"+goodContent+"\n```")
	defer srv.Close()

	questions, err := newClient(srv.URL).GenerateQuestions(context.Background(), "arithmetic", 2)
	require.NoError(t, err)
	require.Len(t, questions, 2)
}

func TestChatClient_MalformedOutputIsGenerationFailure(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "Sure! Here are your questions:"},
		{name: "empty array", content: "[]"},
		{name: "no correct option", content: `[{"text":"q","options":[{"text":"a","is_correct":false},{"text":"b","is_correct":false}]}]`},
		{name: "single option", content: `[{"text":"q","options":[{"text":"a","is_correct":true}]}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := chatServer(t, http.StatusOK, tc.content)
			defer srv.Close()

			_, err := newClient(srv.URL).GenerateQuestions(context.Background(), "anything", 2)
			require.ErrorIs(t, err, ErrGenerationFailed)
		})
	}
}

func TestChatClient_UpstreamErrorIsGenerationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).GenerateQuestions(context.Background(), "anything", 2)
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestChatClient_UnreachableHostIsGenerationFailure(t *testing.T) {
	_, err := newClient("http://127.0.0.1:1").GenerateQuestions(context.Background(), "anything", 2)
	require.ErrorIs(t, err, ErrGenerationFailed)
}
