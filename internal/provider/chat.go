package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studyden/quiz-battle-backend/internal/quiz"
)

const systemPrompt = `You are a quiz generator. The user sends study material and a question count. Respond with ONLY a valid JSON array (no markdown, no code fences, no explanations) in this format:

[
  {
    "text": "Question text?",
    "options": [
      {"text": "Option A", "is_correct": true},
      {"text": "Option B", "is_correct": false},
      {"text": "Option C", "is_correct": false},
      {"text": "Option D", "is_correct": false}
    ]
  }
]

Rules:
- Generate exactly the requested number of questions
- Each question must have 2 to 4 options
- Exactly one option per question must have "is_correct": true
- Base every question strictly on the provided material
- Write in the same language as the material
- Return ONLY the JSON array, nothing else`

// ChatClient generates question sets through an OpenAI-compatible
// chat-completions endpoint.
type ChatClient struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
	log        *zap.Logger
}

func NewChatClient(apiURL, apiKey, model string, timeout time.Duration, log *zap.Logger) *ChatClient {
	return &ChatClient{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     apiURL,
		apiKey:     apiKey,
		model:      model,
		log:        log,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type wireQuestion struct {
	Text    string `json:"text"`
	Options []struct {
		Text      string `json:"text"`
		IsCorrect bool   `json:"is_correct"`
	} `json:"options"`
}

func (c *ChatClient) GenerateQuestions(ctx context.Context, sourceText string, desiredCount int) ([]quiz.Question, error) {
	userPrompt := fmt.Sprintf("Generate %d questions from this material:\n\n%s", desiredCount, sourceText)
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrGenerationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrGenerationFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("chat completion rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("model", c.model))
		return nil, fmt.Errorf("%w: upstream status %d", ErrGenerationFailed, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGenerationFailed, err)
	}
	if chat.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrGenerationFailed)
	}

	questions, err := parseQuestions(chat.Choices[0].Message.Content)
	if err != nil {
		c.log.Warn("model returned malformed question payload", zap.Error(err))
		return nil, err
	}
	return questions, nil
}

// parseQuestions turns raw model output into the domain shape. Models love
// wrapping JSON in code fences despite instructions, so those are stripped
// before decoding. Anything else malformed is a generation failure, never an
// internal fault.
func parseQuestions(content string) ([]quiz.Question, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var wire []wireQuestion
	if err := json.Unmarshal([]byte(content), &wire); err != nil {
		return nil, fmt.Errorf("%w: decode model output: %v", ErrGenerationFailed, err)
	}

	questions := make([]quiz.Question, 0, len(wire))
	for _, wq := range wire {
		q := quiz.Question{Text: wq.Text, Options: make([]string, 0, len(wq.Options))}
		for _, opt := range wq.Options {
			q.Options = append(q.Options, opt.Text)
			if opt.IsCorrect {
				q.Answer = opt.Text
			}
		}
		questions = append(questions, q)
	}
	if err := quiz.ValidateSet(questions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return questions, nil
}
