// Package provider holds the question-generation contract. The game core
// only ever sees this interface; how questions are produced (remote model,
// fixtures in tests) is the implementation's business.
package provider

import (
	"context"
	"errors"

	"github.com/studyden/quiz-battle-backend/internal/quiz"
)

// ErrGenerationFailed covers every way generation can go wrong: transport
// errors, upstream rejections, and malformed model output. Callers roll the
// room back to Waiting and let the owner retry.
var ErrGenerationFailed = errors.New("question generation failed")

type QuestionSetProvider interface {
	GenerateQuestions(ctx context.Context, sourceText string, desiredCount int) ([]quiz.Question, error)
}

// Func adapts a plain function to the provider interface, mostly for tests.
type Func func(ctx context.Context, sourceText string, desiredCount int) ([]quiz.Question, error)

func (f Func) GenerateQuestions(ctx context.Context, sourceText string, desiredCount int) ([]quiz.Question, error) {
	return f(ctx, sourceText, desiredCount)
}
