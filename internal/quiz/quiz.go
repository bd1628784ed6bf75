package quiz

import "errors"

var ErrEmptyQuestionSet = errors.New("empty question set")
var ErrTooFewOptions = errors.New("question needs at least two options")
var ErrNoCorrectOption = errors.New("correct answer does not match any option")

// Question is immutable once a set has been validated; the room only ever
// hands out copies.
type Question struct {
	Text    string
	Options []string
	Answer  string
}

// ValidateSet checks the payload returned by a question provider before a
// room will accept it. Malformed output is the provider's fault, so callers
// treat any error here as a generation failure.
func ValidateSet(questions []Question) error {
	if len(questions) == 0 {
		return ErrEmptyQuestionSet
	}
	for _, q := range questions {
		if err := validateQuestion(q); err != nil {
			return err
		}
	}
	return nil
}

func validateQuestion(q Question) error {
	if len(q.Options) < 2 {
		return ErrTooFewOptions
	}
	matches := 0
	for _, opt := range q.Options {
		if opt == q.Answer {
			matches++
		}
	}
	if matches != 1 {
		return ErrNoCorrectOption
	}
	return nil
}
