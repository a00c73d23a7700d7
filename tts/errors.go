package tts

import "errors"

// Common errors for the speech engine.
var (
	// Synthesizer errors
	ErrSynthesizerUnavailable = errors.New("speech synthesizer is not available")
	ErrEmptyText              = errors.New("nothing to speak")
	ErrCanceled               = errors.New("utterance was canceled")

	// Engine errors
	ErrNotSpeaking  = errors.New("nothing is being spoken")
	ErrNotPaused    = errors.New("speech is not paused")
	ErrEngineClosed = errors.New("speech engine is closed")

	// Audio session errors
	ErrSessionActivation = errors.New("audio session activation failed")
)

// Outcome describes how an utterance ended.
type Outcome int

const (
	// OutcomeFinished means the utterance was spoken to the end.
	OutcomeFinished Outcome = iota
	// OutcomeCancelled means the utterance was stopped or replaced.
	OutcomeCancelled
	// OutcomeFailed means the synthesizer reported an error.
	OutcomeFailed
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeFinished:
		return "finished"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// outcomeOf maps an utterance error to an outcome.
func outcomeOf(err error, cancelled bool) Outcome {
	switch {
	case cancelled || errors.Is(err, ErrCanceled):
		return OutcomeCancelled
	case err != nil:
		return OutcomeFailed
	default:
		return OutcomeFinished
	}
}
