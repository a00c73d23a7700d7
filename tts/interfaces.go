package tts

import (
	"context"
)

// Synthesizer is the speech-synthesis capability the engine drives.
type Synthesizer interface {
	// Speak starts speaking req.Text and returns immediately with a handle
	// for the running utterance.
	Speak(ctx context.Context, req Request) (Utterance, error)

	// Name returns the synthesizer identifier.
	Name() string
}

// Utterance is a cancellable handle on one running utterance.
type Utterance interface {
	// Progress delivers the character ranges as they are spoken. The channel
	// is closed before Done is closed.
	Progress() <-chan Range

	// Done is closed once the utterance has finished, failed or been
	// cancelled.
	Done() <-chan struct{}

	// Err is valid after Done is closed. It is nil when the utterance was
	// spoken to the end and ErrCanceled when it was cancelled.
	Err() error

	// Pause temporarily halts speech.
	Pause() error

	// Resume continues a paused utterance.
	Resume() error

	// Cancel stops the utterance immediately. It is safe to call more than
	// once.
	Cancel()
}

// SessionActivator is implemented by synthesizers with an audio output path
// that must be (re)activated, e.g. after the process comes back from the
// background.
type SessionActivator interface {
	ActivateSession() error
}

// VolumeSetter is implemented by utterances whose volume can change while
// they play.
type VolumeSetter interface {
	SetVolume(volume float64)
}

// Request holds the parameters for one utterance.
type Request struct {
	Text     string
	Language string  // BCP-47 language tag, e.g. "en-US"
	Rate     float64 // Speech rate in [0,1], 0.5 is normal speed
	Volume   float64 // Volume in [0,1]
}

// Range is a span of spoken characters, counted in runes from the start of
// the utterance text.
type Range struct {
	Location int
	Length   int
}

// End returns the offset just past the range.
func (r Range) End() int {
	return r.Location + r.Length
}
