// Package mock provides a fake speech synthesizer for tests and dry runs.
//
// In timed mode (New) each utterance "speaks" its words at a fixed
// words-per-minute pace and reports the range of every word. In manual mode
// (NewManual) nothing happens on its own: the test drives each utterance
// through Emit, Finish and Fail.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/dgnsrekt/readaloud/tts"
)

// DefaultWordsPerMinute is the pace of timed utterances at normal rate.
const DefaultWordsPerMinute = 150

// Config controls the timed synthesizer.
type Config struct {
	// WordsPerMinute at rate 0.5. Zero means DefaultWordsPerMinute.
	WordsPerMinute int

	// FailAfter makes every utterance fail with Err after that many words.
	// Zero disables failures.
	FailAfter int
	Err       error
}

// Synthesizer implements tts.Synthesizer and tts.SessionActivator.
type Synthesizer struct {
	cfg    Config
	manual bool

	mu          sync.Mutex
	requests    []tts.Request
	speakErr    error
	activateErr error
	activations int
	started     chan *Utterance
}

var (
	_ tts.Synthesizer      = (*Synthesizer)(nil)
	_ tts.SessionActivator = (*Synthesizer)(nil)
	_ tts.VolumeSetter     = (*Utterance)(nil)
)

// New creates a timed synthesizer.
func New(cfg Config) *Synthesizer {
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = DefaultWordsPerMinute
	}
	if cfg.FailAfter > 0 && cfg.Err == nil {
		cfg.Err = fmt.Errorf("mock failure")
	}
	return &Synthesizer{
		cfg:     cfg,
		started: make(chan *Utterance, 64),
	}
}

// NewManual creates a synthesizer whose utterances only end when the caller
// says so.
func NewManual() *Synthesizer {
	s := New(Config{})
	s.manual = true
	return s
}

// Name returns the synthesizer identifier.
func (s *Synthesizer) Name() string {
	return "mock"
}

// Speak starts a new utterance.
func (s *Synthesizer) Speak(ctx context.Context, req tts.Request) (tts.Utterance, error) {
	s.mu.Lock()
	err := s.speakErr
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	u := newUtterance(req)
	if !s.manual {
		go u.run(ctx, s.wordDelay(req.Rate), s.cfg.FailAfter, s.cfg.Err)
	} else {
		go func() {
			select {
			case <-ctx.Done():
				u.end(fmt.Errorf("%w: %w", tts.ErrCanceled, ctx.Err()))
			case <-u.done:
			}
		}()
	}

	select {
	case s.started <- u:
	default:
	}
	return u, nil
}

// Started delivers every utterance as it is started.
func (s *Synthesizer) Started() <-chan *Utterance {
	return s.started
}

// Requests returns a copy of all requests received so far.
func (s *Synthesizer) Requests() []tts.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tts.Request(nil), s.requests...)
}

// SetSpeakError makes subsequent Speak calls fail with err. Nil restores
// normal operation.
func (s *Synthesizer) SetSpeakError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speakErr = err
}

// ActivateSession records the activation and returns the configured error.
func (s *Synthesizer) ActivateSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activations++
	return s.activateErr
}

// SetActivateError makes ActivateSession fail with err.
func (s *Synthesizer) SetActivateError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activateErr = err
}

// Activations returns the number of ActivateSession calls.
func (s *Synthesizer) Activations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activations
}

// wordDelay maps a [0,1] rate onto the time spent per word.
func (s *Synthesizer) wordDelay(rate float64) time.Duration {
	factor := 0.25 + 1.5*rate
	wpm := float64(s.cfg.WordsPerMinute) * factor
	return time.Duration(float64(time.Minute) / wpm)
}

// Utterance is one fake utterance.
type Utterance struct {
	req tts.Request

	progress chan tts.Range
	done     chan struct{}
	wake     chan struct{}
	once     sync.Once

	mu     sync.Mutex
	ended  bool
	paused bool
	volume float64
	err    error
}

func newUtterance(req tts.Request) *Utterance {
	return &Utterance{
		req:      req,
		progress: make(chan tts.Range, 64),
		done:     make(chan struct{}),
		wake:     make(chan struct{}, 1),
		volume:   req.Volume,
	}
}

// Text returns the text being spoken.
func (u *Utterance) Text() string { return u.req.Text }

// Progress implements tts.Utterance.
func (u *Utterance) Progress() <-chan tts.Range { return u.progress }

// Done implements tts.Utterance.
func (u *Utterance) Done() <-chan struct{} { return u.done }

// Err implements tts.Utterance.
func (u *Utterance) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// Pause implements tts.Utterance.
func (u *Utterance) Pause() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.ended {
		return tts.ErrNotSpeaking
	}
	u.paused = true
	return nil
}

// Resume implements tts.Utterance.
func (u *Utterance) Resume() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.ended || !u.paused {
		return tts.ErrNotPaused
	}
	u.paused = false
	select {
	case u.wake <- struct{}{}:
	default:
	}
	return nil
}

// Paused reports whether the utterance is paused.
func (u *Utterance) Paused() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.paused
}

// Cancel implements tts.Utterance.
func (u *Utterance) Cancel() {
	u.end(tts.ErrCanceled)
}

// SetVolume implements tts.VolumeSetter.
func (u *Utterance) SetVolume(v float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.volume = v
}

// Volume returns the utterance's current volume.
func (u *Utterance) Volume() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.volume
}

// Emit reports r as spoken. Ranges are dropped when the reader falls behind
// or the utterance has ended.
func (u *Utterance) Emit(r tts.Range) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.ended {
		return
	}
	select {
	case u.progress <- r:
	default:
	}
}

// Finish ends the utterance successfully.
func (u *Utterance) Finish() {
	u.end(nil)
}

// Fail ends the utterance with err.
func (u *Utterance) Fail(err error) {
	u.end(err)
}

func (u *Utterance) end(err error) {
	u.once.Do(func() {
		u.mu.Lock()
		u.ended = true
		u.err = err
		close(u.progress)
		u.mu.Unlock()
		close(u.done)
	})
}

// run speaks the words of the utterance one at a time.
func (u *Utterance) run(ctx context.Context, perWord time.Duration, failAfter int, failErr error) {
	timer := time.NewTimer(perWord)
	defer timer.Stop()

	for i, w := range words(u.req.Text) {
		if failAfter > 0 && i == failAfter {
			u.end(failErr)
			return
		}

		for u.Paused() {
			select {
			case <-u.wake:
			case <-u.done:
				return
			case <-ctx.Done():
				u.end(fmt.Errorf("%w: %w", tts.ErrCanceled, ctx.Err()))
				return
			}
		}

		timer.Reset(perWord)
		select {
		case <-timer.C:
		case <-u.done:
			return
		case <-ctx.Done():
			u.end(fmt.Errorf("%w: %w", tts.ErrCanceled, ctx.Err()))
			return
		}

		u.Emit(w)
	}
	u.end(nil)
}

// words returns the rune range of every whitespace-separated word.
func words(text string) []tts.Range {
	var (
		out   []tts.Range
		start = -1
		pos   int
	)
	for _, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				out = append(out, tts.Range{Location: start, Length: pos - start})
				start = -1
			}
		} else if start < 0 {
			start = pos
		}
		pos++
	}
	if start >= 0 {
		out = append(out, tts.Range{Location: start, Length: pos - start})
	}
	return out
}
