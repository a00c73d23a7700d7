// Package tts provides the speech engine that drives a speech synthesizer
// one utterance at a time.
package tts

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/readaloud/internal/metrics"
	"github.com/dgnsrekt/readaloud/internal/store"
)

// DefaultProgressInterval is the minimum spacing of progress notifications.
const DefaultProgressInterval = 100 * time.Millisecond

// Engine is a stateful wrapper around a Synthesizer. At most one utterance
// runs at a time: Speak cancels whatever is in flight before starting.
type Engine struct {
	synth  Synthesizer
	store  store.Store
	logger *log.Logger

	// State management
	mu       sync.Mutex
	machine  *StateMachine
	status   Status
	current  *activeUtterance
	closed   bool
	limiter  *rate.Limiter
	interval time.Duration

	// Change notification
	listenersMu sync.Mutex
	listeners   []func(Status)
	changed     chan struct{}
	done        chan struct{}
	wg          sync.WaitGroup
}

// activeUtterance tracks one utterance handed to the synthesizer.
type activeUtterance struct {
	u         Utterance
	text      string
	runes     int
	started   time.Time
	cancelled bool
	outcome   chan Outcome
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStore sets the store used to persist volume and rate.
func WithStore(s store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithProgressInterval sets the minimum spacing of progress notifications.
func WithProgressInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.interval = d
	}
}

// NewEngine creates an engine driving synth.
func NewEngine(synth Synthesizer, opts ...Option) *Engine {
	e := &Engine{
		synth:    synth,
		logger:   log.Default(),
		machine:  NewStateMachine(),
		interval: DefaultProgressInterval,
		status: Status{
			State:  StateIdle,
			Volume: DefaultVolume,
			Rate:   DefaultRate,
		},
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithPrefix("engine")
	e.limiter = rate.NewLimiter(rate.Every(e.interval), 1)

	e.machine.OnEnter(StateSpeaking, func() { metrics.SetSpeaking(true) })
	e.machine.OnExit(StateSpeaking, func() { metrics.SetSpeaking(false) })

	e.wg.Add(1)
	go e.notifyLoop()

	return e
}

// Name returns the name of the underlying synthesizer.
func (e *Engine) Name() string {
	return e.synth.Name()
}

// Speak cancels any in-flight utterance and starts speaking text. index and
// total describe the utterance's position within the caller's run. The
// returned channel receives exactly one Outcome and is then closed.
func (e *Engine) Speak(ctx context.Context, text, language string, index, total int) (<-chan Outcome, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}

	e.cancelLocked()

	u, err := e.synth.Speak(ctx, Request{
		Text:     text,
		Language: language,
		Rate:     e.status.Rate,
		Volume:   e.status.Volume,
	})
	if err != nil {
		e.signal()
		return nil, fmt.Errorf("%s: %w", e.synth.Name(), err)
	}

	a := &activeUtterance{
		u:       u,
		text:    text,
		runes:   utf8.RuneCountInString(text),
		started: time.Now(),
		outcome: make(chan Outcome, 1),
	}
	e.current = a
	e.machine.Transition(StateSpeaking)
	e.status.State = StateSpeaking
	e.status.Text = text
	e.status.ArticleProgress = 0
	e.status.UtteranceIndex = index
	e.status.TotalUtterances = total
	metrics.SetArticleProgress(0)

	e.logger.Debug("utterance started", "index", index, "total", total, "chars", a.runes)

	go e.watch(a)
	e.signal()

	return a.outcome, nil
}

// Pause pauses the current utterance.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.machine.Current() != StateSpeaking {
		return ErrNotSpeaking
	}
	if err := e.current.u.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}

	e.machine.Transition(StatePaused)
	e.status.State = StatePaused
	e.signal()
	return nil
}

// Resume resumes a paused utterance.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.machine.Current() != StatePaused {
		return ErrNotPaused
	}
	if err := e.current.u.Resume(); err != nil {
		return fmt.Errorf("resume: %w", err)
	}

	e.machine.Transition(StateSpeaking)
	e.status.State = StateSpeaking
	e.signal()
	return nil
}

// TogglePause pauses when speaking and resumes when paused.
func (e *Engine) TogglePause() error {
	if e.Status().State == StatePaused {
		return e.Resume()
	}
	return e.Pause()
}

// Stop cancels the current utterance immediately and clears its text and
// progress. Stopping an idle engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancelLocked() {
		e.logger.Debug("utterance stopped")
	}
	e.signal()
}

// IsSpeaking is the synchronous probe for an audible utterance.
func (e *Engine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status.IsSpeaking()
}

// Status returns a copy of the current engine status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// OnStatusChange registers a callback invoked with the latest status after
// every change. Bursts of changes may be coalesced into one call. Callbacks
// run on the engine's notification goroutine, never under the engine lock.
func (e *Engine) OnStatusChange(fn func(Status)) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Close stops the current utterance and releases the notification
// goroutine. The engine cannot be used afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.cancelLocked()
	e.mu.Unlock()

	close(e.done)
	e.wg.Wait()
	return nil
}

// cancelLocked cancels the in-flight utterance, if any, and resets the
// state to idle. It reports whether there was anything to cancel.
func (e *Engine) cancelLocked() bool {
	a := e.current
	if a == nil {
		return false
	}

	a.cancelled = true
	a.u.Cancel()
	e.current = nil

	e.machine.Reset()
	e.status.State = StateIdle
	e.status.Text = ""
	e.status.ArticleProgress = 0
	metrics.SetArticleProgress(0)
	return true
}

// watch follows one utterance until it ends and reports its outcome.
func (e *Engine) watch(a *activeUtterance) {
	for r := range a.u.Progress() {
		e.onProgress(a, r)
	}
	<-a.u.Done()

	e.mu.Lock()
	outcome := outcomeOf(a.u.Err(), a.cancelled)
	if e.current == a {
		e.current = nil
		if outcome == OutcomeFinished {
			e.status.ArticleProgress = 1
			e.status.UtteranceIndex++
			metrics.SetArticleProgress(1)
		}
		e.machine.Reset()
		e.status.State = StateIdle
		e.status.Text = ""
	}
	e.mu.Unlock()

	if outcome == OutcomeFailed {
		e.logger.Error("utterance failed", "err", a.u.Err())
	} else {
		e.logger.Debug("utterance ended", "outcome", outcome)
	}
	metrics.RecordUtterance(outcome.String(), time.Since(a.started).Seconds())

	e.signal()
	a.outcome <- outcome
	close(a.outcome)
}

// onProgress updates the spoken fraction of the current utterance.
func (e *Engine) onProgress(a *activeUtterance, r Range) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != a || a.runes == 0 {
		return
	}

	progress := float64(r.End()) / float64(a.runes)
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	e.status.ArticleProgress = progress
	metrics.SetArticleProgress(progress)

	if e.limiter.Allow() {
		e.signal()
	}
}

// signal schedules a listener notification. It never blocks.
func (e *Engine) signal() {
	select {
	case e.changed <- struct{}{}:
	default:
	}
}

func (e *Engine) notifyLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.done:
			return
		case <-e.changed:
			status := e.Status()

			e.listenersMu.Lock()
			listeners := slices.Clone(e.listeners)
			e.listenersMu.Unlock()

			for _, fn := range listeners {
				fn(status)
			}
		}
	}
}
