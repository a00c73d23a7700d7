package tts_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/store"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/engines/mock"
)

func newEngine(t *testing.T, opts ...tts.Option) (*tts.Engine, *mock.Synthesizer) {
	t.Helper()
	synth := mock.NewManual()
	opts = append([]tts.Option{
		tts.WithLogger(log.New(io.Discard)),
		tts.WithProgressInterval(time.Millisecond),
	}, opts...)
	e := tts.NewEngine(synth, opts...)
	t.Cleanup(func() { e.Close() })
	return e, synth
}

func started(t *testing.T, s *mock.Synthesizer) *mock.Utterance {
	t.Helper()
	select {
	case u := <-s.Started():
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no utterance started")
		return nil
	}
}

func outcome(t *testing.T, ch <-chan tts.Outcome) tts.Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome delivered")
		return 0
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// TestSpeakEmptyText tests that empty text is rejected.
func TestSpeakEmptyText(t *testing.T) {
	e, _ := newEngine(t)

	if _, err := e.Speak(context.Background(), "", "en-US", 0, 1); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("Speak(\"\") error = %v, want ErrEmptyText", err)
	}
}

// TestSpeakToCompletion tests the speaking lifecycle and progress.
func TestSpeakToCompletion(t *testing.T) {
	e, synth := newEngine(t)

	done, err := e.Speak(context.Background(), "hello world", "en-US", 2, 5)
	if err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	u := started(t, synth)

	st := e.Status()
	if st.State != tts.StateSpeaking || !e.IsSpeaking() {
		t.Errorf("State = %v, want speaking", st.State)
	}
	if st.Text != "hello world" || st.UtteranceIndex != 2 || st.TotalUtterances != 5 {
		t.Errorf("unexpected status: %+v", st)
	}
	if st.ArticleProgress != 0 {
		t.Errorf("ArticleProgress = %v, want 0", st.ArticleProgress)
	}

	u.Emit(tts.Range{Location: 0, Length: 5})
	eventually(t, func() bool {
		p := e.Status().ArticleProgress
		return p > 0.45 && p < 0.46
	}, "progress never reached 5/11")

	u.Finish()
	if got := outcome(t, done); got != tts.OutcomeFinished {
		t.Errorf("outcome = %v, want finished", got)
	}

	st = e.Status()
	if st.State != tts.StateIdle || e.IsSpeaking() {
		t.Errorf("State = %v, want idle", st.State)
	}
	if st.ArticleProgress != 1 {
		t.Errorf("ArticleProgress = %v, want 1", st.ArticleProgress)
	}
	if st.UtteranceIndex != 3 {
		t.Errorf("UtteranceIndex = %d, want 3", st.UtteranceIndex)
	}
}

// TestProgressClamped tests that out-of-range progress is clamped.
func TestProgressClamped(t *testing.T) {
	e, synth := newEngine(t)

	if _, err := e.Speak(context.Background(), "abc", "en-US", 0, 1); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	u := started(t, synth)

	u.Emit(tts.Range{Location: 2, Length: 40})
	eventually(t, func() bool { return e.Status().ArticleProgress == 1 }, "progress not clamped to 1")
}

// TestSpeakCancelsPrevious tests the single utterance guarantee.
func TestSpeakCancelsPrevious(t *testing.T) {
	e, synth := newEngine(t)

	first, err := e.Speak(context.Background(), "first", "en-US", 0, 2)
	if err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	u1 := started(t, synth)

	second, err := e.Speak(context.Background(), "second", "en-US", 1, 2)
	if err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	u2 := started(t, synth)

	if got := outcome(t, first); got != tts.OutcomeCancelled {
		t.Errorf("first outcome = %v, want cancelled", got)
	}
	select {
	case <-u1.Done():
	default:
		t.Error("first utterance still running")
	}

	if st := e.Status(); st.Text != "second" || st.State != tts.StateSpeaking {
		t.Errorf("unexpected status after replacement: %+v", st)
	}

	u2.Finish()
	if got := outcome(t, second); got != tts.OutcomeFinished {
		t.Errorf("second outcome = %v, want finished", got)
	}
}

// TestStop tests that Stop cancels and clears the current utterance.
func TestStop(t *testing.T) {
	e, synth := newEngine(t)

	done, err := e.Speak(context.Background(), "some words", "en-US", 0, 1)
	if err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	u := started(t, synth)
	u.Emit(tts.Range{Location: 0, Length: 4})

	e.Stop()

	st := e.Status()
	if st.State != tts.StateIdle || st.Text != "" || st.ArticleProgress != 0 {
		t.Errorf("unexpected status after Stop: %+v", st)
	}
	if got := outcome(t, done); got != tts.OutcomeCancelled {
		t.Errorf("outcome = %v, want cancelled", got)
	}

	e.Stop() // idle stop is a no-op
}

// TestFailure tests that a synthesizer error yields a failed outcome.
func TestFailure(t *testing.T) {
	e, synth := newEngine(t)

	done, err := e.Speak(context.Background(), "text", "en-US", 0, 1)
	if err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	started(t, synth).Fail(errors.New("device lost"))

	if got := outcome(t, done); got != tts.OutcomeFailed {
		t.Errorf("outcome = %v, want failed", got)
	}
	if e.IsSpeaking() {
		t.Error("engine still speaking after failure")
	}
}

// TestSpeakError tests that synthesizer start errors are returned.
func TestSpeakError(t *testing.T) {
	e, synth := newEngine(t)
	synth.SetSpeakError(tts.ErrSynthesizerUnavailable)

	if _, err := e.Speak(context.Background(), "text", "en-US", 0, 1); !errors.Is(err, tts.ErrSynthesizerUnavailable) {
		t.Errorf("Speak() error = %v, want ErrSynthesizerUnavailable", err)
	}
	if e.Status().State != tts.StateIdle {
		t.Error("engine should stay idle")
	}
}

// TestPauseResume tests pausing and resuming.
func TestPauseResume(t *testing.T) {
	e, synth := newEngine(t)

	if err := e.Pause(); !errors.Is(err, tts.ErrNotSpeaking) {
		t.Errorf("Pause() when idle = %v, want ErrNotSpeaking", err)
	}
	if err := e.Resume(); !errors.Is(err, tts.ErrNotPaused) {
		t.Errorf("Resume() when idle = %v, want ErrNotPaused", err)
	}

	if _, err := e.Speak(context.Background(), "text", "en-US", 0, 1); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	u := started(t, synth)

	if err := e.TogglePause(); err != nil {
		t.Fatalf("TogglePause failed: %v", err)
	}
	if st := e.Status(); st.State != tts.StatePaused || st.IsSpeaking() || !st.IsActive() {
		t.Errorf("unexpected status while paused: %+v", st)
	}
	if !u.Paused() {
		t.Error("utterance not paused")
	}

	if err := e.TogglePause(); err != nil {
		t.Fatalf("TogglePause failed: %v", err)
	}
	if !e.IsSpeaking() || u.Paused() {
		t.Error("expected speech to resume")
	}
}

// TestSettingsPersist tests that volume and rate are clamped and persisted
// immediately.
func TestSettingsPersist(t *testing.T) {
	kv := store.NewMemoryStore("test")
	e, _ := newEngine(t, tts.WithStore(kv))
	ctx := context.Background()

	if e.Volume() != tts.DefaultVolume || e.Rate() != tts.DefaultRate {
		t.Errorf("defaults = %v/%v", e.Volume(), e.Rate())
	}

	if err := e.SetVolume(ctx, 1.7); err != nil {
		t.Fatalf("SetVolume failed: %v", err)
	}
	if err := e.SetRate(ctx, 0.25); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}

	if e.Volume() != 1 {
		t.Errorf("Volume() = %v, want 1", e.Volume())
	}
	raw, err := kv.Get(ctx, tts.RateKey)
	if err != nil {
		t.Fatalf("rate not persisted: %v", err)
	}
	if string(raw) != "0.25" {
		t.Errorf("persisted rate = %q, want 0.25", raw)
	}

	reloaded, _ := newEngine(t, tts.WithStore(kv))
	if err := reloaded.LoadSettings(ctx); err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if reloaded.Volume() != 1 || reloaded.Rate() != 0.25 {
		t.Errorf("reloaded = %v/%v, want 1/0.25", reloaded.Volume(), reloaded.Rate())
	}
}

// TestLoadSettingsUndecodable tests that garbage falls back to defaults.
func TestLoadSettingsUndecodable(t *testing.T) {
	kv := store.NewMemoryStore("test")
	ctx := context.Background()
	_ = kv.Set(ctx, tts.VolumeKey, []byte("loud"))
	_ = kv.Set(ctx, tts.RateKey, []byte("0.75"))

	e, _ := newEngine(t, tts.WithStore(kv))
	if err := e.LoadSettings(ctx); err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if e.Volume() != tts.DefaultVolume {
		t.Errorf("Volume() = %v, want default", e.Volume())
	}
	if e.Rate() != 0.75 {
		t.Errorf("Rate() = %v, want 0.75", e.Rate())
	}
}

// TestSettingsApplyToRequests tests that settings reach the synthesizer.
func TestSettingsApplyToRequests(t *testing.T) {
	e, synth := newEngine(t)
	ctx := context.Background()

	_ = e.SetRate(ctx, 0.8)
	if _, err := e.Speak(ctx, "text", "de-DE", 0, 1); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	u := started(t, synth)

	reqs := synth.Requests()
	if len(reqs) != 1 || reqs[0].Rate != 0.8 || reqs[0].Language != "de-DE" {
		t.Errorf("Requests() = %+v", reqs)
	}

	_ = e.SetVolume(ctx, 0.4)
	if u.Volume() != 0.4 {
		t.Errorf("live volume = %v, want 0.4", u.Volume())
	}
}

// TestAudioSession tests that activation failures are swallowed.
func TestAudioSession(t *testing.T) {
	e, synth := newEngine(t)

	e.Activate()
	synth.SetActivateError(errors.New("no device"))
	e.OnBackground()
	e.OnForeground()

	if got := synth.Activations(); got != 3 {
		t.Errorf("Activations() = %d, want 3", got)
	}
}

// TestOnStatusChange tests change notifications.
func TestOnStatusChange(t *testing.T) {
	e, synth := newEngine(t)

	var speaking atomic.Bool
	e.OnStatusChange(func(s tts.Status) {
		if s.IsSpeaking() {
			speaking.Store(true)
		}
	})

	if _, err := e.Speak(context.Background(), "text", "en-US", 0, 1); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	started(t, synth)

	eventually(t, speaking.Load, "no speaking notification")
}

// TestClose tests that a closed engine rejects work.
func TestClose(t *testing.T) {
	e, synth := newEngine(t)

	done, err := e.Speak(context.Background(), "text", "en-US", 0, 1)
	if err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	started(t, synth)

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := outcome(t, done); got != tts.OutcomeCancelled {
		t.Errorf("outcome = %v, want cancelled", got)
	}
	if _, err := e.Speak(context.Background(), "text", "en-US", 0, 1); !errors.Is(err, tts.ErrEngineClosed) {
		t.Errorf("Speak() after Close = %v, want ErrEngineClosed", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}
