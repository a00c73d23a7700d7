package audio

import (
	"errors"
	"testing"
	"time"
)

// TestMockOutputPlay tests real-time position tracking.
func TestMockOutputPlay(t *testing.T) {
	out := NewMockOutput(1000)

	if _, err := out.Play(nil, 1); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Play(nil) = %v, want ErrEmptyAudio", err)
	}

	s, err := out.Play(make([]byte, 50), 0.5)
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if s.Finished() {
		t.Error("stream finished immediately")
	}

	time.Sleep(100 * time.Millisecond)

	if got := s.Played(); got != 50 {
		t.Errorf("Played() = %d, want 50", got)
	}
	if !s.Finished() {
		t.Error("stream not finished after its duration")
	}
	if len(out.Streams()) != 1 || out.Streams()[0].Volume() != 0.5 {
		t.Error("stream not recorded with its volume")
	}
}

// TestMockStreamPause tests that paused streams do not advance.
func TestMockStreamPause(t *testing.T) {
	out := NewMockOutput(1000)

	st, err := out.Play(make([]byte, 10_000), 1)
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	s := st.(*MockStream)

	s.Pause()
	if !s.IsPaused() {
		t.Fatal("stream not paused")
	}
	before := s.Played()
	time.Sleep(50 * time.Millisecond)
	if after := s.Played(); after != before {
		t.Errorf("paused stream advanced from %d to %d", before, after)
	}

	s.Resume()
	time.Sleep(50 * time.Millisecond)
	if s.Played() <= before {
		t.Error("resumed stream did not advance")
	}
}

// TestMockStreamStop tests stopping.
func TestMockStreamStop(t *testing.T) {
	out := NewMockOutput(1)

	st, _ := out.Play(make([]byte, 100), 1)
	st.Stop()

	if !st.Finished() || !st.(*MockStream).Stopped() {
		t.Error("stopped stream should be finished")
	}
}

// TestMockOutputActivate tests activation bookkeeping.
func TestMockOutputActivate(t *testing.T) {
	out := NewMockOutput(0)

	if out.BytesPerSecond() != DefaultSampleRate*BytesPerSample {
		t.Errorf("BytesPerSecond() = %d", out.BytesPerSecond())
	}
	if err := out.Activate(); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	out.SetActivateError(errors.New("no device"))
	if err := out.Activate(); err == nil {
		t.Error("expected activation error")
	}
	if out.Activations() != 2 {
		t.Errorf("Activations() = %d, want 2", out.Activations())
	}
}

// TestPlayerBytesPerSecond tests format math without touching the device.
func TestPlayerBytesPerSecond(t *testing.T) {
	tests := []struct {
		rate, channels, want int
	}{
		{22050, 1, 44100},
		{44100, 2, 176400},
		{0, 0, DefaultSampleRate * DefaultChannels * BytesPerSample},
	}
	for _, tt := range tests {
		if got := NewPlayer(tt.rate, tt.channels).BytesPerSecond(); got != tt.want {
			t.Errorf("NewPlayer(%d, %d).BytesPerSecond() = %d, want %d", tt.rate, tt.channels, got, tt.want)
		}
	}
}
