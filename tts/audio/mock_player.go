package audio

import (
	"sync"
	"time"
)

// MockOutput is an Output that plays silently at real-time speed. Use it in
// tests and on machines without an audio device.
type MockOutput struct {
	bytesPerSecond int

	mu          sync.Mutex
	activations int
	activateErr error
	streams     []*MockStream
}

var (
	_ Output = (*MockOutput)(nil)
	_ Stream = (*MockStream)(nil)
)

// NewMockOutput creates a mock output consuming bytesPerSecond.
func NewMockOutput(bytesPerSecond int) *MockOutput {
	if bytesPerSecond <= 0 {
		bytesPerSecond = DefaultSampleRate * DefaultChannels * BytesPerSample
	}
	return &MockOutput{bytesPerSecond: bytesPerSecond}
}

// BytesPerSecond implements Output.
func (m *MockOutput) BytesPerSecond() int {
	return m.bytesPerSecond
}

// Activate implements Output.
func (m *MockOutput) Activate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activations++
	return m.activateErr
}

// SetActivateError makes Activate fail with err.
func (m *MockOutput) SetActivateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activateErr = err
}

// Activations returns the number of Activate calls.
func (m *MockOutput) Activations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activations
}

// Play implements Output.
func (m *MockOutput) Play(pcm []byte, volume float64) (Stream, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyAudio
	}

	s := &MockStream{
		size:           len(pcm),
		bytesPerSecond: m.bytesPerSecond,
		started:        time.Now(),
		volume:         volume,
	}

	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()

	return s, nil
}

// Streams returns every stream played so far.
func (m *MockOutput) Streams() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockStream(nil), m.streams...)
}

// MockStream tracks the position of a silent playback from wall-clock time.
type MockStream struct {
	size           int
	bytesPerSecond int

	mu       sync.Mutex
	started  time.Time
	pausedAt time.Time
	paused   time.Duration
	stopped  bool
	volume   float64
}

// Played implements Stream.
func (s *MockStream) Played() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playedLocked()
}

func (s *MockStream) playedLocked() int {
	now := time.Now()
	if !s.pausedAt.IsZero() {
		now = s.pausedAt
	}
	elapsed := now.Sub(s.started) - s.paused
	played := int(elapsed.Seconds() * float64(s.bytesPerSecond))
	if played > s.size {
		played = s.size
	}
	if played < 0 {
		played = 0
	}
	return played
}

// Finished implements Stream.
func (s *MockStream) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped || s.playedLocked() >= s.size
}

// Pause implements Stream.
func (s *MockStream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pausedAt.IsZero() {
		s.pausedAt = time.Now()
	}
}

// Resume implements Stream.
func (s *MockStream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pausedAt.IsZero() {
		s.paused += time.Since(s.pausedAt)
		s.pausedAt = time.Time{}
	}
}

// Stop implements Stream.
func (s *MockStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// Stopped reports whether Stop was called.
func (s *MockStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// IsPaused reports whether the stream is paused.
func (s *MockStream) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.pausedAt.IsZero()
}

// SetVolume implements Stream.
func (s *MockStream) SetVolume(volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
}

// Volume returns the stream volume.
func (s *MockStream) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}
