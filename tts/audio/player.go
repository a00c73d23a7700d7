// Package audio plays raw PCM produced by speech synthesizers.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// PCM format produced by the synthesizers: 16-bit signed little endian.
const (
	DefaultSampleRate = 22050
	DefaultChannels   = 1
	BytesPerSample    = 2
)

// ErrEmptyAudio is returned when there is nothing to play.
var ErrEmptyAudio = errors.New("audio data is empty")

// Output is an audio device that can play PCM buffers.
type Output interface {
	// Activate prepares (or re-prepares) the output path.
	Activate() error

	// Play starts playing pcm and returns immediately.
	Play(pcm []byte, volume float64) (Stream, error)

	// BytesPerSecond is the playback rate of PCM data.
	BytesPerSecond() int
}

// Stream is one buffer being played.
type Stream interface {
	// Played returns the number of bytes that have been heard.
	Played() int
	// Finished reports whether every byte has been played.
	Finished() bool
	Pause()
	Resume()
	Stop()
	SetVolume(volume float64)
}

// Player is the oto-backed Output. The oto context can only be created once
// per process, so it is created lazily on first activation and reused.
type Player struct {
	sampleRate int
	channels   int

	mu      sync.Mutex
	context *oto.Context
}

var (
	_ Output = (*Player)(nil)
	_ Stream = (*playback)(nil)
)

// NewPlayer creates a player for the given format. Nothing touches the audio
// device until Activate or Play.
func NewPlayer(sampleRate, channels int) *Player {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	return &Player{
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// BytesPerSecond implements Output.
func (p *Player) BytesPerSecond() int {
	return p.sampleRate * p.channels * BytesPerSample
}

// Activate creates the oto context or resumes it after a suspension.
func (p *Player) Activate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activateLocked()
}

func (p *Player) activateLocked() error {
	if p.context != nil {
		if err := p.context.Resume(); err != nil {
			return fmt.Errorf("failed to resume oto context: %w", err)
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   p.sampleRate,
		ChannelCount: p.channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   100 * time.Millisecond,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	p.context = ctx
	return nil
}

// Suspend pauses the audio device.
func (p *Player) Suspend() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.context == nil {
		return nil
	}
	return p.context.Suspend()
}

// Play implements Output.
func (p *Player) Play(pcm []byte, volume float64) (Stream, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyAudio
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.context == nil {
		if err := p.activateLocked(); err != nil {
			return nil, err
		}
	}

	// The player reads from data while it plays, so it must stay reachable.
	data := make([]byte, len(pcm))
	copy(data, pcm)
	reader := bytes.NewReader(data)

	player := p.context.NewPlayer(reader)
	player.SetVolume(volume)
	player.Play()

	return &playback{
		data:   data,
		reader: reader,
		player: player,
	}, nil
}

// playback is one buffer playing through oto.
type playback struct {
	mu      sync.Mutex
	data    []byte
	reader  *bytes.Reader
	player  *oto.Player
	stopped bool
}

func (b *playback) Played() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	played := len(b.data) - b.reader.Len() - b.player.BufferedSize()
	if played < 0 {
		return 0
	}
	return played
}

func (b *playback) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return true
	}
	return b.reader.Len() == 0 && b.player.BufferedSize() == 0 && !b.player.IsPlaying()
}

func (b *playback) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.player.Pause()
}

func (b *playback) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.stopped {
		b.player.Play()
	}
}

func (b *playback) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.player.Pause()
	b.stopped = true
}

func (b *playback) SetVolume(volume float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.player.SetVolume(volume)
}
