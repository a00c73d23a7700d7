// Package piper implements a speech synthesizer on top of the Piper
// command line tool. Text is split into sentence chunks; each chunk runs a
// fresh piper process that writes raw PCM to stdout, and the next chunk is
// synthesized while the current one plays.
package piper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/audio"
	"github.com/dgnsrekt/readaloud/tts/sentence"
)

// Config holds configuration for the Piper synthesizer.
type Config struct {
	// Path to the piper binary. Empty means search the usual locations.
	BinaryPath string

	// Voice model file (.onnx), required.
	ModelPath string

	// Speaker id for multi-speaker models (optional).
	Speaker string

	// Sample rate of the model output.
	SampleRate int

	// Upper bound on a single synthesis run.
	SynthesisTimeout time.Duration

	// How often playback position is sampled for progress.
	PollInterval time.Duration

	// Upper bound on the text synthesized by one piper run. Zero
	// synthesizes the whole utterance at once.
	MaxChunkRunes int
}

// DefaultConfig returns a default configuration for Piper.
func DefaultConfig() Config {
	return Config{
		BinaryPath:       findPiperBinary(),
		SampleRate:       audio.DefaultSampleRate,
		SynthesisTimeout: time.Minute,
		PollInterval:     50 * time.Millisecond,
		MaxChunkRunes:    400,
	}
}

// Runner runs binary with args, feeding stdin, and returns its stdout.
type Runner func(ctx context.Context, binary string, args []string, stdin string) ([]byte, error)

// Synthesizer implements tts.Synthesizer and tts.SessionActivator.
type Synthesizer struct {
	cfg    Config
	out    audio.Output
	run    Runner
	cache  cache.Cache
	logger *log.Logger
}

var (
	_ tts.Synthesizer      = (*Synthesizer)(nil)
	_ tts.SessionActivator = (*Synthesizer)(nil)
	_ tts.VolumeSetter     = (*utterance)(nil)
)

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Synthesizer) {
		s.logger = logger
	}
}

// WithRunner replaces the process runner.
func WithRunner(run Runner) Option {
	return func(s *Synthesizer) {
		s.run = run
	}
}

// WithCache keeps synthesized audio in c.
func WithCache(c cache.Cache) Option {
	return func(s *Synthesizer) {
		s.cache = c
	}
}

// New creates a Piper synthesizer playing through out.
func New(cfg Config, out audio.Output, opts ...Option) (*Synthesizer, error) {
	def := DefaultConfig()
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = def.BinaryPath
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.SynthesisTimeout == 0 {
		cfg.SynthesisTimeout = def.SynthesisTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = def.PollInterval
	}

	s := &Synthesizer{
		cfg:    cfg,
		out:    out,
		run:    execRunner,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithPrefix("piper")

	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("%w: piper binary not found", tts.ErrSynthesizerUnavailable)
	}
	if cfg.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if out == nil {
		return nil, errors.New("audio output is required")
	}

	return s, nil
}

// Name returns the synthesizer identifier.
func (s *Synthesizer) Name() string {
	return "piper"
}

// ActivateSession (re)activates the audio output.
func (s *Synthesizer) ActivateSession() error {
	return s.out.Activate()
}

// Speak synthesizes and plays req.Text.
func (s *Synthesizer) Speak(ctx context.Context, req tts.Request) (tts.Utterance, error) {
	if req.Text == "" {
		return nil, tts.ErrEmptyText
	}

	uctx, cancel := context.WithCancel(ctx)
	u := &utterance{
		runes:    utf8.RuneCountInString(req.Text),
		volume:   req.Volume,
		cancel:   cancel,
		progress: make(chan tts.Range, 16),
		done:     make(chan struct{}),
	}

	go s.speak(uctx, u, req)
	return u, nil
}

// args builds the piper command line for a speaking rate.
func (s *Synthesizer) args(rate float64) []string {
	args := []string{
		"--model", s.cfg.ModelPath,
		"--output-raw",
		"--length-scale", fmt.Sprintf("%.2f", lengthScale(rate)),
	}
	if s.cfg.Speaker != "" {
		args = append(args, "--speaker", s.cfg.Speaker)
	}
	return args
}

// chunk is the audio for one span of the utterance text.
type chunk struct {
	span sentence.Span
	pcm  []byte
	err  error
}

func (s *Synthesizer) speak(ctx context.Context, u *utterance, req tts.Request) {
	spans := sentence.Chunks(req.Text, s.cfg.MaxChunkRunes)
	chunks := make(chan chunk, 1)
	go s.synthesizeAll(ctx, spans, req, chunks)

	for c := range chunks {
		if ctx.Err() != nil {
			u.end(fmt.Errorf("%w: %w", tts.ErrCanceled, ctx.Err()))
			return
		}
		if c.err != nil {
			u.end(c.err)
			return
		}
		if !s.play(ctx, u, c) {
			return
		}
	}
	if ctx.Err() != nil {
		u.end(fmt.Errorf("%w: %w", tts.ErrCanceled, ctx.Err()))
		return
	}

	u.advance(u.runes)
	u.end(nil)
}

// synthesizeAll produces audio for spans in order, one chunk ahead of
// playback. It stops at the first error.
func (s *Synthesizer) synthesizeAll(ctx context.Context, spans []sentence.Span, req tts.Request, out chan<- chunk) {
	defer close(out)

	for _, span := range spans {
		pcm, err := s.synthesize(ctx, span.Text, req.Rate)
		c := chunk{span: span, pcm: pcm, err: err}
		select {
		case out <- c:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// synthesize returns PCM for text, from the cache when possible.
func (s *Synthesizer) synthesize(ctx context.Context, text string, rate float64) ([]byte, error) {
	args := s.args(rate)

	var key string
	if s.cache != nil {
		key = cache.Key(s.cfg.ModelPath, s.cfg.Speaker, strings.Join(args, " "), text)
		if pcm, ok := s.cache.Get(key); ok {
			s.logger.Debug("cache hit", "chars", utf8.RuneCountInString(text))
			return pcm, nil
		}
	}

	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, s.cfg.SynthesisTimeout)
	pcm, err := s.run(sctx, s.cfg.BinaryPath, args, text)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}
	pcm = pcm[:len(pcm)&^1] // whole 16-bit samples only

	s.logger.Debug("synthesized", "chars", utf8.RuneCountInString(text), "bytes", len(pcm), "took", time.Since(start))

	if s.cache != nil {
		if err := s.cache.Put(key, pcm); err != nil {
			s.logger.Warn("could not cache audio", "err", err)
		}
	}
	return pcm, nil
}

// play plays one chunk, reporting progress within its span. It reports
// whether the utterance continues.
func (s *Synthesizer) play(ctx context.Context, u *utterance, c chunk) bool {
	stream, err := u.attach(func(volume float64) (audio.Stream, error) {
		return s.out.Play(c.pcm, volume)
	})
	if errors.Is(err, audio.ErrEmptyAudio) {
		u.advance(c.span.End)
		return true
	}
	if err != nil {
		u.end(fmt.Errorf("playback failed: %w", err))
		return false
	}
	if stream == nil {
		return false // cancelled
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stream.Stop()
			u.end(fmt.Errorf("%w: %w", tts.ErrCanceled, ctx.Err()))
			return false
		case <-ticker.C:
			u.advance(c.span.Start + charOffset(stream.Played(), len(c.pcm), c.span.Len()))
			if stream.Finished() {
				u.advance(c.span.End)
				return true
			}
		}
	}
}

// lengthScale maps a [0,1] rate onto piper's length scale, where 1 is the
// model's natural pace and larger is slower.
func lengthScale(rate float64) float64 {
	scale := 0.5 / max(rate, 0.05)
	return min(max(scale, 0.25), 4)
}

// charOffset maps a byte position in the audio onto a character offset in
// the text, assuming speech is spread evenly over the audio.
func charOffset(played, total, runes int) int {
	if total <= 0 || played <= 0 {
		return 0
	}
	if played >= total {
		return runes
	}
	return int(int64(played) * int64(runes) / int64(total))
}

// utterance is one piper utterance.
type utterance struct {
	runes  int
	cancel context.CancelFunc

	progress chan tts.Range
	done     chan struct{}
	once     sync.Once

	mu     sync.Mutex
	stream audio.Stream
	paused bool
	ended  bool
	volume float64
	spoken int
	err    error
}

func (u *utterance) Progress() <-chan tts.Range { return u.progress }

func (u *utterance) Done() <-chan struct{} { return u.done }

func (u *utterance) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

func (u *utterance) Pause() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.ended {
		return tts.ErrNotSpeaking
	}
	u.paused = true
	if u.stream != nil {
		u.stream.Pause()
	}
	return nil
}

func (u *utterance) Resume() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.ended || !u.paused {
		return tts.ErrNotPaused
	}
	u.paused = false
	if u.stream != nil {
		u.stream.Resume()
	}
	return nil
}

func (u *utterance) Cancel() {
	u.cancel()
	u.mu.Lock()
	if u.stream != nil {
		u.stream.Stop()
	}
	u.mu.Unlock()
	u.end(tts.ErrCanceled)
}

func (u *utterance) SetVolume(v float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.volume = v
	if u.stream != nil {
		u.stream.SetVolume(v)
	}
}

// attach starts playback with the current volume, honouring a pause that
// arrived during synthesis. It returns a nil stream if the utterance has
// already ended.
func (u *utterance) attach(play func(volume float64) (audio.Stream, error)) (audio.Stream, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.ended {
		return nil, nil
	}
	stream, err := play(u.volume)
	if err != nil {
		return nil, err
	}
	if u.paused {
		stream.Pause()
	}
	u.stream = stream
	return stream, nil
}

// advance reports the characters between the last reported offset and pos.
func (u *utterance) advance(pos int) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.ended || pos <= u.spoken {
		return
	}
	select {
	case u.progress <- tts.Range{Location: u.spoken, Length: pos - u.spoken}:
		u.spoken = pos
	default:
	}
}

func (u *utterance) end(err error) {
	u.once.Do(func() {
		u.mu.Lock()
		u.ended = true
		u.err = err
		close(u.progress)
		u.mu.Unlock()
		u.cancel()
		close(u.done)
	})
}

// execRunner runs the command with text pre-loaded on stdin.
func execRunner(ctx context.Context, binary string, args []string, text string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", filepath.Base(binary), err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%s produced no audio output, stderr: %s", filepath.Base(binary), strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// findPiperBinary tries to find the Piper binary in common locations.
func findPiperBinary() string {
	locations := []string{
		"piper",
		"/usr/local/bin/piper",
		"/usr/bin/piper",
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".local", "bin", "piper"),
			filepath.Join(home, "bin", "piper"),
		)
	}

	for _, loc := range locations {
		if path, err := exec.LookPath(loc); err == nil {
			return path
		}
	}
	return ""
}
