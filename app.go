package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/queue"
	"github.com/dgnsrekt/readaloud/internal/store"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/audio"
	"github.com/dgnsrekt/readaloud/tts/engines/mock"
	"github.com/dgnsrekt/readaloud/tts/engines/piper"
	"github.com/dgnsrekt/readaloud/utils"
)

const (
	engineMock  = "mock"
	enginePiper = "piper"
)

// app wires the store, the speech engine and the queue together.
type app struct {
	store  store.Store
	engine *tts.Engine
	queue  *queue.Queue
	logger *log.Logger

	// closers release what the synthesizer holds, such as the audio cache
	closers []func() error
}

// appOptions selects what newApp sets up.
type appOptions struct {
	// speak builds the configured synthesizer and activates the audio
	// session. Without it a silent synthesizer is used, which is enough to
	// inspect and edit the queue.
	speak bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	logger := log.Default()

	s, err := openStore()
	if err != nil {
		return nil, err
	}

	var (
		synth   tts.Synthesizer = mock.NewManual()
		closers []func() error
	)
	if opts.speak {
		synth, closers, err = newSynthesizer(logger)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	engine := tts.NewEngine(synth, tts.WithLogger(logger), tts.WithStore(s))
	if err := engine.LoadSettings(ctx); err != nil {
		logger.Warn("could not load speech settings", "err", err)
	}
	if opts.speak {
		engine.Activate()
	}

	q := queue.New(s, engine,
		queue.WithLogger(logger),
		queue.WithLanguage(viper.GetString("speech.language")),
	)

	return &app{store: s, engine: engine, queue: q, logger: logger, closers: closers}, nil
}

// restore loads the persisted queue. A corrupt snapshot has already been
// discarded by the queue, so it is only reported.
func (a *app) restore(ctx context.Context) error {
	err := a.queue.Restore(ctx)
	if errors.Is(err, queue.ErrCorruptSnapshot) {
		a.logger.Warn("queue snapshot was corrupt and has been discarded")
		return nil
	}
	return err
}

func (a *app) Close() error {
	errs := []error{a.queue.Close(), a.engine.Close(), a.store.Close()}
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func storeConfig() (store.Config, error) {
	cfg := store.Config{
		Driver:        strings.ToLower(viper.GetString("store.driver")),
		Path:          utils.ExpandPath(viper.GetString("store.path")),
		Namespace:     viper.GetString("store.namespace"),
		RedisAddr:     viper.GetString("store.redis.addr"),
		RedisPassword: viper.GetString("store.redis.password"),
		RedisDB:       viper.GetInt("store.redis.db"),
		RedisTTL:      viper.GetDuration("store.redis.ttl"),
	}

	if cfg.Path == "" {
		dir, err := utils.DataPath("")
		if err != nil {
			return cfg, fmt.Errorf("could not find data directory: %w", err)
		}
		switch cfg.Driver {
		case store.DriverSQLite:
			cfg.Path = filepath.Join(dir, utils.AppName+".db")
		case store.DriverFile, "":
			cfg.Path = filepath.Join(dir, "store")
		}
	}
	return cfg, nil
}

func openStore() (store.Store, error) {
	cfg, err := storeConfig()
	if err != nil {
		return nil, err
	}
	s, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s store: %w", cfg.Driver, err)
	}
	log.Debug("opened store", "driver", cfg.Driver, "path", cfg.Path)
	return s, nil
}

func newSynthesizer(logger *log.Logger) (tts.Synthesizer, []func() error, error) {
	switch strings.ToLower(viper.GetString("speech.engine")) {
	case enginePiper:
		cfg := piper.DefaultConfig()
		if bin := viper.GetString("speech.piper.binary"); bin != "" {
			cfg.BinaryPath = utils.ExpandPath(bin)
		}
		cfg.ModelPath = utils.ExpandPath(viper.GetString("speech.piper.model"))
		cfg.Speaker = viper.GetString("speech.piper.speaker")
		cfg.SampleRate = viper.GetInt("speech.piper.sample_rate")
		if d := viper.GetDuration("speech.piper.timeout"); d > 0 {
			cfg.SynthesisTimeout = d
		}

		if n := viper.GetInt("speech.piper.chunk_chars"); n >= 0 {
			cfg.MaxChunkRunes = n
		}

		var closers []func() error
		opts := []piper.Option{piper.WithLogger(logger)}
		if c, err := newAudioCache(); err != nil {
			logger.Warn("audio cache disabled", "err", err)
		} else if c != nil {
			opts = append(opts, piper.WithCache(c))
			closers = append(closers, c.Close)
		}

		player := audio.NewPlayer(cfg.SampleRate, audio.DefaultChannels)
		synth, err := piper.New(cfg, player, opts...)
		if err != nil {
			for _, c := range closers {
				_ = c()
			}
			return nil, nil, fmt.Errorf("unable to start piper: %w", err)
		}
		return synth, append(closers, player.Suspend), nil
	default:
		return mock.New(mock.Config{
			WordsPerMinute: viper.GetInt("speech.mock.words_per_minute"),
		}), nil, nil
	}
}

// newAudioCache builds the synthesized audio cache, or returns nil when it
// is disabled.
func newAudioCache() (*cache.Tiered, error) {
	memMB := viper.GetInt64("speech.cache.memory_mb")
	diskMB := viper.GetInt64("speech.cache.disk_mb")
	if memMB <= 0 && diskMB <= 0 {
		return nil, nil
	}

	var mem *cache.MemoryCache
	if memMB > 0 {
		mem = cache.NewMemoryCache(memMB << 20)
	}

	var disk *cache.DiskCache
	if diskMB > 0 {
		dir := utils.ExpandPath(viper.GetString("speech.cache.dir"))
		if dir == "" {
			var err error
			if dir, err = utils.CachePath("audio"); err != nil {
				return nil, err
			}
		}
		var err error
		if disk, err = cache.NewDiskCache(dir, diskMB<<20); err != nil {
			return nil, err
		}
	}
	return cache.NewTiered(mem, disk), nil
}
