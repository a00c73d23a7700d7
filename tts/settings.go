package tts

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgnsrekt/readaloud/internal/store"
)

// Store keys for the persisted speech settings.
const (
	VolumeKey = "speech.volume"
	RateKey   = "speech.rate"
)

// Setting defaults.
const (
	DefaultVolume = 1.0
	DefaultRate   = 0.5
)

// LoadSettings reads volume and rate from the store. Missing or undecodable
// values fall back to their defaults; only store failures are returned.
func (e *Engine) LoadSettings(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	volume, err := e.loadSetting(ctx, VolumeKey, DefaultVolume)
	if err != nil {
		return err
	}
	rate, err := e.loadSetting(ctx, RateKey, DefaultRate)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.status.Volume = volume
	e.status.Rate = rate
	e.mu.Unlock()

	e.logger.Debug("settings loaded", "volume", volume, "rate", rate)
	e.signal()
	return nil
}

func (e *Engine) loadSetting(ctx context.Context, key string, def float64) (float64, error) {
	raw, err := e.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("load %s: %w", key, err)
	}

	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		e.logger.Warn("ignoring undecodable setting", "key", key, "value", string(raw))
		return def, nil
	}
	return clamp01(v), nil
}

// Volume returns the current volume.
func (e *Engine) Volume() float64 {
	return e.Status().Volume
}

// Rate returns the current speech rate.
func (e *Engine) Rate() float64 {
	return e.Status().Rate
}

// SetVolume clamps v to [0,1], applies it to the current utterance when the
// synthesizer supports live volume changes, and persists it.
func (e *Engine) SetVolume(ctx context.Context, v float64) error {
	v = clamp01(v)

	e.mu.Lock()
	e.status.Volume = v
	if e.current != nil {
		if vs, ok := e.current.u.(VolumeSetter); ok {
			vs.SetVolume(v)
		}
	}
	e.mu.Unlock()

	e.signal()
	return e.saveSetting(ctx, VolumeKey, v)
}

// SetRate clamps r to [0,1] and persists it. The new rate applies from the
// next utterance.
func (e *Engine) SetRate(ctx context.Context, r float64) error {
	r = clamp01(r)

	e.mu.Lock()
	e.status.Rate = r
	e.mu.Unlock()

	e.signal()
	return e.saveSetting(ctx, RateKey, r)
}

func (e *Engine) saveSetting(ctx context.Context, key string, v float64) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.Set(ctx, key, []byte(strconv.FormatFloat(v, 'f', -1, 64))); err != nil {
		e.logger.Error("failed to persist setting", "key", key, "err", err)
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
