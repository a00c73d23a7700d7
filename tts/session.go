package tts

import "fmt"

// Activate (re)activates the synthesizer's audio output path. Failures are
// logged and otherwise ignored so playback can proceed.
func (e *Engine) Activate() {
	sa, ok := e.synth.(SessionActivator)
	if !ok {
		return
	}
	if err := sa.ActivateSession(); err != nil {
		e.logger.Warn("audio session activation failed",
			"err", fmt.Errorf("%w: %w", ErrSessionActivation, err))
		return
	}
	e.logger.Debug("audio session active")
}

// OnBackground is called when the process moves to the background.
func (e *Engine) OnBackground() {
	e.logger.Debug("entering background")
	e.Activate()
}

// OnForeground is called when the process returns to the foreground.
func (e *Engine) OnForeground() {
	e.logger.Debug("entering foreground")
	e.Activate()
}
