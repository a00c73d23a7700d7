//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// handleSignals maps process signals onto player controls until ctx is
// done: SIGUSR1 toggles pause, SIGHUP re-activates the audio session.
func handleSignals(ctx context.Context, a *app) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGUSR1, unix.SIGHUP)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			switch sig {
			case unix.SIGUSR1:
				if err := a.engine.TogglePause(); err != nil {
					log.Debug("nothing to pause", "err", err)
				}
			case unix.SIGHUP:
				a.engine.OnForeground()
			}
		}
	}
}
