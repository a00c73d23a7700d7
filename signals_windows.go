//go:build windows

package main

import "context"

// handleSignals waits for ctx; there are no control signals on Windows.
func handleSignals(ctx context.Context, _ *app) {
	<-ctx.Done()
}
