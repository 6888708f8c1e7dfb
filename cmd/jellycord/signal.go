package main

import (
	"context"
	"os/signal"
)

// signalContext returns a context cancelled by the first shutdown signal.
// The signals are platform specific; see shutdownSignals.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}
