// Unix/Darwin shutdown signals.
//
// SIGTERM is the conventional signal sent by process managers (systemd,
// launchd) and container runtimes to request a graceful stop.

//go:build !windows

package main

import (
	"os"
	"syscall"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
