// Windows shutdown signals.
//
// Windows has no SIGTERM. The Go runtime maps CTRL_BREAK_EVENT and
// console-close events to os.Interrupt.

//go:build windows

package main

import "os"

var shutdownSignals = []os.Signal{os.Interrupt}
