// Single-instance locking on Unix via flock(2).

//go:build !windows

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes a non-blocking exclusive flock on f. It fails with
// EWOULDBLOCK while another daemon holds the PID file.
func lockFile(f *os.File) error {
	return flock(f, unix.LOCK_EX|unix.LOCK_NB, "lock")
}

// unlockFile releases the flock on f. Closing f releases it as well.
func unlockFile(f *os.File) error {
	return flock(f, unix.LOCK_UN, "unlock")
}

func flock(f *os.File, how int, verb string) error {
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		return fmt.Errorf("%s %s: %w", verb, f.Name(), err)
	}
	return nil
}
