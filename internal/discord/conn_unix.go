// conn_unix.go finds Discord's IPC socket on Linux, macOS, and the BSDs.

//go:build !windows

package discord

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// dialTimeout bounds each socket dial attempt.
const dialTimeout = time.Second

// socketPrefixes are the socket names of Discord stable, Canary, and PTB.
var socketPrefixes = []string{"discord-ipc", "discordcanary-ipc", "discordptb-ipc"}

// socketDirs returns the directories Discord may create its socket in, in
// probe order: the runtime dir, the temp dirs, then Snap and Flatpak
// sandboxes.
func socketDirs() []string {
	var dirs []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := os.Getenv(env); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	dirs = append(dirs, "/tmp")

	runUser := filepath.Join("/run/user", strconv.Itoa(os.Getuid()))
	for _, snap := range []string{"snap.discord", "snap.discord-canary", "snap.discord-ptb"} {
		dirs = append(dirs, filepath.Join(runUser, snap))
	}
	for _, app := range []string{"com.discordapp.Discord", "com.discordapp.DiscordCanary", "com.discordapp.DiscordPTB"} {
		dirs = append(dirs, filepath.Join(runUser, "app", app))
	}
	return dirs
}

// socketPaths expands socketDirs into every candidate socket path.
func socketPaths() []string {
	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	for _, dir := range socketDirs() {
		for _, prefix := range socketPrefixes {
			for i := range maxIPCSlots {
				add(filepath.Join(dir, fmt.Sprintf("%s-%d", prefix, i)))
			}
		}
	}
	for _, p := range wslSocketPaths() {
		add(p)
	}
	return paths
}

// connectToDiscord dials each candidate path and returns the first socket
// that accepts.
func connectToDiscord() (net.Conn, error) {
	for _, path := range socketPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		conn, err := net.DialTimeout("unix", path, dialTimeout)
		if err == nil {
			return conn, nil
		}
	}

	if isWSL() {
		return nil, fmt.Errorf("%w: running under WSL, a socat + npiperelay.exe relay is required", ErrIPCNotAvailable)
	}
	return nil, ErrIPCNotAvailable
}
