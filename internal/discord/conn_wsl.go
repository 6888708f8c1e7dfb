// conn_wsl.go adds socket paths for Discord running on the Windows side of
// WSL. WSL2 cannot reach Windows named pipes, so a relay has to expose the
// pipe as a Unix socket:
//
//	socat UNIX-LISTEN:/tmp/discord-ipc-0,fork EXEC:"npiperelay.exe -ep -s //./pipe/discord-ipc-0"

//go:build linux

package discord

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

var wslOnce = sync.OnceValue(func() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "microsoft")
})

// isWSL reports whether the process runs inside WSL.
func isWSL() bool {
	return wslOnce()
}

// wslSocketPaths returns where a relay typically creates the socket. It is
// empty outside WSL.
func wslSocketPaths() []string {
	if !isWSL() {
		return nil
	}
	var paths []string
	for i := range maxIPCSlots {
		paths = append(paths, fmt.Sprintf("/tmp/discord-ipc-%d", i))
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, fmt.Sprintf("%s/.discord-ipc-%d", home, i))
		}
	}
	return paths
}
