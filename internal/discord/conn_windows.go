// conn_windows.go connects to Discord's named pipes (\\.\pipe\discord-ipc-N)
// through go-winio.

//go:build windows

package discord

import (
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// dialTimeout bounds each pipe dial attempt.
const dialTimeout = time.Second

// connectToDiscord returns the first pipe slot that accepts.
func connectToDiscord() (net.Conn, error) {
	timeout := dialTimeout
	for i := range maxIPCSlots {
		conn, err := winio.DialPipe(fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i), &timeout)
		if err == nil {
			return conn, nil
		}
	}
	return nil, ErrIPCNotAvailable
}
