// Package discord provides a client for Discord's local IPC socket,
// enabling Rich Presence updates via the SET_ACTIVITY command.
//
// The [Client] type manages connection lifecycle, command framing, and
// response matching. Platform-specific socket discovery is handled by
// conn_unix.go and conn_windows.go.
package discord

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"
)

// ///////////////////////////////////////////////
// Sentinel Errors
// ///////////////////////////////////////////////

// ErrNotConnected is returned when an operation requires an active connection.
var ErrNotConnected = errors.New("not connected")

// ErrCommandRejected is returned when Discord answers a command with an
// ERROR event, e.g. for an invalid application id or malformed activity.
var ErrCommandRejected = errors.New("discord rejected command")

// ///////////////////////////////////////////////
// Data Types
// ///////////////////////////////////////////////

// ActivityType selects the verb Discord shows before the application name.
type ActivityType int

const (
	ActivityPlaying   ActivityType = 0
	ActivityListening ActivityType = 2
	ActivityWatching  ActivityType = 3
)

// Button is a clickable link on the presence card.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Timestamps are Unix milliseconds. With both set Discord renders a
// countdown bar; with only Start it shows elapsed time.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Assets holds image references and tooltips. Image fields accept either an
// uploaded asset key or an https URL.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Activity is the SET_ACTIVITY payload.
type Activity struct {
	Type       ActivityType `json:"type,omitempty"`
	Details    string       `json:"details,omitempty"`
	State      string       `json:"state,omitempty"`
	Timestamps *Timestamps  `json:"timestamps,omitempty"`
	Assets     *Assets      `json:"assets,omitempty"`
	Buttons    []Button     `json:"buttons,omitempty"`
}

// response is the envelope of every frame Discord sends back.
type response struct {
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Nonce string          `json:"nonce"`
	Data  json.RawMessage `json:"data"`
}

type errorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type readyData struct {
	User struct {
		Username string `json:"username"`
	} `json:"user"`
}

// rejection turns an ERROR event into an error wrapping [ErrCommandRejected].
func (r *response) rejection() error {
	if r.Evt != "ERROR" {
		return nil
	}
	var d errorData
	_ = json.Unmarshal(r.Data, &d)
	return fmt.Errorf("%w: %s (code %d)", ErrCommandRejected, d.Message, d.Code)
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// defaultIOTimeout bounds each write and each wait for a response.
const defaultIOTimeout = 5 * time.Second

// Client manages a connection to Discord's IPC socket.
type Client struct {
	// appID is the Discord application (OAuth2 client) identifier.
	appID string
	// ioTimeout bounds each frame exchange.
	ioTimeout time.Duration

	// mu protects every field below.
	mu sync.Mutex
	// conn is the active IPC socket connection, or nil when disconnected.
	conn net.Conn
	// nonce tags each command so its response can be matched.
	nonce uint64
	// user is the Discord username reported by the READY event.
	user string
}

// NewClient creates a new Discord IPC client for the given application ID.
func NewClient(appID string) *Client {
	return &Client{appID: appID, ioTimeout: defaultIOTimeout}
}

// Connect establishes a connection to Discord via IPC and sends the handshake.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drop()

	conn, err := connectToDiscord()
	if err != nil {
		return err
	}
	c.conn = conn

	if err := c.handshake(); err != nil {
		c.drop()
		return err
	}
	return nil
}

// SetActivity publishes activity and waits for Discord's acknowledgement.
func (c *Client) SetActivity(activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sendCommand("SET_ACTIVITY", map[string]any{
		"pid":      os.Getpid(),
		"activity": activity,
	})
}

// ClearActivity removes the presence by sending a nil activity.
func (c *Client) ClearActivity() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sendCommand("SET_ACTIVITY", map[string]any{
		"pid":      os.Getpid(),
		"activity": nil,
	})
}

// Close clears the activity and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	// Best-effort clear before closing.
	_ = c.sendCommand("SET_ACTIVITY", map[string]any{
		"pid":      os.Getpid(),
		"activity": nil,
	})

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Connected reports whether the client has an active connection. A failed
// write or read drops the connection, so this turns false once Discord goes
// away.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// User returns the username of the logged-in Discord account, or "" if the
// READY event did not carry one.
func (c *Client) User() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// ///////////////////////////////////////////////
// Wire Exchange
// ///////////////////////////////////////////////

// drop closes and forgets the connection. The caller must hold c.mu.
func (c *Client) drop() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// handshake sends the handshake frame and waits for READY. The caller must
// hold c.mu.
func (c *Client) handshake() error {
	c.conn.SetDeadline(time.Now().Add(c.ioTimeout))
	defer c.conn.SetDeadline(time.Time{})

	if err := WriteJSON(c.conn, OpHandshake, map[string]any{
		"v":         1,
		"client_id": c.appID,
	}); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	resp, err := c.readResponse()
	if err != nil {
		return fmt.Errorf("reading handshake response: %w", err)
	}
	if err := resp.rejection(); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if resp.Evt != "READY" {
		return fmt.Errorf("unexpected handshake event %q", resp.Evt)
	}

	var ready readyData
	if len(resp.Data) > 0 {
		_ = json.Unmarshal(resp.Data, &ready)
	}
	c.user = ready.User.Username
	return nil
}

// sendCommand writes a command frame and waits for the response with the
// same nonce. Any I/O failure drops the connection. The caller must hold c.mu.
func (c *Client) sendCommand(cmd string, args map[string]any) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	c.nonce++
	nonce := strconv.FormatUint(c.nonce, 10)

	c.conn.SetDeadline(time.Now().Add(c.ioTimeout))
	err := WriteJSON(c.conn, OpFrame, map[string]any{
		"cmd":   cmd,
		"args":  args,
		"nonce": nonce,
	})
	if err != nil {
		c.drop()
		return fmt.Errorf("%s: %w", cmd, err)
	}

	for {
		resp, err := c.readResponse()
		if err != nil {
			c.drop()
			return fmt.Errorf("%s response: %w", cmd, err)
		}
		if resp.Nonce != nonce {
			continue
		}
		c.conn.SetDeadline(time.Time{})
		if err := resp.rejection(); err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		return nil
	}
}

// readResponse returns the next OpFrame payload, answering pings on the
// way. An OpClose frame ends the session with an error.
func (c *Client) readResponse() (*response, error) {
	for {
		op, payload, err := DecodeFrame(c.conn)
		if err != nil {
			return nil, err
		}
		switch op {
		case OpFrame:
			var resp response
			if err := json.Unmarshal(payload, &resp); err != nil {
				return nil, fmt.Errorf("parsing response: %w", err)
			}
			return &resp, nil
		case OpPing:
			frame, err := EncodeFrame(OpPong, payload)
			if err != nil {
				return nil, err
			}
			if _, err := c.conn.Write(frame); err != nil {
				return nil, fmt.Errorf("answering ping: %w", err)
			}
		case OpClose:
			var d errorData
			_ = json.Unmarshal(payload, &d)
			return nil, fmt.Errorf("discord closed the connection: %s (code %d)", d.Message, d.Code)
		}
	}
}
