package discord

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Opcode is the first header word of a Discord IPC frame.
type Opcode uint32

const (
	// OpHandshake opens the session with the application id.
	OpHandshake Opcode = 0
	// OpFrame carries a JSON command or its response.
	OpFrame Opcode = 1
	// OpClose is sent by Discord before it drops the connection.
	OpClose Opcode = 2
	// OpPing asks the peer to answer with [OpPong] and the same payload.
	OpPing Opcode = 3
	// OpPong answers [OpPing].
	OpPong Opcode = 4

	// frameHeaderSize is the 4-byte little-endian opcode plus the 4-byte
	// little-endian payload length.
	frameHeaderSize = 8

	// MaxPayloadSize bounds a single frame payload (1 MB).
	MaxPayloadSize = 1 << 20

	// maxIPCSlots is the number of socket slots Discord may listen on (0-9).
	maxIPCSlots = 10
)

// ErrPayloadTooLarge is returned for frames above [MaxPayloadSize].
var ErrPayloadTooLarge = errors.New("payload too large")

// ErrIPCNotAvailable is returned when no Discord IPC socket answers.
var ErrIPCNotAvailable = errors.New("discord IPC not available")

// ///////////////////////////////////////////////
// Frame Encoding
// ///////////////////////////////////////////////

// EncodeFrame builds [opcode][length][payload].
func EncodeFrame(opcode Opcode, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	frame := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(opcode))
	binary.LittleEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[8:], payload)
	return frame, nil
}

// WriteJSON marshals v and writes it to w as a single frame.
func WriteJSON(w io.Writer, opcode Opcode, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling frame: %w", err)
	}
	frame, err := EncodeFrame(opcode, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// ///////////////////////////////////////////////
// Frame Decoding
// ///////////////////////////////////////////////

// DecodeFrame reads one frame from reader, tolerating partial reads.
func DecodeFrame(reader io.Reader) (opcode Opcode, payload []byte, err error) {
	var header [frameHeaderSize]byte
	if _, err = io.ReadFull(reader, header[:]); err != nil {
		return 0, nil, fmt.Errorf("reading frame header: %w", err)
	}

	opcode = Opcode(binary.LittleEndian.Uint32(header[0:4]))
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > MaxPayloadSize {
		return 0, nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, length, MaxPayloadSize)
	}

	payload = make([]byte, length)
	if _, err = io.ReadFull(reader, payload); err != nil {
		return 0, nil, fmt.Errorf("reading frame payload: %w", err)
	}
	return opcode, payload, nil
}
