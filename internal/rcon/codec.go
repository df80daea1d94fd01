package rcon

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

type PacketType int32

const (
	TypeResponse PacketType = 0
	TypeCommand  PacketType = 2
	TypeAuth     PacketType = 3

	// TypeAuthResponse shares its value with TypeCommand on the wire.
	TypeAuthResponse PacketType = 2
)

const (
	// MaxPacketSize is the largest size field we are willing to send.
	MaxPacketSize = 4096
	// MaxResponseSize bounds inbound frames so a corrupt prefix can't make
	// the session buffer without limit.
	MaxResponseSize = 64 * 1024

	headerSize   = 4 + 4 + 4
	minSizeField = 4 + 4 + 2

	// AuthFailedID is the request id the server answers with when the
	// password is rejected.
	AuthFailedID int32 = -1
)

var (
	ErrNullInBody     = errors.New("body contains a null byte")
	ErrPacketTooLarge = errors.New("packet exceeds maximum size")
	ErrIncomplete     = errors.New("incomplete packet")
	ErrMalformed      = errors.New("malformed packet")
)

type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string { return "rcon: encode: " + e.Err.Error() }
func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError wraps ErrIncomplete when more input is needed and
// ErrMalformed when the frame can never be decoded.
type DecodingError struct {
	Err  error
	Size int32
}

func (e *DecodingError) Error() string {
	if e.Size != 0 {
		return fmt.Sprintf("rcon: decode: %v (size=%d)", e.Err, e.Size)
	}
	return "rcon: decode: " + e.Err.Error()
}

func (e *DecodingError) Unwrap() error { return e.Err }

type Packet struct {
	Size int32
	ID   int32
	Type PacketType
	Body string
}

func (t PacketType) String() string {
	switch t {
	case TypeResponse:
		return "response"
	case TypeCommand:
		return "command"
	case TypeAuth:
		return "auth"
	default:
		return fmt.Sprintf("type(%d)", int32(t))
	}
}

// Encode builds a little-endian frame:
// size | id | type | body | 0x00 | 0x00, where size = 10 + len(body).
func Encode(id int32, typ PacketType, body string) ([]byte, error) {
	if strings.IndexByte(body, 0) >= 0 {
		return nil, &EncodingError{Err: ErrNullInBody}
	}
	size := minSizeField + len(body)
	if size > MaxPacketSize {
		return nil, &EncodingError{Err: fmt.Errorf("%w: size %d > %d", ErrPacketTooLarge, size, MaxPacketSize)}
	}

	buf := make([]byte, 4+size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(id))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(typ))
	copy(buf[headerSize:], body)
	// the two trailing bytes are already zero
	return buf, nil
}

// Decode reads one frame from the front of buf and reports how many bytes it
// consumed. A *DecodingError wrapping ErrIncomplete means buf holds a prefix
// of a valid frame and the caller should read more.
func Decode(buf []byte) (Packet, int, error) {
	if len(buf) < 4 {
		return Packet{}, 0, &DecodingError{Err: ErrIncomplete}
	}
	size := int32(binary.LittleEndian.Uint32(buf[0:4]))
	if size < minSizeField || size > MaxResponseSize {
		return Packet{}, 0, &DecodingError{Err: ErrMalformed, Size: size}
	}
	total := 4 + int(size)
	if len(buf) < total {
		return Packet{}, 0, &DecodingError{Err: ErrIncomplete, Size: size}
	}

	body := buf[headerSize : total-2]
	body = bytes.TrimRight(body, "\x00")

	return Packet{
		Size: size,
		ID:   int32(binary.LittleEndian.Uint32(buf[4:8])),
		Type: PacketType(int32(binary.LittleEndian.Uint32(buf[8:12]))),
		Body: string(body),
	}, total, nil
}
