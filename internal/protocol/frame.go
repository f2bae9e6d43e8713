package protocol

import (
	"encoding/binary"
	"errors"
)

// Stream and datagram messages share one framing: a 2-byte big-endian
// body length followed by the body. Datagram frames carry the same
// header inside a single packet and must fit under the MTU.
const (
	HeaderSize = 2

	// MaxMessageSize bounds the body of a stream message. A header
	// declaring more is a framing error and fatal for the session.
	MaxMessageSize = 16 * 1024

	// MaxDataFrameMessageSize bounds the body of a telemetry frame:
	// 1400 bytes of safe MTU minus the header. Frames that do not fit
	// are dropped, never fragmented.
	MaxDataFrameMessageSize = 1400 - HeaderSize
)

var (
	ErrMessageTooLarge = errors.New("message exceeds size limit")
	ErrShortBuffer     = errors.New("buffer too small for message")
	ErrTruncated       = errors.New("truncated message body")
	ErrUnknownType     = errors.New("unknown message type")
)

// Msg is a message body that can be framed onto the wire.
type Msg interface {
	EncodedSize() int
	Encode(b []byte) error
	Decode(b []byte) error
}

// EncodeHeader writes the body length into b[:HeaderSize].
func EncodeHeader(b []byte, n int) {
	binary.BigEndian.PutUint16(b, uint16(n))
}

// DecodeHeader returns the body length declared by b[:HeaderSize].
func DecodeHeader(b []byte) (int, error) {
	n := int(binary.BigEndian.Uint16(b))
	if n > MaxMessageSize {
		return 0, ErrMessageTooLarge
	}
	return n, nil
}

// Pack frames m into buf: header, then body. Returns the total number
// of bytes written. Fails without touching the wire if m does not fit.
func Pack(buf []byte, m Msg) (int, error) {
	n := m.EncodedSize()
	if n > MaxMessageSize {
		return 0, ErrMessageTooLarge
	}
	if HeaderSize+n > len(buf) {
		return 0, ErrShortBuffer
	}
	EncodeHeader(buf, n)
	if err := m.Encode(buf[HeaderSize : HeaderSize+n]); err != nil {
		return 0, err
	}
	return HeaderSize + n, nil
}

// Unpack parses a framed message: the header at buf[:HeaderSize] and
// the body it declares at buf[HeaderSize:].
func Unpack(buf []byte, m Msg) error {
	if len(buf) < HeaderSize {
		return ErrTruncated
	}
	n, err := DecodeHeader(buf)
	if err != nil {
		return err
	}
	if len(buf) < HeaderSize+n {
		return ErrTruncated
	}
	return m.Decode(buf[HeaderSize : HeaderSize+n])
}
