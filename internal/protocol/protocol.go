package protocol

import (
	"encoding/binary"
	"fmt"
)

type MType = byte

const (
	MPing            MType = 0x01
	MServiceVersion  MType = 0x02
	MControllerList  MType = 0x03
	MStartDataStream MType = 0x04
	MStopDataStream  MType = 0x05
	MSetLEDColor     MType = 0x06
	MConnectionInfo  MType = 0x10
	MControllerData  MType = 0x20
)

type Result = byte

const (
	ResultOK               Result = 0x00
	ResultError            Result = 0x01
	ResultUnknownRequest   Result = 0x02
	ResultNoSuchController Result = 0x03
)

// NotificationID marks a Response that answers no request.
const NotificationID int32 = -1

type ControllerKind = byte

const (
	KindMove       ControllerKind = 0x01
	KindNavi       ControllerKind = 0x02
	KindDualShock4 ControllerKind = 0x03
	KindVirtual    ControllerKind = 0x04
)

// Request is a client-issued command.
// Wire format: request_id(4) + type(1) + per-type fields.
type Request struct {
	RequestID    int32
	Type         MType
	ControllerID int32  // start/stop stream, set LED
	Flags        uint32 // start stream options
	LED          [3]byte
}

func (r *Request) EncodedSize() int {
	switch r.Type {
	case MPing, MServiceVersion, MControllerList:
		return 5
	case MStartDataStream:
		return 5 + 8
	case MStopDataStream:
		return 5 + 4
	case MSetLEDColor:
		return 5 + 7
	}
	return 5
}

func (r *Request) Encode(b []byte) error {
	if len(b) < r.EncodedSize() {
		return ErrShortBuffer
	}
	binary.BigEndian.PutUint32(b, uint32(r.RequestID))
	b[4] = r.Type

	switch r.Type {
	case MPing, MServiceVersion, MControllerList:
	case MStartDataStream:
		binary.BigEndian.PutUint32(b[5:], uint32(r.ControllerID))
		binary.BigEndian.PutUint32(b[9:], r.Flags)
	case MStopDataStream:
		binary.BigEndian.PutUint32(b[5:], uint32(r.ControllerID))
	case MSetLEDColor:
		binary.BigEndian.PutUint32(b[5:], uint32(r.ControllerID))
		copy(b[9:12], r.LED[:])
	default:
		return fmt.Errorf("%w: request 0x%02x", ErrUnknownType, r.Type)
	}
	return nil
}

func (r *Request) Decode(b []byte) error {
	if len(b) < 5 {
		return ErrTruncated
	}
	r.RequestID = int32(binary.BigEndian.Uint32(b))
	r.Type = b[4]

	switch r.Type {
	case MPing, MServiceVersion, MControllerList:
		return nil
	case MStartDataStream:
		if len(b) < 13 {
			return ErrTruncated
		}
		r.ControllerID = int32(binary.BigEndian.Uint32(b[5:]))
		r.Flags = binary.BigEndian.Uint32(b[9:])
		return nil
	case MStopDataStream:
		if len(b) < 9 {
			return ErrTruncated
		}
		r.ControllerID = int32(binary.BigEndian.Uint32(b[5:]))
		return nil
	case MSetLEDColor:
		if len(b) < 12 {
			return ErrTruncated
		}
		r.ControllerID = int32(binary.BigEndian.Uint32(b[5:]))
		copy(r.LED[:], b[9:12])
		return nil
	}
	return fmt.Errorf("%w: request 0x%02x", ErrUnknownType, r.Type)
}

// ControllerInfo describes one tracked controller in a list response.
// Wire format: id(4) + kind(1) + connected(1) + serial_len(1) + serial.
type ControllerInfo struct {
	ID        int32
	Kind      ControllerKind
	Connected bool
	Serial    string
}

func (c *ControllerInfo) encodedSize() int {
	return 7 + len(c.Serial)
}

func (c *ControllerInfo) encode(b []byte) (int, error) {
	if len(c.Serial) > 255 {
		return 0, fmt.Errorf("controller serial too long: %d bytes", len(c.Serial))
	}
	binary.BigEndian.PutUint32(b, uint32(c.ID))
	b[4] = c.Kind
	b[5] = 0
	if c.Connected {
		b[5] = 1
	}
	b[6] = byte(len(c.Serial))
	copy(b[7:], c.Serial)
	return 7 + len(c.Serial), nil
}

func (c *ControllerInfo) decode(b []byte) (int, error) {
	if len(b) < 7 {
		return 0, ErrTruncated
	}
	c.ID = int32(binary.BigEndian.Uint32(b))
	c.Kind = b[4]
	c.Connected = b[5] != 0
	n := int(b[6])
	if len(b) < 7+n {
		return 0, ErrTruncated
	}
	c.Serial = string(b[7 : 7+n])
	return 7 + n, nil
}

// Response answers a Request, or carries a server-initiated
// notification when RequestID is NotificationID.
// Wire format: request_id(4) + type(1) + result(1) + per-type fields.
type Response struct {
	RequestID   int32
	Type        MType
	Result      Result
	ConnID      int32 // connection info
	Version     string
	Controllers []ControllerInfo
}

func (r *Response) EncodedSize() int {
	n := 6
	switch r.Type {
	case MConnectionInfo:
		n += 4
	case MServiceVersion:
		n += 1 + len(r.Version)
	case MControllerList:
		n += 2
		for i := range r.Controllers {
			n += r.Controllers[i].encodedSize()
		}
	}
	return n
}

func (r *Response) Encode(b []byte) error {
	if len(b) < r.EncodedSize() {
		return ErrShortBuffer
	}
	binary.BigEndian.PutUint32(b, uint32(r.RequestID))
	b[4] = r.Type
	b[5] = r.Result

	switch r.Type {
	case MPing, MStartDataStream, MStopDataStream, MSetLEDColor:
	case MConnectionInfo:
		binary.BigEndian.PutUint32(b[6:], uint32(r.ConnID))
	case MServiceVersion:
		if len(r.Version) > 255 {
			return fmt.Errorf("version string too long: %d bytes", len(r.Version))
		}
		b[6] = byte(len(r.Version))
		copy(b[7:], r.Version)
	case MControllerList:
		binary.BigEndian.PutUint16(b[6:], uint16(len(r.Controllers)))
		off := 8
		for i := range r.Controllers {
			n, err := r.Controllers[i].encode(b[off:])
			if err != nil {
				return err
			}
			off += n
		}
	default:
		return fmt.Errorf("%w: response 0x%02x", ErrUnknownType, r.Type)
	}
	return nil
}

func (r *Response) Decode(b []byte) error {
	if len(b) < 6 {
		return ErrTruncated
	}
	r.RequestID = int32(binary.BigEndian.Uint32(b))
	r.Type = b[4]
	r.Result = b[5]

	switch r.Type {
	case MPing, MStartDataStream, MStopDataStream, MSetLEDColor:
		return nil
	case MConnectionInfo:
		if len(b) < 10 {
			return ErrTruncated
		}
		r.ConnID = int32(binary.BigEndian.Uint32(b[6:]))
		return nil
	case MServiceVersion:
		if len(b) < 7 {
			return ErrTruncated
		}
		n := int(b[6])
		if len(b) < 7+n {
			return ErrTruncated
		}
		r.Version = string(b[7 : 7+n])
		return nil
	case MControllerList:
		if len(b) < 8 {
			return ErrTruncated
		}
		count := int(binary.BigEndian.Uint16(b[6:]))
		r.Controllers = make([]ControllerInfo, count)
		off := 8
		for i := range r.Controllers {
			n, err := r.Controllers[i].decode(b[off:])
			if err != nil {
				return err
			}
			off += n
		}
		return nil
	}
	return fmt.Errorf("%w: response 0x%02x", ErrUnknownType, r.Type)
}

// ConnectionInfo builds the unsolicited first message of a stream
// session. The client echoes the id over the datagram channel to pair.
func ConnectionInfo(connID int32) *Response {
	return &Response{
		RequestID: NotificationID,
		Type:      MConnectionInfo,
		Result:    ResultOK,
		ConnID:    connID,
	}
}
