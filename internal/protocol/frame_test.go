package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	var b [HeaderSize]byte
	EncodeHeader(b[:], 513)
	n, err := DecodeHeader(b[:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 513 {
		t.Fatalf("expected 513, got %d", n)
	}
}

func TestDecodeHeaderOverflow(t *testing.T) {
	var b [HeaderSize]byte
	binary.BigEndian.PutUint16(b[:], uint16(MaxMessageSize+1))
	if _, err := DecodeHeader(b[:]); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestDecodeHeaderAtLimit(t *testing.T) {
	var b [HeaderSize]byte
	binary.BigEndian.PutUint16(b[:], uint16(MaxMessageSize))
	n, err := DecodeHeader(b[:])
	if err != nil {
		t.Fatalf("decode at limit: %v", err)
	}
	if n != MaxMessageSize {
		t.Fatalf("expected %d, got %d", MaxMessageSize, n)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	req := &Request{RequestID: 42, Type: MStartDataStream, ControllerID: 3, Flags: 1}

	buf := make([]byte, 64)
	n, err := Pack(buf, req)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if n != HeaderSize+req.EncodedSize() {
		t.Fatalf("expected %d bytes, got %d", HeaderSize+req.EncodedSize(), n)
	}

	declared, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if declared != req.EncodedSize() {
		t.Fatalf("header declares %d, body is %d", declared, req.EncodedSize())
	}

	var got Request
	if err := Unpack(buf[:n], &got); err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if got.RequestID != 42 || got.Type != MStartDataStream || got.ControllerID != 3 || got.Flags != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestPackShortBuffer(t *testing.T) {
	req := &Request{RequestID: 1, Type: MPing}
	buf := make([]byte, 3)
	if _, err := Pack(buf, req); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestUnpackTruncatedBody(t *testing.T) {
	req := &Request{RequestID: 1, Type: MPing}
	buf := make([]byte, 64)
	n, err := Pack(buf, req)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	var got Request
	if err := Unpack(buf[:n-1], &got); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestDataFrameFitsDatagramBudget(t *testing.T) {
	f := &ControllerDataFrame{}
	if f.EncodedSize() > MaxDataFrameMessageSize {
		t.Fatalf("data frame (%d bytes) exceeds datagram budget (%d)", f.EncodedSize(), MaxDataFrameMessageSize)
	}
}

func TestZeroLengthBody(t *testing.T) {
	var b [HeaderSize]byte
	EncodeHeader(b[:], 0)
	n, err := DecodeHeader(b[:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
	if !bytes.Equal(b[:], []byte{0, 0}) {
		t.Fatalf("unexpected header bytes: %v", b)
	}
}
