package protocol

import (
	"errors"
	"testing"
)

func requestRoundTrip(t *testing.T, w *Request) *Request {
	t.Helper()
	b := make([]byte, w.EncodedSize())
	if err := w.Encode(b); err != nil {
		t.Fatalf("encode type 0x%02x: %v", w.Type, err)
	}
	var r Request
	if err := r.Decode(b); err != nil {
		t.Fatalf("decode type 0x%02x: %v", w.Type, err)
	}
	return &r
}

func TestRequestRoundTrip(t *testing.T) {
	for _, typ := range []MType{MPing, MServiceVersion, MControllerList} {
		r := requestRoundTrip(t, &Request{RequestID: 7, Type: typ})
		if r.RequestID != 7 || r.Type != typ {
			t.Fatalf("mismatch for type 0x%02x: %+v", typ, r)
		}
	}

	r := requestRoundTrip(t, &Request{RequestID: -3, Type: MStartDataStream, ControllerID: 2, Flags: 0xDEAD})
	if r.RequestID != -3 || r.ControllerID != 2 || r.Flags != 0xDEAD {
		t.Fatalf("start stream mismatch: %+v", r)
	}

	r = requestRoundTrip(t, &Request{RequestID: 9, Type: MSetLEDColor, ControllerID: 1, LED: [3]byte{0xFF, 0x40, 0x00}})
	if r.LED != [3]byte{0xFF, 0x40, 0x00} {
		t.Fatalf("LED mismatch: %+v", r.LED)
	}
}

func TestRequestUnknownType(t *testing.T) {
	b := []byte{0, 0, 0, 1, 0xEE}
	var r Request
	if err := r.Decode(b); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestRequestTruncatedFields(t *testing.T) {
	w := &Request{RequestID: 1, Type: MStartDataStream, ControllerID: 5}
	b := make([]byte, w.EncodedSize())
	if err := w.Encode(b); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var r Request
	if err := r.Decode(b[:7]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func responseRoundTrip(t *testing.T, w *Response) *Response {
	t.Helper()
	b := make([]byte, w.EncodedSize())
	if err := w.Encode(b); err != nil {
		t.Fatalf("encode type 0x%02x: %v", w.Type, err)
	}
	var r Response
	if err := r.Decode(b); err != nil {
		t.Fatalf("decode type 0x%02x: %v", w.Type, err)
	}
	return &r
}

func TestConnectionInfoRoundTrip(t *testing.T) {
	r := responseRoundTrip(t, ConnectionInfo(12))
	if r.RequestID != NotificationID {
		t.Fatalf("expected notification id, got %d", r.RequestID)
	}
	if r.Type != MConnectionInfo || r.Result != ResultOK || r.ConnID != 12 {
		t.Fatalf("mismatch: %+v", r)
	}
}

func TestVersionResponseRoundTrip(t *testing.T) {
	r := responseRoundTrip(t, &Response{RequestID: 4, Type: MServiceVersion, Result: ResultOK, Version: "1.2.3"})
	if r.Version != "1.2.3" {
		t.Fatalf("version mismatch: %q", r.Version)
	}
}

func TestControllerListRoundTrip(t *testing.T) {
	w := &Response{
		RequestID: 5,
		Type:      MControllerList,
		Result:    ResultOK,
		Controllers: []ControllerInfo{
			{ID: 0, Kind: KindMove, Connected: true, Serial: "00:06:f7:c9:a1:52"},
			{ID: 1, Kind: KindVirtual, Connected: false, Serial: "sim-0001"},
		},
	}
	r := responseRoundTrip(t, w)
	if len(r.Controllers) != 2 {
		t.Fatalf("expected 2 controllers, got %d", len(r.Controllers))
	}
	if r.Controllers[0].Serial != "00:06:f7:c9:a1:52" || !r.Controllers[0].Connected {
		t.Fatalf("controller 0 mismatch: %+v", r.Controllers[0])
	}
	if r.Controllers[1].Kind != KindVirtual || r.Controllers[1].Connected {
		t.Fatalf("controller 1 mismatch: %+v", r.Controllers[1])
	}
}

func TestEmptyControllerList(t *testing.T) {
	r := responseRoundTrip(t, &Response{RequestID: 1, Type: MControllerList, Result: ResultOK})
	if len(r.Controllers) != 0 {
		t.Fatalf("expected empty list, got %d", len(r.Controllers))
	}
}

func TestDataFrameRoundTrip(t *testing.T) {
	w := &ControllerDataFrame{
		ControllerID: 3,
		Seq:          1001,
		TimestampUS:  1700000000000000,
		Buttons:      0x00010004,
		Trigger:      200,
		Orientation:  [4]float32{0.707, 0, 0.707, 0},
		Accel:        [3]float32{0.01, -0.98, 0.02},
		Gyro:         [3]float32{0.1, -0.2, 0.3},
		Mag:          [3]float32{-0.3, 0.5, 0.8},
	}
	b := make([]byte, w.EncodedSize())
	if err := w.Encode(b); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var r ControllerDataFrame
	if err := r.Decode(b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r != *w {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", r, *w)
	}
}
