package protocol

import (
	"encoding/binary"
	"math"
)

// ControllerDataFrame is one telemetry sample for one controller.
// Frames ride the datagram channel and may be lost; Seq lets clients
// detect gaps and discard stale samples.
//
// Wire format, all big-endian:
//
//	controller_id(4) seq(4) timestamp_us(8) buttons(4) trigger(1)
//	orientation(4*f32) accel(3*f32) gyro(3*f32) mag(3*f32)
type ControllerDataFrame struct {
	ControllerID int32
	Seq          uint32
	TimestampUS  uint64
	Buttons      uint32
	Trigger      byte
	Orientation  [4]float32
	Accel        [3]float32
	Gyro         [3]float32
	Mag          [3]float32
}

const dataFrameSize = 4 + 4 + 8 + 4 + 1 + 16 + 12 + 12 + 12

func (f *ControllerDataFrame) EncodedSize() int { return dataFrameSize }

func (f *ControllerDataFrame) Encode(b []byte) error {
	if len(b) < dataFrameSize {
		return ErrShortBuffer
	}
	binary.BigEndian.PutUint32(b, uint32(f.ControllerID))
	binary.BigEndian.PutUint32(b[4:], f.Seq)
	binary.BigEndian.PutUint64(b[8:], f.TimestampUS)
	binary.BigEndian.PutUint32(b[16:], f.Buttons)
	b[20] = f.Trigger
	off := 21
	off = putFloats(b, off, f.Orientation[:])
	off = putFloats(b, off, f.Accel[:])
	off = putFloats(b, off, f.Gyro[:])
	putFloats(b, off, f.Mag[:])
	return nil
}

func (f *ControllerDataFrame) Decode(b []byte) error {
	if len(b) < dataFrameSize {
		return ErrTruncated
	}
	f.ControllerID = int32(binary.BigEndian.Uint32(b))
	f.Seq = binary.BigEndian.Uint32(b[4:])
	f.TimestampUS = binary.BigEndian.Uint64(b[8:])
	f.Buttons = binary.BigEndian.Uint32(b[16:])
	f.Trigger = b[20]
	off := 21
	off = getFloats(b, off, f.Orientation[:])
	off = getFloats(b, off, f.Accel[:])
	off = getFloats(b, off, f.Gyro[:])
	getFloats(b, off, f.Mag[:])
	return nil
}

func putFloats(b []byte, off int, vals []float32) int {
	for _, v := range vals {
		binary.BigEndian.PutUint32(b[off:], math.Float32bits(v))
		off += 4
	}
	return off
}

func getFloats(b []byte, off int, vals []float32) int {
	for i := range vals {
		vals[i] = math.Float32frombits(binary.BigEndian.Uint32(b[off:]))
		off += 4
	}
	return off
}
