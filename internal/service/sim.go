package service

import (
	"fmt"
	"math"
	"sync"
	"time"

	"movelink/internal/protocol"
)

// SimSource is a synthetic DeviceSource: a fixed set of virtual
// controllers tracing a slow circular motion. It lets the daemon run
// end-to-end on machines with no controller hardware attached.
type SimSource struct {
	controllers []protocol.ControllerInfo

	mu    sync.Mutex
	phase map[int32]float64
}

func NewSimSource(count int) *SimSource {
	s := &SimSource{phase: make(map[int32]float64)}
	for i := 0; i < count; i++ {
		s.controllers = append(s.controllers, protocol.ControllerInfo{
			ID:        int32(i),
			Kind:      protocol.KindVirtual,
			Connected: true,
			Serial:    fmt.Sprintf("sim-%04d", i),
		})
	}
	return s
}

func (s *SimSource) Controllers() []protocol.ControllerInfo {
	out := make([]protocol.ControllerInfo, len(s.controllers))
	copy(out, s.controllers)
	return out
}

func (s *SimSource) Sample(controllerID int32, frame *protocol.ControllerDataFrame) bool {
	if controllerID < 0 || int(controllerID) >= len(s.controllers) {
		return false
	}

	s.mu.Lock()
	p := s.phase[controllerID]
	s.phase[controllerID] = p + 0.02
	s.mu.Unlock()

	half := p / 2
	*frame = protocol.ControllerDataFrame{
		ControllerID: controllerID,
		TimestampUS:  uint64(time.Now().UnixMicro()),
		Orientation:  [4]float32{float32(math.Cos(half)), 0, float32(math.Sin(half)), 0},
		Accel:        [3]float32{0, -1, 0},
		Gyro:         [3]float32{0, 0.02, 0},
		Mag:          [3]float32{float32(math.Cos(p)), 0, float32(math.Sin(p))},
	}
	return true
}
