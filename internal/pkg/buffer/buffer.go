package buffer

import (
	"sync"
)

// SPool holds stream scratch buffers sized for the largest framed
// message a session may read or write in one piece.
var SPool = sync.Pool{
	New: func() any {
		b := make([]byte, 64*1024)
		return &b
	},
}

// DPool holds datagram receive buffers. Telemetry frames and pairing
// packets both fit well under a single MTU.
var DPool = sync.Pool{
	New: func() any {
		b := make([]byte, 2048)
		return &b
	},
}
