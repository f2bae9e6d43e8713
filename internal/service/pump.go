package service

import (
	"context"
	"sort"
	"time"

	"movelink/internal/flog"
	"movelink/internal/protocol"
)

// Run drives the telemetry pump: at the configured rate it samples
// every controller that has subscribers and pushes one frame per
// subscriber through the core's datagram path. Frames for sessions
// that never paired stay queued on the session; that is the core's
// concern, not the pump's.
func (s *Service) Run(ctx context.Context, pollHz int) {
	interval := time.Second / time.Duration(pollHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	flog.Infof("telemetry pump running at %d Hz", pollHz)

	for {
		select {
		case <-ctx.Done():
			flog.Infof("telemetry pump stopped")
			return
		case <-ticker.C:
			s.pumpOnce()
		}
	}
}

func (s *Service) pumpOnce() {
	controllers := s.streamedControllers()
	// stable publish order keeps per-controller frame spacing even
	sort.Slice(controllers, func(i, j int) bool { return controllers[i] < controllers[j] })

	var frame protocol.ControllerDataFrame
	for _, cid := range controllers {
		if !s.src.Sample(cid, &frame) {
			continue
		}
		frame.ControllerID = cid
		frame.Seq = s.nextSeq(cid)
		for _, conn := range s.subscribers(cid) {
			s.srv.SendControllerDataFrame(conn, &frame)
		}
	}
}
