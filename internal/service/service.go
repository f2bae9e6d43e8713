package service

import (
	"sync"

	"movelink/internal/flog"
	"movelink/internal/protocol"
	"movelink/internal/server"
)

// DeviceSource supplies controller inventory and telemetry samples.
type DeviceSource interface {
	Controllers() []protocol.ControllerInfo
	// Sample fills frame with the current state of one controller and
	// reports whether the controller is known and connected.
	Sample(controllerID int32, frame *protocol.ControllerDataFrame) bool
}

// Service is the request handler the network core invokes: it answers
// RPCs against the controller inventory and tracks which connection
// streams which controller. The telemetry pump reads the subscription
// table from its own goroutine, hence the lock; the core itself never
// sees it.
type Service struct {
	version string
	src     DeviceSource
	srv     *server.Server

	mu   sync.Mutex
	subs map[int32]map[server.ConnectionID]struct{}
	seq  map[int32]uint32
	leds map[int32][3]byte
}

func New(version string, src DeviceSource) *Service {
	return &Service{
		version: version,
		src:     src,
		subs:    make(map[int32]map[server.ConnectionID]struct{}),
		seq:     make(map[int32]uint32),
		leds:    make(map[int32][3]byte),
	}
}

// Attach gives the service the core to publish telemetry through.
func (s *Service) Attach(srv *server.Server) {
	s.srv = srv
}

// Handle implements server.Handler.
func (s *Service) Handle(id server.ConnectionID, req *protocol.Request) *protocol.Response {
	resp := &protocol.Response{
		RequestID: req.RequestID,
		Type:      req.Type,
		Result:    protocol.ResultOK,
	}

	switch req.Type {
	case protocol.MPing:

	case protocol.MServiceVersion:
		resp.Version = s.version

	case protocol.MControllerList:
		resp.Controllers = s.src.Controllers()

	case protocol.MStartDataStream:
		if !s.knownController(req.ControllerID) {
			resp.Result = protocol.ResultNoSuchController
			break
		}
		s.subscribe(req.ControllerID, id)
		flog.Infof("connection %d streaming controller %d", id, req.ControllerID)

	case protocol.MStopDataStream:
		s.unsubscribe(req.ControllerID, id)

	case protocol.MSetLEDColor:
		if !s.knownController(req.ControllerID) {
			resp.Result = protocol.ResultNoSuchController
			break
		}
		s.mu.Lock()
		s.leds[req.ControllerID] = req.LED
		s.mu.Unlock()

	default:
		flog.Warnf("connection %d: unknown request type 0x%02x", id, req.Type)
		resp.Result = protocol.ResultUnknownRequest
	}

	return resp
}

// LED returns the last color set for a controller.
func (s *Service) LED(controllerID int32) [3]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leds[controllerID]
}

func (s *Service) knownController(controllerID int32) bool {
	for _, c := range s.src.Controllers() {
		if c.ID == controllerID {
			return true
		}
	}
	return false
}

func (s *Service) subscribe(controllerID int32, id server.ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns, ok := s.subs[controllerID]
	if !ok {
		conns = make(map[server.ConnectionID]struct{})
		s.subs[controllerID] = conns
	}
	conns[id] = struct{}{}
}

func (s *Service) unsubscribe(controllerID int32, id server.ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conns, ok := s.subs[controllerID]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(s.subs, controllerID)
		}
	}
}

// OnDisconnect implements server.DisconnectObserver: a dead
// connection drops all of its stream subscriptions.
func (s *Service) OnDisconnect(id server.ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cid, conns := range s.subs {
		delete(conns, id)
		if len(conns) == 0 {
			delete(s.subs, cid)
		}
	}
}

// subscribers returns the connections streaming one controller.
func (s *Service) subscribers(controllerID int32) []server.ConnectionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := s.subs[controllerID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]server.ConnectionID, 0, len(conns))
	for id := range conns {
		out = append(out, id)
	}
	return out
}

// streamedControllers returns the controllers with at least one
// subscriber.
func (s *Service) streamedControllers() []int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int32, 0, len(s.subs))
	for cid := range s.subs {
		out = append(out, cid)
	}
	return out
}

func (s *Service) nextSeq(controllerID int32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[controllerID]++
	return s.seq[controllerID]
}
