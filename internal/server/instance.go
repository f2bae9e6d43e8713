package server

import "movelink/internal/conf"

// The process-wide server instance. Set by Start, zeroed by Stop;
// concurrent Start calls are not supported.
var instance *Server

// Start constructs the process-wide server and brings it up.
func Start(cfg *conf.Conf, handler Handler) (*Server, error) {
	s := New(cfg, handler)
	if err := s.Startup(); err != nil {
		return nil, err
	}
	instance = s
	return s, nil
}

// Instance returns the running server, or nil outside the
// Start/Stop window.
func Instance() *Server { return instance }

// Stop shuts the process-wide server down and clears the pointer.
func Stop() {
	if instance == nil {
		return
	}
	instance.Shutdown()
	instance = nil
}
