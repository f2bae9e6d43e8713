package server

import (
	"net"
	"sync"

	"github.com/pkg/errors"

	"movelink/internal/conf"
	"movelink/internal/flog"
	"movelink/internal/protocol"
)

// Handler answers one request for one connection. It runs on the
// server's event goroutine: it may block briefly but must not wait on
// unbounded I/O, and it must not call back into the server.
type Handler interface {
	Handle(id ConnectionID, req *protocol.Request) *protocol.Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(id ConnectionID, req *protocol.Request) *protocol.Response

func (f HandlerFunc) Handle(id ConnectionID, req *protocol.Request) *protocol.Response {
	return f(id, req)
}

// DisconnectObserver is implemented by handlers that keep
// per-connection state. The hook runs on the event goroutine after a
// session has stopped and left the registry.
type DisconnectObserver interface {
	OnDisconnect(id ConnectionID)
}

// pairingSend marks a datagram send that belongs to the pairing
// handshake rather than to any session.
const pairingSend ConnectionID = -1

// maxDrainPerWake bounds how many queued events one wakeup of the
// event goroutine may run, so a flooding connection cannot monopolize
// the loop.
const maxDrainPerWake = 32

type udpSend struct {
	buf  []byte
	addr *net.UDPAddr
	conn ConnectionID
}

// Server multiplexes two transports per client on one port: a TCP
// stream for request/response and notifications, and a shared UDP
// socket for pairing and telemetry. All session, registry and queue
// state belongs to the single event goroutine; socket-facing
// goroutines only move bytes and post completions carrying a
// ConnectionID. No lock guards any of it.
type Server struct {
	cfg     *conf.Conf
	handler Handler

	onDisconnect func(id ConnectionID)

	ln  *net.TCPListener
	udp *net.UDPConn

	reg  *registry
	ackQ []pairingAck

	udpBusy   bool // one datagram send outstanding across all sessions
	udpSendCh chan udpSend

	events chan func(*Server)
	done   chan struct{}
	down   bool
	wg     sync.WaitGroup
}

func New(cfg *conf.Conf, handler Handler) *Server {
	s := &Server{
		cfg:     cfg,
		handler: handler,
		reg:     newRegistry(),
		// one slot is enough: udpBusy admits a single send at a time
		udpSendCh: make(chan udpSend, 1),
		events:    make(chan func(*Server), 256),
		done:      make(chan struct{}),
	}
	if o, ok := handler.(DisconnectObserver); ok {
		s.onDisconnect = o.OnDisconnect
	}
	return s
}

// Startup binds the stream acceptor and the datagram socket on the
// configured port and starts the loops. The two sockets share the
// port number: clients reach both transports through one address.
func (s *Server) Startup() error {
	ln, err := net.ListenTCP("tcp4", s.cfg.Listen.TCP)
	if err != nil {
		return errors.Wrap(err, "listen tcp")
	}
	udp, err := net.ListenUDP("udp4", s.cfg.Listen.UDP)
	if err != nil {
		ln.Close()
		return errors.Wrap(err, "listen udp")
	}
	if err := udp.SetReadBuffer(s.cfg.Tuning.UDPReadBuffer); err != nil {
		flog.Warnf("udp read buffer: %v", err)
	}
	if err := udp.SetWriteBuffer(s.cfg.Tuning.UDPWriteBuffer); err != nil {
		flog.Warnf("udp write buffer: %v", err)
	}
	s.ln = ln
	s.udp = udp

	s.wg.Add(4)
	go s.run()
	go s.acceptLoop()
	go s.pairingReadLoop()
	go s.udpWriteLoop()

	flog.Infof("listening on %s (tcp+udp)", ln.Addr())
	return nil
}

// Shutdown stops every session, empties the registry, closes both
// sockets and halts the event goroutine. Idempotent. After it returns
// no further bytes leave the server.
func (s *Server) Shutdown() {
	s.post(func(sv *Server) { sv.shutdown() })
	s.wg.Wait()
}

// Addr returns the bound stream address, for callers that configured
// port autoselection in tests.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// UDPAddr returns the bound datagram address.
func (s *Server) UDPAddr() net.Addr {
	if s.udp == nil {
		return nil
	}
	return s.udp.LocalAddr()
}

// SendNotification queues a server-initiated Response on one session.
// The request id is forced to the notification marker. Failures are
// absorbed; callers observe them as non-delivery.
func (s *Server) SendNotification(id ConnectionID, resp *protocol.Response) {
	resp.RequestID = protocol.NotificationID
	s.post(func(sv *Server) {
		sess, ok := sv.reg.lookup(id)
		if !ok {
			return
		}
		sess.enqueueResponse(resp)
		sess.startStreamWrite()
	})
}

// BroadcastNotification queues a notification on every session.
func (s *Server) BroadcastNotification(resp *protocol.Response) {
	resp.RequestID = protocol.NotificationID
	s.post(func(sv *Server) {
		sv.reg.each(func(sess *session) bool {
			sess.enqueueResponse(resp)
			sess.startStreamWrite()
			return true
		})
	})
}

// SendControllerDataFrame queues one telemetry frame for a session and
// gives the datagram scheduler a pass. The frame stays queued until
// the session has a paired peer; an unknown id is a no-op.
func (s *Server) SendControllerDataFrame(id ConnectionID, frame *protocol.ControllerDataFrame) {
	body := make([]byte, frame.EncodedSize())
	if err := frame.Encode(body); err != nil {
		flog.Errorf("connection %d: dropped data frame: %v", id, err)
		return
	}
	s.post(func(sv *Server) {
		sess, ok := sv.reg.lookup(id)
		if !ok || sess.stopped {
			return
		}
		sess.enqueueFrame(body)
		sv.scheduleDatagram()
	})
}

// post hands fn to the event goroutine. Posts after shutdown are
// dropped; every fn re-looks its session up by id, so a drop can only
// skip work on state that no longer exists.
func (s *Server) post(fn func(*Server)) {
	select {
	case s.events <- fn:
	case <-s.done:
	}
}

// run is the event goroutine: the sole owner of all sessions, the
// registry and the datagram arbitration state. Each wakeup drains a
// bounded batch of queued events before blocking again.
func (s *Server) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.events:
			fn(s)
			s.drainEvents()
		}
	}
}

func (s *Server) drainEvents() {
	for i := 1; i < maxDrainPerWake; i++ {
		select {
		case fn := <-s.events:
			fn(s)
		default:
			return
		}
	}
}

// acceptLoop arms the stream acceptor. An accept failure is terminal:
// it is logged and the acceptor is not re-armed.
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.AcceptTCP()
		if err != nil {
			if flog.WErr(err) != nil {
				flog.Errorf("accept failed: %v", err)
			}
			return
		}
		s.post(func(sv *Server) { sv.accept(conn) })
	}
}

func (s *Server) accept(conn net.Conn) {
	if s.down {
		conn.Close()
		return
	}
	sess := newSession(s.reg.nextConnID(), conn, s)
	s.reg.insert(sess)
	sess.start()
	flog.Infof("accepted connection %d from %s", sess.id, conn.RemoteAddr())
}

// udpWriteLoop is the single writer of the shared datagram socket.
func (s *Server) udpWriteLoop() {
	defer s.wg.Done()
	for snd := range s.udpSendCh {
		_, err := s.udp.WriteToUDP(snd.buf, snd.addr)
		s.post(func(sv *Server) { sv.completeDatagramWrite(snd.conn, err) })
	}
}

// dispatch invokes the request handler and queues its response. Runs
// on the event goroutine, so responses to one session keep request
// order.
func (s *Server) dispatch(id ConnectionID, req *protocol.Request) {
	sess, ok := s.reg.lookup(id)
	if !ok || sess.stopped {
		return
	}
	resp := s.handler.Handle(id, req)
	if resp == nil {
		return
	}
	sess.enqueueResponse(resp)
	sess.startStreamWrite()
}

// completeStreamWrite pops the front of the response queue and keeps
// the drain going. A write that failed, or that finished after its
// session stopped, ends here.
func (s *Server) completeStreamWrite(id ConnectionID, err error) {
	sess, ok := s.reg.lookup(id)
	if !ok || sess.stopped {
		return
	}
	sess.streamInflight = false
	if err != nil {
		flog.Errorf("connection %d stream write: %v", id, err)
		s.stopSession(sess)
		return
	}
	sess.respQ = sess.respQ[1:]
	sess.startStreamWrite()
}

func (s *Server) sessionReadFailed(id ConnectionID, err error) {
	sess, ok := s.reg.lookup(id)
	if !ok || sess.stopped {
		return
	}
	if flog.WErr(err) != nil {
		flog.Warnf("connection %d read: %v", id, err)
	} else {
		flog.Infof("connection %d disconnected", id)
	}
	s.stopSession(sess)
}

// stopSession terminates a session and removes it from the registry.
// In-flight completions that arrive later miss the lookup and return.
func (s *Server) stopSession(sess *session) {
	sess.stop()
	s.reg.remove(sess.id)
	if s.onDisconnect != nil {
		s.onDisconnect(sess.id)
	}
}

func (s *Server) shutdown() {
	if s.down {
		return
	}
	s.down = true
	if s.ln != nil {
		s.ln.Close()
	}
	s.reg.closeAll(func(sess *session) {
		if s.onDisconnect != nil {
			s.onDisconnect(sess.id)
		}
	})
	if s.udp != nil {
		s.udp.Close()
	}
	close(s.udpSendCh)
	close(s.done)
	flog.Infof("server shut down, %d log lines dropped", flog.Dropped())
}
