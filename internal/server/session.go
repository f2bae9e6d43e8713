package server

import (
	"io"
	"net"

	"movelink/internal/flog"
	"movelink/internal/pkg/buffer"
	"movelink/internal/protocol"
)

// session is the server-side state of one connected client: the TCP
// stream, the paired datagram endpoint once the client completes the
// handshake, and one FIFO per transport. All fields are owned by the
// server's event goroutine; the reader and writer goroutines never
// touch them, they only move bytes and post completions by id.
type session struct {
	id   ConnectionID
	srv  *Server
	conn net.Conn

	peer *net.UDPAddr // nil until paired

	respQ  [][]byte // encoded response bodies awaiting stream transmission
	frameQ [][]byte // encoded data frame bodies awaiting datagram transmission

	streamInflight bool
	udpInflight    bool
	stopped        bool

	writeCh chan []byte // framed bytes handed to the stream writer

	streamOut []byte // scratch for the framed front of respQ
	frameOut  []byte // scratch for the framed front of frameQ
}

func newSession(id ConnectionID, conn net.Conn, srv *Server) *session {
	return &session{
		id:   id,
		srv:  srv,
		conn: conn,
		// capacity 1 matches the single in-flight write invariant, so
		// handing off the front of the queue can never block the loop
		writeCh: make(chan []byte, 1),
	}
}

// start queues the ConnectionInfo greeting and begins the read loop.
// The client echoes the id from the greeting over UDP to pair.
func (sess *session) start() {
	sess.enqueueResponse(protocol.ConnectionInfo(int32(sess.id)))
	sess.startStreamWrite()
	go sess.streamWriteLoop()
	go sess.readLoop()
}

// stop is idempotent and terminal: the stream socket is closed exactly
// once, in-flight flags are cleared, and every later enqueue or
// completion against this session is a no-op.
func (sess *session) stop() {
	if sess.stopped {
		return
	}
	sess.stopped = true
	sess.streamInflight = false
	sess.udpInflight = false
	if err := sess.conn.Close(); flog.WErr(err) != nil {
		flog.Errorf("connection %d close: %v", sess.id, err)
	}
	// only the event goroutine sends on writeCh and it is the caller
	// here, so closing is safe; the writer drains and exits
	close(sess.writeCh)
}

// bindPeer sets the datagram sink for this session. A re-pair from a
// new address (e.g. after NAT rebind) overwrites the endpoint in
// place; queued frames are kept and flow to the new peer.
func (sess *session) bindPeer(peer *net.UDPAddr) {
	sess.peer = peer
}

func (sess *session) enqueueResponse(resp *protocol.Response) {
	if sess.stopped {
		return
	}
	body := make([]byte, resp.EncodedSize())
	if err := resp.Encode(body); err != nil {
		flog.Errorf("connection %d: dropped response type 0x%02x: %v", sess.id, resp.Type, err)
		return
	}
	if len(body) > protocol.MaxMessageSize {
		flog.Errorf("connection %d: dropped %d-byte response (limit %d)", sess.id, len(body), protocol.MaxMessageSize)
		return
	}
	sess.respQ = append(sess.respQ, body)
}

// startStreamWrite frames the front of the response queue and hands it
// to the writer. Reports whether a stream write is in flight after the
// call. The queue drains one message at a time: each completion pops
// the front and calls this again.
func (sess *session) startStreamWrite() bool {
	if sess.stopped || sess.streamInflight || len(sess.respQ) == 0 {
		return sess.streamInflight
	}
	body := sess.respQ[0]
	need := protocol.HeaderSize + len(body)
	if cap(sess.streamOut) < need {
		sess.streamOut = make([]byte, need)
	}
	out := sess.streamOut[:need]
	protocol.EncodeHeader(out, len(body))
	copy(out[protocol.HeaderSize:], body)
	sess.streamInflight = true
	sess.writeCh <- out
	return true
}

func (sess *session) enqueueFrame(body []byte) {
	if sess.stopped {
		return
	}
	sess.frameQ = append(sess.frameQ, body)
}

// startDatagramWrite submits the front of the frame queue on the
// shared datagram socket. Reports whether this session now has a send
// in flight. The session never calls this on its own schedule; the
// driver arbitrates datagram writes across all sessions.
//
// A front that cannot fit in one packet is logged and dropped, never
// fragmented; the scheduler moves on and retries the advanced queue on
// a later pass.
func (sess *session) startDatagramWrite() bool {
	if sess.stopped || sess.udpInflight || sess.peer == nil || len(sess.frameQ) == 0 {
		return sess.udpInflight
	}
	body := sess.frameQ[0]
	if len(body) > protocol.MaxDataFrameMessageSize {
		flog.Warnf("connection %d: dropped %d-byte data frame (limit %d)", sess.id, len(body), protocol.MaxDataFrameMessageSize)
		sess.frameQ = sess.frameQ[1:]
		return false
	}
	need := protocol.HeaderSize + len(body)
	if cap(sess.frameOut) < need {
		sess.frameOut = make([]byte, need)
	}
	out := sess.frameOut[:need]
	protocol.EncodeHeader(out, len(body))
	copy(out[protocol.HeaderSize:], body)
	sess.udpInflight = true
	sess.srv.udpSendCh <- udpSend{buf: out, addr: sess.peer, conn: sess.id}
	return true
}

// streamWriteLoop performs the blocking writes the event goroutine
// must not. One buffer in, one completion out; the completion carries
// the id, never the session, so a write finishing after stop() finds
// nothing to touch.
func (sess *session) streamWriteLoop() {
	id, conn, srv := sess.id, sess.conn, sess.srv
	for buf := range sess.writeCh {
		_, err := conn.Write(buf)
		srv.post(func(s *Server) { s.completeStreamWrite(id, err) })
	}
}

// readLoop runs the inbound half of the stream state machine:
// header, body, dispatch, repeat. Any framing or I/O error is fatal
// for the session. The next header read starts only after the event
// goroutine has dispatched the current request.
func (sess *session) readLoop() {
	id, conn, srv := sess.id, sess.conn, sess.srv

	bodyp := buffer.SPool.Get().(*[]byte)
	defer buffer.SPool.Put(bodyp)
	body := *bodyp

	var header [protocol.HeaderSize]byte
	for {
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			srv.post(func(s *Server) { s.sessionReadFailed(id, err) })
			return
		}
		n, err := protocol.DecodeHeader(header[:])
		if err != nil {
			srv.post(func(s *Server) { s.sessionReadFailed(id, err) })
			return
		}
		if _, err := io.ReadFull(conn, body[:n]); err != nil {
			srv.post(func(s *Server) { s.sessionReadFailed(id, err) })
			return
		}

		req := new(protocol.Request)
		if err := req.Decode(body[:n]); err != nil {
			srv.post(func(s *Server) { s.sessionReadFailed(id, err) })
			return
		}

		done := make(chan struct{})
		srv.post(func(s *Server) {
			s.dispatch(id, req)
			close(done)
		})
		select {
		case <-done:
		case <-srv.done:
			return
		}
	}
}
