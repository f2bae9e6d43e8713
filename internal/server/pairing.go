package server

import (
	"encoding/binary"
	"net"

	"movelink/internal/flog"
	"movelink/internal/pkg/buffer"
)

// The pairing handshake and telemetry push interleave on the one
// datagram socket. A client sends the ConnectionId from its stream
// greeting as a bare big-endian int32; the server replies with a
// single byte, accepted or rejected, and from then on that source
// address is the session's telemetry sink.
const (
	pairingRequestSize = 4

	pairingRejected byte = 0x00
	pairingAccepted byte = 0x01
)

type pairingAck struct {
	peer     *net.UDPAddr
	accepted bool
}

// pairingReadLoop keeps the WAIT_ID read armed for the life of the
// socket. Read errors are logged and the read re-arms; only socket
// closure ends the loop. Datagrams that are not exactly one int32 are
// dropped without a reply so a stray oversized packet cannot truncate
// into a plausible id.
func (s *Server) pairingReadLoop() {
	defer s.wg.Done()

	bufp := buffer.DPool.Get().(*[]byte)
	defer buffer.DPool.Put(bufp)
	buf := *bufp

	for {
		n, addr, err := s.udp.ReadFromUDP(buf)
		if err != nil {
			if flog.WErr(err) == nil {
				return
			}
			flog.Warnf("pairing read: %v", err)
			continue
		}
		if n != pairingRequestSize {
			flog.Debugf("pairing: dropped %d-byte datagram from %s", n, addr)
			continue
		}
		id := ConnectionID(int32(binary.BigEndian.Uint32(buf[:pairingRequestSize])))
		s.post(func(sv *Server) { sv.pair(id, addr) })
	}
}

// pair binds the datagram endpoint to the session that owns id, or
// queues a rejection when no such session is registered. Either way a
// one-byte verdict goes back to the peer, serialized with telemetry on
// the shared socket.
func (s *Server) pair(id ConnectionID, peer *net.UDPAddr) {
	sess, ok := s.reg.lookup(id)
	accepted := ok && !sess.stopped
	if accepted {
		sess.bindPeer(peer)
		flog.Infof("paired connection %d with %s", id, peer)
	} else {
		flog.Warnf("pairing rejected for unknown connection %d from %s", id, peer)
	}
	s.ackQ = append(s.ackQ, pairingAck{peer: peer, accepted: accepted})
	s.scheduleDatagram()
}

// scheduleDatagram starts at most one datagram send: the shared socket
// is single-writer, so a pass ends the moment anything is in flight.
// Pending pairing acks go first; telemetry then follows registry
// order, which means an always-full early session can shade later ones
// until its queue drains. The policy is plain registry order, no
// rotating cursor.
func (s *Server) scheduleDatagram() {
	if s.udpBusy || s.down {
		return
	}
	if len(s.ackQ) > 0 {
		ack := s.ackQ[0]
		verdict := pairingRejected
		if ack.accepted {
			verdict = pairingAccepted
		}
		s.udpBusy = true
		s.udpSendCh <- udpSend{buf: []byte{verdict}, addr: ack.peer, conn: pairingSend}
		return
	}
	s.reg.each(func(sess *session) bool {
		if sess.startDatagramWrite() {
			s.udpBusy = true
			return false
		}
		return true
	})
}

// completeDatagramWrite is the single point where the process-wide
// in-flight send clears; it immediately schedules the next one, so a
// fast socket drains queues continuously.
func (s *Server) completeDatagramWrite(conn ConnectionID, err error) {
	s.udpBusy = false

	if conn == pairingSend {
		if len(s.ackQ) > 0 {
			s.ackQ = s.ackQ[1:]
		}
		if err != nil {
			flog.Warnf("pairing ack send: %v", err)
		}
		s.scheduleDatagram()
		return
	}

	sess, ok := s.reg.lookup(conn)
	if !ok || sess.stopped {
		s.scheduleDatagram()
		return
	}
	sess.udpInflight = false
	if err != nil {
		flog.Errorf("connection %d datagram send: %v", conn, err)
		s.stopSession(sess)
	} else {
		sess.frameQ = sess.frameQ[1:]
	}
	s.scheduleDatagram()
}
