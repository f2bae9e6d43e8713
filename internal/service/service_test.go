package service

import (
	"testing"

	"movelink/internal/protocol"
	"movelink/internal/server"
)

func testService(t *testing.T) *Service {
	t.Helper()
	return New("0.9.0", NewSimSource(2))
}

func TestPing(t *testing.T) {
	svc := testService(t)
	resp := svc.Handle(0, &protocol.Request{RequestID: 1, Type: protocol.MPing})
	if resp.RequestID != 1 || resp.Type != protocol.MPing || resp.Result != protocol.ResultOK {
		t.Fatalf("bad response: %+v", resp)
	}
}

func TestServiceVersion(t *testing.T) {
	svc := testService(t)
	resp := svc.Handle(0, &protocol.Request{RequestID: 2, Type: protocol.MServiceVersion})
	if resp.Version != "0.9.0" {
		t.Fatalf("expected version 0.9.0, got %q", resp.Version)
	}
}

func TestControllerList(t *testing.T) {
	svc := testService(t)
	resp := svc.Handle(0, &protocol.Request{RequestID: 3, Type: protocol.MControllerList})
	if len(resp.Controllers) != 2 {
		t.Fatalf("expected 2 controllers, got %d", len(resp.Controllers))
	}
	if resp.Controllers[0].Kind != protocol.KindVirtual || !resp.Controllers[0].Connected {
		t.Fatalf("bad controller entry: %+v", resp.Controllers[0])
	}
}

func TestStartStreamSubscribes(t *testing.T) {
	svc := testService(t)
	resp := svc.Handle(4, &protocol.Request{RequestID: 1, Type: protocol.MStartDataStream, ControllerID: 1})
	if resp.Result != protocol.ResultOK {
		t.Fatalf("expected OK, got %d", resp.Result)
	}
	subs := svc.subscribers(1)
	if len(subs) != 1 || subs[0] != 4 {
		t.Fatalf("expected connection 4 subscribed, got %v", subs)
	}
}

func TestStartStreamUnknownController(t *testing.T) {
	svc := testService(t)
	resp := svc.Handle(0, &protocol.Request{RequestID: 1, Type: protocol.MStartDataStream, ControllerID: 9})
	if resp.Result != protocol.ResultNoSuchController {
		t.Fatalf("expected no-such-controller, got %d", resp.Result)
	}
	if len(svc.subscribers(9)) != 0 {
		t.Fatal("failed start must not subscribe")
	}
}

func TestStopStreamUnsubscribes(t *testing.T) {
	svc := testService(t)
	svc.Handle(4, &protocol.Request{RequestID: 1, Type: protocol.MStartDataStream, ControllerID: 0})
	svc.Handle(4, &protocol.Request{RequestID: 2, Type: protocol.MStopDataStream, ControllerID: 0})
	if len(svc.subscribers(0)) != 0 {
		t.Fatal("expected unsubscribed")
	}
}

func TestDisconnectDropsSubscriptions(t *testing.T) {
	svc := testService(t)
	svc.Handle(4, &protocol.Request{RequestID: 1, Type: protocol.MStartDataStream, ControllerID: 0})
	svc.Handle(4, &protocol.Request{RequestID: 2, Type: protocol.MStartDataStream, ControllerID: 1})
	svc.Handle(5, &protocol.Request{RequestID: 1, Type: protocol.MStartDataStream, ControllerID: 1})

	svc.OnDisconnect(4)

	if len(svc.subscribers(0)) != 0 {
		t.Fatal("controller 0 must lose its only subscriber")
	}
	subs := svc.subscribers(1)
	if len(subs) != 1 || subs[0] != 5 {
		t.Fatalf("controller 1 must keep connection 5, got %v", subs)
	}
}

func TestSetLED(t *testing.T) {
	svc := testService(t)
	resp := svc.Handle(0, &protocol.Request{RequestID: 1, Type: protocol.MSetLEDColor, ControllerID: 1, LED: [3]byte{0, 0xFF, 0}})
	if resp.Result != protocol.ResultOK {
		t.Fatalf("expected OK, got %d", resp.Result)
	}
	if svc.LED(1) != [3]byte{0, 0xFF, 0} {
		t.Fatalf("LED not stored: %v", svc.LED(1))
	}
}

func TestUnknownRequestType(t *testing.T) {
	svc := testService(t)
	resp := svc.Handle(0, &protocol.Request{RequestID: 1, Type: 0x77})
	if resp.Result != protocol.ResultUnknownRequest {
		t.Fatalf("expected unknown-request, got %d", resp.Result)
	}
	if resp.RequestID != 1 {
		t.Fatalf("response must echo the request id, got %d", resp.RequestID)
	}
}

func TestSeqMonotonicPerController(t *testing.T) {
	svc := testService(t)
	if svc.nextSeq(0) != 1 || svc.nextSeq(0) != 2 {
		t.Fatal("expected per-controller sequence 1,2")
	}
	if svc.nextSeq(1) != 1 {
		t.Fatal("controllers must not share sequences")
	}
}

func TestSimSourceSample(t *testing.T) {
	src := NewSimSource(1)
	var frame protocol.ControllerDataFrame
	if !src.Sample(0, &frame) {
		t.Fatal("expected sample for controller 0")
	}
	if src.Sample(3, &frame) {
		t.Fatal("expected miss for unknown controller")
	}
	if frame.EncodedSize() > protocol.MaxDataFrameMessageSize {
		t.Fatal("sim frame exceeds datagram budget")
	}
}

var _ server.Handler = (*Service)(nil)
var _ server.DisconnectObserver = (*Service)(nil)
