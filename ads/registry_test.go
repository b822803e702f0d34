package ads

import (
	"testing"
	"time"
)

func TestRequestRegistry_RegisterAssignsUniqueIDs(t *testing.T) {
	r := newRequestRegistry()
	seen := make(map[uint32]bool)
	for i := 0; i < 5; i++ {
		id, _ := r.register(time.Second)
		if id == 0 {
			t.Fatal("invoke-id 0 must never be assigned")
		}
		if seen[id] {
			t.Fatalf("duplicate invoke-id %d", id)
		}
		seen[id] = true
	}
}

func TestRequestRegistry_DeliverMatchesPending(t *testing.T) {
	r := newRequestRegistry()
	id, ch := r.register(time.Second)

	h := amsHeader{InvokeId: id, CommandId: CmdRead}
	payload := []byte{1, 2, 3}

	if !r.deliver(id, h, payload) {
		t.Fatal("expected deliver to match the pending request")
	}

	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("unexpected error: %v", res.err)
		}
		if res.header.InvokeId != id {
			t.Errorf("got invoke-id %d, want %d", res.header.InvokeId, id)
		}
		if len(res.payload) != 3 {
			t.Errorf("got payload len %d, want 3", len(res.payload))
		}
	default:
		t.Fatal("expected a result on the channel")
	}
}

func TestRequestRegistry_DeliverUnknownID(t *testing.T) {
	r := newRequestRegistry()
	if r.deliver(999, amsHeader{}, nil) {
		t.Error("expected deliver to report false for an unregistered invoke-id")
	}
}

func TestRequestRegistry_DeliverIsOneShot(t *testing.T) {
	r := newRequestRegistry()
	id, _ := r.register(time.Second)

	if !r.deliver(id, amsHeader{InvokeId: id}, nil) {
		t.Fatal("first deliver should succeed")
	}
	if r.deliver(id, amsHeader{InvokeId: id}, nil) {
		t.Error("second deliver for the same invoke-id must fail: already consumed")
	}
}

func TestRequestRegistry_TimeoutEvicts(t *testing.T) {
	r := newRequestRegistry()
	_, ch := r.register(20 * time.Millisecond)

	select {
	case res := <-ch:
		if res.err == nil {
			t.Fatal("expected a timeout error")
		}
		if _, ok := res.err.(*TransportError); !ok {
			t.Errorf("expected *TransportError, got %T", res.err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the registry's own timeout to fire")
	}
}

func TestRequestRegistry_Teardown(t *testing.T) {
	r := newRequestRegistry()
	_, ch1 := r.register(time.Minute)
	_, ch2 := r.register(time.Minute)

	r.teardown(&TransportError{Message: "connection closed"})

	for _, ch := range []chan frameResult{ch1, ch2} {
		select {
		case res := <-ch:
			if res.err == nil {
				t.Error("expected teardown to deliver an error")
			}
		default:
			t.Error("expected teardown to resolve every pending request immediately")
		}
	}

	// A registry torn down must still accept fresh registrations.
	id, ch3 := r.register(time.Second)
	if !r.deliver(id, amsHeader{InvokeId: id}, []byte{7}) {
		t.Fatal("expected registry to remain usable after teardown")
	}
	res := <-ch3
	if len(res.payload) != 1 || res.payload[0] != 7 {
		t.Errorf("got payload %v", res.payload)
	}
}
