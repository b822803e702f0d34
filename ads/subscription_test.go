package ads

import (
	"context"
	"encoding/binary"
	"testing"
	"time"
)

// buildNotificationPayload assembles one CmdDeviceNotification body: a
// length-prefixed stamp header followed by one stamp with one sample,
// matching subscriptionManager.dispatch's expected wire layout.
func buildNotificationPayload(handle uint32, filetime uint64, data []byte) []byte {
	sample := make([]byte, 8+len(data))
	binary.LittleEndian.PutUint32(sample[0:4], handle)
	binary.LittleEndian.PutUint32(sample[4:8], uint32(len(data)))
	copy(sample[8:], data)

	stamp := make([]byte, 12+len(sample))
	binary.LittleEndian.PutUint64(stamp[0:8], filetime)
	binary.LittleEndian.PutUint32(stamp[8:12], 1) // sampleCount
	copy(stamp[12:], sample)

	body := make([]byte, 4+len(stamp))
	binary.LittleEndian.PutUint32(body[0:4], 1) // stampCount
	copy(body[4:], stamp)

	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(body)))
	copy(out[4:], body)
	return out
}

func TestSubscriptionManager_DispatchDeliversToMatchingHandler(t *testing.T) {
	m := newSubscriptionManager(nil)
	got := make(chan NotificationSample, 1)
	m.subs[1] = &subscription{handle: 42, handler: func(s NotificationSample) { got <- s }}

	payload := buildNotificationPayload(42, unixMillisToFiletime(time.Now().UnixMilli()), []byte{1, 2, 3})
	m.dispatch(payload)

	select {
	case s := <-got:
		if s.Handle != 42 || len(s.Data) != 3 {
			t.Errorf("got %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestSubscriptionManager_DispatchDecodesTypedValue(t *testing.T) {
	c, _ := newPipedClient(t)
	got := make(chan NotificationSample, 1)
	sym := SymbolInfo{Name: "MAIN.nCounter", TypeName: "DINT"}
	dint := &ResolvedType{Name: "DINT", Tag: TypeInt32, Size: 4}
	c.subs.subs[1] = &subscription{handle: 7, handler: func(s NotificationSample) { got <- s }, valueType: dint, symbol: &sym}

	payload := buildNotificationPayload(7, unixMillisToFiletime(time.Now().UnixMilli()), []byte{42, 0, 0, 0})
	c.subs.dispatch(payload)

	select {
	case s := <-got:
		if v, ok := s.Value.(int32); !ok || v != 42 {
			t.Errorf("got value %#v", s.Value)
		}
		if s.Type != dint {
			t.Errorf("got type %+v", s.Type)
		}
		if s.Symbol == nil || s.Symbol.Name != "MAIN.nCounter" {
			t.Errorf("got symbol %+v", s.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestSubscriptionManager_DispatchIgnoresUnknownHandle(t *testing.T) {
	m := newSubscriptionManager(nil)
	called := false
	m.subs[1] = &subscription{handle: 1, handler: func(NotificationSample) { called = true }}

	payload := buildNotificationPayload(999, 0, []byte{1})
	m.dispatch(payload)

	if called {
		t.Error("handler for a different handle must not be invoked")
	}
}

func TestSubscriptionManager_DispatchTruncatedPayload(t *testing.T) {
	m := newSubscriptionManager(nil)
	called := false
	m.subs[1] = &subscription{handle: 1, handler: func(NotificationSample) { called = true }}

	// Too short to even contain the outer length field.
	m.dispatch([]byte{1, 2})
	if called {
		t.Error("handler must not be invoked for a malformed payload")
	}
}

func TestSubscriptionManager_QuarantineAndRecreate(t *testing.T) {
	c, server := newPipedClient(t)

	go func() {
		req := readFrame(t, server)
		body := make([]byte, 4)
		binary.LittleEndian.PutUint32(body[0:4], 77) // notification handle
		respondTo(t, server, req, ErrNoError, adsOKPayload(body))
	}()

	id, err := c.subs.subscribe(context.Background(), 0xF004, 0, 1, TransmissionOnChange, 0, 200*time.Millisecond, func(NotificationSample) {}, nil, nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	c.subs.quarantine()
	c.subs.mu.Lock()
	sub := c.subs.subs[id]
	c.subs.mu.Unlock()
	if sub.created {
		t.Fatal("expected quarantine to mark the subscription not-created")
	}

	go func() {
		req := readFrame(t, server)
		body := make([]byte, 4)
		binary.LittleEndian.PutUint32(body[0:4], 78)
		respondTo(t, server, req, ErrNoError, adsOKPayload(body))
	}()

	if err := c.subs.recreateAll(context.Background()); err != nil {
		t.Fatalf("recreateAll: %v", err)
	}
	c.subs.mu.Lock()
	sub = c.subs.subs[id]
	c.subs.mu.Unlock()
	if !sub.created || sub.handle != 78 {
		t.Errorf("got %+v", sub)
	}
}

func TestSubscriptionManager_Unsubscribe(t *testing.T) {
	c, server := newPipedClient(t)

	go func() {
		req := readFrame(t, server)
		body := make([]byte, 4)
		binary.LittleEndian.PutUint32(body[0:4], 5)
		respondTo(t, server, req, ErrNoError, adsOKPayload(body))

		req = readFrame(t, server)
		respondTo(t, server, req, ErrNoError, adsOKPayload(nil))
	}()

	id, err := c.subs.subscribe(context.Background(), 1, 2, 3, TransmissionCyclic, 0, 0, nil, nil, nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := c.subs.unsubscribe(context.Background(), id); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	c.subs.mu.Lock()
	_, stillPresent := c.subs.subs[id]
	c.subs.mu.Unlock()
	if stillPresent {
		t.Error("expected the subscription to be gone after unsubscribe")
	}
}

func TestSubscriptionManager_UnsubscribeUnknownID(t *testing.T) {
	m := newSubscriptionManager(nil)
	if err := m.unsubscribe(context.Background(), 42); err == nil {
		t.Error("expected an error for an unknown subscription id")
	}
}
