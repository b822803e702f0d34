package ads

import (
	"context"
	"encoding/binary"
	"io"
	"testing"
	"time"
)

func TestClient_ReadDeviceInfo(t *testing.T) {
	c, server := newPipedClient(t)

	go func() {
		req := readFrame(t, server)
		body := make([]byte, 20)
		body[0] = 3   // major
		body[1] = 1   // minor
		binary.LittleEndian.PutUint16(body[2:4], 4024)
		copy(body[4:], "TC3 PLC\x00")
		respondTo(t, server, req, ErrNoError, adsOKPayload(body))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	info, err := c.ReadDeviceInfo(ctx)
	if err != nil {
		t.Fatalf("ReadDeviceInfo: %v", err)
	}
	if info.MajorVersion != 3 || info.MinorVersion != 1 || info.BuildVersion != 4024 {
		t.Errorf("got %+v", info)
	}
	if info.DeviceName != "TC3 PLC" {
		t.Errorf("got device name %q", info.DeviceName)
	}
}

func TestClient_ReadState(t *testing.T) {
	c, server := newPipedClient(t)

	go func() {
		req := readFrame(t, server)
		body := make([]byte, 4)
		binary.LittleEndian.PutUint16(body[0:2], AdsStateRun)
		binary.LittleEndian.PutUint16(body[2:4], 0)
		respondTo(t, server, req, ErrNoError, adsOKPayload(body))
	}()

	st, err := c.ReadState(context.Background())
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if st.AdsState != AdsStateRun {
		t.Errorf("got AdsState %d", st.AdsState)
	}
}

func TestClient_DoRequest_AmsError(t *testing.T) {
	c, server := newPipedClient(t)

	go func() {
		req := readFrame(t, server)
		respondTo(t, server, req, ErrTargetPortNotFound, nil)
	}()

	_, err := c.ReadState(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	amsErr, ok := err.(*AmsError)
	if !ok {
		t.Fatalf("expected *AmsError, got %T: %v", err, err)
	}
	if amsErr.Code != ErrTargetPortNotFound {
		t.Errorf("got code 0x%04X", amsErr.Code)
	}
}

func TestClient_DoRequest_AdsPayloadError(t *testing.T) {
	c, server := newPipedClient(t)

	go func() {
		req := readFrame(t, server)
		errPayload := make([]byte, 4)
		binary.LittleEndian.PutUint32(errPayload, ErrDeviceSymbolNotFound)
		respondTo(t, server, req, ErrNoError, errPayload)
	}()

	_, err := c.ReadState(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	adsErr, ok := err.(*AdsError)
	if !ok {
		t.Fatalf("expected *AdsError, got %T: %v", err, err)
	}
	if adsErr.Code != ErrDeviceSymbolNotFound {
		t.Errorf("got code 0x%04X", adsErr.Code)
	}
}

func TestClient_DoRequest_Timeout(t *testing.T) {
	c, server := newPipedClient(t)
	defer server.Close()
	c.opts.timeoutDelay = 30 * time.Millisecond
	go func() { _, _ = io.Copy(io.Discard, server) }()

	// The request is read but no response is ever sent; the registry's
	// own timer must fire.
	_, err := c.ReadState(context.Background())
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if _, ok := err.(*TransportError); !ok {
		t.Errorf("expected *TransportError, got %T: %v", err, err)
	}
}

func TestClient_HandleFrame_StaleResponseEmitsClientError(t *testing.T) {
	c, server := newPipedClient(t)

	errCh := c.Events().Subscribe(EventClientError)

	respHeader := amsHeader{
		TargetNetId: LoopbackNetId, TargetPort: 12345,
		SourceNetId: c.targetAddr.NetId, SourcePort: c.targetAddr.Port,
		CommandId: CmdRead, StateFlags: StateAdsCommand | StateResponse,
		InvokeId: 999999, // never registered
	}
	frame := buildADSFrame(respHeader, adsOKPayload(nil))
	if _, err := server.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case e := <-errCh:
		payload, ok := e.Payload.(ClientErrorEvent)
		if !ok {
			t.Fatalf("got payload %#v", e.Payload)
		}
		if payload.Kind != "stale-response" {
			t.Errorf("got kind %q", payload.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a stale-response client error event")
	}
}

func TestClient_HandleFrame_DropsPacketAddressedElsewhere(t *testing.T) {
	c, server := newPipedClient(t)

	id, ch := c.registry.register(2 * time.Second)
	defer c.registry.evict(id, nil)

	respHeader := amsHeader{
		TargetNetId: AmsNetId{9, 9, 9, 9, 1, 1}, TargetPort: 54321, // not this client's local address
		SourceNetId: c.targetAddr.NetId, SourcePort: c.targetAddr.Port,
		CommandId: CmdRead, StateFlags: StateAdsCommand | StateResponse,
		InvokeId: id,
	}
	frame := buildADSFrame(respHeader, adsOKPayload(nil))
	if _, err := server.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-ch:
		t.Fatal("expected a misaddressed packet to be dropped, not delivered")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestClient_ReadWriteRaw(t *testing.T) {
	c, server := newPipedClient(t)

	go func() {
		req := readFrame(t, server)
		body := make([]byte, 8)
		binary.LittleEndian.PutUint32(body[0:4], 2)
		body[4], body[5] = 0xAB, 0xCD
		respondTo(t, server, req, ErrNoError, adsOKPayload(body))
	}()

	data, err := c.readWriteRaw(context.Background(), c.targetAddr, IndexGroupSymbolInfoByNameEx, 0, 0xFFFFFFFF, []byte("MAIN.x\x00"))
	if err != nil {
		t.Fatalf("readWriteRaw: %v", err)
	}
	if len(data) != 2 || data[0] != 0xAB || data[1] != 0xCD {
		t.Errorf("got %v", data)
	}
}
