package ads

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func makeTCPFrame(command uint16, payload []byte) []byte {
	buf := make([]byte, tcpHeaderLen+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], command)
	binary.LittleEndian.PutUint32(buf[2:6], uint32(len(payload)))
	copy(buf[6:], payload)
	return buf
}

func TestFrameReader_SingleFrame(t *testing.T) {
	var r frameReader
	payload := []byte{1, 2, 3, 4}
	r.Feed(makeTCPFrame(tcpCmdADS, payload))

	f, ok := r.Next()
	if !ok {
		t.Fatal("expected a complete frame")
	}
	if f.Command != tcpCmdADS {
		t.Errorf("got command %d", f.Command)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Errorf("got payload %v, want %v", f.Payload, payload)
	}

	if _, ok := r.Next(); ok {
		t.Error("expected no further frames")
	}
}

func TestFrameReader_PartialThenComplete(t *testing.T) {
	var r frameReader
	payload := []byte{9, 8, 7, 6, 5}
	full := makeTCPFrame(tcpCmdADS, payload)

	r.Feed(full[:3])
	if _, ok := r.Next(); ok {
		t.Fatal("expected no frame from a partial header")
	}

	r.Feed(full[3:8])
	if _, ok := r.Next(); ok {
		t.Fatal("expected no frame while payload is still incomplete")
	}

	r.Feed(full[8:])
	f, ok := r.Next()
	if !ok {
		t.Fatal("expected a complete frame once all bytes arrive")
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Errorf("got payload %v, want %v", f.Payload, payload)
	}
}

func TestFrameReader_MultipleFramesInOneFeed(t *testing.T) {
	var r frameReader
	first := makeTCPFrame(tcpCmdADS, []byte{1})
	second := makeTCPFrame(tcpCmdPortConnect, []byte{2, 2})

	r.Feed(append(append([]byte{}, first...), second...))

	f1, ok := r.Next()
	if !ok || f1.Command != tcpCmdADS || !bytes.Equal(f1.Payload, []byte{1}) {
		t.Fatalf("unexpected first frame: %+v ok=%v", f1, ok)
	}
	f2, ok := r.Next()
	if !ok || f2.Command != tcpCmdPortConnect || !bytes.Equal(f2.Payload, []byte{2, 2}) {
		t.Fatalf("unexpected second frame: %+v ok=%v", f2, ok)
	}
	if _, ok := r.Next(); ok {
		t.Error("expected buffer drained")
	}
}

func TestFrameReader_EmptyPayload(t *testing.T) {
	var r frameReader
	r.Feed(makeTCPFrame(tcpCmdPortClose, nil))
	f, ok := r.Next()
	if !ok {
		t.Fatal("expected a complete zero-payload frame")
	}
	if len(f.Payload) != 0 {
		t.Errorf("expected empty payload, got %v", f.Payload)
	}
}

func TestBuildADSFrameRoundTrip(t *testing.T) {
	h := amsHeader{
		TargetNetId: AmsNetId{1, 2, 3, 4, 5, 6},
		TargetPort:  851,
		SourceNetId: LoopbackNetId,
		SourcePort:  12345,
		CommandId:   CmdRead,
		StateFlags:  StateAdsCommand,
		InvokeId:    42,
	}
	payload := []byte{0xAA, 0xBB, 0xCC}

	raw := buildADSFrame(h, payload)

	var r frameReader
	r.Feed(raw)
	f, ok := r.Next()
	if !ok {
		t.Fatal("expected a complete frame")
	}
	if f.Command != tcpCmdADS {
		t.Fatalf("got command %d, want tcpCmdADS", f.Command)
	}

	got := decodeAMSHeader(f.Payload[:amsHeaderLen])
	if got.TargetNetId != h.TargetNetId || got.TargetPort != h.TargetPort {
		t.Errorf("target mismatch: got %+v", got)
	}
	if got.InvokeId != h.InvokeId || got.CommandId != h.CommandId {
		t.Errorf("header fields mismatch: got %+v", got)
	}
	if got.DataLength != uint32(len(payload)) {
		t.Errorf("got DataLength %d, want %d", got.DataLength, len(payload))
	}
	if !bytes.Equal(f.Payload[amsHeaderLen:], payload) {
		t.Errorf("got body %v, want %v", f.Payload[amsHeaderLen:], payload)
	}
}

func TestHasState(t *testing.T) {
	h := amsHeader{StateFlags: StateAdsCommand | StateResponse}
	if !hasState(h, StateAdsCommand) {
		t.Error("expected StateAdsCommand set")
	}
	if !hasState(h, StateResponse) {
		t.Error("expected StateResponse set")
	}
	if hasState(h, StateUDP) {
		t.Error("expected StateUDP unset")
	}
	if !hasState(h, StateAdsCommand|StateResponse) {
		t.Error("expected combined mask to match when both bits set")
	}
}

func TestFiletimeConversionRoundTrip(t *testing.T) {
	unixMillis := int64(1700000000000)
	ft := unixMillisToFiletime(unixMillis)
	back := filetimeToUnixMillis(ft)
	if back != unixMillis {
		t.Errorf("got %d, want %d", back, unixMillis)
	}
}
