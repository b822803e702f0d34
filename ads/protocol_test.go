package ads

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeDecodeAMSHeaderRoundTrip(t *testing.T) {
	h := amsHeader{
		TargetNetId: AmsNetId{10, 20, 30, 40, 1, 1},
		TargetPort:  PortTC3PLC1,
		SourceNetId: LoopbackNetId,
		SourcePort:  32905,
		CommandId:   CmdReadWrite,
		StateFlags:  StateAdsCommand | StateResponse,
		DataLength:  17,
		ErrorCode:   ErrDeviceSymbolNotFound,
		InvokeId:    0xDEADBEEF,
	}

	buf := encodeAMSHeader(h)
	if len(buf) != amsHeaderLen {
		t.Fatalf("got header length %d, want %d", len(buf), amsHeaderLen)
	}

	got := decodeAMSHeader(buf)
	if got != h {
		t.Errorf("got %+v, want %+v", got, h)
	}
}

func TestBuildTCPFrame(t *testing.T) {
	payload := []byte{1, 2, 3}
	buf := buildTCPFrame(tcpCmdPortConnect, payload)

	if len(buf) != tcpHeaderLen+len(payload) {
		t.Fatalf("got length %d", len(buf))
	}
	if binary.LittleEndian.Uint16(buf[0:2]) != tcpCmdPortConnect {
		t.Errorf("got command %d", binary.LittleEndian.Uint16(buf[0:2]))
	}
	if binary.LittleEndian.Uint32(buf[2:6]) != uint32(len(payload)) {
		t.Errorf("got length field %d", binary.LittleEndian.Uint32(buf[2:6]))
	}
	if !bytes.Equal(buf[6:], payload) {
		t.Errorf("got body %v", buf[6:])
	}
}

func TestBuildTCPFrame_NilPayload(t *testing.T) {
	buf := buildTCPFrame(tcpCmdGetLocalNetID, nil)
	if len(buf) != tcpHeaderLen {
		t.Errorf("got length %d, want %d", len(buf), tcpHeaderLen)
	}
	if binary.LittleEndian.Uint32(buf[2:6]) != 0 {
		t.Error("expected zero length field for nil payload")
	}
}
