package ads

import (
	"net"
	"testing"
	"time"
)

// newPipedClient builds a Client wired to one end of an in-memory
// net.Pipe, with the receive loop already running, bypassing Connect's
// router dial and port-registration handshake. Tests drive the other end
// of the pipe as a fake router/target, letting doRequest/receiveLoop/
// frameReader/requestRegistry/subscriptionManager all run for real.
func newPipedClient(t *testing.T) (*Client, net.Conn) {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	c := &Client{
		opts:       defaultOptions(),
		targetAddr: AmsAddress{NetId: AmsNetId{10, 0, 0, 1, 1, 1}, Port: 851},
		registry:   newRequestRegistry(),
		events:     NewEventBus(),
		stopRecv:   make(chan struct{}),
		recvDone:   make(chan struct{}),
		transport:  &transport{conn: clientConn},
	}
	c.localAddr = AmsAddress{NetId: LoopbackNetId, Port: 12345}
	c.subs = newSubscriptionManager(c)
	c.types = newTypeResolver(c)
	c.symbols = newSymbolResolver(c)
	c.portReg = newPortRegistrar(c)
	c.health = newHealthSupervisor(c)
	c.connected = true

	go c.receiveLoop()

	t.Cleanup(func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
	})

	return c, serverConn
}

// readFrame blocks until one complete AMS/TCP frame arrives on conn.
func readFrame(t *testing.T, conn net.Conn) tcpFrame {
	t.Helper()
	var fr frameReader
	buf := make([]byte, 4096)
	for {
		if f, ok := fr.Next(); ok {
			return f
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("readFrame: %v", err)
		}
		fr.Feed(buf[:n])
	}
}

// respondTo builds and writes the ADS response frame for a request frame
// previously obtained from readFrame, with the given ADS-level error code
// (usually ErrNoError) and payload.
func respondTo(t *testing.T, conn net.Conn, req tcpFrame, errorCode uint32, payload []byte) {
	t.Helper()
	reqHeader := decodeAMSHeader(req.Payload[:amsHeaderLen])
	respHeader := amsHeader{
		TargetNetId: reqHeader.SourceNetId,
		TargetPort:  reqHeader.SourcePort,
		SourceNetId: reqHeader.TargetNetId,
		SourcePort:  reqHeader.TargetPort,
		CommandId:   reqHeader.CommandId,
		StateFlags:  StateAdsCommand | StateResponse,
		ErrorCode:   errorCode,
		InvokeId:    reqHeader.InvokeId,
	}
	frame := buildADSFrame(respHeader, payload)
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("respondTo: write failed: %v", err)
	}
}

// adsOKPayload prepends the 4-byte zero error code ADS responses carry
// ahead of their command-specific body.
func adsOKPayload(body []byte) []byte {
	return append([]byte{0, 0, 0, 0}, body...)
}
