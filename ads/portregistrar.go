package ads

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// portRegistrar registers and unregisters the Client's local ADS port
// with the local AMS router, per spec.md §4.5. In "bypass mode" (a fixed
// local address was supplied via WithLocalAddress) both steps are
// skipped.
type portRegistrar struct {
	client *Client

	mu      sync.Mutex
	pending chan []byte
}

func newPortRegistrar(c *Client) *portRegistrar {
	return &portRegistrar{client: c}
}

// register sends PORT_CONNECT{requestedPort} and waits for the router to
// assign a local AmsNetId+port, unless bypass mode is active.
func (r *portRegistrar) register(ctx context.Context) error {
	c := r.client

	if c.opts.localAmsNetId != nil {
		c.mu.Lock()
		c.localAddr = AmsAddress{NetId: *c.opts.localAmsNetId, Port: c.opts.localAdsPort}
		c.mu.Unlock()
		return nil
	}

	req := make([]byte, 2)
	binary.LittleEndian.PutUint16(req, c.opts.localAdsPort)
	frame := buildTCPFrame(tcpCmdPortConnect, req)

	ch := make(chan []byte, 1)
	r.mu.Lock()
	r.pending = ch
	r.mu.Unlock()

	if err := c.transport.write(frame); err != nil {
		return &TransportError{Message: "port register write failed", Err: err}
	}

	select {
	case resp := <-ch:
		if len(resp) < 8 {
			return fmt.Errorf("ads: short PORT_CONNECT response (%d bytes)", len(resp))
		}
		var netID AmsNetId
		copy(netID[:], resp[0:6])
		port := binary.LittleEndian.Uint16(resp[6:8])

		c.mu.Lock()
		c.localAddr = AmsAddress{NetId: netID, Port: port}
		c.mu.Unlock()
		return nil
	case <-time.After(c.opts.timeoutDelay):
		return &TransportError{Message: "port register timeout"}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleResponse delivers a PORT_CONNECT response frame to whoever is
// waiting in register.
func (r *portRegistrar) handleResponse(payload []byte) {
	r.mu.Lock()
	ch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if ch != nil {
		ch <- payload
	}
}

// unregister sends PORT_CLOSE{port} and returns once the frame is
// written. It does not wait for the router to close the socket or send
// EOF; Client.Close closes the socket itself right after.
func (r *portRegistrar) unregister(ctx context.Context) error {
	c := r.client
	if c.opts.localAmsNetId != nil {
		return nil // bypass mode: nothing was registered.
	}
	c.mu.RLock()
	port := c.localAddr.Port
	c.mu.RUnlock()
	if port == 0 {
		return nil
	}

	req := make([]byte, 2)
	binary.LittleEndian.PutUint16(req, port)
	frame := buildTCPFrame(tcpCmdPortClose, req)
	return c.transport.write(frame)
}
