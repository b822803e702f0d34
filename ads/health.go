package ads

import (
	"context"
	"sync"
	"time"

	"github.com/jisotalo/ads-client/logging"
)

// healthSupervisor polls the target's ADS state, watches for router
// notifications (local service start/stop) and symbol-version changes,
// and drives the reconnect loop after a connection loss. Grounded on
// spec.md §4.11.
type healthSupervisor struct {
	client *Client

	mu           sync.Mutex
	stopPoll     chan struct{}
	pollDone     chan struct{}
	lastSymVer   uint8
	haveSymVer   bool

	reconnecting bool
}

func newHealthSupervisor(c *Client) *healthSupervisor {
	return &healthSupervisor{client: c}
}

// start launches the system-state poller goroutine.
func (h *healthSupervisor) start() {
	h.mu.Lock()
	if h.stopPoll != nil {
		h.mu.Unlock()
		return // already running
	}
	h.stopPoll = make(chan struct{})
	h.pollDone = make(chan struct{})
	stop := h.stopPoll
	done := h.pollDone
	h.mu.Unlock()

	go h.pollLoop(stop, done)
}

// stop halts the poller and waits for it to exit.
func (h *healthSupervisor) stop() {
	h.mu.Lock()
	stop := h.stopPoll
	done := h.pollDone
	h.stopPoll = nil
	h.pollDone = nil
	h.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (h *healthSupervisor) pollLoop(stop, done chan struct{}) {
	defer close(done)
	c := h.client

	ticker := time.NewTicker(c.opts.checkStateInterval)
	defer ticker.Stop()

	var consecutiveFailures int
	downThreshold := int(c.opts.connectionDownDelay / c.opts.checkStateInterval)
	if downThreshold < 1 {
		downThreshold = 1
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !c.IsConnected() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), c.opts.timeoutDelay)
			state, err := c.readStateFrom(ctx, c.targetAddr)
			cancel()
			if err != nil {
				consecutiveFailures++
				if consecutiveFailures >= downThreshold {
					c.onTransportDown(err)
					return
				}
				continue
			}
			consecutiveFailures = 0
			c.events.Publish(Event{Type: EventPLCRuntimeStateChange, Timestamp: time.Now(), Payload: state})

			if !c.opts.disableSymbolVersionMonitor {
				h.checkSymbolVersion(ctx)
			}
		}
	}
}

// checkSymbolVersion reads the target's SymbolVersion index group and
// publishes EventSymbolVersionChange (plus clears the type/symbol
// caches) whenever it changes, per spec.md §4.11.
func (h *healthSupervisor) checkSymbolVersion(ctx context.Context) {
	c := h.client
	raw, err := c.readRaw(ctx, c.targetAddr, IndexGroupSymbolVersion, 0, 1)
	if err != nil || len(raw) < 1 {
		return
	}
	ver := raw[0]

	h.mu.Lock()
	changed := h.haveSymVer && h.lastSymVer != ver
	h.lastSymVer = ver
	h.haveSymVer = true
	h.mu.Unlock()

	if changed {
		c.types.reset()
		c.symbols.reset()
		c.events.Publish(Event{Type: EventSymbolVersionChange, Timestamp: time.Now(), Payload: ver})
	}
}

// handleRouterNote processes an unsolicited ROUTERNOTE frame (e.g. the
// local TwinCAT service stopping/starting), publishing
// EventRouterStateChange and, on a stop, triggering reconnect handling.
func (h *healthSupervisor) handleRouterNote(payload []byte) {
	c := h.client
	var state uint32
	if len(payload) >= 4 {
		state = uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16 | uint32(payload[3])<<24
	}
	c.events.Publish(Event{Type: EventRouterStateChange, Timestamp: time.Now(), Payload: state})

	const routerStateStop = 0
	if state == routerStateStop {
		c.onTransportDown(errRouterStopped)
	}
}

var errRouterStopped = &TransportError{Message: "local AMS router reported stopped state"}

// triggerReconnect starts (if not already running) the background loop
// that redials the router on opts.reconnectInterval until it succeeds,
// then recreates quarantined subscriptions, per spec.md §4.8/§4.11.
func (h *healthSupervisor) triggerReconnect() {
	h.mu.Lock()
	if h.reconnecting {
		h.mu.Unlock()
		return
	}
	h.reconnecting = true
	h.mu.Unlock()

	c := h.client
	c.subs.quarantine()

	go func() {
		defer func() {
			h.mu.Lock()
			h.reconnecting = false
			h.mu.Unlock()
		}()

		for {
			ctx, cancel := context.WithTimeout(context.Background(), c.opts.timeoutDelay)
			err := c.connect(ctx)
			cancel()
			if err == nil {
				logging.DebugConnectSuccess("ads", c.targetAddr.String(), "reconnected")
				c.events.Publish(Event{Type: EventReconnect, Timestamp: time.Now()})
				recoverCtx, recoverCancel := context.WithTimeout(context.Background(), c.opts.timeoutDelay)
				_ = c.subs.recreateAll(recoverCtx)
				recoverCancel()
				return
			}
			logging.DebugConnectError("ads", c.targetAddr.String(), err)
			time.Sleep(c.opts.reconnectInterval)
		}
	}()
}
