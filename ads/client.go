package ads

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jisotalo/ads-client/logging"
)

// options holds every spec.md §6 configuration knob, populated by
// functional options. Grounded on the teacher's ads.Connect(address,
// opts ...Option) / WithAmsNetId / WithAmsPort / WithTimeout pattern,
// extended with one WithXxx per spec.md knob.
type options struct {
	targetNetId AmsNetId
	targetPort  uint16

	routerAddress string
	routerTCPPort uint16

	localAddress  string
	localAmsNetId *AmsNetId
	localAdsPort  uint16

	timeoutDelay        time.Duration
	autoReconnect       bool
	reconnectInterval   time.Duration
	checkStateInterval  time.Duration
	connectionDownDelay time.Duration

	objectifyEnumerations       bool
	convertDates                bool
	readAndCacheSymbols         bool
	readAndCacheDataTypes       bool
	disableSymbolVersionMonitor bool
	bareClient                  bool
	allowHalfOpen                bool
}

func defaultOptions() options {
	return options{
		routerAddress:       DefaultRouterAddress,
		routerTCPPort:       DefaultTCPPort,
		timeoutDelay:        2000 * time.Millisecond,
		autoReconnect:       true,
		reconnectInterval:   2000 * time.Millisecond,
		checkStateInterval:  1000 * time.Millisecond,
		connectionDownDelay: 5000 * time.Millisecond,

		objectifyEnumerations: true,
		convertDates:          true,
	}
}

// Option configures a Client. See the With* functions.
type Option func(*options)

// WithTargetAmsNetId sets the target's AMS Net ID (required).
func WithTargetAmsNetId(netID AmsNetId) Option {
	return func(o *options) { o.targetNetId = netID }
}

// WithTargetAdsPort sets the target's ADS port (required).
func WithTargetAdsPort(port uint16) Option {
	return func(o *options) { o.targetPort = port }
}

// WithRouterAddress overrides the local router's TCP address (default 127.0.0.1).
func WithRouterAddress(address string) Option {
	return func(o *options) { o.routerAddress = address }
}

// WithRouterTCPPort overrides the local router's TCP port (default 48898).
func WithRouterTCPPort(port uint16) Option {
	return func(o *options) { o.routerTCPPort = port }
}

// WithLocalAddress pins a fixed local AmsNetId/port and skips Port
// Registrar negotiation entirely (spec.md §4.5 bypass mode).
func WithLocalAddress(netID AmsNetId, port uint16) Option {
	return func(o *options) {
		o.localAmsNetId = &netID
		o.localAdsPort = port
	}
}

// WithLocalTCPAddress records a local TCP address for the router
// connection. The value is stored only: dialTransport does not bind the
// socket to it.
func WithLocalTCPAddress(address string) Option {
	return func(o *options) { o.localAddress = address }
}

// WithTimeout sets the per-request timeout (default 2000ms).
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeoutDelay = d }
}

// WithAutoReconnect toggles the Health Supervisor's reconnect loop (default true).
func WithAutoReconnect(enabled bool) Option {
	return func(o *options) { o.autoReconnect = enabled }
}

// WithReconnectInterval sets the delay between reconnect attempts (default 2000ms).
func WithReconnectInterval(d time.Duration) Option {
	return func(o *options) { o.reconnectInterval = d }
}

// WithCheckStateInterval sets the system-state poll interval (default 1000ms).
func WithCheckStateInterval(d time.Duration) Option {
	return func(o *options) { o.checkStateInterval = d }
}

// WithConnectionDownDelay sets how long continuous poll failures are
// tolerated before the link is declared down (default 5000ms).
func WithConnectionDownDelay(d time.Duration) Option {
	return func(o *options) { o.connectionDownDelay = d }
}

// WithObjectifyEnumerations records the enum-objectification setting
// (default true). The value is stored only: Parse always returns enums as
// {"name","value"} maps, whatever this option is set to.
func WithObjectifyEnumerations(enabled bool) Option {
	return func(o *options) { o.objectifyEnumerations = enabled }
}

// WithConvertDates toggles DATE/DT wall-clock conversion (default true).
func WithConvertDates(enabled bool) Option {
	return func(o *options) { o.convertDates = enabled }
}

// WithReadAndCacheSymbols records the eager symbol-caching setting. The
// value is stored only: connect does not download the symbol list, and
// symbols are resolved and cached one by one on first use.
func WithReadAndCacheSymbols(enabled bool) Option {
	return func(o *options) { o.readAndCacheSymbols = enabled }
}

// WithReadAndCacheDataTypes records the eager type-caching setting. The
// value is stored only: connect does not download the type list, and
// types are resolved and cached one by one on first use.
func WithReadAndCacheDataTypes(enabled bool) Option {
	return func(o *options) { o.readAndCacheDataTypes = enabled }
}

// WithDisableSymbolVersionMonitoring disables the health supervisor's
// SymbolVersion check. The check polls the version on the state-poll
// cadence; no notification subscription is created for it.
func WithDisableSymbolVersionMonitoring(disabled bool) Option {
	return func(o *options) { o.disableSymbolVersionMonitor = disabled }
}

// WithBareClient skips starting the health supervisor on connect, and with
// it the state poller and the symbol-version check.
func WithBareClient(bare bool) Option {
	return func(o *options) { o.bareClient = bare }
}

// WithAllowHalfOpen records the half-open socket setting. The value is
// stored only: the transport does not read it, and a peer half-close ends
// the receive loop like any other read error.
func WithAllowHalfOpen(enabled bool) Option {
	return func(o *options) { o.allowHalfOpen = enabled }
}

// Client is the public surface of the ADS/AMS protocol engine: one TCP
// connection to a local router, multiplexed request/response, managed
// subscriptions, cached symbol/type metadata, and automatic reconnection.
//
// All exported methods are safe for concurrent use. Internally, exactly
// one receive goroutine owns the socket read path; the request registry
// and subscription table are shared between it and the calling
// goroutines and guarded by their own mutexes.
type Client struct {
	opts options

	targetAddr AmsAddress

	mu        sync.RWMutex
	localAddr AmsAddress
	connected bool

	transport *transport
	registry  *requestRegistry

	portReg *portRegistrar
	subs    *subscriptionManager
	types   *typeResolver
	symbols *symbolResolver
	health  *healthSupervisor
	events  *EventBus

	closeOnce sync.Once
	stopRecv  chan struct{}
	recvDone  chan struct{}
}

// Connect dials the local router, registers (or adopts) a local ADS
// address, and brings up the protocol engine. Grounded on the teacher's
// ads.Connect constructor shape.
func Connect(ctx context.Context, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.targetNetId.IsZero() {
		return nil, fmt.Errorf("ads: WithTargetAmsNetId is required")
	}
	if o.targetPort == 0 {
		return nil, fmt.Errorf("ads: WithTargetAdsPort is required")
	}

	c := &Client{
		opts:       o,
		targetAddr: AmsAddress{NetId: o.targetNetId, Port: o.targetPort},
		registry:   newRequestRegistry(),
		events:     NewEventBus(),
		stopRecv:   make(chan struct{}),
		recvDone:   make(chan struct{}),
	}
	c.subs = newSubscriptionManager(c)
	c.types = newTypeResolver(c)
	c.symbols = newSymbolResolver(c)
	c.portReg = newPortRegistrar(c)
	c.health = newHealthSupervisor(c)

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	routerAddr := fmt.Sprintf("%s:%d", c.opts.routerAddress, c.opts.routerTCPPort)
	logging.DebugConnect("ads", routerAddr)

	tr, err := dialTransport(ctx, routerAddr, c.opts.timeoutDelay)
	if err != nil {
		logging.DebugConnectError("ads", routerAddr, err)
		return &TransportError{Message: "dial failed", Err: err}
	}
	c.transport = tr

	c.stopRecv = make(chan struct{})
	c.recvDone = make(chan struct{})
	go c.receiveLoop()

	if err := c.portReg.register(ctx); err != nil {
		_ = c.transport.close()
		return err
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	if !c.opts.bareClient {
		c.health.start()
	}

	logging.DebugConnectSuccess("ads", routerAddr, c.targetAddr.String())
	c.events.Publish(Event{Type: EventConnect, Timestamp: time.Now(), Payload: c.targetAddr})
	return nil
}

// LocalAddress returns the local AMS address assigned (or configured).
func (c *Client) LocalAddress() AmsAddress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.localAddr
}

// TargetAddress returns the configured target AMS address.
func (c *Client) TargetAddress() AmsAddress {
	return c.targetAddr
}

// IsConnected reports whether the engine currently considers the link up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Events returns the Client's event bus (connect/disconnect/reconnect/…).
func (c *Client) Events() *EventBus { return c.events }

// ReadDeviceInfo reads the target's device identification.
func (c *Client) ReadDeviceInfo(ctx context.Context) (DeviceInfo, error) {
	return c.readDeviceInfoFrom(ctx, c.targetAddr)
}

// ReadState reads the target's current ADS/device state.
func (c *Client) ReadState(ctx context.Context) (DeviceState, error) {
	return c.readStateFrom(ctx, c.targetAddr)
}

// Close tears down the engine: unsubscribes all notifications, releases
// all handles, unregisters the local port, and closes the socket.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.health.stop()
		c.subs.closeAll(ctx)
		c.symbols.releaseAll(ctx)

		if c.portReg != nil {
			_ = c.portReg.unregister(ctx)
		}

		close(c.stopRecv)
		if c.transport != nil {
			_ = c.transport.close()
		}
		<-c.recvDone

		c.registry.teardown(&TransportError{Message: "connection closed"})

		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()

		logging.DebugDisconnect("ads", c.targetAddr.String(), "closed by caller")
		c.events.Publish(Event{Type: EventDisconnect, Timestamp: time.Now()})
	})
	return nil
}

// receiveLoop is the single goroutine that owns the socket read path. It
// feeds bytes into the frame reader and demultiplexes each complete frame
// to the request registry, the subscription manager, or the health
// supervisor. Grounded on spec.md §4.2/§4.4's demux description,
// generalized from the teacher's one-shot readResponse into true
// streaming/async delivery (see DESIGN.md).
func (c *Client) receiveLoop() {
	defer close(c.recvDone)

	fr := &frameReader{}
	buf := make([]byte, 8192)

	for {
		n, err := c.transport.read(buf)
		if n > 0 {
			fr.Feed(buf[:n])
			for {
				frame, ok := fr.Next()
				if !ok {
					break
				}
				c.handleFrame(frame)
			}
		}
		if err != nil {
			select {
			case <-c.stopRecv:
				return
			default:
			}
			c.onTransportDown(err)
			return
		}
	}
}

func (c *Client) handleFrame(f tcpFrame) {
	logging.DebugRX("ads", f.Payload)
	switch f.Command {
	case tcpCmdADS:
		if len(f.Payload) < amsHeaderLen {
			return
		}
		header := decodeAMSHeader(f.Payload[:amsHeaderLen])
		body := f.Payload[amsHeaderLen:]

		c.mu.RLock()
		local := c.localAddr
		c.mu.RUnlock()
		if header.TargetNetId != local.NetId || header.TargetPort != local.Port {
			logging.DebugError("ads", "handleFrame", fmt.Errorf("dropping packet addressed to %s:%d, local address is %s", header.TargetNetId, header.TargetPort, local))
			return
		}

		if header.CommandId == CmdDeviceNotification {
			c.subs.dispatch(body)
			return
		}
		if !c.registry.deliver(header.InvokeId, header, body) {
			c.emitClientError("stale-response", fmt.Errorf("unmatched invoke-id %d", header.InvokeId))
		}
	case tcpCmdPortConnect:
		c.portReg.handleResponse(f.Payload)
	case tcpCmdRouterNote:
		c.health.handleRouterNote(f.Payload)
	case tcpCmdPortClose:
		// Acknowledged by the router during teardown; nothing to route.
	}
}

func (c *Client) onTransportDown(err error) {
	logging.DebugError("ads", "receive loop", err)
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.registry.teardown(&TransportError{Message: "connection lost", Err: err})
	c.events.Publish(Event{Type: EventConnectionLost, Timestamp: time.Now(), Payload: err})

	if c.opts.autoReconnect {
		c.health.triggerReconnect()
	}
}

func (c *Client) emitClientError(kind string, err error) {
	logging.DebugError("ads", kind, err)
	c.events.Publish(Event{Type: EventClientError, Timestamp: time.Now(), Payload: ClientErrorEvent{Kind: kind, Err: err}})
}

// ClientErrorEvent is the payload of an EventClientError event: an
// out-of-band diagnostic that does not fail any pending request (a stale
// response, an unknown notification handle, a malformed notification
// sample).
type ClientErrorEvent struct {
	Kind string
	Err  error
}
