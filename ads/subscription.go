package ads

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// TransmissionMode governs when a device notification fires, per
// spec.md §4.8.
type TransmissionMode uint32

const (
	TransmissionCyclic   TransmissionMode = 3
	TransmissionOnChange TransmissionMode = 4
)

// NotificationSample is one decoded sample from a device notification
// packet: a handle, its timestamp, and its value. Per spec.md §4.8, the
// sample is decoded per the subscription's strategy: when the
// subscription carries a resolved type/symbol (SubscribeByName), Value
// holds the Parse-decoded object and Type/Symbol are populated;
// otherwise (explicit-address Subscribe) Value is nil and only the raw
// Data is available.
type NotificationSample struct {
	Handle    uint32
	Timestamp time.Time
	Data      []byte
	Value     any
	Type      *ResolvedType
	Symbol    *SymbolInfo
}

// NotificationHandler is invoked once per sample delivered against the
// subscription it was returned from.
type NotificationHandler func(NotificationSample)

// subscription tracks one active AddNotification registration so it can
// be recreated across a reconnect (spec.md §4.8's quarantine-and-recreate
// requirement).
type subscription struct {
	indexGroup, indexOffset, size uint32
	transMode                     TransmissionMode
	maxDelay, cycleTime           time.Duration
	handler                       NotificationHandler

	// valueType/symbol are set only for subscriptions created through a
	// name (SubscribeByName), letting dispatch decode a typed value
	// instead of handing the callback raw bytes.
	valueType *ResolvedType
	symbol    *SymbolInfo

	handle  uint32
	created bool
}

// subscriptionManager owns every active device notification for a
// Client: creation/deletion, notification-packet dispatch, and
// quarantine-and-recreate handling across reconnects.
type subscriptionManager struct {
	client *Client

	mu   sync.Mutex
	subs map[uint32]*subscription // keyed by local subscription id
	next uint32
}

func newSubscriptionManager(c *Client) *subscriptionManager {
	return &subscriptionManager{client: c, subs: make(map[uint32]*subscription)}
}

// subscribe creates a device notification and returns a local
// subscription id usable with Unsubscribe. valueType/symbol are nil for
// an explicit-address subscription, in which case dispatch falls back to
// delivering raw bytes.
func (m *subscriptionManager) subscribe(ctx context.Context, indexGroup, indexOffset, size uint32, mode TransmissionMode, maxDelay, cycleTime time.Duration, handler NotificationHandler, valueType *ResolvedType, symbol *SymbolInfo) (uint32, error) {
	sub := &subscription{
		indexGroup: indexGroup, indexOffset: indexOffset, size: size,
		transMode: mode, maxDelay: maxDelay, cycleTime: cycleTime, handler: handler,
		valueType: valueType, symbol: symbol,
	}

	c := m.client
	handle, err := c.addNotification(ctx, c.targetAddr, indexGroup, indexOffset, size, mode, maxDelay, cycleTime)
	if err != nil {
		return 0, err
	}
	sub.handle = handle
	sub.created = true

	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = sub
	m.mu.Unlock()
	return id, nil
}

// unsubscribe deletes a previously-created notification by its local id.
func (m *subscriptionManager) unsubscribe(ctx context.Context, id uint32) error {
	m.mu.Lock()
	sub, ok := m.subs[id]
	if ok {
		delete(m.subs, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("ads: unknown subscription id %d", id)
	}
	if !sub.created {
		return nil
	}
	return m.client.deleteNotification(ctx, m.client.targetAddr, sub.handle)
}

// dispatch parses one Notification packet's payload and invokes every
// matching subscription's handler. Grounded on spec.md §4.1/§4.8's
// stamp-header + sample-list wire layout.
func (m *subscriptionManager) dispatch(payload []byte) {
	if len(payload) < 4 {
		return
	}
	length := binary.LittleEndian.Uint32(payload[0:4])
	if uint32(len(payload)) < 4+length {
		return
	}
	body := payload[4 : 4+length]
	if len(body) < 4 {
		return
	}
	stampCount := binary.LittleEndian.Uint32(body[0:4])
	off := 4

	m.mu.Lock()
	byHandle := make(map[uint32][]*subscription, len(m.subs))
	for _, sub := range m.subs {
		byHandle[sub.handle] = append(byHandle[sub.handle], sub)
	}
	m.mu.Unlock()

	for i := uint32(0); i < stampCount; i++ {
		if off+12 > len(body) {
			return
		}
		filetime := binary.LittleEndian.Uint64(body[off : off+8])
		sampleCount := binary.LittleEndian.Uint32(body[off+8 : off+12])
		off += 12
		ts := filetimeToTime(filetime)

		for s := uint32(0); s < sampleCount; s++ {
			if off+8 > len(body) {
				return
			}
			handle := binary.LittleEndian.Uint32(body[off : off+4])
			size := binary.LittleEndian.Uint32(body[off+4 : off+8])
			off += 8
			if off+int(size) > len(body) {
				return
			}
			data := body[off : off+int(size)]
			off += int(size)

			if len(byHandle[handle]) == 0 && m.client != nil {
				m.client.emitClientError("unknown-notification-handle", fmt.Errorf("notification for unknown handle %d", handle))
			}
			for _, sub := range byHandle[handle] {
				if sub.handler == nil {
					continue
				}
				sample := NotificationSample{
					Handle:    handle,
					Timestamp: ts,
					Data:      append([]byte(nil), data...),
					Type:      sub.valueType,
					Symbol:    sub.symbol,
				}
				if sub.valueType != nil {
					v, err := Parse(data, sub.valueType, m.client.opts.convertDates)
					if err != nil {
						m.client.emitClientError("malformed-notification-sample", fmt.Errorf("handle %d: %w", handle, err))
						continue
					}
					sample.Value = v
				}
				sub.handler(sample)
			}
		}
	}
}

func filetimeToTime(filetime uint64) time.Time {
	return time.UnixMilli(filetimeToUnixMillis(filetime)).UTC()
}

// quarantine marks every subscription as not-yet-recreated, called when
// the underlying connection is lost.
func (m *subscriptionManager) quarantine() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		sub.created = false
		sub.handle = 0
	}
}

// recreateAll re-issues AddNotification for every quarantined
// subscription after a reconnect, per spec.md §4.8.
func (m *subscriptionManager) recreateAll(ctx context.Context) error {
	m.mu.Lock()
	subs := make([]*subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	c := m.client
	var firstErr error
	for _, sub := range subs {
		if sub.created {
			continue
		}
		handle, err := c.addNotification(ctx, c.targetAddr, sub.indexGroup, sub.indexOffset, sub.size, sub.transMode, sub.maxDelay, sub.cycleTime)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		m.mu.Lock()
		sub.handle = handle
		sub.created = true
		m.mu.Unlock()
	}
	return firstErr
}

// closeAll deletes every active notification, best-effort. Called from
// Client.Close.
func (m *subscriptionManager) closeAll(ctx context.Context) {
	m.mu.Lock()
	subs := make([]*subscription, 0, len(m.subs))
	for id := range m.subs {
		subs = append(subs, m.subs[id])
	}
	m.subs = make(map[uint32]*subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		if sub.created {
			_ = m.client.deleteNotification(ctx, m.client.targetAddr, sub.handle)
		}
	}
}
