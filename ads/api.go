package ads

import (
	"context"
	"time"
)

// ReadValue resolves name's symbol and type information, reads its
// current raw value, and decodes it per spec.md §4.7.
func (c *Client) ReadValue(ctx context.Context, name string) (any, error) {
	sym, err := c.symbols.resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	t, err := c.types.resolve(ctx, sym.TypeName)
	if err != nil {
		return nil, err
	}
	raw, err := c.readRaw(ctx, c.targetAddr, sym.IndexGroup, sym.IndexOffset, sym.Size)
	if err != nil {
		// Older targets require reading by name via ReadWrite rather than Read.
		raw, err = c.readWriteRaw(ctx, c.targetAddr, IndexGroupSymbolValueByName, 0, sym.Size, append([]byte(name), 0))
		if err != nil {
			return nil, err
		}
	}
	return Parse(raw, t, c.opts.convertDates)
}

// WriteValue resolves name's symbol and type information, encodes value
// per spec.md §4.7, and writes it to the target.
func (c *Client) WriteValue(ctx context.Context, name string, value any) error {
	sym, err := c.symbols.resolve(ctx, name)
	if err != nil {
		return err
	}
	t, err := c.types.resolve(ctx, sym.TypeName)
	if err != nil {
		return err
	}
	data, err := Serialize(value, t)
	if err != nil {
		return err
	}
	return c.writeRaw(ctx, c.targetAddr, sym.IndexGroup, sym.IndexOffset, data)
}

// SubscribeByName resolves name's symbol and type info and creates a
// device notification over it, attaching both to the subscription so
// dispatch can deliver each sample as a decoded value rather than raw
// bytes, per spec.md §4.8.
func (c *Client) SubscribeByName(ctx context.Context, name string, mode TransmissionMode, maxDelay, cycleTime time.Duration, handler NotificationHandler) (uint32, error) {
	sym, err := c.symbols.resolve(ctx, name)
	if err != nil {
		return 0, err
	}
	t, err := c.types.resolve(ctx, sym.TypeName)
	if err != nil {
		return 0, err
	}
	return c.subs.subscribe(ctx, sym.IndexGroup, sym.IndexOffset, sym.Size, mode, maxDelay, cycleTime, handler, t, &sym)
}

// Subscribe creates a device notification directly over an explicit
// index group/offset, skipping symbol resolution entirely. Without a
// resolved type, dispatch delivers each sample's raw bytes rather than a
// decoded value.
func (c *Client) Subscribe(ctx context.Context, indexGroup, indexOffset, size uint32, mode TransmissionMode, maxDelay, cycleTime time.Duration, handler NotificationHandler) (uint32, error) {
	return c.subs.subscribe(ctx, indexGroup, indexOffset, size, mode, maxDelay, cycleTime, handler, nil, nil)
}

// Unsubscribe deletes a previously-created notification.
func (c *Client) Unsubscribe(ctx context.Context, id uint32) error {
	return c.subs.unsubscribe(ctx, id)
}
