package ads

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// SymbolInfo is the decoded SymbolInfoByNameEx response for one PLC
// variable: its index group/offset, size, declared type name, and
// flags. Grounded on the teacher's deleted ads/tagvalue.go TagInfo,
// renamed to the spec's vocabulary.
type SymbolInfo struct {
	Name        string
	TypeName    string
	Comment     string
	Size        uint32
	IndexGroup  uint32
	IndexOffset uint32
	Flags       uint32
}

const (
	symFlagPersistent uint32 = 1 << 0
	symFlagBitValue   uint32 = 1 << 1
	symFlagReadOnly   uint32 = 1 << 2
	symFlagTComInterf uint32 = 1 << 4
	symFlagInOut      uint32 = 1 << 6
)

func (s SymbolInfo) IsReadOnly() bool  { return s.Flags&symFlagReadOnly != 0 }
func (s SymbolInfo) IsPersistent() bool { return s.Flags&symFlagPersistent != 0 }

// symbolResolver looks up and caches SymbolInfo by name, and tracks any
// acquired symbol handles so Client.Close can release them, per
// spec.md §4.6/§4.9.
type symbolResolver struct {
	client *Client

	mu    sync.RWMutex
	cache map[string]SymbolInfo

	handlesMu sync.Mutex
	handles   map[uint32]struct{}

	group singleflight.Group
}

func newSymbolResolver(c *Client) *symbolResolver {
	return &symbolResolver{
		client:  c,
		cache:   make(map[string]SymbolInfo),
		handles: make(map[uint32]struct{}),
	}
}

func (r *symbolResolver) reset() {
	r.mu.Lock()
	r.cache = make(map[string]SymbolInfo)
	r.mu.Unlock()
}

// resolve returns SymbolInfo for name, using SymbolInfoByNameEx.
func (r *symbolResolver) resolve(ctx context.Context, name string) (SymbolInfo, error) {
	key := strings.ToUpper(strings.TrimSpace(name))

	r.mu.RLock()
	if info, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return info, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		r.mu.RLock()
		if info, ok := r.cache[key]; ok {
			r.mu.RUnlock()
			return info, nil
		}
		r.mu.RUnlock()

		c := r.client
		raw, err := c.readWriteRaw(ctx, c.targetAddr, IndexGroupSymbolInfoByNameEx, 0, 0xFFFFFFFF, append([]byte(name), 0))
		if err != nil {
			return SymbolInfo{}, fmt.Errorf("resolve symbol %q: %w", name, err)
		}
		info, err := decodeSymbolInfoEntry(raw)
		if err != nil {
			return SymbolInfo{}, err
		}
		r.mu.Lock()
		r.cache[key] = info
		r.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return SymbolInfo{}, err
	}
	return v.(SymbolInfo), nil
}

func decodeSymbolInfoEntry(raw []byte) (SymbolInfo, error) {
	const headerLen = 30
	if len(raw) < headerLen {
		return SymbolInfo{}, fmt.Errorf("short symbol info entry (%d bytes)", len(raw))
	}
	indexGroup := binary.LittleEndian.Uint32(raw[0:4])
	indexOffset := binary.LittleEndian.Uint32(raw[4:8])
	size := binary.LittleEndian.Uint32(raw[8:12])
	flags := binary.LittleEndian.Uint32(raw[16:20])
	nameLen := binary.LittleEndian.Uint16(raw[20:22])
	typeLen := binary.LittleEndian.Uint16(raw[22:24])
	commentLen := binary.LittleEndian.Uint16(raw[24:26])

	off := headerLen
	name := readLenString(raw, &off, int(nameLen))
	typeName := readLenString(raw, &off, int(typeLen))
	comment := readLenString(raw, &off, int(commentLen))

	return SymbolInfo{
		Name: name, TypeName: typeName, Comment: comment, Size: size,
		IndexGroup: indexGroup, IndexOffset: indexOffset, Flags: flags,
	}, nil
}

// acquireHandle creates a symbol handle for name via SymbolHandleByName,
// tracking it for release in Close.
func (r *symbolResolver) acquireHandle(ctx context.Context, name string) (uint32, error) {
	c := r.client
	raw, err := c.readWriteRaw(ctx, c.targetAddr, IndexGroupSymbolHandleByName, 0, 4, append([]byte(name), 0))
	if err != nil {
		return 0, fmt.Errorf("acquire handle for %q: %w", name, err)
	}
	if len(raw) < 4 {
		return 0, fmt.Errorf("short SymbolHandleByName response (%d bytes)", len(raw))
	}
	handle := binary.LittleEndian.Uint32(raw)
	r.handlesMu.Lock()
	r.handles[handle] = struct{}{}
	r.handlesMu.Unlock()
	return handle, nil
}

// releaseHandle releases a single previously-acquired symbol handle.
func (r *symbolResolver) releaseHandle(ctx context.Context, handle uint32) error {
	c := r.client
	req := make([]byte, 4)
	binary.LittleEndian.PutUint32(req, handle)
	if err := c.writeRaw(ctx, c.targetAddr, IndexGroupSymbolReleaseHandle, 0, req); err != nil {
		return err
	}
	r.handlesMu.Lock()
	delete(r.handles, handle)
	r.handlesMu.Unlock()
	return nil
}

// releaseAll releases every symbol handle acquired so far. Called from
// Client.Close; best-effort, errors are not fatal to shutdown.
func (r *symbolResolver) releaseAll(ctx context.Context) {
	r.handlesMu.Lock()
	handles := make([]uint32, 0, len(r.handles))
	for h := range r.handles {
		handles = append(handles, h)
	}
	r.handlesMu.Unlock()

	for _, h := range handles {
		_ = r.releaseHandle(ctx, h)
	}
}
