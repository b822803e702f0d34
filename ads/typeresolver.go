package ads

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ResolvedType is the fully-resolved description of an ADS data type:
// either a base primitive, a STRING/WSTRING of fixed length, an array of
// some element type, an enum over a primitive, or a struct of named
// sub-items. Grounded on the recursive GetDataTypeInfo walk in the
// teacher's deleted symbol.go (mrpasztoradam-goads reference) and
// spec.md §4.6.
type ResolvedType struct {
	Name    string
	Tag     DataType
	Size    uint32
	Comment string

	// STRING(n)/WSTRING(n) declared length, n (characters, not bytes).
	StringLen uint32

	// Array dimensions, outermost first. Empty for non-arrays.
	Dims []ArrayDim

	// Struct sub-items, in declaration order. Non-empty only if Tag ==
	// TypeStruct.
	Items []ResolvedItem

	// Enum-only: the underlying primitive and its declared values.
	EnumValues []EnumValue

	secondsEpoch bool // DATE/DT family: UINT32 payload is seconds-since-epoch.
}

// ArrayDim is one [lowerBound..lowerBound+length-1] array dimension.
type ArrayDim struct {
	LowerBound int32
	Length     uint32
}

// ResolvedItem is one named field of a resolved struct type.
type ResolvedItem struct {
	Name   string
	Offset uint32
	Type   *ResolvedType
}

// EnumValue is one named value of an enum type.
type EnumValue struct {
	Name  string
	Value int64
}

func (t *ResolvedType) isArray() bool { return len(t.Dims) > 0 }

func (t *ResolvedType) elementCount() uint32 {
	n := uint32(1)
	for _, d := range t.Dims {
		n *= d.Length
	}
	return n
}

// typeResolver builds and caches ResolvedType graphs by name, per
// spec.md §4.6. Lookups for the same name arriving concurrently are
// collapsed with singleflight so only one ReadWrite round-trip happens.
type typeResolver struct {
	client *Client

	mu    sync.RWMutex
	cache map[string]*ResolvedType

	group singleflight.Group
}

func newTypeResolver(c *Client) *typeResolver {
	return &typeResolver{client: c, cache: make(map[string]*ResolvedType)}
}

func (r *typeResolver) reset() {
	r.mu.Lock()
	r.cache = make(map[string]*ResolvedType)
	r.mu.Unlock()
}

// resolve returns the ResolvedType for name, consulting the cache first
// and falling back to a DataTypeInfoByNameEx round-trip, recursively
// resolving struct sub-items.
func (r *typeResolver) resolve(ctx context.Context, name string) (*ResolvedType, error) {
	key := strings.ToUpper(strings.TrimSpace(name))

	if base, ok := r.lookupCache(key); ok {
		return base, nil
	}
	if t, ok := r.tryPrimitive(name); ok {
		r.store(key, t)
		return t, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		if t, ok := r.lookupCache(key); ok {
			return t, nil
		}
		t, err := r.fetchAndResolve(ctx, name)
		if err != nil {
			return nil, err
		}
		r.store(key, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ResolvedType), nil
}

func (r *typeResolver) lookupCache(key string) (*ResolvedType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.cache[key]
	return t, ok
}

func (r *typeResolver) store(key string, t *ResolvedType) {
	r.mu.Lock()
	r.cache[key] = t
	r.mu.Unlock()
}

// tryPrimitive resolves names representable without a round-trip: base
// types, STRING(n)/WSTRING(n), and pointer/reference pseudo-types (which
// resolve to the concrete integer type matching the platform pointer
// size rather than being followed recursively, per spec.md §9).
func (r *typeResolver) tryPrimitive(name string) (*ResolvedType, bool) {
	trimmed := strings.TrimSpace(name)

	if t, ok := parseStringLikeType(trimmed); ok {
		return t, true
	}
	if base, ok := lookupBaseType(trimArraySuffix(trimmed)); ok {
		return &ResolvedType{Name: strings.ToUpper(trimmed), Tag: base.tag, Size: base.size, secondsEpoch: base.secondsEpoch}, true
	}
	if isPseudoType(trimmed) {
		// Platform pointer size on TwinCAT targets is 4 bytes (32-bit)
		// unless the target is a 64-bit runtime; fall back to the
		// older-target default per spec.md §4.6 rather than guess.
		_, base, _ := baseTypeBySize(4)
		return &ResolvedType{Name: strings.ToUpper(trimmed), Tag: base.tag, Size: base.size}, true
	}
	return nil, false
}

// parseStringLikeType recognizes STRING(n) / STRING / WSTRING(n) / WSTRING.
func parseStringLikeType(name string) (*ResolvedType, bool) {
	upper := strings.ToUpper(name)
	wide := strings.HasPrefix(upper, "WSTRING")
	base := "STRING"
	if wide {
		base = "WSTRING"
	}
	if !strings.HasPrefix(upper, base) {
		return nil, false
	}
	rest := strings.TrimSpace(upper[len(base):])
	n := uint32(80) // TwinCAT default STRING length.
	if wide {
		n = 80
	}
	if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
		var parsed uint32
		if _, err := fmt.Sscanf(rest[1:len(rest)-1], "%d", &parsed); err == nil {
			n = parsed
		}
	} else if rest != "" {
		return nil, false
	}
	size := n + 1
	tag := TypeString
	if wide {
		size = (n + 1) * 2
		tag = TypeWString
	}
	return &ResolvedType{Name: fmt.Sprintf("%s(%d)", base, n), Tag: tag, Size: size, StringLen: n}, true
}

// fetchAndResolve issues DataTypeInfoByNameEx and recursively resolves
// the returned sub-items, array dimensions, and enum values.
func (r *typeResolver) fetchAndResolve(ctx context.Context, name string) (*ResolvedType, error) {
	c := r.client
	raw, err := c.readWriteRaw(ctx, c.targetAddr, IndexGroupDataTypeInfoByNameEx, 0, 0xFFFFFFFF, append([]byte(name), 0))
	if err != nil {
		return nil, fmt.Errorf("resolve type %q: %w", name, err)
	}
	return r.decodeDataTypeEntry(ctx, raw)
}

// decodeDataTypeEntry parses one ADS data-type entry (the wire shape
// DataTypeInfoByNameEx and DataTypeUpload use) into a ResolvedType.
func (r *typeResolver) decodeDataTypeEntry(ctx context.Context, raw []byte) (*ResolvedType, error) {
	const headerLen = 76
	if len(raw) < headerLen {
		return nil, fmt.Errorf("short data type entry (%d bytes)", len(raw))
	}

	size := binary.LittleEndian.Uint32(raw[8:12])
	adsDataType := DataType(binary.LittleEndian.Uint32(raw[16:20]))
	flags := binary.LittleEndian.Uint32(raw[20:24])
	nameLen := binary.LittleEndian.Uint16(raw[24:26])
	typeLen := binary.LittleEndian.Uint16(raw[26:28])
	commentLen := binary.LittleEndian.Uint16(raw[28:30])
	arrayDimCount := binary.LittleEndian.Uint16(raw[30:32])
	subItemCount := binary.LittleEndian.Uint16(raw[32:34])
	enumInfoCount := binary.LittleEndian.Uint16(raw[34:36])

	off := headerLen
	name := readLenString(raw, &off, int(nameLen))
	typeName := readLenString(raw, &off, int(typeLen))
	comment := readLenString(raw, &off, int(commentLen))

	dims := make([]ArrayDim, 0, arrayDimCount)
	for i := 0; i < int(arrayDimCount); i++ {
		if off+8 > len(raw) {
			break
		}
		dims = append(dims, ArrayDim{
			LowerBound: int32(binary.LittleEndian.Uint32(raw[off : off+4])),
			Length:     binary.LittleEndian.Uint32(raw[off+4 : off+8]),
		})
		off += 8
	}

	result := &ResolvedType{Name: name, Tag: adsDataType, Size: size, Comment: comment, Dims: dims}

	isEnum := flags&0x10 != 0

	for i := 0; i < int(subItemCount); i++ {
		if off >= len(raw) {
			break
		}
		item, n, err := r.decodeSubItem(ctx, raw[off:])
		if err != nil {
			return nil, err
		}
		off += n
		result.Items = append(result.Items, item)
	}

	if isEnum {
		if base, ok := r.tryPrimitive(typeName); ok {
			result.Size = base.Size
		}
		for i := 0; i < int(enumInfoCount); i++ {
			ev, n, ok := decodeEnumInfo(raw[off:], result.Size)
			if !ok {
				break
			}
			result.EnumValues = append(result.EnumValues, ev)
			off += n
		}
	}

	if len(result.Items) == 0 && len(result.EnumValues) == 0 && !result.isArray() {
		if resolved, ok := r.tryPrimitive(typeName); ok {
			resolved.Name = name
			resolved.Comment = comment
			return resolved, nil
		}
	}

	if isEnum {
		result.Tag = TypeEnum
	} else if len(result.Items) > 0 {
		result.Tag = TypeStruct
	}

	return result, nil
}

// decodeEnumInfo decodes one EnumInfo record: a length-prefixed name
// followed by the member's value encoded as valueSize little-endian
// bytes, per spec.md §4.6's "attach enumInfo[] with each value decoded
// via the resolved primitive reader".
func decodeEnumInfo(raw []byte, valueSize uint32) (EnumValue, int, bool) {
	if len(raw) < 2 {
		return EnumValue{}, 0, false
	}
	nameLen := int(binary.LittleEndian.Uint16(raw[0:2]))
	off := 2
	end := off + nameLen + 1
	if end > len(raw) {
		return EnumValue{}, 0, false
	}
	name := trimNull(raw[off:end])
	off = end

	if off+int(valueSize) > len(raw) {
		return EnumValue{}, 0, false
	}
	var v uint64
	for i := 0; i < int(valueSize); i++ {
		v |= uint64(raw[off+i]) << (8 * i)
	}
	off += int(valueSize)
	return EnumValue{Name: name, Value: int64(v)}, off, true
}

// decodeSubItem decodes one nested sub-item entry, recursively resolving
// its declared type by name when it isn't itself inline-describable.
func (r *typeResolver) decodeSubItem(ctx context.Context, raw []byte) (ResolvedItem, int, error) {
	const headerLen = 76
	if len(raw) < headerLen {
		return ResolvedItem{}, 0, fmt.Errorf("short sub-item entry (%d bytes)", len(raw))
	}
	entryLen := int(binary.LittleEndian.Uint32(raw[0:4]))
	offset := binary.LittleEndian.Uint32(raw[12:16])
	nameLen := binary.LittleEndian.Uint16(raw[24:26])
	typeLen := binary.LittleEndian.Uint16(raw[26:28])
	commentLen := binary.LittleEndian.Uint16(raw[28:30])

	off := headerLen
	name := readLenString(raw, &off, int(nameLen))
	typeName := readLenString(raw, &off, int(typeLen))
	_ = readLenString(raw, &off, int(commentLen))

	resolved, err := r.resolve(ctx, typeName)
	if err != nil {
		return ResolvedItem{}, 0, err
	}
	if entryLen <= 0 {
		entryLen = off
	}
	return ResolvedItem{Name: name, Offset: offset, Type: resolved}, entryLen, nil
}

func readLenString(buf []byte, off *int, n int) string {
	// TwinCAT length-prefixed strings store n as "length not counting the
	// terminating null", so the on-wire field is n+1 bytes.
	end := *off + n + 1
	if end > len(buf) {
		end = len(buf)
	}
	s := trimNull(buf[*off:end])
	*off = end
	return s
}
