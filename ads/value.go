package ads

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ErrIncompleteObject marks an object that could not be fully decoded or
// encoded: a Parse read that returned fewer bytes than the resolved type
// requires, or a Serialize object missing a field the type expects. The
// caller should merge with the current PLC value (for Serialize) or
// re-read with a larger buffer (for Parse) and retry, per spec.md §4.7's
// "incomplete object" edge case.
type ErrIncompleteObject struct {
	Type   string
	Wanted uint32
	Got    int
	Field  string
}

func (e *ErrIncompleteObject) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("ads: incomplete object of type %s: missing field %q", e.Type, e.Field)
	}
	return fmt.Sprintf("ads: incomplete object of type %s: wanted %d bytes, got %d", e.Type, e.Wanted, e.Got)
}

// Parse decodes raw bytes against a resolved type into a Go value:
// bool, intN/uintN, float32/64, string, time.Time (for DATE/DT family
// when convertDates is true), []any for arrays, or map[string]any for
// structs. Grounded on the teacher's deleted ads/value.go
// TagValue.GoValue/parseScalar/parseArray recursion, restructured around
// ResolvedType instead of a flat TagInfo.
func Parse(raw []byte, t *ResolvedType, convertDates bool) (any, error) {
	if uint32(len(raw)) < t.Size && !t.isArray() {
		return nil, &ErrIncompleteObject{Type: t.Name, Wanted: t.Size, Got: len(raw)}
	}

	if t.isArray() {
		return parseArray(raw, t, convertDates)
	}
	if t.Tag == TypeStruct {
		return parseStruct(raw, t, convertDates)
	}
	if t.Tag == TypeEnum {
		return parseEnum(raw, t)
	}
	return parseScalar(raw, t, convertDates)
}

func parseArray(raw []byte, t *ResolvedType, convertDates bool) (any, error) {
	elem := &ResolvedType{
		Name: t.Name, Tag: t.Tag, Size: elementSize(t), Comment: t.Comment,
		StringLen: t.StringLen, Items: t.Items, EnumValues: t.EnumValues, secondsEpoch: t.secondsEpoch,
	}
	count := t.elementCount()
	result := make([]any, 0, count)
	stride := int(elem.Size)
	for i := 0; i < int(count); i++ {
		start := i * stride
		end := start + stride
		if end > len(raw) {
			return nil, &ErrIncompleteObject{Type: t.Name, Wanted: uint32(end), Got: len(raw)}
		}
		v, err := Parse(raw[start:end], elem, convertDates)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

// elementSize computes a single array element's byte size from an
// array-shaped ResolvedType (t.Size is the full array's size).
func elementSize(t *ResolvedType) uint32 {
	count := t.elementCount()
	if count == 0 {
		return 0
	}
	return t.Size / count
}

func parseStruct(raw []byte, t *ResolvedType, convertDates bool) (any, error) {
	result := make(map[string]any, len(t.Items))
	for _, item := range t.Items {
		start := int(item.Offset)
		end := start + int(item.Type.Size)
		if item.Type.isArray() {
			end = start + int(item.Type.Size)
		}
		if end > len(raw) {
			return nil, &ErrIncompleteObject{Type: t.Name, Wanted: uint32(end), Got: len(raw)}
		}
		v, err := Parse(raw[start:end], item.Type, convertDates)
		if err != nil {
			return nil, err
		}
		result[item.Name] = v
	}
	return result, nil
}

func parseEnum(raw []byte, t *ResolvedType) (any, error) {
	underlying := &ResolvedType{Tag: intTagForSize(t.Size), Size: t.Size}
	v, err := parseScalar(raw, underlying, false)
	if err != nil {
		return nil, err
	}
	n, _ := toInt64(v)
	for _, ev := range t.EnumValues {
		if ev.Value == n {
			return map[string]any{"name": ev.Name, "value": n}, nil
		}
	}
	return map[string]any{"name": "", "value": n}, nil
}

func intTagForSize(size uint32) DataType {
	switch size {
	case 1:
		return TypeUint8
	case 2:
		return TypeUint16
	case 8:
		return TypeUint64
	default:
		return TypeUint32
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func parseScalar(raw []byte, t *ResolvedType, convertDates bool) (any, error) {
	switch t.Tag {
	case TypeBit:
		return raw[0] != 0, nil
	case TypeInt8:
		return int8(raw[0]), nil
	case TypeUint8:
		return raw[0], nil
	case TypeInt16:
		return int16(binary.LittleEndian.Uint16(raw)), nil
	case TypeUint16:
		return binary.LittleEndian.Uint16(raw), nil
	case TypeInt32:
		return int32(binary.LittleEndian.Uint32(raw)), nil
	case TypeUint32:
		v := binary.LittleEndian.Uint32(raw)
		if convertDates && t.secondsEpoch {
			return time.Unix(int64(v), 0).UTC(), nil
		}
		return v, nil
	case TypeInt64:
		return int64(binary.LittleEndian.Uint64(raw)), nil
	case TypeUint64:
		return binary.LittleEndian.Uint64(raw), nil
	case TypeReal32:
		return math.Float32frombits(binary.LittleEndian.Uint32(raw)), nil
	case TypeReal64:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw)), nil
	case TypeString:
		return trimNull(raw), nil
	case TypeWString:
		return parseWString(raw), nil
	default:
		return nil, fmt.Errorf("ads: cannot parse scalar of tag 0x%02X", t.Tag)
	}
}

func parseWString(raw []byte) string {
	runes := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		v := binary.LittleEndian.Uint16(raw[i : i+2])
		if v == 0 {
			break
		}
		runes = append(runes, v)
	}
	return string(utf16Decode(runes))
}

func utf16Decode(in []uint16) []rune {
	out := make([]rune, 0, len(in))
	for i := 0; i < len(in); i++ {
		r := rune(in[i])
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(in) {
			r2 := rune(in[i+1])
			if r2 >= 0xDC00 && r2 <= 0xDFFF {
				out = append(out, ((r-0xD800)<<10|(r2-0xDC00))+0x10000)
				i++
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// Serialize encodes a Go value against a resolved type, the inverse of
// Parse. Enum values may be given as an int64, a string name, or a
// map with "name"/"value" keys, per spec.md §4.7.
func Serialize(v any, t *ResolvedType) ([]byte, error) {
	if t.isArray() {
		return serializeArray(v, t)
	}
	if t.Tag == TypeStruct {
		return serializeStruct(v, t)
	}
	if t.Tag == TypeEnum {
		return serializeEnum(v, t)
	}
	return serializeScalar(v, t)
}

func serializeArray(v any, t *ResolvedType) ([]byte, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("ads: expected []any for array type %s, got %T", t.Name, v)
	}
	if want := int(t.elementCount()); len(items) != want {
		return nil, fmt.Errorf("ads: array %s requires every index present: got %d elements, want %d", t.Name, len(items), want)
	}
	elem := &ResolvedType{Tag: t.Tag, Size: elementSize(t), Items: t.Items, EnumValues: t.EnumValues, secondsEpoch: t.secondsEpoch}
	out := make([]byte, 0, t.Size)
	for _, item := range items {
		b, err := Serialize(item, elem)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func serializeStruct(v any, t *ResolvedType) ([]byte, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("ads: expected map[string]any for struct type %s, got %T", t.Name, v)
	}
	out := make([]byte, t.Size)
	for _, item := range t.Items {
		fv, present := m[item.Name]
		if !present {
			return nil, &ErrIncompleteObject{Type: t.Name, Field: item.Name}
		}
		b, err := Serialize(fv, item.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", item.Name, err)
		}
		copy(out[item.Offset:], b)
	}
	return out, nil
}

func serializeEnum(v any, t *ResolvedType) ([]byte, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case float64:
		n = int64(x)
	case string:
		found := false
		for _, ev := range t.EnumValues {
			if ev.Name == x {
				n, found = ev.Value, true
				break
			}
		}
		if !found {
			parsed, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("ads: unknown enum name %q for type %s", x, t.Name)
			}
			n = parsed
		}
	case map[string]any:
		if name, ok := x["name"].(string); ok && name != "" {
			return serializeEnum(name, t)
		}
		if val, ok := x["value"]; ok {
			return serializeEnum(val, t)
		}
		return nil, fmt.Errorf("ads: enum map for %s has neither name nor value", t.Name)
	default:
		return nil, fmt.Errorf("ads: unsupported enum value type %T for %s", v, t.Name)
	}
	underlying := &ResolvedType{Tag: intTagForSize(t.Size), Size: t.Size}
	return serializeScalar(n, underlying)
}

func serializeScalar(v any, t *ResolvedType) ([]byte, error) {
	out := make([]byte, t.Size)
	switch t.Tag {
	case TypeBit:
		b, ok := v.(bool)
		if !ok {
			n, _ := toInt64(v)
			b = n != 0
		}
		if b {
			out[0] = 1
		}
	case TypeInt8:
		out[0] = byte(asInt64(v))
	case TypeUint8:
		out[0] = byte(asInt64(v))
	case TypeInt16:
		binary.LittleEndian.PutUint16(out, uint16(asInt64(v)))
	case TypeUint16:
		binary.LittleEndian.PutUint16(out, uint16(asInt64(v)))
	case TypeInt32:
		binary.LittleEndian.PutUint32(out, uint32(asInt64(v)))
	case TypeUint32:
		if ts, ok := v.(time.Time); ok {
			binary.LittleEndian.PutUint32(out, uint32(ts.Unix()))
		} else {
			binary.LittleEndian.PutUint32(out, uint32(asInt64(v)))
		}
	case TypeInt64:
		binary.LittleEndian.PutUint64(out, uint64(asInt64(v)))
	case TypeUint64:
		binary.LittleEndian.PutUint64(out, uint64(asInt64(v)))
	case TypeReal32:
		f, _ := asFloat64(v)
		binary.LittleEndian.PutUint32(out, math.Float32bits(float32(f)))
	case TypeReal64:
		f, _ := asFloat64(v)
		binary.LittleEndian.PutUint64(out, math.Float64bits(f))
	case TypeString:
		s, _ := v.(string)
		copy(out, s)
	case TypeWString:
		s, _ := v.(string)
		encodeWString(out, s)
	default:
		return nil, fmt.Errorf("ads: cannot serialize scalar of tag 0x%02X", t.Tag)
	}
	return out, nil
}

func encodeWString(out []byte, s string) {
	i := 0
	for _, r := range s {
		if i+2 > len(out)-2 {
			break
		}
		if r > 0xFFFF {
			r -= 0x10000
			hi := 0xD800 + (r >> 10)
			lo := 0xDC00 + (r & 0x3FF)
			binary.LittleEndian.PutUint16(out[i:], uint16(hi))
			i += 2
			binary.LittleEndian.PutUint16(out[i:], uint16(lo))
			i += 2
			continue
		}
		binary.LittleEndian.PutUint16(out[i:], uint16(r))
		i += 2
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		i := asInt64(v)
		return float64(i), true
	}
}
