package ads

import "strings"

// ADS data type tags (the `adsDataType` field of a resolved type), per
// spec.md §4.7's base-type table. Grounded on the teacher's ads/types.go
// type-code constants, renamed to the spec's tag vocabulary and extended
// with the BIT tag spec.md distinguishes from UINT8.
type DataType uint16

const (
	TypeVoid    DataType = 0x00
	TypeBit     DataType = 0x01 // BOOL/BIT/BIT8
	TypeInt8    DataType = 0x02
	TypeUint8   DataType = 0x03
	TypeInt16   DataType = 0x04
	TypeUint16  DataType = 0x05
	TypeInt32   DataType = 0x06
	TypeUint32  DataType = 0x07
	TypeInt64   DataType = 0x08
	TypeUint64  DataType = 0x09
	TypeReal32  DataType = 0x0A
	TypeReal64  DataType = 0x0B
	TypeString  DataType = 0x1E
	TypeWString DataType = 0x1F
	TypeStruct  DataType = 0x41
	TypeEnum    DataType = 0x42 // carries an underlying primitive + enumInfo
)

// baseTypeEntry describes one row of spec.md §4.7's base-type table.
type baseTypeEntry struct {
	tag  DataType
	size uint32
	// secondsEpoch marks DATE/DT-family types whose UINT32 payload is
	// seconds-since-epoch rather than a plain integer.
	secondsEpoch bool
}

// baseTypes maps every alias name spec.md §4.7 lists to its tag and size.
// STRING/WSTRING are handled separately since their size depends on a
// declared length.
var baseTypes = map[string]baseTypeEntry{
	"BOOL": {TypeBit, 1, false}, "BIT": {TypeBit, 1, false}, "BIT8": {TypeBit, 1, false},

	"BYTE": {TypeUint8, 1, false}, "USINT": {TypeUint8, 1, false}, "UINT8": {TypeUint8, 1, false}, "BITARR8": {TypeUint8, 1, false},

	"SINT": {TypeInt8, 1, false}, "INT8": {TypeInt8, 1, false},

	"UINT": {TypeUint16, 2, false}, "WORD": {TypeUint16, 2, false}, "UINT16": {TypeUint16, 2, false}, "BITARR16": {TypeUint16, 2, false},

	"INT": {TypeInt16, 2, false}, "INT16": {TypeInt16, 2, false},

	"DINT": {TypeInt32, 4, false}, "INT32": {TypeInt32, 4, false},

	"UDINT": {TypeUint32, 4, false}, "DWORD": {TypeUint32, 4, false}, "TIME": {TypeUint32, 4, false},
	"TOD": {TypeUint32, 4, false}, "UINT32": {TypeUint32, 4, false}, "BITARR32": {TypeUint32, 4, false},

	"DATE": {TypeUint32, 4, true}, "DT": {TypeUint32, 4, true}, "DATE_AND_TIME": {TypeUint32, 4, true},

	"REAL": {TypeReal32, 4, false}, "FLOAT": {TypeReal32, 4, false},

	"LREAL": {TypeReal64, 8, false}, "DOUBLE": {TypeReal64, 8, false},

	"LINT": {TypeInt64, 8, false}, "INT64": {TypeInt64, 8, false},

	"ULINT": {TypeUint64, 8, false}, "LWORD": {TypeUint64, 8, false}, "LTIME": {TypeUint64, 8, false}, "UINT64": {TypeUint64, 8, false},
}

// pseudoTypes names pointer and reference pseudo-types, which are never
// followed recursively. tryPrimitive resolves every one of them to a
// 4-byte DWORD; the size declared by the target's type entry is not
// consulted.
var pseudoTypes = map[string]bool{
	"POINTER": true, "REFERENCE": true, "PVOID": true,
	"XINT": true, "UXINT": true, "XWORD": true,
}

// lookupBaseType resolves a base-type alias case-insensitively. ok is
// false for STRING(n)/WSTRING(n) (handled by parseStringLikeType) and for
// names the table does not recognize.
func lookupBaseType(name string) (baseTypeEntry, bool) {
	e, ok := baseTypes[strings.ToUpper(name)]
	return e, ok
}

// isPseudoType reports whether name is a pointer/reference pseudo-type.
func isPseudoType(name string) bool {
	return pseudoTypes[strings.ToUpper(strings.TrimSpace(trimArraySuffix(name)))]
}

// baseTypeBySize synthesizes a concrete integer base-type name for a
// given byte size, used to resolve pseudo-types and as the older-target
// fallback in spec.md §4.6.
func baseTypeBySize(size uint32) (string, baseTypeEntry, bool) {
	switch size {
	case 1:
		return "BYTE", baseTypes["BYTE"], true
	case 2:
		return "WORD", baseTypes["WORD"], true
	case 4:
		return "DWORD", baseTypes["DWORD"], true
	case 8:
		return "LWORD", baseTypes["LWORD"], true
	default:
		return "", baseTypeEntry{}, false
	}
}

func trimArraySuffix(name string) string {
	if i := strings.IndexByte(name, '('); i >= 0 {
		return name[:i]
	}
	return name
}
