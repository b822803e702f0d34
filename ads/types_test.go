package ads

import "testing"

func TestLookupBaseType(t *testing.T) {
	cases := []struct {
		name     string
		wantTag  DataType
		wantSize uint32
		wantOK   bool
	}{
		{"BOOL", TypeBit, 1, true},
		{"bool", TypeBit, 1, true}, // case-insensitive
		{"BYTE", TypeUint8, 1, true},
		{"USINT", TypeUint8, 1, true},
		{"SINT", TypeInt8, 1, true},
		{"UINT", TypeUint16, 2, true},
		{"WORD", TypeUint16, 2, true},
		{"INT", TypeInt16, 2, true},
		{"DINT", TypeInt32, 4, true},
		{"UDINT", TypeUint32, 4, true},
		{"DWORD", TypeUint32, 4, true},
		{"REAL", TypeReal32, 4, true},
		{"LREAL", TypeReal64, 8, true},
		{"LINT", TypeInt64, 8, true},
		{"ULINT", TypeUint64, 8, true},
		{"LWORD", TypeUint64, 8, true},
		{"NOT_A_TYPE", 0, 0, false},
	}
	for _, tc := range cases {
		e, ok := lookupBaseType(tc.name)
		if ok != tc.wantOK {
			t.Errorf("%s: got ok=%v, want %v", tc.name, ok, tc.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if e.tag != tc.wantTag || e.size != tc.wantSize {
			t.Errorf("%s: got %+v, want tag=%v size=%d", tc.name, e, tc.wantTag, tc.wantSize)
		}
	}
}

func TestLookupBaseType_DateFamilySecondsEpoch(t *testing.T) {
	for _, name := range []string{"DATE", "DT", "DATE_AND_TIME"} {
		e, ok := lookupBaseType(name)
		if !ok {
			t.Fatalf("%s: expected lookup to succeed", name)
		}
		if !e.secondsEpoch {
			t.Errorf("%s: expected secondsEpoch flag set", name)
		}
	}
	// Plain UINT32 must not carry the date flag.
	e, _ := lookupBaseType("UDINT")
	if e.secondsEpoch {
		t.Error("UDINT must not be treated as a seconds-since-epoch type")
	}
}

func TestIsPseudoType(t *testing.T) {
	for _, name := range []string{"POINTER", "pointer", "REFERENCE", "PVOID", "XINT", "UXINT", "XWORD"} {
		if !isPseudoType(name) {
			t.Errorf("%s: expected pseudo-type", name)
		}
	}
	if isPseudoType("DINT") {
		t.Error("DINT must not be a pseudo-type")
	}
}

func TestBaseTypeBySize(t *testing.T) {
	cases := []struct {
		size     uint32
		wantName string
		wantOK   bool
	}{
		{1, "BYTE", true},
		{2, "WORD", true},
		{4, "DWORD", true},
		{8, "LWORD", true},
		{3, "", false},
		{16, "", false},
	}
	for _, tc := range cases {
		name, _, ok := baseTypeBySize(tc.size)
		if ok != tc.wantOK || name != tc.wantName {
			t.Errorf("size %d: got name=%q ok=%v, want name=%q ok=%v", tc.size, name, ok, tc.wantName, tc.wantOK)
		}
	}
}

func TestTrimArraySuffix(t *testing.T) {
	cases := map[string]string{
		"STRING(80)":  "STRING",
		"WSTRING(10)": "WSTRING",
		"DINT":        "DINT",
		"":            "",
	}
	for in, want := range cases {
		if got := trimArraySuffix(in); got != want {
			t.Errorf("trimArraySuffix(%q) = %q, want %q", in, got, want)
		}
	}
}
