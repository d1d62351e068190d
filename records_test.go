package gcp

import "testing"

func TestParseFwVersionString(t *testing.T) {
	v := FwVersion{Major: 2, Minor: 4, Patch: 0, Suffix: [3]byte{'r', 'c', '1'}}
	if got := v.String(); got != "2.4.0rc1" {
		t.Fatalf("String() = %q, want %q", got, "2.4.0rc1")
	}

	v2 := FwVersion{Major: 1, Minor: 0, Patch: 3}
	if got := v2.String(); got != "1.0.3" {
		t.Fatalf("String() = %q, want %q", got, "1.0.3")
	}
}

func TestParseFwVersionTooShort(t *testing.T) {
	if _, err := parseFwVersion([]byte{1, 2}); err == nil {
		t.Fatalf("expected error for short fw version payload")
	}
}

func TestSliceAckFwVersionScenario3(t *testing.T) {
	// Scenario 3 from spec.md §8: exactly 12-byte payload for GET_FW_VER
	// decodes as bytes[6..12].
	payload := []byte{0x05, 0x20, 0, 0, 0, 0, 3, 9, 1, 'a', 'b', 'c'}
	_, _, trailing, err := sliceAck(payload, CmdGetFwVer, fwVersionSize)
	if err != nil {
		t.Fatalf("sliceAck: %v", err)
	}
	fv, err := parseFwVersion(trailing)
	if err != nil {
		t.Fatalf("parseFwVersion: %v", err)
	}
	if fv.Major != 3 || fv.Minor != 9 || fv.Patch != 1 || string(fv.Suffix[:]) != "abc" {
		t.Fatalf("fv = %+v", fv)
	}
}
