package identity

import "testing"

func TestParseAndString(t *testing.T) {
	id, err := Parse("edge-01/methodProbe")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id.DeviceID != "edge-01" || id.ModuleID != "methodProbe" {
		t.Fatalf("parsed parts mismatch: %#v", id)
	}
	if id.String() != "edge-01/methodProbe" {
		t.Fatalf("string form: %q", id.String())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "noslash", "/module", "device/", "a/b/c"} {
		if _, err := Parse(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := New("d1", "m1").Validate(); err != nil {
		t.Fatalf("valid identity rejected: %v", err)
	}
	if err := New("", "m1").Validate(); err == nil {
		t.Fatalf("empty device id accepted")
	}
	if err := New("d1", " ").Validate(); err == nil {
		t.Fatalf("blank module id accepted")
	}
}
