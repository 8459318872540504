//go:build !windows

package winpipe

import (
	"context"
	"testing"
)

func TestUnsupportedOffWindows(t *testing.T) {
	tr := New(Options{})
	if _, err := tr.Dial(context.Background(), "iotedge-fabric"); err != ErrUnsupported {
		t.Fatalf("dial: expected ErrUnsupported, got %v", err)
	}
	if _, err := tr.Listen(context.Background(), "iotedge-fabric"); err != ErrUnsupported {
		t.Fatalf("listen: expected ErrUnsupported, got %v", err)
	}
}
