package common

import (
	"strings"
	"testing"
)

func TestMemoryFootprint_ValueExcludesChildren(t *testing.T) {
	fp := NewMemoryFootprint(12)
	fp.AddChild("child", NewMemoryFootprint(100))

	if got, want := fp.Value(), uintptr(12); got != want {
		t.Errorf("unexpected value, got %d, wanted %d", got, want)
	}
}

func TestMemoryFootprint_TotalIncludesChildren(t *testing.T) {
	fp := NewMemoryFootprint(12)
	fp.AddChild("left", NewMemoryFootprint(50))
	fp.AddChild("right", NewMemoryFootprint(100))

	if got, want := fp.Total(), uintptr(162); got != want {
		t.Errorf("unexpected total, got %d, wanted %d", got, want)
	}
}

func TestMemoryFootprint_SharedChildrenAreCountedOnce(t *testing.T) {
	shared := NewMemoryFootprint(100)
	fp := NewMemoryFootprint(0)
	fp.AddChild("a", shared)
	fp.AddChild("b", shared)

	if got, want := fp.Total(), uintptr(100); got != want {
		t.Errorf("unexpected total, got %d, wanted %d", got, want)
	}
}

func TestMemoryFootprint_IsPrintable(t *testing.T) {
	fp := NewMemoryFootprint(12)
	fp.AddChild("left", NewMemoryFootprint(50*1024))
	fp.AddChild("right", NewMemoryFootprint(10*1024*1024+200*1024))

	print := fp.String()
	for _, substr := range []string{"10.2 MB .", "50.0 KB ./left", "10.2 MB ./right"} {
		if !strings.Contains(print, substr) {
			t.Errorf("expected %v to contain substring %v", print, substr)
		}
	}
}
