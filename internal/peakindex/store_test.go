package peakindex

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// The persisted index must round-trip exactly: same scans, same peaks,
// same query results
func TestSaveLoadRoundTrip(t *testing.T) {
	x, err := Build(testSource())
	if err != nil {
		t.Fatalf("Build: error return %v", err)
	}

	path := filepath.Join(t.TempDir(), "run1.peakindex")
	if err := x.Save(path); err != nil {
		t.Fatalf("Save: error return %v", err)
	}
	y, err := Load(path)
	if err != nil {
		t.Fatalf("Load: error return %v", err)
	}

	if diff := cmp.Diff(x.Scans(), y.Scans()); diff != "" {
		t.Errorf("Scans mismatch (-want +got):\n%s", diff)
	}
	if x.NumPeaks() != y.NumPeaks() {
		t.Errorf("NumPeaks: %d, want %d", y.NumPeaks(), x.NumPeaks())
	}

	// Queries against the rehydrated index return identical centroids
	for scan := 0; scan < 3; scan++ {
		orig := x.Get(1000.5, scan, 10, 2)
		loaded := y.Get(1000.5, scan, 10, 2)
		if (orig == nil) != (loaded == nil) {
			t.Fatalf("scan %d: presence mismatch", scan)
		}
		if orig == nil {
			continue
		}
		if *orig != *loaded {
			t.Errorf("scan %d: %+v != %+v", scan, *orig, *loaded)
		}
	}
}

func TestSaveOverwrites(t *testing.T) {
	x, _ := Build(testSource())
	path := filepath.Join(t.TempDir(), "run1.peakindex")
	if err := x.Save(path); err != nil {
		t.Fatalf("Save: error return %v", err)
	}
	// Saving again must not duplicate rows
	if err := x.Save(path); err != nil {
		t.Fatalf("Save: error return %v", err)
	}
	y, err := Load(path)
	if err != nil {
		t.Fatalf("Load: error return %v", err)
	}
	if y.NumPeaks() != x.NumPeaks() {
		t.Errorf("NumPeaks after double save: %d, want %d", y.NumPeaks(), x.NumPeaks())
	}
}
