package quant

import (
	"math"
	"testing"

	"github.com/524D/lfquant/internal/ident"
	"github.com/524D/lfquant/internal/isotopes"
)

func singlePeakContext(t *testing.T) (*RunContext, *ident.Identification) {
	t.Helper()
	cfg := testSettings()
	id := makeIdent("PEPTIDEK", testMass, 2, 10.0)

	rts := []float64{9.8, 9.9, 10.0, 10.1, 10.2}
	mono := []float64{50, 80, 100, 80, 50}
	var peaks []scanPeaks
	for _, m := range mono {
		peaks = append(peaks, scanPeaks{
			{testMass, 2, m},
			{testMass + isotopes.C13MassShift, 2, 0.45 * m},
		})
	}
	index, scans := makeIndex(t, 98, rts, peaks)
	run := &RunInfo{FilePath: "run1.mzML"}
	return &RunContext{Run: run, Index: index, Scans: scans, Settings: cfg}, id
}

// One identification over a clean five-scan peak: one chromatographic
// peak with the apex at the middle scan
func TestQuantifyRunSinglePeak(t *testing.T) {
	ctx, id := singlePeakContext(t)

	peaks := QuantifyRun(ctx, []*ident.Identification{id})
	if len(peaks) != 1 {
		t.Fatalf("QuantifyRun: %d peaks, want 1", len(peaks))
	}
	peak := peaks[0]
	if peak.Apex == nil {
		t.Fatal("QuantifyRun: no apex")
	}
	if peak.Apex.Peak.ScanIndex != 100 {
		t.Errorf("apex scan %d, want 100", peak.Apex.Peak.ScanIndex)
	}
	if math.Abs(peak.Intensity-145) > 1e-9 {
		t.Errorf("intensity %f, want 145", peak.Intensity)
	}
	if len(peak.Envelopes) != 5 {
		t.Errorf("envelopes %d, want 5", len(peak.Envelopes))
	}
	if got := peak.ChargeList(); len(got) != 1 || got[0] != 2 {
		t.Errorf("charge list %v, want [2]", got)
	}
	if peak.IsMBR {
		t.Error("IsMBR set on an MS2 peak")
	}
}

// With integration enabled the intensity is the trapezoidal area over
// the apex-charge envelopes
func TestQuantifyRunIntegrate(t *testing.T) {
	ctx, id := singlePeakContext(t)
	ctx.Settings.Integrate = true

	peaks := QuantifyRun(ctx, []*ident.Identification{id})
	if len(peaks) != 1 {
		t.Fatalf("QuantifyRun: %d peaks, want 1", len(peaks))
	}
	// Envelope sums: 72.5, 116, 145, 116, 72.5
	want := (72.5+116)/2 + (116+145)/2 + (145+116)/2 + (116+72.5)/2
	if math.Abs(peaks[0].Intensity-want) > 1e-9 {
		t.Errorf("integrated intensity %f, want %f", peaks[0].Intensity, want)
	}
}

// An identification whose precursor charge has no envelopes yields an
// empty peak
func TestQuantifyRunWrongCharge(t *testing.T) {
	ctx, id := singlePeakContext(t)
	id.PrecursorCharge = 3

	peaks := QuantifyRun(ctx, []*ident.Identification{id})
	if len(peaks) != 1 {
		t.Fatalf("QuantifyRun: %d peaks, want 1", len(peaks))
	}
	if len(peaks[0].Envelopes) != 0 || peaks[0].Apex != nil {
		t.Errorf("expected empty peak for charge 3, got %d envelopes", len(peaks[0].Envelopes))
	}
}

// Ambiguous identifications are skipped unless configured otherwise
func TestQuantifyRunAmbiguous(t *testing.T) {
	ctx, id := singlePeakContext(t)
	id.ModifiedSequence = "PEPTIDEK|PEPTLDEK"

	peaks := QuantifyRun(ctx, []*ident.Identification{id})
	if len(peaks) != 0 {
		t.Fatalf("QuantifyRun: %d peaks, want 0 (ambiguous)", len(peaks))
	}

	ctx.Settings.QuantifyAmbiguousPeptides = true
	peaks = QuantifyRun(ctx, []*ident.Identification{id})
	if len(peaks) != 1 {
		t.Fatalf("QuantifyRun: %d peaks, want 1 (ambiguous allowed)", len(peaks))
	}
}

func TestChargeRange(t *testing.T) {
	cfg := testSettings()
	ids := []*ident.Identification{
		{PrecursorCharge: 2},
		{PrecursorCharge: 4},
		{PrecursorCharge: 3},
	}
	lo, hi := ChargeRange(ids, cfg)
	if lo != 2 || hi != 4 {
		t.Errorf("ChargeRange: %d..%d, want 2..4", lo, hi)
	}

	cfg.ChargeRange = "1:3"
	lo, hi = ChargeRange(ids, cfg)
	if lo != 1 || hi != 3 {
		t.Errorf("ChargeRange override: %d..%d, want 1..3", lo, hi)
	}
}
