package quant

import (
	"testing"
)

// A valley between two maxima cuts the peak; the side holding the
// identification RT is kept
func TestCutPeakValley(t *testing.T) {
	// Intensities [10, 50, 100, 20, 90, 30]; the scan after the valley
	// (index 4) is absent, the next envelope sits at scan 5
	peak := &ChromatographicPeak{
		Envelopes: []*IsotopicEnvelope{
			envAt(0, 0.0, 10, 2),
			envAt(1, 0.1, 50, 2),
			envAt(2, 0.2, 100, 2),
			envAt(3, 0.3, 20, 2),
			envAt(5, 0.5, 90, 2),
			envAt(6, 0.6, 30, 2),
		},
	}
	peak.CalculateIntensity(false)
	if peak.Apex.Intensity != 100 {
		t.Fatalf("apex intensity %f, want 100", peak.Apex.Intensity)
	}

	CutPeak(peak, 0.2, 0.6, false)

	if len(peak.Envelopes) != 3 {
		t.Fatalf("CutPeak: %d envelopes, want 3", len(peak.Envelopes))
	}
	want := []float64{10, 50, 100}
	for i, e := range peak.Envelopes {
		if e.Intensity != want[i] {
			t.Errorf("envelope %d: intensity %f, want %f", i, e.Intensity, want[i])
		}
	}
	if peak.SplitRT != 0.3 {
		t.Errorf("SplitRT: %f, want 0.3", peak.SplitRT)
	}
	if peak.Intensity != 100 {
		t.Errorf("Intensity: %f, want 100", peak.Intensity)
	}

	// The identification RT lies within the retained span
	lo, hi := peak.RTSpan()
	if 0.2 < lo || 0.2 > hi {
		t.Errorf("RT span %f..%f does not contain the identification RT", lo, hi)
	}
}

// Fewer than five points are never cut
func TestCutPeakTooFewPoints(t *testing.T) {
	peak := &ChromatographicPeak{
		Envelopes: []*IsotopicEnvelope{
			envAt(0, 0.0, 100, 2),
			envAt(1, 0.1, 5, 2),
			envAt(2, 0.2, 90, 2),
			envAt(3, 0.3, 10, 2),
		},
	}
	peak.CalculateIntensity(false)
	CutPeak(peak, 0.0, 0.6, false)
	if len(peak.Envelopes) != 4 {
		t.Errorf("CutPeak: %d envelopes, want 4 (no cut below 5 points)", len(peak.Envelopes))
	}
}

// A shallow dip below the discrimination factor does not cut
func TestCutPeakShallowValley(t *testing.T) {
	peak := &ChromatographicPeak{
		Envelopes: []*IsotopicEnvelope{
			envAt(0, 0.0, 60, 2),
			envAt(1, 0.1, 80, 2),
			envAt(2, 0.2, 100, 2),
			envAt(3, 0.3, 70, 2),
			envAt(4, 0.4, 90, 2),
			envAt(5, 0.5, 50, 2),
		},
	}
	peak.CalculateIntensity(false)
	CutPeak(peak, 0.2, 0.6, false)
	if len(peak.Envelopes) != 6 {
		t.Errorf("CutPeak: %d envelopes, want 6 (no cut)", len(peak.Envelopes))
	}
	if peak.SplitRT != 0 {
		t.Errorf("SplitRT: %f, want 0", peak.SplitRT)
	}
}

// Only envelopes at the apex charge state are considered for valleys
func TestCutPeakIgnoresOtherCharges(t *testing.T) {
	peak := &ChromatographicPeak{
		Envelopes: []*IsotopicEnvelope{
			envAt(0, 0.0, 60, 2),
			envAt(1, 0.1, 80, 2),
			envAt(2, 0.2, 100, 2),
			envAt(3, 0.3, 70, 2),
			envAt(4, 0.4, 90, 2),
			// A deep valley, but at charge 3
			envAt(3, 0.3, 1, 3),
		},
	}
	peak.CalculateIntensity(false)
	CutPeak(peak, 0.2, 0.6, false)
	if len(peak.Envelopes) != 6 {
		t.Errorf("CutPeak: %d envelopes, want 6 (valley at foreign charge)", len(peak.Envelopes))
	}
}
