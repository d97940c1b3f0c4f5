package quant

import (
	"testing"

	"github.com/524D/lfquant/internal/config"
	"github.com/524D/lfquant/internal/ident"
	"github.com/524D/lfquant/internal/isotopes"
	"github.com/524D/lfquant/internal/peakindex"
)

// sliceSource is an in-memory MS1 source for tests
type sliceSource struct {
	scans []peakindex.Ms1ScanInfo
	mz    [][]float64
	inten [][]float64
}

func (s *sliceSource) EachMS1Scan(f func(info peakindex.Ms1ScanInfo, mz, intensity []float64) error) error {
	for i, info := range s.scans {
		if err := f(info, s.mz[i], s.inten[i]); err != nil {
			return err
		}
	}
	return nil
}

// scanPeaks is the centroid list of one synthetic scan, given as
// (neutral mass, charge, intensity) triples
type scanPeaks []struct {
	mass      float64
	charge    int
	intensity float64
}

// makeIndex builds a peak index over synthetic scans. Scan i gets index
// startIdx+i and retention time rts[i].
func makeIndex(t *testing.T, startIdx int, rts []float64, peaks []scanPeaks) (*peakindex.Index, []peakindex.Ms1ScanInfo) {
	t.Helper()
	src := &sliceSource{}
	for i, rt := range rts {
		src.scans = append(src.scans, peakindex.Ms1ScanInfo{
			ScanIndex:  startIdx + i,
			ScanNumber: startIdx + i + 1,
			RT:         rt,
		})
		var mz, inten []float64
		if i < len(peaks) {
			for _, p := range peaks[i] {
				mz = append(mz, peakindex.Mz(p.mass, p.charge))
				inten = append(inten, p.intensity)
			}
		}
		src.mz = append(src.mz, mz)
		src.inten = append(src.inten, inten)
	}
	x, err := peakindex.Build(src)
	if err != nil {
		t.Fatalf("Build: error return %v", err)
	}
	return x, x.Scans()
}

// makeIdent builds an identification with a two-isotope pattern
// (abundances 1.0 and 0.45)
func makeIdent(seq string, mass float64, charge int, rt float64) *ident.Identification {
	return &ident.Identification{
		FileName:         "run1",
		BaseSequence:     seq,
		ModifiedSequence: seq,
		MonoisotopicMass: mass,
		PrecursorCharge:  charge,
		MS2RetentionTime: rt,
		PeakfindingMass:  mass,
		Isotopes: isotopes.Pattern{
			{MassShift: 0, Abundance: 1.0},
			{MassShift: isotopes.C13MassShift, Abundance: 0.45},
		},
	}
}

func testSettings() *config.Settings {
	cfg := config.Default()
	cfg.MaxThreads = 2
	return &cfg
}

// envAt builds an envelope with the given scan index, RT and intensity
func envAt(scanIndex int, rt, intensity float64, charge int) *IsotopicEnvelope {
	return &IsotopicEnvelope{
		Peak: &peakindex.IndexedPeak{
			Mz:        500.0 + float64(scanIndex)*1e-4,
			Intensity: intensity,
			ScanIndex: scanIndex,
			RT:        rt,
		},
		Charge:      charge,
		Intensity:   intensity,
		Correlation: 1.0,
	}
}
