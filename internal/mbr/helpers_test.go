package mbr

import (
	"testing"

	"github.com/524D/lfquant/internal/config"
	"github.com/524D/lfquant/internal/ident"
	"github.com/524D/lfquant/internal/isotopes"
	"github.com/524D/lfquant/internal/peakindex"
	"github.com/524D/lfquant/internal/quant"
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

func testSettings() *config.Settings {
	cfg := config.Default()
	cfg.MaxThreads = 2
	return &cfg
}

func twoIsotopePattern() isotopes.Pattern {
	return isotopes.Pattern{
		{MassShift: 0, Abundance: 1.0},
		{MassShift: isotopes.C13MassShift, Abundance: 0.45},
	}
}

// msPeak fabricates a finished MS2 chromatographic peak with a single
// apex envelope. ppmOffset shifts the observed mass in ppm.
func msPeak(run *quant.RunInfo, seq string, mass, apexRT float64,
	scanIdx int, ppmOffset, intensity, qValue float64) *quant.ChromatographicPeak {

	id := &ident.Identification{
		FileName:         run.Label(),
		BaseSequence:     seq,
		ModifiedSequence: seq,
		MonoisotopicMass: mass,
		PeakfindingMass:  mass,
		PrecursorCharge:  2,
		MS2RetentionTime: apexRT,
		PSMScore:         10,
		QValue:           qValue,
		Isotopes:         twoIsotopePattern(),
	}
	obsMass := mass * (1 + ppmOffset*1e-6)
	apex := &quant.IsotopicEnvelope{
		Peak: &peakindex.IndexedPeak{
			Mz:        peakindex.Mz(obsMass, 2),
			Intensity: intensity,
			ScanIndex: scanIdx,
			RT:        apexRT,
		},
		Charge:      2,
		Intensity:   intensity,
		Correlation: 1.0,
	}
	return &quant.ChromatographicPeak{
		Run:       run,
		Envelopes: []*quant.IsotopicEnvelope{apex},
		Apex:      apex,
		Intensity: intensity,
		Idents:    []*ident.Identification{id},
	}
}

// acceptorContext builds an acceptor run whose index holds the peptide's
// isotope envelope at scans 20.30..20.50 with the apex at 20.40
func acceptorContext(t *testing.T, run *quant.RunInfo, mass float64,
	cfg *config.Settings) *quant.RunContext {
	t.Helper()

	rts := []float64{20.30, 20.35, 20.40, 20.45, 20.50}
	mono := []float64{0, 300, 500, 400, 0}
	src := &sliceSource{}
	for i, rt := range rts {
		src.scans = append(src.scans, peakindex.Ms1ScanInfo{ScanIndex: i, ScanNumber: i + 1, RT: rt})
		var mz, inten []float64
		if mono[i] > 0 {
			mz = append(mz, peakindex.Mz(mass, 2), peakindex.Mz(mass+isotopes.C13MassShift, 2))
			inten = append(inten, mono[i], 0.45*mono[i])
		}
		src.mz = append(src.mz, mz)
		src.inten = append(src.inten, inten)
	}
	index, err := peakindex.Build(src)
	if err != nil {
		t.Fatalf("Build: error return %v", err)
	}
	return &quant.RunContext{Run: run, Index: index, Scans: index.Scans(), Settings: cfg}
}
