package mzml

import (
	"github.com/524D/lfquant/internal/peakindex"
)

// Source adapts an MzML file to the streaming MS1 interface consumed by
// the peak index. MS2 spectra are skipped; profile MS1 spectra are an
// error, as the engine requires centroided input.
type Source struct {
	m *MzML
}

// NewSource wraps a parsed mzML file
func NewSource(m *MzML) *Source {
	return &Source{m: m}
}

// EachMS1Scan calls f for every centroided MS1 scan, in file order.
// The MS1 scan index is zero-based over MS1 scans only; the scan number
// is the one-based position of the spectrum in the file.
func (s *Source) EachMS1Scan(f func(info peakindex.Ms1ScanInfo, mz, intensity []float64) error) error {
	ms1Index := 0
	numSpecs := s.m.NumSpecs()
	for i := 0; i < numSpecs; i++ {
		msLevel, err := s.m.MSLevel(i)
		if err != nil {
			return err
		}
		if msLevel != 1 {
			continue
		}
		centroid, err := s.m.Centroid(i)
		if err != nil {
			return err
		}
		if !centroid {
			return ErrProfileSpectrum
		}
		rt, err := s.m.RetentionTime(i)
		if err != nil {
			return err
		}
		peaks, err := s.m.ReadScan(i)
		if err != nil {
			return err
		}
		mz := make([]float64, len(peaks))
		intensity := make([]float64, len(peaks))
		for j, p := range peaks {
			mz[j] = p.Mz
			intensity[j] = p.Intens
		}
		info := peakindex.Ms1ScanInfo{
			ScanIndex:  ms1Index,
			ScanNumber: i + 1,
			RT:         rt / 60.0, // the engine works in minutes
		}
		if err := f(info, mz, intensity); err != nil {
			return err
		}
		ms1Index++
	}
	return nil
}
