package peakindex

import (
	"math"
	"testing"
)

// sliceSource is an in-memory MS1 source for tests
type sliceSource struct {
	scans []Ms1ScanInfo
	mz    [][]float64
	inten [][]float64
}

func (s *sliceSource) EachMS1Scan(f func(info Ms1ScanInfo, mz, intensity []float64) error) error {
	for i, info := range s.scans {
		if err := f(info, s.mz[i], s.inten[i]); err != nil {
			return err
		}
	}
	return nil
}

func testSource() *sliceSource {
	mass := 1000.5
	return &sliceSource{
		scans: []Ms1ScanInfo{
			{ScanIndex: 0, ScanNumber: 1, RT: 10.0},
			{ScanIndex: 1, ScanNumber: 3, RT: 10.1},
			{ScanIndex: 2, ScanNumber: 5, RT: 10.2},
		},
		mz: [][]float64{
			{Mz(mass, 2), 400.0},
			{Mz(mass, 2), Mz(mass, 2) + 1e-5, 900.0},
			{500.0},
		},
		inten: [][]float64{
			{100, 10},
			{50, 80, 20},
			{30},
		},
	}
}

func TestBuildAndGet(t *testing.T) {
	x, err := Build(testSource())
	if err != nil {
		t.Fatalf("Build: error return %v", err)
	}
	if x.NumPeaks() != 6 {
		t.Errorf("NumPeaks: %d, want 6", x.NumPeaks())
	}
	if len(x.Scans()) != 3 {
		t.Fatalf("Scans: %d, want 3", len(x.Scans()))
	}

	mass := 1000.5
	p := x.Get(mass, 0, 10, 2)
	if p == nil {
		t.Fatal("Get: no peak found in scan 0")
	}
	if p.Intensity != 100 {
		t.Errorf("Get: intensity %f, want 100", p.Intensity)
	}
	if p.ScanIndex != 0 || p.RT != 10.0 {
		t.Errorf("Get: scan %d rt %f", p.ScanIndex, p.RT)
	}
	obsMass := NeutralMass(p.Mz, 2)
	if math.Abs(obsMass-mass) > 1e-9 {
		t.Errorf("NeutralMass: %f, want %f", obsMass, mass)
	}
}

// Two in-tolerance peaks in the same scan: the more intense one wins
func TestGetMostIntense(t *testing.T) {
	x, err := Build(testSource())
	if err != nil {
		t.Fatalf("Build: error return %v", err)
	}
	p := x.Get(1000.5, 1, 10, 2)
	if p == nil {
		t.Fatal("Get: no peak found in scan 1")
	}
	if p.Intensity != 80 {
		t.Errorf("Get: intensity %f, want 80 (most intense in tolerance)", p.Intensity)
	}
}

func TestGetMisses(t *testing.T) {
	x, _ := Build(testSource())
	if p := x.Get(1000.5, 2, 10, 2); p != nil {
		t.Errorf("Get: unexpected peak %+v in scan 2", p)
	}
	if p := x.Get(2000.0, 0, 10, 2); p != nil {
		t.Errorf("Get: unexpected peak %+v for absent mass", p)
	}
	// Out of ppm tolerance
	if p := x.Get(1000.5*(1+50e-6), 0, 10, 2); p != nil {
		t.Errorf("Get: peak found 50 ppm away: %+v", p)
	}
}

func TestMzRoundTrip(t *testing.T) {
	for _, charge := range []int{1, 2, 3, 4} {
		mass := 1234.5678
		back := NeutralMass(Mz(mass, charge), charge)
		if math.Abs(back-mass) > 1e-9 {
			t.Errorf("charge %d: round trip %f, want %f", charge, back, mass)
		}
	}
}

func TestKeyIdentity(t *testing.T) {
	a := &IndexedPeak{Mz: 500.25, ScanIndex: 7}
	b := &IndexedPeak{Mz: 500.25, ScanIndex: 7, Intensity: 99}
	if a.Key() != b.Key() {
		t.Errorf("Key: %+v != %+v", a.Key(), b.Key())
	}
}
