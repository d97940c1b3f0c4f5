package isotopes

import (
	"math"
	"testing"
)

func TestCompositionOfPeptide(t *testing.T) {
	// PEPTIDE: C34 H53 N7 O15
	comp, err := CompositionOf("PEPTIDE")
	if err != nil {
		t.Fatalf("CompositionOf: error return %v", err)
	}
	want := Composition{"C": 34, "H": 53, "N": 7, "O": 15}
	for el, n := range want {
		if comp[el] != n {
			t.Errorf("CompositionOf: element %s = %v, want %v", el, comp[el], n)
		}
	}
	mono := comp.MonoisotopicMass()
	if math.Abs(mono-799.35997) > 0.001 {
		t.Errorf("MonoisotopicMass: %f, want 799.360", mono)
	}
}

func TestCompositionOfInvalid(t *testing.T) {
	_, err := CompositionOf("PEPTIDEX1")
	if err != ErrUnknownAminoAcid {
		t.Errorf("CompositionOf: error return %v, should be ErrUnknownAminoAcid", err)
	}
}

func TestParseFormula(t *testing.T) {
	comp, err := ParseFormula("C34H53N7O15")
	if err != nil {
		t.Fatalf("ParseFormula: error return %v", err)
	}
	if comp["C"] != 34 || comp["H"] != 53 || comp["N"] != 7 || comp["O"] != 15 {
		t.Errorf("ParseFormula: %v", comp)
	}

	if _, err := ParseFormula("C2Xx4"); err == nil {
		t.Errorf("ParseFormula: expected error for unknown element")
	}
	if _, err := ParseFormula(""); err == nil {
		t.Errorf("ParseFormula: expected error for empty formula")
	}
}

func TestModelPattern(t *testing.T) {
	comp, _ := CompositionOf("PEPTIDE")
	mono := comp.MonoisotopicMass()
	pattern, peakfindingMass := Model(mono, "PEPTIDE", "", 2)

	if len(pattern) < 2 {
		t.Fatalf("Model: pattern has %d isotopes, want >= 2", len(pattern))
	}
	// For a small peptide the monoisotope is the most abundant
	if pattern[0].Abundance != 1.0 {
		t.Errorf("Model: monoisotope abundance %f, want 1.0", pattern[0].Abundance)
	}
	if peakfindingMass != mono {
		t.Errorf("Model: peakfinding mass %f, want %f", peakfindingMass, mono)
	}
	// Second isotope of C34H53N7O15 is ~40% of the monoisotope
	if pattern[1].Abundance < 0.3 || pattern[1].Abundance > 0.5 {
		t.Errorf("Model: second isotope abundance %f, want ~0.40", pattern[1].Abundance)
	}
	if math.Abs(pattern[1].MassShift-C13MassShift) > 0.01 {
		t.Errorf("Model: second isotope shift %f, want ~%f", pattern[1].MassShift, C13MassShift)
	}
	// Pattern is ordered by mass shift
	for i := 1; i < len(pattern); i++ {
		if pattern[i].MassShift <= pattern[i-1].MassShift {
			t.Errorf("Model: pattern not ordered at %d", i)
		}
	}
}

// For any identification without a formula, the derived composition must
// land within 20 Da of the identification mass after the averagine top-up
func TestAveragineTopUp(t *testing.T) {
	// A heavily modified peptide: sequence mass underestimates by 250 Da
	comp, _ := CompositionOf("PEPTIDE")
	idMass := comp.MonoisotopicMass() + 250.0

	pattern, peakfindingMass := Model(idMass, "PEPTIDE", "", 2)
	if len(pattern) == 0 {
		t.Fatal("Model: empty pattern")
	}
	// The peakfinding mass is the identification mass plus the shift of
	// the most abundant isotope, so it must be within a few isotope
	// spacings of the identification mass
	if math.Abs(peakfindingMass-idMass) > 3*C13MassShift {
		t.Errorf("Model: peakfinding mass %f too far from id mass %f", peakfindingMass, idMass)
	}
}

func TestAveragineFallback(t *testing.T) {
	// Unparseable sequence: pure averagine from the monoisotopic mass
	idMass := 1500.0
	pattern, _ := Model(idMass, "PEPT1DE*", "", 2)
	if len(pattern) < 2 {
		t.Fatalf("Model: pattern has %d isotopes, want >= 2", len(pattern))
	}
	units := idMass / AveragineMass()
	fallback := averagineUnits(units)
	if math.Abs(fallback.MonoisotopicMass()-idMass) > 1e-6 {
		t.Errorf("averagine fallback mass %f, want %f", fallback.MonoisotopicMass(), idMass)
	}
}

func TestPatternTruncation(t *testing.T) {
	// A large mass keeps isotopes while they stay above 10% abundance
	pattern, _ := Model(4000.0, "", "", 2)
	if len(pattern) < 3 {
		t.Fatalf("Model: pattern has %d isotopes for 4 kDa, want >= 3", len(pattern))
	}
	// Beyond the required count, all kept isotopes except the last must
	// exceed the truncation threshold
	for i := 2; i < len(pattern)-1; i++ {
		if pattern[i].Abundance <= 0.1 {
			t.Errorf("Model: isotope %d abundance %f kept below threshold", i, pattern[i].Abundance)
		}
	}
}

func TestMostAbundantIndex(t *testing.T) {
	p := Pattern{{0, 0.8}, {1.003, 1.0}, {2.007, 0.6}}
	if got := p.MostAbundantIndex(); got != 1 {
		t.Errorf("MostAbundantIndex: %d, want 1", got)
	}
}
