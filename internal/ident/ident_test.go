package ident

import (
	"strings"
	"testing"
)

const psmTSV = `File Name	Base Sequence	Full Sequence	Peptide Monoisotopic Mass	Scan Retention Time	Precursor Charge	Score	QValue	Protein Accession
run1	PEPTIDEK	PEPTIDEK	927.4549	10.0	2	12.5	0.001	P12345
run1	ELVISK	ELVISK[+42.0106]	743.4529	20.5	2	8.1	0.003	P12345;Q99999
run2	LIVEK	LIVEK	586.3948	5.2	1	0	0.2	rev_P55555
`

func TestReadTSV(t *testing.T) {
	ids, err := ReadTSV(strings.NewReader(psmTSV))
	if err != nil {
		t.Fatalf("ReadTSV: error return %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("ReadTSV: %d identifications, want 3", len(ids))
	}

	first := ids[0]
	if first.FileName != "run1" {
		t.Errorf("FileName: %s", first.FileName)
	}
	if first.BaseSequence != "PEPTIDEK" || first.ModifiedSequence != "PEPTIDEK" {
		t.Errorf("sequences: %s / %s", first.BaseSequence, first.ModifiedSequence)
	}
	if first.MonoisotopicMass != 927.4549 {
		t.Errorf("mass: %f", first.MonoisotopicMass)
	}
	if first.MS2RetentionTime != 10.0 {
		t.Errorf("rt: %f", first.MS2RetentionTime)
	}
	if first.PrecursorCharge != 2 {
		t.Errorf("charge: %d", first.PrecursorCharge)
	}
	if first.PSMScore != 12.5 || first.QValue != 0.001 {
		t.Errorf("score/q: %f/%f", first.PSMScore, first.QValue)
	}
	if len(first.ProteinGroups) != 1 || first.ProteinGroups[0] != "P12345" {
		t.Errorf("proteins: %v", first.ProteinGroups)
	}

	if got := ids[1].ProteinGroups; len(got) != 2 || got[1] != "Q99999" {
		t.Errorf("split proteins: %v", got)
	}
}

func TestReadTSVMissingColumn(t *testing.T) {
	_, err := ReadTSV(strings.NewReader("File Name\tBase Sequence\nrun1\tPEPTIDEK\n"))
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Errorf("ReadTSV: error return %v, want missing column", err)
	}
}

func TestMarkDecoys(t *testing.T) {
	ids, err := ReadTSV(strings.NewReader(psmTSV))
	if err != nil {
		t.Fatalf("ReadTSV: error return %v", err)
	}
	MarkDecoys(ids, "rev_")
	if ids[0].DecoyPeptide || ids[1].DecoyPeptide {
		t.Error("target identifications marked as decoys")
	}
	if !ids[2].DecoyPeptide {
		t.Error("decoy identification not marked")
	}
}

func TestComputeIsotopeModel(t *testing.T) {
	ids, _ := ReadTSV(strings.NewReader(psmTSV))
	id := ids[0]
	id.ComputeIsotopeModel(2)
	if len(id.Isotopes) < 2 {
		t.Fatalf("Isotopes: %d, want >= 2", len(id.Isotopes))
	}
	if id.PeakfindingMass == 0 {
		t.Error("PeakfindingMass not derived")
	}
}

func TestWhitelist(t *testing.T) {
	w := NewWhitelist(nil)
	if !w.Contains("ANYTHING") {
		t.Error("empty whitelist must admit everything")
	}
	w = NewWhitelist([]string{"PEPTIDEK"})
	if !w.Contains("PEPTIDEK") || w.Contains("OTHER") {
		t.Error("whitelist membership wrong")
	}
}

func TestAmbiguous(t *testing.T) {
	id := &Identification{ModifiedSequence: "PEPA|PEPB"}
	if !id.Ambiguous() {
		t.Error("Ambiguous: false for multi-sequence identification")
	}
	id.ModifiedSequence = "PEPA"
	if id.Ambiguous() {
		t.Error("Ambiguous: true for single sequence")
	}
}

func TestByFile(t *testing.T) {
	ids, _ := ReadTSV(strings.NewReader(psmTSV))
	byFile := ByFile(ids)
	if len(byFile["run1"]) != 2 || len(byFile["run2"]) != 1 {
		t.Errorf("ByFile: run1=%d run2=%d", len(byFile["run1"]), len(byFile["run2"]))
	}
}
