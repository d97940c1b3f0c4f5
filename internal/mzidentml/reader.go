package mzidentml

import (
	"encoding/xml"
	"io"
	"math"
	"strconv"

	"golang.org/x/net/html/charset"
)

// CV terms carrying a PSM score, in order of decreasing preference.
// Expectation values are converted so that higher is always better.
var scoreTerms = []struct {
	accession string
	negLog    bool // true for expectation values (lower is better)
}{
	{"MS:1002466", false}, // PeptideShaker PSM score
	{"MS:1002257", true},  // Comet expectation value
	{"MS:1001330", true},  // X!Tandem expectation value
	{"MS:1001159", true},  // SEQUEST expectation value
}

// CV terms carrying a PSM-level q-value, in order of decreasing preference
var qValueTerms = []string{
	"MS:1002354", // PSM-level q-value
	"MS:1001868", // distinct peptide-level q-value
}

// Read reads mzIdentML content from an io.Reader
func Read(reader io.Reader) (MzIdentML, error) {
	var mzIdentML MzIdentML
	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel
	err := d.Decode(&mzIdentML.content)
	if err != nil {
		return mzIdentML, err
	}
	mzIdentML.buildPepID2Sequence()
	mzIdentML.buildIdentList()
	return mzIdentML, err
}

func (m *MzIdentML) buildPepID2Sequence() {
	m.seqID2PepIdx = make(map[string]int, len(m.content.Peptide))
	for i, p := range m.content.Peptide {
		m.seqID2PepIdx[p.ID] = i
	}
}

func (m *MzIdentML) buildIdentList() {
	for i := range m.content.SpectrumIdentificationResult {
		for j := range m.content.SpectrumIdentificationResult[i].SpectrumIdentificationItem {
			var iRef identRef
			iRef.specIDIdx = i
			iRef.specResultIdx = j
			m.identList = append(m.identList, iRef)
		}
	}
}

// NumIdents returns the total number of identifications in the mzIdentML file.
// Note that for some spectra, multiple identifications may be present.
// The identifications can be accessed using the Ident() method, which takes
// an index as argument. The index runs from 0 to NumIdents()-1
func (m *MzIdentML) NumIdents() int {
	return len(m.identList)
}

// Ident returns a spectrum identification from the mzIdentML file.
// Parameter i is the index of the identification to return. The index runs
// from 0 to NumIdents()-1
func (m *MzIdentML) Ident(i int) (Identification, error) {

	var ident Identification

	if i < 0 || i >= len(m.identList) {
		return ident, ErrInvalidIdentIndex
	}
	specIDIdx := m.identList[i].specIDIdx
	specResultIdx := m.identList[i].specResultIdx

	result := &m.content.SpectrumIdentificationResult[specIDIdx]
	item := &result.SpectrumIdentificationItem[specResultIdx]

	pepIdx := m.seqID2PepIdx[item.PeptideRef]
	ident.PepSeq = m.content.Peptide[pepIdx].PeptideSequence
	ident.PepID = m.content.Peptide[pepIdx].ID
	ident.ModMass = float64(0)
	ident.Charge = item.ChargeState
	for _, mod := range m.content.Peptide[pepIdx].Modification {
		ident.ModMass += mod.MonoisotopicMassDelta
	}
	ident.SpecID = result.SpectrumID
	ident.RetentionTime = retentionTime(result.CvPar)
	ident.Score, ident.QValue = scoreAndQValue(item.CvPar)
	ident.Cv = append(ident.Cv, item.CvPar...)

	return ident, nil
}

// retentionTime extracts the retention time from the CV params of a
// spectrum identification result, in seconds. There are multiple CV
// terms that can be used to report the retention time. In order of
// decreasing preference:
//  1. MS:1000016 - scan start time
//  2. MS:1000894 - retention time
//  3. MS:1000826 - elution time
//  4. MS:1001114 - retention time (deprecated)
//
// Returns -1 when no retention time is present.
func retentionTime(cvPars []CVParam) float64 {
	rt := float64(-1)
	prio := math.MaxInt32
	for _, cv := range cvPars {
		useTime := false
		switch cv.Accession {
		case "MS:1000016":
			if prio > 1 {
				prio = 1
				useTime = true
			}
		case "MS:1000894":
			if prio > 2 {
				prio = 2
				useTime = true
			}
		case "MS:1000826":
			if prio > 3 {
				prio = 3
				useTime = true
			}
		case "MS:1001114":
			if prio > 4 {
				prio = 4
				useTime = true
			}
		}
		if useTime {
			t, err := strconv.ParseFloat(cv.Value, 64)
			if err != nil {
				continue
			}
			// Check if the retention time is in minutes, otherwise assume seconds
			if cv.UnitAccession == "UO:0000031" || cv.UnitAccession == "MS:1000038" {
				t *= 60
			}
			rt = t
		}
	}
	return rt
}

// scoreAndQValue extracts the primary PSM score and q-value from the CV
// params of an identification item. Expectation values are mapped to
// -log10 so that a higher score is always better.
func scoreAndQValue(cvPars []CVParam) (float64, float64) {
	var score, qValue float64
	scorePrio := len(scoreTerms)
	qPrio := len(qValueTerms)
	for _, cv := range cvPars {
		for j, term := range scoreTerms {
			if cv.Accession == term.accession && j < scorePrio {
				v, err := strconv.ParseFloat(cv.Value, 64)
				if err != nil {
					continue
				}
				if term.negLog {
					if v <= 0 {
						v = math.SmallestNonzeroFloat64
					}
					v = -math.Log10(v)
				}
				score = v
				scorePrio = j
			}
		}
		for j, term := range qValueTerms {
			if cv.Accession == term && j < qPrio {
				v, err := strconv.ParseFloat(cv.Value, 64)
				if err != nil {
					continue
				}
				qValue = v
				qPrio = j
			}
		}
	}
	return score, qValue
}
