// Package mzidentml reads peptide identifications from mzIdentML files.
// Only the parts needed for quantification are parsed: peptide sequences,
// modification masses, charges, retention times, and the PSM score and
// q-value CV terms.
package mzidentml

import (
	"encoding/xml"
	"errors"
)

// MzIdentML holds only the part of mzIdentML files
// in which we are interested
type MzIdentML struct {
	seqID2PepIdx map[string]int
	identList    []identRef
	content      mzIdentMLContent
}

type identRef struct {
	specResultIdx int // Index into SpectrumIdentificationItem
	specIDIdx     int // Index into SpectrumIdentificationResult
}

// Identification is one peptide-spectrum match
type Identification struct {
	PepSeq        string
	PepID         string
	Charge        int
	ModMass       float64
	SpecID        string
	RetentionTime float64
	Score         float64 // primary PSM score, higher is better
	QValue        float64 // PSM-level q-value, 0 when absent
	Cv            []CVParam
}

type mzIdentMLContent struct {
	XMLName                      xml.Name                       `xml:"MzIdentML"`
	Peptide                      []peptide                      `xml:"SequenceCollection>Peptide"`
	SpectrumIdentificationResult []spectrumIdentificationResult `xml:"DataCollection>AnalysisData>SpectrumIdentificationList>SpectrumIdentificationResult"`
}

type peptide struct {
	ID              string `xml:"id,attr"`
	PeptideSequence string
	Modification    []modification
}

type modification struct {
	// Note: monoisotopicMassDelta is optional according to the schema, but
	// appears to be no other way to determine mass shift, as other
	// corresponding cvParam's don't carry this info either
	MonoisotopicMassDelta float64 `xml:"monoisotopicMassDelta,attr"`
}

type spectrumIdentificationResult struct {
	SpectrumID                 string `xml:"spectrumID,attr"`
	SpectrumIdentificationItem []spectrumIdentificationItem
	CvPar                      []CVParam `xml:"cvParam"`
}

type spectrumIdentificationItem struct {
	ChargeState int       `xml:"chargeState,attr"`
	PeptideRef  string    `xml:"peptide_ref,attr"`
	CvPar       []CVParam `xml:"cvParam"`
}

// CVParam is a controlled-vocabulary parameter attached to an
// identification item or result
type CVParam struct {
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
}

var (
	ErrInvalidIdentIndex = errors.New("mzIdentML: invalid identification index")
)
