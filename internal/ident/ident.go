// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// Package ident holds the peptide identification model consumed by the
// quantification engine, and loaders that fill it from search results.
package ident

import (
	"strings"

	"github.com/524D/lfquant/internal/isotopes"
)

// Identification is one peptide-spectrum match from an upstream search
// engine. PeakfindingMass and Isotopes are derived once, during isotope
// model calculation; all other fields are immutable input.
type Identification struct {
	FileName         string
	BaseSequence     string
	ModifiedSequence string
	MonoisotopicMass float64
	PrecursorCharge  int
	MS2RetentionTime float64 // minutes
	PSMScore         float64
	QValue           float64
	ChemicalFormula  string
	ProteinGroups    []string
	DecoyPeptide     bool

	// Derived by ComputeIsotopeModel
	PeakfindingMass float64
	Isotopes        isotopes.Pattern
}

// Ambiguous reports whether the identification maps to more than one
// peptide sequence
func (id *Identification) Ambiguous() bool {
	return strings.ContainsRune(id.ModifiedSequence, '|')
}

// ComputeIsotopeModel fills the derived isotope pattern and peakfinding
// mass. This is the only mutation an Identification undergoes.
func (id *Identification) ComputeIsotopeModel(numIsotopesRequired int) {
	id.Isotopes, id.PeakfindingMass = isotopes.Model(
		id.MonoisotopicMass, id.BaseSequence, id.ChemicalFormula, numIsotopesRequired)
}

// MarkDecoys sets the DecoyPeptide flag on identifications whose protein
// groups all carry the decoy tag prefix
func MarkDecoys(ids []*Identification, decoyTag string) {
	if decoyTag == "" {
		return
	}
	for _, id := range ids {
		if len(id.ProteinGroups) == 0 {
			continue
		}
		decoy := true
		for _, prot := range id.ProteinGroups {
			if !strings.HasPrefix(prot, decoyTag) {
				decoy = false
				break
			}
		}
		id.DecoyPeptide = decoy
	}
}

// ByFile groups identifications by their run file name
func ByFile(ids []*Identification) map[string][]*Identification {
	byFile := make(map[string][]*Identification)
	for _, id := range ids {
		byFile[id.FileName] = append(byFile[id.FileName], id)
	}
	return byFile
}

// Whitelist is the set of modified sequences eligible for quantification.
// An empty whitelist admits every sequence.
type Whitelist map[string]bool

// NewWhitelist builds a whitelist from the configured sequences
func NewWhitelist(sequences []string) Whitelist {
	if len(sequences) == 0 {
		return nil
	}
	w := make(Whitelist, len(sequences))
	for _, s := range sequences {
		w[s] = true
	}
	return w
}

// Contains reports whether the sequence may be quantified
func (w Whitelist) Contains(modifiedSequence string) bool {
	if w == nil {
		return true
	}
	return w[modifiedSequence]
}
