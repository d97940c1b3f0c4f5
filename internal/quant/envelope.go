// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package quant

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/524D/lfquant/internal/config"
	"github.com/524D/lfquant/internal/ident"
	"github.com/524D/lfquant/internal/isotopes"
	"github.com/524D/lfquant/internal/peakindex"
)

// Sibling isotope intensities must be within this factor of the
// theoretical expectation to extend an envelope
const isotopeIntensityRatioLimit = 4.0

// Minimum Pearson correlation between experimental and theoretical
// isotope intensities
const minEnvelopeCorrelation = 0.7

// The monoisotope assignment is rejected when a one-isotope-shifted
// hypothesis correlates better by more than this
const offByOneCorrelationMargin = 0.1

// envelopeHypothesis holds the isotope peaks found under one mass-shift
// hypothesis (0 for the assigned monoisotope, ±1 for 13C off-by-one)
type envelopeHypothesis struct {
	exp   []float64
	theor []float64
}

func (h *envelopeHypothesis) correlation() float64 {
	if len(h.exp) < 2 {
		return math.NaN()
	}
	return stat.Correlation(h.exp, h.theor, nil)
}

// IsotopicEnvelopes validates each XIC peak against the identification's
// theoretical isotope pattern and returns the accepted envelopes.
//
// For every peak, sibling isotopes are collected by walking outward from
// the peakfinding isotope until one is missing or its intensity ratio to
// the theoretical expectation leaves [0.25, 4.0]. The observed mass error
// of the peak is carried into the sibling queries so an accurate envelope
// still matches under a small global offset. The envelope is accepted
// when enough isotopes are found, the Pearson correlation against the
// theoretical pattern reaches 0.7, and neither 13C off-by-one hypothesis
// correlates better by more than 0.1.
func IsotopicEnvelopes(xic []*peakindex.IndexedPeak, id *ident.Identification,
	charge int, index *peakindex.Index, cfg *config.Settings) []*IsotopicEnvelope {

	pattern := id.Isotopes
	if len(pattern) == 0 {
		return nil
	}
	pfIdx := pattern.MostAbundantIndex()

	var envelopes []*IsotopicEnvelope
	for _, p := range xic {
		obsMass := peakindex.NeutralMass(p.Mz, charge)
		massError := obsMass - id.PeakfindingMass

		h0, numFound, expAll := collectEnvelope(index, id, pattern, pfIdx, p, charge, massError, 0, cfg)
		if h0 == nil || numFound < cfg.NumIsotopesRequired {
			continue
		}
		r0 := h0.correlation()
		if math.IsNaN(r0) {
			// A single isotope pair carries no correlation information
			if cfg.NumIsotopesRequired >= 2 {
				continue
			}
			r0 = 1.0
		} else if r0 < minEnvelopeCorrelation {
			continue
		}

		misassigned := false
		for _, shift := range []int{-1, 1} {
			hAlt, _, _ := collectEnvelope(index, id, pattern, pfIdx, p, charge, massError, shift, cfg)
			if hAlt == nil {
				continue
			}
			rAlt := hAlt.correlation()
			if !math.IsNaN(rAlt) && rAlt-r0 > offByOneCorrelationMargin {
				misassigned = true
				break
			}
		}
		if misassigned {
			continue
		}

		envelopes = append(envelopes, &IsotopicEnvelope{
			Peak:        p,
			Charge:      charge,
			Intensity:   floats.Sum(expAll),
			Correlation: r0,
		})
	}
	return envelopes
}

// collectEnvelope walks the isotope pattern under one mass-shift
// hypothesis and returns the (experimental, theoretical) intensity pairs
// that were found, the number of found isotopes, and the full
// experimental intensity vector with missing isotopes imputed from the
// theoretical abundances. Returns nil when the hypothesis has no seed
// peak at the peakfinding position.
func collectEnvelope(index *peakindex.Index, id *ident.Identification,
	pattern isotopes.Pattern, pfIdx int, p *peakindex.IndexedPeak,
	charge int, massError float64, shift int, cfg *config.Settings) (*envelopeHypothesis, int, []float64) {

	shiftMass := float64(shift) * isotopes.C13MassShift

	// Seed intensity at the peakfinding position
	var seedIntensity float64
	if shift == 0 {
		seedIntensity = p.Intensity
	} else {
		seed := index.Get(id.MonoisotopicMass+pattern[pfIdx].MassShift+shiftMass+massError,
			p.ScanIndex, cfg.IsotopePpmTolerance, charge)
		if seed == nil {
			return nil, 0, nil
		}
		seedIntensity = seed.Intensity
	}

	exp := make([]float64, len(pattern))
	found := make([]bool, len(pattern))
	exp[pfIdx] = seedIntensity
	found[pfIdx] = true

	probe := func(i int) bool {
		theorIntensity := pattern[i].Abundance * seedIntensity
		ip := index.Get(id.MonoisotopicMass+pattern[i].MassShift+shiftMass+massError,
			p.ScanIndex, cfg.IsotopePpmTolerance, charge)
		if ip == nil ||
			ip.Intensity < theorIntensity/isotopeIntensityRatioLimit ||
			ip.Intensity > theorIntensity*isotopeIntensityRatioLimit {
			return false
		}
		exp[i] = ip.Intensity
		found[i] = true
		return true
	}

	// Walk backward, then forward, from the peakfinding isotope
	for i := pfIdx - 1; i >= 0 && probe(i); i-- {
	}
	for i := pfIdx + 1; i < len(pattern) && probe(i); i++ {
	}

	h := &envelopeHypothesis{}
	numFound := 0
	for i := range pattern {
		if found[i] {
			numFound++
			h.exp = append(h.exp, exp[i])
			h.theor = append(h.theor, pattern[i].Abundance*seedIntensity)
		} else {
			// Impute missing isotopes from the theoretical abundance
			exp[i] = pattern[i].Abundance * seedIntensity
		}
	}

	if shift != 0 {
		// Unexpected-peak probe one 13C spacing below the minimum
		// theoretical mass of the hypothesized set. A peak there is
		// evidence that the hypothesis, not the assignment, is right.
		probeMass := id.MonoisotopicMass + pattern[0].MassShift + shiftMass -
			isotopes.C13MassShift + massError
		if up := index.Get(probeMass, p.ScanIndex, cfg.IsotopePpmTolerance, charge); up != nil {
			h.exp = append(h.exp, up.Intensity)
			h.theor = append(h.theor, pattern[0].Abundance*seedIntensity)
		}
	}

	return h, numFound, exp
}
