// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// Package fdr estimates error rates for transferred peaks. Every MBR
// peak carries two independent decoy flags — decoy peptide and random
// retention time — which a double-decoy q-value computation combines;
// with enough peaks a logistic classifier additionally assigns posterior
// error probabilities.
package fdr

import (
	"math"
	"sort"

	"github.com/524D/lfquant/internal/config"
	"github.com/524D/lfquant/internal/ident"
	"github.com/524D/lfquant/internal/quant"
)

// Minimum number of MBR peaks and random-RT decoys to train the PEP
// classifier
const (
	minPeaksForPEP  = 100
	minDecoysForPEP = 20
)

// Estimate assigns q-values (and, when feasible, PEPs) to the MBR peaks
// and returns the peaks that pass the detection q-value threshold.
// The input peaks are mutated (MbrQValue, MbrPEP) and must all be MBR.
func Estimate(peaks []*quant.ChromatographicPeak, cfg *config.Settings) []*quant.ChromatographicPeak {
	if len(peaks) == 0 {
		return nil
	}

	sortByScore(peaks)

	if pepFeasible(peaks) {
		assignPEP(peaks, cfg)
		peaks = keepLowestPEPPerIdentification(peaks)
		sortByScore(peaks)
	}

	assignQValues(peaks)

	kept := peaks[:0]
	for _, p := range peaks {
		if p.MbrQValue <= cfg.MbrDetectionQValueThreshold {
			kept = append(kept, p)
		}
	}
	return kept
}

func sortByScore(peaks []*quant.ChromatographicPeak) {
	sort.SliceStable(peaks, func(i, j int) bool {
		a, b := peaks[i], peaks[j]
		if a.MbrScore != b.MbrScore {
			return a.MbrScore > b.MbrScore
		}
		var ac, bc float64
		if a.Apex != nil {
			ac = a.Apex.Correlation
		}
		if b.Apex != nil {
			bc = b.Apex.Correlation
		}
		if ac != bc {
			return ac > bc
		}
		if a.ModifiedSequence() != b.ModifiedSequence() {
			return a.ModifiedSequence() < b.ModifiedSequence()
		}
		return a.Run.Label() < b.Run.Label()
	})
}

// assignQValues walks the score-sorted peaks, counting targets (T),
// decoy peptides (Dp), random-RT decoys (Dr) and double decoys (Dd).
// The q-value at each position is (1 + Dr + (Dp − Dd)₊) / T, monotonized
// from the low-score end by a running minimum.
func assignQValues(peaks []*quant.ChromatographicPeak) {
	var t, dp, dr, dd int
	for _, p := range peaks {
		switch {
		case p.DecoyPeptide && p.RandomRT:
			dd++
		case p.DecoyPeptide:
			dp++
		case p.RandomRT:
			dr++
		default:
			t++
		}
		decoyPeptideErrors := dp - dd
		if decoyPeptideErrors < 0 {
			decoyPeptideErrors = 0
		}
		if t == 0 {
			p.MbrQValue = 1
			continue
		}
		q := float64(1+dr+decoyPeptideErrors) / float64(t)
		if q > 1 {
			q = 1
		}
		p.MbrQValue = q
	}

	for i := len(peaks) - 2; i >= 0; i-- {
		if peaks[i+1].MbrQValue < peaks[i].MbrQValue {
			peaks[i].MbrQValue = peaks[i+1].MbrQValue
		}
	}
}

func pepFeasible(peaks []*quant.ChromatographicPeak) bool {
	if len(peaks) < minPeaksForPEP {
		return false
	}
	decoys := 0
	for _, p := range peaks {
		if p.RandomRT {
			decoys++
		}
	}
	return decoys >= minDecoysForPEP
}

// assignPEP trains a logistic classifier separating random-RT decoys
// from targets and assigns each peak its posterior error probability
func assignPEP(peaks []*quant.ChromatographicPeak, cfg *config.Settings) {
	features := make([][]float64, len(peaks))
	labels := make([]float64, len(peaks))
	for i, p := range peaks {
		features[i] = peakFeatures(p)
		if p.RandomRT {
			labels[i] = 1
		}
	}

	model := trainLogistic(features, labels, cfg.PepTrainingFraction, cfg.RandomSeed)
	for i, p := range peaks {
		p.MbrPEP = model.predict(features[i])
	}
}

// peakFeatures builds the classifier feature vector of one MBR peak
func peakFeatures(p *quant.ChromatographicPeak) []float64 {
	var corr float64
	var charge float64
	if p.Apex != nil {
		corr = p.Apex.Correlation
		charge = float64(p.Apex.Charge)
	}
	logIntensity := 0.0
	if p.Intensity > 0 {
		logIntensity = math.Log2(p.Intensity)
	}
	return []float64{
		p.MbrScore,
		math.Abs(p.MbrPpmError),
		math.Abs(p.MbrRtError),
		logIntensity,
		corr,
		charge,
		p.MbrConditionDelta,
	}
}

// keepLowestPEPPerIdentification keeps, per donor identification and
// decoy class, only the peak with the lowest PEP
func keepLowestPEPPerIdentification(peaks []*quant.ChromatographicPeak) []*quant.ChromatographicPeak {
	type groupKey struct {
		id       *ident.Identification
		randomRT bool
	}
	best := make(map[groupKey]*quant.ChromatographicPeak, len(peaks))
	order := make([]groupKey, 0, len(peaks))
	for _, p := range peaks {
		k := groupKey{id: p.Identification(), randomRT: p.RandomRT}
		stored, ok := best[k]
		if !ok {
			best[k] = p
			order = append(order, k)
			continue
		}
		if p.MbrPEP < stored.MbrPEP {
			best[k] = p
		}
	}
	out := make([]*quant.ChromatographicPeak, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}
