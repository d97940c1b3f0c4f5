// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package mbr

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/524D/lfquant/internal/config"
	"github.com/524D/lfquant/internal/peakindex"
	"github.com/524D/lfquant/internal/quant"
)

// Below this many samples the spread falls back from IQR to stddev
const minSamplesForIQR = 30

// Minimum ppm error samples for a usable scorer
const minPpmSamples = 3

// Standard deviations never collapse below this, to keep the
// densities proper
const sigmaFloor = 1e-3

// Scorer holds the per-acceptor-run distributions that the composite
// MBR transfer score is computed against
type Scorer struct {
	valid bool

	ppmDist       distuv.Normal
	intensityDist distuv.Normal

	// RT prediction error distribution per donor run label
	rtDists map[string]distuv.Normal

	// Optional log2 fold-change distribution per donor run label,
	// for donors in a different condition
	foldChangeDists map[string]distuv.Normal

	// Effective ppm tolerance for MBR candidate collection
	PpmTolerance float64

	weights config.ScoreWeights
}

// NewScorer fits the acceptor-run distributions from its MS2-identified
// peaks. The scorer is invalid (and MBR must be skipped for this
// acceptor) when fewer than 3 ppm error samples exist.
func NewScorer(acceptorPeaks []*quant.ChromatographicPeak, cfg *config.Settings) *Scorer {
	s := &Scorer{
		rtDists:         make(map[string]distuv.Normal),
		foldChangeDists: make(map[string]distuv.Normal),
		weights:         cfg.MbrScoreWeights,
	}

	var ppmErrors, logIntensities []float64
	for _, p := range acceptorPeaks {
		if p.IsMBR || p.Apex == nil {
			continue
		}
		id := p.Identification()
		if id == nil {
			continue
		}
		obsMass := peakindex.NeutralMass(p.Apex.Peak.Mz, p.Apex.Charge)
		ppmErrors = append(ppmErrors, (obsMass-id.PeakfindingMass)/id.PeakfindingMass*1e6)
		if p.Intensity > 0 {
			logIntensities = append(logIntensities, math.Log2(p.Intensity))
		}
	}
	if len(ppmErrors) < minPpmSamples {
		return s
	}

	med, spread := medianAndSpread(ppmErrors)
	s.ppmDist = distuv.Normal{Mu: med, Sigma: floorSigma(spread)}
	s.PpmTolerance = math.Abs(med) + 4*spread
	if s.PpmTolerance > cfg.MbrPpmTolerance {
		s.PpmTolerance = cfg.MbrPpmTolerance
	}

	mu, sigma := meanAndStdDev(logIntensities)
	s.intensityDist = distuv.Normal{Mu: mu, Sigma: floorSigma(sigma)}

	s.valid = true
	return s
}

// Valid reports whether the scorer may be used
func (s *Scorer) Valid() bool {
	return s.valid
}

// AddDonor fits the RT prediction error distribution for one donor run
// from its anchor deltas, centered on the median delta
func (s *Scorer) AddDonor(donorLabel string, anchorDeltas []float64) {
	if len(anchorDeltas) == 0 {
		s.rtDists[donorLabel] = distuv.Normal{Mu: 0, Sigma: fallbackRtWidth}
		return
	}
	deltas := append([]float64(nil), anchorDeltas...)
	sort.Float64s(deltas)
	med := stat.Quantile(0.5, stat.Empirical, deltas, nil)
	centered := make([]float64, len(deltas))
	for i, d := range deltas {
		centered[i] = d - med
	}
	_, sigma := meanAndStdDev(centered)
	s.rtDists[donorLabel] = distuv.Normal{Mu: 0, Sigma: floorSigma(sigma)}
}

// AddFoldChange fits the log2 fold-change distribution between a donor
// in another condition and the acceptor, from their shared peptides
func (s *Scorer) AddFoldChange(donorLabel string, logRatios []float64) {
	if len(logRatios) < 2 {
		return
	}
	mu, sigma := meanAndStdDev(logRatios)
	s.foldChangeDists[donorLabel] = distuv.Normal{Mu: mu, Sigma: floorSigma(sigma)}
}

// Score computes the composite transfer score of a candidate acceptor
// peak against its donor. Each term is the two-tailed probability that a
// draw from the fitted distribution lies at least as far from the center
// as the observation; the composite is the weighted product, scaled to
// 100 for a perfect match. Higher is better; ties are broken on envelope
// correlation downstream.
func (s *Scorer) Score(candidate, donor *quant.ChromatographicPeak,
	donorLabel string, predictedRT float64) float64 {

	if !s.valid || candidate.Apex == nil {
		return 0
	}
	id := donor.Identification()
	obsMass := peakindex.NeutralMass(candidate.Apex.Peak.Mz, candidate.Apex.Charge)
	ppmError := (obsMass - id.PeakfindingMass) / id.PeakfindingMass * 1e6
	rtError := candidate.ApexRT() - predictedRT

	candidate.MbrPpmError = ppmError
	candidate.MbrRtError = rtError

	ppmTerm := tailProbability(s.ppmDist, ppmError)

	rtDist, ok := s.rtDists[donorLabel]
	if !ok {
		rtDist = distuv.Normal{Mu: 0, Sigma: fallbackRtWidth}
	}
	rtTerm := tailProbability(rtDist, rtError)

	var intensityTerm float64
	if fc, ok := s.foldChangeDists[donorLabel]; ok && donor.Intensity > 0 && candidate.Intensity > 0 {
		intensityTerm = tailProbability(fc, math.Log2(candidate.Intensity)-math.Log2(donor.Intensity))
	} else if candidate.Intensity > 0 {
		intensityTerm = tailProbability(s.intensityDist, math.Log2(candidate.Intensity))
	}

	corrTerm := candidate.Apex.Correlation
	if corrTerm < 0 {
		corrTerm = 0
	}

	w := s.weights
	return 100 *
		math.Pow(ppmTerm, w.Ppm) *
		math.Pow(rtTerm, w.Rt) *
		math.Pow(intensityTerm, w.Intensity) *
		math.Pow(corrTerm, w.Correlation)
}

// tailProbability is the probability that a draw lies at least as far
// from the distribution center as the value
func tailProbability(d distuv.Normal, value float64) float64 {
	return 2 * d.CDF(d.Mu-math.Abs(value-d.Mu))
}

// medianAndSpread returns the median and a robust spread estimate:
// IQR/1.36, or the standard deviation for small samples
func medianAndSpread(values []float64) (float64, float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	med := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if len(sorted) < minSamplesForIQR {
		_, sigma := meanAndStdDev(sorted)
		return med, sigma
	}
	iqr := stat.Quantile(0.75, stat.Empirical, sorted, nil) -
		stat.Quantile(0.25, stat.Empirical, sorted, nil)
	return med, iqr / 1.36
}

func meanAndStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	if len(values) == 1 {
		return values[0], 0
	}
	mu, sigma := stat.MeanStdDev(values, nil)
	return mu, sigma
}

func floorSigma(sigma float64) float64 {
	if sigma < sigmaFloor {
		return sigmaFloor
	}
	return sigma
}
