// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// Package mbr transfers identifications between runs: it aligns retention
// times through anchor peptides, scores candidate acceptor peaks against
// per-run statistical distributions, and searches matched target and
// random-RT decoy peaks in the acceptor run.
package mbr

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/524D/lfquant/internal/config"
	"github.com/524D/lfquant/internal/quant"
)

// Donor-to-anchor retention time deltas beyond this are not used for
// local alignment (minutes)
const maxAnchorRtDelta = 0.5

// Window width when alignment has at most one usable anchor (minutes)
const fallbackRtWidth = 0.25

// RtInfo is a predicted acceptor retention-time window
type RtInfo struct {
	PredictedRT float64
	Width       float64
}

type anchor struct {
	sequence   string
	donorRT    float64
	acceptorRT float64
}

// Alignment is a local retention-time alignment between a donor and an
// acceptor run, built from peptides identified by MS2 in both
type Alignment struct {
	anchors []anchor // sorted by donor RT
	cfg     *config.Settings
}

// SelectDonorPeaks groups a run's non-MBR peaks by modified sequence and
// selects the best peak per sequence according to the donor criterion.
// Only unambiguous, confidently identified peaks with envelopes qualify.
func SelectDonorPeaks(peaks []*quant.ChromatographicPeak, cfg *config.Settings) map[string]*quant.ChromatographicPeak {
	grouped := make(map[string][]*quant.ChromatographicPeak)
	for _, p := range peaks {
		if p.IsMBR || p.Apex == nil || len(p.Envelopes) == 0 {
			continue
		}
		if p.NumIdentificationsByFullSeq() != 1 {
			continue
		}
		if p.BestQValue() >= cfg.DonorQValueThreshold {
			continue
		}
		seq := p.ModifiedSequence()
		grouped[seq] = append(grouped[seq], p)
	}

	best := make(map[string]*quant.ChromatographicPeak, len(grouped))
	switch cfg.DonorCriterion {
	case config.DonorNeighbors:
		rts := apexRTsBySequence(grouped)
		for seq, candidates := range grouped {
			best[seq] = maxBy(candidates, func(p *quant.ChromatographicPeak) float64 {
				return float64(countNeighbors(p.ApexRT(), seq, rts, cfg.MbrAlignmentWindow))
			})
		}
	case config.DonorIntensity:
		for seq, candidates := range grouped {
			best[seq] = maxBy(candidates, func(p *quant.ChromatographicPeak) float64 { return p.Intensity })
		}
	default: // DonorScore, falling through to intensity when scores are absent
		for seq, candidates := range grouped {
			b := maxBy(candidates, func(p *quant.ChromatographicPeak) float64 { return p.BestPSMScore() })
			if b.BestPSMScore() == 0 {
				b = maxBy(candidates, func(p *quant.ChromatographicPeak) float64 { return p.Intensity })
			}
			best[seq] = b
		}
	}
	return best
}

type seqRT struct {
	sequence string
	rt       float64
}

func apexRTsBySequence(grouped map[string][]*quant.ChromatographicPeak) []seqRT {
	out := make([]seqRT, 0, len(grouped))
	for seq, candidates := range grouped {
		for _, p := range candidates {
			out = append(out, seqRT{sequence: seq, rt: p.ApexRT()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].rt < out[j].rt })
	return out
}

// countNeighbors counts the distinct other sequences with a peak apex
// within the alignment window of rt
func countNeighbors(rt float64, sequence string, rts []seqRT, window float64) int {
	lo := sort.Search(len(rts), func(i int) bool { return rts[i].rt >= rt-window })
	hi := sort.Search(len(rts), func(i int) bool { return rts[i].rt > rt+window })
	seen := make(map[string]bool)
	for i := lo; i < hi; i++ {
		if rts[i].sequence != sequence {
			seen[rts[i].sequence] = true
		}
	}
	return len(seen)
}

// maxBy returns the candidate with the highest key; ties keep the
// earlier apex for determinism
func maxBy(candidates []*quant.ChromatographicPeak, key func(*quant.ChromatographicPeak) float64) *quant.ChromatographicPeak {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Apex.Peak.ScanIndex != b.Apex.Peak.ScanIndex {
			return a.Apex.Peak.ScanIndex < b.Apex.Peak.ScanIndex
		}
		return a.Apex.Peak.Mz < b.Apex.Peak.Mz
	})
	best := candidates[0]
	for _, c := range candidates[1:] {
		if key(c) > key(best) {
			best = c
		}
	}
	return best
}

// Align builds the anchor-peptide alignment between a donor and an
// acceptor run. Returns nil when the runs share no anchor peptides.
func Align(donorBest, acceptorBest map[string]*quant.ChromatographicPeak, cfg *config.Settings) *Alignment {
	var anchors []anchor
	for seq, dp := range donorBest {
		ap, ok := acceptorBest[seq]
		if !ok {
			continue
		}
		anchors = append(anchors, anchor{
			sequence:   seq,
			donorRT:    dp.ApexRT(),
			acceptorRT: ap.ApexRT(),
		})
	}
	if len(anchors) == 0 {
		return nil
	}
	sort.Slice(anchors, func(i, j int) bool {
		if anchors[i].donorRT != anchors[j].donorRT {
			return anchors[i].donorRT < anchors[j].donorRT
		}
		return anchors[i].sequence < anchors[j].sequence
	})
	return &Alignment{anchors: anchors, cfg: cfg}
}

// PredictRT predicts where a donor peak elutes in the acceptor run.
// Up to NumAnchorPeptides anchors on each side of the donor RT, no
// farther than 0.5 min away, vote with their donor-to-acceptor deltas:
// the prediction is the donor RT minus the median delta, the window
// width six standard deviations, clamped to the configured maximum.
func (a *Alignment) PredictRT(donorRT float64) RtInfo {
	deltas := a.anchorDeltas(donorRT)

	switch len(deltas) {
	case 0:
		return RtInfo{PredictedRT: donorRT, Width: fallbackRtWidth}
	case 1:
		return RtInfo{PredictedRT: donorRT - deltas[0], Width: fallbackRtWidth}
	}

	sort.Float64s(deltas)
	med := stat.Quantile(0.5, stat.Empirical, deltas, nil)
	width := 6 * stat.StdDev(deltas, nil)
	if width > a.cfg.MbrRtWindow {
		width = a.cfg.MbrRtWindow
	}
	return RtInfo{PredictedRT: donorRT - med, Width: width}
}

func (a *Alignment) anchorDeltas(donorRT float64) []float64 {
	n := a.cfg.NumAnchorPeptides
	i := sort.Search(len(a.anchors), func(i int) bool { return a.anchors[i].donorRT >= donorRT })

	var deltas []float64
	for j, taken := i-1, 0; j >= 0 && taken < n; j, taken = j-1, taken+1 {
		if donorRT-a.anchors[j].donorRT > maxAnchorRtDelta {
			break
		}
		deltas = append(deltas, a.anchors[j].donorRT-a.anchors[j].acceptorRT)
	}
	for j, taken := i, 0; j < len(a.anchors) && taken < n; j, taken = j+1, taken+1 {
		if a.anchors[j].donorRT-donorRT > maxAnchorRtDelta {
			break
		}
		deltas = append(deltas, a.anchors[j].donorRT-a.anchors[j].acceptorRT)
	}
	return deltas
}

// Deltas returns the donor-to-acceptor RT deltas of all anchors,
// for fitting the per-donor RT error distribution
func (a *Alignment) Deltas() []float64 {
	deltas := make([]float64, len(a.anchors))
	for i, an := range a.anchors {
		deltas[i] = an.donorRT - an.acceptorRT
	}
	return deltas
}
