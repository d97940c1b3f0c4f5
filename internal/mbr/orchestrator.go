// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package mbr

import (
	"math"
	"sort"
	"sync"

	"github.com/exascience/pargo/parallel"

	"github.com/524D/lfquant/internal/config"
	"github.com/524D/lfquant/internal/ident"
	"github.com/524D/lfquant/internal/peakindex"
	"github.com/524D/lfquant/internal/quant"
)

// Window widening step when neither a target nor a decoy peak is found
const widenStep = 0.5

// DonorRun is one potential donor: a run and its finished MS2 peaks
type DonorRun struct {
	Run   *quant.RunInfo
	Peaks []*quant.ChromatographicPeak
}

// candidateKey identifies a candidate by its apex centroid and decoy
// class within one modified sequence
type candidateKey struct {
	apex     peakindex.Key
	randomRT bool
}

// candidateStore is the cross-thread registry of transfer candidates:
// modified sequence → (apex, decoy class) → best-scoring candidate.
// Add-or-update per (sequence, apex) pair is atomic.
type candidateStore struct {
	mu    sync.Mutex
	bySeq map[string]map[candidateKey]*quant.ChromatographicPeak
}

func newCandidateStore() *candidateStore {
	return &candidateStore{bySeq: make(map[string]map[candidateKey]*quant.ChromatographicPeak)}
}

func (c *candidateStore) add(peak *quant.ChromatographicPeak) {
	if peak == nil || peak.Apex == nil {
		return
	}
	seq := peak.ModifiedSequence()
	key := candidateKey{apex: peak.Apex.Peak.Key(), randomRT: peak.RandomRT}

	c.mu.Lock()
	defer c.mu.Unlock()
	inner, ok := c.bySeq[seq]
	if !ok {
		inner = make(map[candidateKey]*quant.ChromatographicPeak)
		c.bySeq[seq] = inner
	}
	stored, ok := inner[key]
	if !ok || betterCandidate(peak, stored) {
		inner[key] = peak
	}
}

// betterCandidate orders candidates by score, breaking ties on envelope
// correlation and then deterministically on apex position
func betterCandidate(a, b *quant.ChromatographicPeak) bool {
	if a.MbrScore != b.MbrScore {
		return a.MbrScore > b.MbrScore
	}
	if a.Apex.Correlation != b.Apex.Correlation {
		return a.Apex.Correlation > b.Apex.Correlation
	}
	if a.Apex.Peak.ScanIndex != b.Apex.Peak.ScanIndex {
		return a.Apex.Peak.ScanIndex < b.Apex.Peak.ScanIndex
	}
	return a.Apex.Peak.Mz < b.Apex.Peak.Mz
}

// Orchestrator runs the match-between-runs search for one acceptor run
type Orchestrator struct {
	cfg       *config.Settings
	whitelist ident.Whitelist
	acceptor  *quant.RunContext

	// Proteins with at least one MS2 identification, per condition;
	// only consulted with RequireMsmsIdInCondition
	proteinsByCondition map[string]map[string]bool
}

// NewOrchestrator prepares the MBR search for an acceptor run
func NewOrchestrator(acceptor *quant.RunContext, whitelist ident.Whitelist,
	proteinsByCondition map[string]map[string]bool, cfg *config.Settings) *Orchestrator {
	return &Orchestrator{
		cfg:                 cfg,
		whitelist:           whitelist,
		acceptor:            acceptor,
		proteinsByCondition: proteinsByCondition,
	}
}

// Transfer searches the acceptor run for peaks of peptides identified
// only in donor runs, along with random-RT decoy peaks, and returns the
// resolved transfers. Returns nil when the acceptor scorer is invalid.
func (o *Orchestrator) Transfer(acceptorPeaks []*quant.ChromatographicPeak,
	donorRuns []*DonorRun) []*quant.ChromatographicPeak {

	scorer := NewScorer(acceptorPeaks, o.cfg)
	if !scorer.Valid() {
		return nil
	}

	acceptorBest := SelectDonorPeaks(acceptorPeaks, o.cfg)
	msmsSequences := o.identifiedSequences(acceptorPeaks)
	msmsApexes := o.whitelistedApexes(acceptorPeaks)

	store := newCandidateStore()

	for _, donor := range donorRuns {
		if donor.Run == o.acceptor.Run {
			continue
		}
		donorBest := SelectDonorPeaks(donor.Peaks, o.cfg)
		alignment := Align(donorBest, acceptorBest, o.cfg)
		if alignment == nil {
			// No anchor peptides; MBR is disabled for this pair only
			continue
		}
		donorLabel := donor.Run.Label()
		scorer.AddDonor(donorLabel, alignment.Deltas())

		conditionDelta := 0.0
		if donor.Run.Condition != o.acceptor.Run.Condition {
			conditionDelta = 1.0
			scorer.AddFoldChange(donorLabel, foldChanges(donorBest, acceptorBest))
		}

		donorPeaks := sortedBySequence(donorBest)
		parallel.Range(0, len(donorPeaks), o.cfg.MaxThreads, func(low, high int) {
			for i := low; i < high; i++ {
				o.transferDonorPeak(donorPeaks[i], donorPeaks, alignment, scorer,
					donorLabel, conditionDelta, msmsSequences, store)
			}
		})
	}

	return o.resolve(store, msmsApexes)
}

// transferDonorPeak runs the target and decoy-RT searches for one donor
// peak and registers the candidates
func (o *Orchestrator) transferDonorPeak(donor *quant.ChromatographicPeak,
	donorPeaks []*quant.ChromatographicPeak, alignment *Alignment,
	scorer *Scorer, donorLabel string, conditionDelta float64,
	msmsSequences map[string]bool, store *candidateStore) {

	seq := donor.ModifiedSequence()
	if msmsSequences[seq] {
		return
	}
	if o.cfg.RequireMsmsIdInCondition && !o.proteinIdentifiedInCondition(donor) {
		return
	}

	rtInfo := alignment.PredictRT(donor.ApexRT())
	decoyDonor := SelectDecoyDonor(donor, donorPeaks, rtInfo.Width)
	var decoyRT float64
	if decoyDonor != nil {
		decoyRT = alignment.PredictRT(decoyDonor.ApexRT()).PredictedRT
	}

	width := rtInfo.Width
	for {
		target := o.findAcceptorPeak(donor, rtInfo.PredictedRT, width, false,
			scorer, donorLabel, conditionDelta)
		var decoy *quant.ChromatographicPeak
		if decoyDonor != nil {
			// The decoy search reuses the real donor's window width at
			// the decoy's predicted retention time
			decoy = o.findAcceptorPeak(donor, decoyRT, width, true,
				scorer, donorLabel, conditionDelta)
		}
		if target != nil || decoy != nil || width >= o.cfg.MbrRtWindow {
			store.add(target)
			store.add(decoy)
			return
		}
		width += widenStep
		if width > o.cfg.MbrRtWindow {
			width = o.cfg.MbrRtWindow
		}
	}
}

// findAcceptorPeak searches the acceptor run for the donor peptide in
// the RT window centered at center. Every charge present among the
// donor's identifications plus its apex charge is enumerated; candidate
// seeds are assembled into chromatographic peaks and the best-scoring
// one is returned, with sibling charge states merged when they elute
// within its span.
func (o *Orchestrator) findAcceptorPeak(donor *quant.ChromatographicPeak,
	center, width float64, randomRT bool, scorer *Scorer,
	donorLabel string, conditionDelta float64) *quant.ChromatographicPeak {

	cfg := o.cfg
	id := donor.Identification()
	rtLo, rtHi := center-width/2, center+width/2

	var best *quant.ChromatographicPeak
	var sideCharges []*quant.ChromatographicPeak

	for _, charge := range o.donorCharges(donor) {
		seeds := o.seedsInWindow(id, charge, rtLo, rtHi, scorer.PpmTolerance)
		envelopes := quant.IsotopicEnvelopes(seeds, id, charge, o.acceptor.Index, cfg)
		sort.SliceStable(envelopes, func(i, j int) bool {
			return envelopes[i].Intensity > envelopes[j].Intensity
		})

		for _, seedEnv := range envelopes {
			peak := o.assembleAcceptorPeak(id, seedEnv, charge, rtLo, rtHi, randomRT)
			if peak == nil {
				continue
			}
			peak.MbrScore = scorer.Score(peak, donor, donorLabel, center)
			peak.MbrConditionDelta = conditionDelta
			if peak.MbrScore <= 0 {
				continue
			}
			if best == nil || betterCandidate(peak, best) {
				if best != nil {
					sideCharges = append(sideCharges, best)
				}
				best = peak
			} else {
				sideCharges = append(sideCharges, peak)
			}
		}
	}
	if best == nil {
		return nil
	}

	// Merge other charge states eluting within the winner's span
	lo, hi := best.RTSpan()
	for _, p := range sideCharges {
		if p.Apex.Charge == best.Apex.Charge {
			continue
		}
		if rt := p.ApexRT(); rt >= lo && rt <= hi {
			best.Merge(p, cfg.Integrate)
		}
	}
	return best
}

// donorCharges returns every charge in the donor's identification set
// plus its apex charge, ascending
func (o *Orchestrator) donorCharges(donor *quant.ChromatographicPeak) []int {
	seen := map[int]bool{}
	for _, id := range donor.Idents {
		seen[id.PrecursorCharge] = true
	}
	if donor.Apex != nil {
		seen[donor.Apex.Charge] = true
	}
	charges := make([]int, 0, len(seen))
	for z := range seen {
		charges = append(charges, z)
	}
	sort.Ints(charges)
	return charges
}

// seedsInWindow collects the candidate centroids for the peptide in the
// RT window, one query per MS1 scan
func (o *Orchestrator) seedsInWindow(id *ident.Identification, charge int,
	rtLo, rtHi, ppmTolerance float64) []*peakindex.IndexedPeak {

	var seeds []*peakindex.IndexedPeak
	for _, scan := range o.acceptor.Scans {
		if scan.RT < rtLo || scan.RT > rtHi {
			continue
		}
		if p := o.acceptor.Index.Get(id.PeakfindingMass, scan.ScanIndex, ppmTolerance, charge); p != nil {
			seeds = append(seeds, p)
		}
	}
	return seeds
}

// assembleAcceptorPeak greedily builds a chromatographic peak around a
// seed envelope: XIC, envelope validation, restriction to the RT window,
// and valley cutting at the seed's elution time
func (o *Orchestrator) assembleAcceptorPeak(id *ident.Identification,
	seedEnv *quant.IsotopicEnvelope, charge int, rtLo, rtHi float64,
	randomRT bool) *quant.ChromatographicPeak {

	cfg := o.cfg
	peak := quant.NewPeak(id, o.acceptor.Run, true)
	peak.RandomRT = randomRT

	xic := quant.Peakfind(o.acceptor.Index, o.acceptor.Scans, seedEnv.Peak.RT,
		id.PeakfindingMass, charge, cfg.PeakfindingPpmTolerance, cfg.MissedScansAllowed)
	envelopes := quant.IsotopicEnvelopes(xic, id, charge, o.acceptor.Index, cfg)

	for _, e := range envelopes {
		if e.Peak.RT >= rtLo && e.Peak.RT <= rtHi {
			peak.Envelopes = append(peak.Envelopes, e)
		}
	}
	if len(peak.Envelopes) == 0 {
		return nil
	}
	peak.CalculateIntensity(cfg.Integrate)
	quant.CutPeak(peak, seedEnv.Peak.RT, cfg.DiscriminationFactorToCutPeak, cfg.Integrate)
	if peak.Apex == nil {
		return nil
	}
	return peak
}

// resolve picks, per modified sequence and decoy class, the best
// non-conflicting candidate. A candidate conflicts when its apex is
// already the apex of a whitelisted MS2 peak in the acceptor run.
func (o *Orchestrator) resolve(store *candidateStore,
	msmsApexes map[peakindex.Key]bool) []*quant.ChromatographicPeak {

	sequences := make([]string, 0, len(store.bySeq))
	for seq := range store.bySeq {
		sequences = append(sequences, seq)
	}
	sort.Strings(sequences)

	var out []*quant.ChromatographicPeak
	for _, seq := range sequences {
		inner := store.bySeq[seq]
		for _, randomRT := range []bool{false, true} {
			var group []*quant.ChromatographicPeak
			for key, peak := range inner {
				if key.randomRT == randomRT {
					group = append(group, peak)
				}
			}
			if len(group) == 0 {
				continue
			}
			sort.Slice(group, func(i, j int) bool { return betterCandidate(group[i], group[j]) })

			var chosen *quant.ChromatographicPeak
			rest := make([]*quant.ChromatographicPeak, 0, len(group))
			for _, peak := range group {
				if chosen == nil && !msmsApexes[peak.Apex.Peak.Key()] {
					chosen = peak
					continue
				}
				rest = append(rest, peak)
			}
			if chosen == nil {
				continue
			}
			lo, hi := chosen.RTSpan()
			for _, p := range rest {
				if p.Apex.Charge == chosen.Apex.Charge {
					continue
				}
				if rt := p.ApexRT(); rt >= lo && rt <= hi {
					chosen.Merge(p, o.cfg.Integrate)
				}
			}
			out = append(out, chosen)
		}
	}
	return out
}

// identifiedSequences returns the modified sequences already identified
// by MS2 in the acceptor run below the donor q-value threshold
func (o *Orchestrator) identifiedSequences(acceptorPeaks []*quant.ChromatographicPeak) map[string]bool {
	out := make(map[string]bool)
	for _, p := range acceptorPeaks {
		if p.IsMBR {
			continue
		}
		for _, id := range p.Idents {
			if id.QValue < o.cfg.DonorQValueThreshold {
				out[id.ModifiedSequence] = true
			}
		}
	}
	return out
}

// whitelistedApexes returns the apex keys of whitelisted MS2 peaks
func (o *Orchestrator) whitelistedApexes(acceptorPeaks []*quant.ChromatographicPeak) map[peakindex.Key]bool {
	out := make(map[peakindex.Key]bool)
	for _, p := range acceptorPeaks {
		if p.IsMBR || p.Apex == nil || p.DecoyPeptide {
			continue
		}
		if p.Whitelisted(o.whitelist) {
			out[p.Apex.Peak.Key()] = true
		}
	}
	return out
}

func (o *Orchestrator) proteinIdentifiedInCondition(donor *quant.ChromatographicPeak) bool {
	proteins := o.proteinsByCondition[o.acceptor.Run.Condition]
	if proteins == nil {
		return false
	}
	for _, id := range donor.Idents {
		for _, prot := range id.ProteinGroups {
			if proteins[prot] {
				return true
			}
		}
	}
	return false
}

// foldChanges computes the log2 donor-to-acceptor intensity ratios of
// the peptides identified in both runs
func foldChanges(donorBest, acceptorBest map[string]*quant.ChromatographicPeak) []float64 {
	var out []float64
	seqs := make([]string, 0, len(donorBest))
	for seq := range donorBest {
		seqs = append(seqs, seq)
	}
	sort.Strings(seqs)
	for _, seq := range seqs {
		dp := donorBest[seq]
		ap, ok := acceptorBest[seq]
		if !ok || dp.Intensity <= 0 || ap.Intensity <= 0 {
			continue
		}
		out = append(out, math.Log2(ap.Intensity)-math.Log2(dp.Intensity))
	}
	return out
}

func sortedBySequence(best map[string]*quant.ChromatographicPeak) []*quant.ChromatographicPeak {
	seqs := make([]string, 0, len(best))
	for seq := range best {
		seqs = append(seqs, seq)
	}
	sort.Strings(seqs)
	out := make([]*quant.ChromatographicPeak, len(seqs))
	for i, seq := range seqs {
		out[i] = best[seq]
	}
	return out
}
