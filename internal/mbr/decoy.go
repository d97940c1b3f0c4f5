// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package mbr

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"sort"

	"github.com/524D/lfquant/internal/quant"
)

// Decoy donors must differ from the real donor by at least 5 and less
// than 11 hydrogen masses; the range widens when no candidate matches
const (
	massHydrogen      = 1.00782503207
	decoyMassDiffMin  = 5 * massHydrogen
	decoyMassDiffMax  = 11 * massHydrogen
	decoyMassDiffWide = 1e5
)

// hashIdent derives a reproducible pseudo-random value from a donor
// identification, so decoy choice is deterministic for identical input
func hashIdent(peakfindingMass, ms2RT float64) uint64 {
	h := fnv.New64a()
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:], math.Float64bits(peakfindingMass))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(ms2RT))
	h.Write(buf[:])
	return h.Sum64()
}

// SelectDecoyDonor picks another donor peak to borrow a random retention
// time from: a peptide with a different base sequence, a peakfinding mass
// 5 to 11 hydrogens away (widened when nothing qualifies), and an apex at
// least twice the window width away from the real donor. The choice is a
// deterministic hash of the donor identification modulo the candidates.
// Returns nil when no peak qualifies.
func SelectDecoyDonor(donor *quant.ChromatographicPeak,
	donorPeaks []*quant.ChromatographicPeak, windowWidth float64) *quant.ChromatographicPeak {

	id := donor.Identification()

	candidates := decoyCandidates(donor, donorPeaks, windowWidth, decoyMassDiffMin, decoyMassDiffMax)
	if len(candidates) == 0 {
		candidates = decoyCandidates(donor, donorPeaks, windowWidth, decoyMassDiffMin, decoyMassDiffWide)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.ModifiedSequence() != b.ModifiedSequence() {
			return a.ModifiedSequence() < b.ModifiedSequence()
		}
		return a.ApexRT() < b.ApexRT()
	})
	idx := hashIdent(id.PeakfindingMass, id.MS2RetentionTime) % uint64(len(candidates))
	return candidates[idx]
}

func decoyCandidates(donor *quant.ChromatographicPeak,
	donorPeaks []*quant.ChromatographicPeak, windowWidth,
	massDiffMin, massDiffMax float64) []*quant.ChromatographicPeak {

	id := donor.Identification()
	var out []*quant.ChromatographicPeak
	for _, p := range donorPeaks {
		other := p.Identification()
		if other == nil || p.Apex == nil {
			continue
		}
		if other.BaseSequence == id.BaseSequence {
			continue
		}
		massDiff := math.Abs(other.PeakfindingMass - id.PeakfindingMass)
		if massDiff < massDiffMin || massDiff >= massDiffMax {
			continue
		}
		if math.Abs(p.ApexRT()-donor.ApexRT()) < 2*windowWidth {
			continue
		}
		out = append(out, p)
	}
	return out
}
