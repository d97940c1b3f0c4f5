// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package quant

import (
	"sort"

	"github.com/524D/lfquant/internal/config"
	"github.com/524D/lfquant/internal/ident"
	"github.com/524D/lfquant/internal/peakindex"
)

// RunErrorChecking deduplicates the peaks of one run so that each apex
// centroid is claimed by at most one peak:
//
//   - two MS2 peaks whose identifications are all whitelisted merge;
//   - an MS2 peak beats an MBR peak, unless the MS2 peak is a decoy
//     peptide or not whitelisted;
//   - two MBR peaks of the same sequence merge;
//   - two MBR peaks of different sequences keep the higher MBR score.
//
// Non-MBR peaks without an apex are kept (they report zero intensity);
// apexless MBR peaks are dropped. The result is re-sorted
// deterministically.
func RunErrorChecking(peaks []*ChromatographicPeak, whitelist ident.Whitelist,
	cfg *config.Settings) []*ChromatographicPeak {

	var out []*ChromatographicPeak
	byApex := make(map[peakindex.Key]*ChromatographicPeak, len(peaks))

	for _, peak := range peaks {
		if peak == nil {
			continue
		}
		if peak.Apex == nil {
			if !peak.IsMBR {
				out = append(out, peak)
			}
			continue
		}
		k := peak.Apex.Peak.Key()
		stored, ok := byApex[k]
		if !ok {
			byApex[k] = peak
			continue
		}
		byApex[k] = resolveApexConflict(stored, peak, whitelist, cfg)
	}

	for _, peak := range byApex {
		out = append(out, peak)
	}
	sortPeaks(out)
	return out
}

func resolveApexConflict(stored, peak *ChromatographicPeak,
	whitelist ident.Whitelist, cfg *config.Settings) *ChromatographicPeak {

	switch {
	case !stored.IsMBR && !peak.IsMBR:
		if stored.Whitelisted(whitelist) && peak.Whitelisted(whitelist) {
			stored.Merge(peak, cfg.Integrate)
			return stored
		}
		if stored.Whitelisted(whitelist) {
			return stored
		}
		return peak

	case stored.IsMBR != peak.IsMBR:
		ms2, mbr := stored, peak
		if stored.IsMBR {
			ms2, mbr = peak, stored
		}
		if ms2.DecoyPeptide || !ms2.Whitelisted(whitelist) {
			return mbr
		}
		return ms2

	default: // both MBR
		if stored.ModifiedSequence() == peak.ModifiedSequence() {
			stored.Merge(peak, cfg.Integrate)
			return stored
		}
		if peak.MbrScore > stored.MbrScore {
			return peak
		}
		return stored
	}
}

// sortPeaks orders peaks deterministically: by apex scan, apex m/z and
// primary sequence; apexless peaks first by sequence
func sortPeaks(peaks []*ChromatographicPeak) {
	sort.SliceStable(peaks, func(i, j int) bool {
		a, b := peaks[i], peaks[j]
		if (a.Apex == nil) != (b.Apex == nil) {
			return a.Apex == nil
		}
		if a.Apex != nil {
			if a.Apex.Peak.ScanIndex != b.Apex.Peak.ScanIndex {
				return a.Apex.Peak.ScanIndex < b.Apex.Peak.ScanIndex
			}
			if a.Apex.Peak.Mz != b.Apex.Peak.Mz {
				return a.Apex.Peak.Mz < b.Apex.Peak.Mz
			}
		}
		return a.ModifiedSequence() < b.ModifiedSequence()
	})
}
