// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package quant

import (
	"github.com/exascience/pargo/parallel"

	"github.com/524D/lfquant/internal/config"
	"github.com/524D/lfquant/internal/ident"
	"github.com/524D/lfquant/internal/peakindex"
)

// RunContext bundles the per-run state needed for peak construction.
// The index is immutable; concurrent readers only.
type RunContext struct {
	Run      *RunInfo
	Index    *peakindex.Index
	Scans    []peakindex.Ms1ScanInfo
	Settings *config.Settings
}

// ChargeRange returns the charge states to search: either the configured
// override or the run-wide range of identification charges
func ChargeRange(ids []*ident.Identification, cfg *config.Settings) (int, int) {
	if lo, hi, ok, err := cfg.ChargeStates(); err == nil && ok {
		return lo, hi
	}
	lo, hi := 0, 0
	for _, id := range ids {
		if lo == 0 || id.PrecursorCharge < lo {
			lo = id.PrecursorCharge
		}
		if id.PrecursorCharge > hi {
			hi = id.PrecursorCharge
		}
	}
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// QuantifyRun builds one chromatographic peak per MS2 identification of
// the run. Identifications are processed with a work-partitioned parallel
// loop; each loop iteration only writes its own result slot.
func QuantifyRun(ctx *RunContext, ids []*ident.Identification) []*ChromatographicPeak {
	cfg := ctx.Settings

	eligible := make([]*ident.Identification, 0, len(ids))
	for _, id := range ids {
		if id.Ambiguous() && !cfg.QuantifyAmbiguousPeptides {
			continue
		}
		eligible = append(eligible, id)
	}

	chargeLo, chargeHi := ChargeRange(eligible, cfg)

	peaks := make([]*ChromatographicPeak, len(eligible))
	parallel.Range(0, len(eligible), cfg.MaxThreads, func(low, high int) {
		for i := low; i < high; i++ {
			peaks[i] = quantifyIdentification(ctx, eligible[i], chargeLo, chargeHi)
		}
	})
	return peaks
}

// quantifyIdentification builds the chromatographic peak of a single
// identification across the charge range
func quantifyIdentification(ctx *RunContext, id *ident.Identification,
	chargeLo, chargeHi int) *ChromatographicPeak {

	cfg := ctx.Settings
	peak := NewPeak(id, ctx.Run, false)

	for charge := chargeLo; charge <= chargeHi; charge++ {
		if cfg.IDSpecificChargeState && charge != id.PrecursorCharge {
			continue
		}
		xic := Peakfind(ctx.Index, ctx.Scans, id.MS2RetentionTime,
			id.PeakfindingMass, charge, cfg.PeakfindingPpmTolerance, cfg.MissedScansAllowed)

		// Refine to the quantification tolerance
		filtered := xic[:0]
		for _, p := range xic {
			obsMass := peakindex.NeutralMass(p.Mz, charge)
			if ppmError(obsMass, id.PeakfindingMass) <= cfg.PpmTolerance {
				filtered = append(filtered, p)
			}
		}

		envelopes := IsotopicEnvelopes(filtered, id, charge, ctx.Index, cfg)
		peak.Envelopes = append(peak.Envelopes, envelopes...)
	}

	peak.sortEnvelopes()
	peak.CalculateIntensity(cfg.Integrate)

	// Restrict to the scan range covered at the identification's own
	// precursor charge; without envelopes at that charge the peak is
	// not credible
	precursorZ := peak.envelopesAtCharge(id.PrecursorCharge)
	if len(precursorZ) == 0 {
		peak.Envelopes = nil
		peak.CalculateIntensity(cfg.Integrate)
		return peak
	}
	minScan := precursorZ[0].Peak.ScanIndex
	maxScan := precursorZ[len(precursorZ)-1].Peak.ScanIndex
	kept := peak.Envelopes[:0]
	for _, e := range peak.Envelopes {
		if e.Peak.ScanIndex >= minScan && e.Peak.ScanIndex <= maxScan {
			kept = append(kept, e)
		}
	}
	peak.Envelopes = kept
	peak.CalculateIntensity(cfg.Integrate)

	CutPeak(peak, id.MS2RetentionTime, cfg.DiscriminationFactorToCutPeak, cfg.Integrate)
	return peak
}

func ppmError(observed, expected float64) float64 {
	e := (observed - expected) / expected * 1e6
	if e < 0 {
		e = -e
	}
	return e
}
