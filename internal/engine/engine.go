// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// Package engine glues the quantification passes together: per-run MS2
// quantification over the peak index, the match-between-runs transfer
// pass, and FDR estimation of the transferred peaks.
package engine

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/524D/lfquant/internal/config"
	"github.com/524D/lfquant/internal/fdr"
	"github.com/524D/lfquant/internal/ident"
	"github.com/524D/lfquant/internal/mbr"
	"github.com/524D/lfquant/internal/mzml"
	"github.com/524D/lfquant/internal/peakindex"
	"github.com/524D/lfquant/internal/quant"
)

// Engine runs label-free quantification over a set of runs
type Engine struct {
	Settings        config.Settings
	Runs            []*quant.RunInfo
	Identifications []*ident.Identification

	// OpenSource yields the MS1 scans of a run; defaults to the mzML reader
	OpenSource func(run *quant.RunInfo) (peakindex.MS1Source, error)

	// IndexDir receives one persisted peak index per run between the MS2
	// and MBR passes; cleaned up by the caller
	IndexDir string

	whitelist ident.Whitelist
}

// RunSummary is the per-run diagnostic record
type RunSummary struct {
	Run            string `yaml:"run"`
	Condition      string `yaml:"condition"`
	MS2Peaks       int    `yaml:"ms2_peaks"`
	MbrPeaks       int    `yaml:"mbr_peaks"`
	RandomRTDecoys int    `yaml:"random_rt_decoys"`
	DecoyPeptides  int    `yaml:"decoy_peptides"`
	Skipped        bool   `yaml:"skipped,omitempty"`
}

// Results maps each run label to its final chromatographic peaks
type Results struct {
	Peaks    map[string][]*quant.ChromatographicPeak
	RunOrder []*quant.RunInfo
	Summary  []RunSummary
}

// Run executes the engine. Failures in a single run are isolated and
// logged; the engine continues with the remaining runs.
func (e *Engine) Run() (*Results, error) {
	cfg := &e.Settings
	if e.OpenSource == nil {
		e.OpenSource = openMzML
	}
	e.whitelist = ident.NewWhitelist(cfg.PeptidesToQuantify)

	quant.SortRuns(e.Runs)

	ident.MarkDecoys(e.Identifications, cfg.DecoyTag)
	e.computeIsotopeModels()

	idsByRun := ident.ByFile(e.Identifications)
	results := &Results{
		Peaks:    make(map[string][]*quant.ChromatographicPeak, len(e.Runs)),
		RunOrder: e.Runs,
	}

	// Pass 1: per-run MS2 quantification. The peak index of each run is
	// built, consumed, persisted for the MBR pass, and dropped to bound
	// memory.
	contexts := make(map[string]*quant.RunContext, len(e.Runs))
	skipped := make(map[string]bool)
	for _, run := range e.Runs {
		label := run.Label()
		ids := idsByRun[label]
		if len(ids) == 0 {
			log.Printf("no identifications for run %s", label)
			results.Peaks[label] = nil
			continue
		}

		ctx, err := e.buildRunContext(run)
		if err != nil {
			log.Printf("skipping run %s: %v", label, err)
			skipped[label] = true
			continue
		}

		peaks := quant.QuantifyRun(ctx, ids)
		peaks = quant.RunErrorChecking(peaks, e.whitelist, cfg)
		results.Peaks[label] = peaks

		if cfg.MatchBetweenRuns {
			if err := ctx.Index.Save(e.indexPath(run)); err != nil {
				return nil, fmt.Errorf("persisting peak index for %s: %w", label, err)
			}
			// Keep the scan table, drop the peaks
			contexts[label] = &quant.RunContext{Run: run, Scans: ctx.Scans, Settings: cfg}
		}
	}

	// Pass 2: match-between-runs
	if cfg.MatchBetweenRuns {
		if err := e.matchBetweenRuns(results, contexts); err != nil {
			return nil, err
		}
	}

	e.summarize(results, skipped)
	debugDumpResults(results)
	return results, nil
}

func (e *Engine) buildRunContext(run *quant.RunInfo) (*quant.RunContext, error) {
	src, err := e.OpenSource(run)
	if err != nil {
		return nil, err
	}
	index, err := peakindex.Build(src)
	if err != nil {
		return nil, err
	}
	return &quant.RunContext{
		Run:      run,
		Index:    index,
		Scans:    index.Scans(),
		Settings: &e.Settings,
	}, nil
}

func (e *Engine) matchBetweenRuns(results *Results, contexts map[string]*quant.RunContext) error {
	cfg := &e.Settings
	proteinsByCondition := e.proteinsByCondition(results)

	donorRuns := make([]*mbr.DonorRun, 0, len(e.Runs))
	for _, run := range e.Runs {
		donorRuns = append(donorRuns, &mbr.DonorRun{Run: run, Peaks: results.Peaks[run.Label()]})
	}

	var transferred []*quant.ChromatographicPeak
	byAcceptor := make(map[string][]*quant.ChromatographicPeak)
	for _, acceptor := range e.Runs {
		label := acceptor.Label()
		ctx, ok := contexts[label]
		if !ok {
			continue
		}
		index, err := peakindex.Load(e.indexPath(acceptor))
		if err != nil {
			log.Printf("cannot rehydrate peak index for %s, skipping MBR: %v", label, err)
			continue
		}
		ctx.Index = index

		orch := mbr.NewOrchestrator(ctx, e.whitelist, proteinsByCondition, cfg)
		peaks := orch.Transfer(results.Peaks[label], donorRuns)
		ctx.Index = nil // drop between acceptors to bound memory

		byAcceptor[label] = peaks
		transferred = append(transferred, peaks...)
	}

	kept := fdr.Estimate(transferred, cfg)
	keptSet := make(map[*quant.ChromatographicPeak]bool, len(kept))
	for _, p := range kept {
		keptSet[p] = true
	}

	for label, peaks := range byAcceptor {
		merged := results.Peaks[label]
		for _, p := range peaks {
			if keptSet[p] {
				merged = append(merged, p)
			}
		}
		results.Peaks[label] = quant.RunErrorChecking(merged, e.whitelist, cfg)
	}
	return nil
}

// computeIsotopeModels fills the theoretical pattern and peakfinding
// mass of every distinct modified sequence once
func (e *Engine) computeIsotopeModels() {
	type modelKey struct {
		seq     string
		mass    float64
		formula string
	}
	done := make(map[modelKey]*ident.Identification)
	for _, id := range e.Identifications {
		k := modelKey{seq: id.ModifiedSequence, mass: id.MonoisotopicMass, formula: id.ChemicalFormula}
		if prev, ok := done[k]; ok {
			id.Isotopes = prev.Isotopes
			id.PeakfindingMass = prev.PeakfindingMass
			continue
		}
		id.ComputeIsotopeModel(e.Settings.NumIsotopesRequired)
		done[k] = id
	}
}

func (e *Engine) proteinsByCondition(results *Results) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, run := range e.Runs {
		cond := run.Condition
		if out[cond] == nil {
			out[cond] = make(map[string]bool)
		}
		for _, p := range results.Peaks[run.Label()] {
			if p.IsMBR {
				continue
			}
			for _, id := range p.Idents {
				for _, prot := range id.ProteinGroups {
					out[cond][prot] = true
				}
			}
		}
	}
	return out
}

func (e *Engine) summarize(results *Results, skipped map[string]bool) {
	for _, run := range e.Runs {
		label := run.Label()
		s := RunSummary{Run: label, Condition: run.Condition, Skipped: skipped[label]}
		for _, p := range results.Peaks[label] {
			if p.IsMBR {
				s.MbrPeaks++
				if p.RandomRT {
					s.RandomRTDecoys++
				}
			} else {
				s.MS2Peaks++
			}
			if p.DecoyPeptide {
				s.DecoyPeptides++
			}
		}
		results.Summary = append(results.Summary, s)
	}
}

func (e *Engine) indexPath(run *quant.RunInfo) string {
	return filepath.Join(e.IndexDir, run.Label()+".peakindex")
}

// openMzML is the default MS1 source: the run's mzML file
func openMzML(run *quant.RunInfo) (peakindex.MS1Source, error) {
	f, err := os.Open(run.FilePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", run.FilePath, err)
	}
	defer f.Close()
	m, err := mzml.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", run.FilePath, err)
	}
	return mzml.NewSource(&m), nil
}
