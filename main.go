// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// lfquant quantifies peptides across label-free proteomics runs. Given
// centroided mzML files and peptide identifications, it measures each
// peptide's abundance per run from the MS1 isotopic envelopes and can
// transfer identifications between runs (match-between-runs).
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/524D/lfquant/internal/config"
	"github.com/524D/lfquant/internal/engine"
	"github.com/524D/lfquant/internal/ident"
	"github.com/524D/lfquant/internal/quant"
)

const progName = "lfquant"

var progVersion = `Unknown`

var (
	flagIdentFile  string
	flagDesignFile string
	flagOutDir     string
)

var rootCmd = &cobra.Command{
	Use:   progName + " [mzML files]",
	Short: "Label-free quantification of peptides across MS runs",
	Long: `lfquant builds one chromatographic peak per peptide identification by
integrating its isotopic envelope across MS1 scans, and optionally
transfers identifications between runs (match-between-runs) with
decoy-based FDR control.

Runs are given either as mzML files on the command line or through an
experiment design file (tab-separated: File Path, Condition,
Bio Replicate, Fraction, Tech Replicate). Identifications are read from
a tab-separated PSM file or an mzIdentML file.`,
	Version: progVersion,
	RunE:    run,
}

func init() {
	rootCmd.Flags().StringVar(&flagIdentFile, "ids", "", "identification file (tab-separated PSMs or mzIdentML)")
	rootCmd.Flags().StringVar(&flagDesignFile, "design", "", "experiment design file (tab-separated)")
	rootCmd.Flags().StringVarP(&flagOutDir, "out", "o", ".", "output directory")

	flags := rootCmd.Flags()
	flags.Float64("ppm-tolerance", 10, "ppm tolerance for accepted peaks")
	flags.Float64("isotope-ppm-tolerance", 5, "ppm tolerance for sibling isotope peaks")
	flags.Float64("peakfinding-ppm-tolerance", 20, "ppm tolerance for the initial peakfinding pass")
	flags.Int("num-isotopes-required", 2, "minimum isotope peaks per envelope")
	flags.Int("missed-scans-allowed", 1, "consecutive missing scans tolerated in an XIC")
	flags.Bool("integrate", false, "report integrated peak area instead of apex intensity")
	flags.Bool("id-specific-charge", false, "only quantify at the identified charge state")
	flags.String("charge-range", "", `charge range override, e.g. "1:5"`)
	flags.Bool("mbr", false, "transfer identifications between runs")
	flags.Float64("mbr-ppm-tolerance", 10, "ppm tolerance for transferred peaks")
	flags.Float64("mbr-rt-window", 1.0, "maximum RT window for transferred peaks (min)")
	flags.String("donor-criterion", string(config.DonorScore), "donor peak selection: score, neighbors or intensity")
	flags.Float64("donor-q-threshold", 0.01, "q-value threshold for donor identifications")
	flags.Float64("mbr-q-threshold", 0.05, "detection q-value threshold for transferred peaks")
	flags.String("decoy-tag", "rev_", "protein accession prefix marking decoys")
	flags.Int("max-threads", 0, "worker threads (0 = cores-1)")
	flags.Int64("random-seed", 42, "seed for decoy selection and PEP training")

	if err := viper.BindPFlags(flags); err != nil {
		log.Fatalf("binding flags: %v", err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	settings, err := config.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	runs, err := loadRuns(args)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("no runs specified; give mzML files or --design")
	}
	if flagIdentFile == "" {
		return fmt.Errorf("no identification file specified (--ids)")
	}

	ids, err := loadIdentifications(flagIdentFile, runs)
	if err != nil {
		return err
	}

	indexDir, err := os.MkdirTemp("", progName+"-index-")
	if err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	defer os.RemoveAll(indexDir)

	e := &engine.Engine{
		Settings:        settings,
		Runs:            runs,
		Identifications: ids,
		IndexDir:        indexDir,
	}
	results, err := e.Run()
	if err != nil {
		return err
	}

	return writeResults(results)
}

func loadRuns(args []string) ([]*quant.RunInfo, error) {
	if flagDesignFile != "" {
		return readDesign(flagDesignFile)
	}
	runs := make([]*quant.RunInfo, 0, len(args))
	for _, path := range args {
		runs = append(runs, &quant.RunInfo{FilePath: path})
	}
	return runs, nil
}

// readDesign reads the experiment design: one run per line, tab-separated
// file path, condition, bio replicate, fraction, tech replicate. Only the
// file path is required.
func readDesign(path string) ([]*quant.RunInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening design file: %w", err)
	}
	defer f.Close()

	var runs []*quant.RunInfo
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(strings.ToLower(line), "file path") {
			continue
		}
		fields := strings.Split(line, "\t")
		run := &quant.RunInfo{FilePath: fields[0]}
		atoi := func(i int) int {
			if i >= len(fields) {
				return 0
			}
			n, _ := strconv.Atoi(strings.TrimSpace(fields[i]))
			return n
		}
		if len(fields) > 1 {
			run.Condition = strings.TrimSpace(fields[1])
		}
		run.BioReplicate = atoi(2)
		run.Fraction = atoi(3)
		run.TechReplicate = atoi(4)
		runs = append(runs, run)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading design file: %w", err)
	}
	return runs, nil
}

func loadIdentifications(path string, runs []*quant.RunInfo) ([]*ident.Identification, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening identification file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".mzid") {
		// An mzIdentML file carries no run reference usable here; it
		// applies to a single-run analysis
		if len(runs) != 1 {
			return nil, fmt.Errorf("an mzIdentML identification file requires exactly one run")
		}
		return ident.ReadMzIdentML(f, runs[0].Label())
	}
	return ident.ReadTSV(f)
}

func writeResults(results *engine.Results) error {
	peaksPath := filepath.Join(flagOutDir, "QuantifiedPeaks.tsv")
	pf, err := os.Create(peaksPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", peaksPath, err)
	}
	defer pf.Close()
	if err := results.WriteTSV(pf); err != nil {
		return fmt.Errorf("writing peaks: %w", err)
	}

	summaryPath := filepath.Join(flagOutDir, "RunSummary.yaml")
	sf, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", summaryPath, err)
	}
	defer sf.Close()
	if err := results.WriteSummary(sf); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}
