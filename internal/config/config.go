// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// Package config holds the engine settings, unmarshalled from Viper
// (see the root command) or constructed with defaults.
package config

import (
	"errors"
	"regexp"
	"runtime"
	"strconv"

	"github.com/spf13/viper"
)

var ErrRangeSpec = errors.New("invalid range specified")

// DonorCriterion selects the best donor peak per peptide for MBR
type DonorCriterion string

const (
	// DonorScore picks the peak with the highest PSM score
	DonorScore DonorCriterion = "score"
	// DonorNeighbors picks the peak with the most distinct peptide peaks
	// eluting nearby
	DonorNeighbors DonorCriterion = "neighbors"
	// DonorIntensity picks the most intense peak
	DonorIntensity DonorCriterion = "intensity"
)

// ScoreWeights are the relative weights of the MBR composite score terms.
// Defaults are unit weights; ties are broken on envelope correlation.
type ScoreWeights struct {
	Ppm         float64 `mapstructure:"ppm" yaml:"ppm"`
	Rt          float64 `mapstructure:"rt" yaml:"rt"`
	Intensity   float64 `mapstructure:"intensity" yaml:"intensity"`
	Correlation float64 `mapstructure:"correlation" yaml:"correlation"`
}

// Settings contains all engine parameters. The zero value is not usable;
// construct with Default() and override fields as needed.
type Settings struct {
	// ppm tolerance for accepting a peak once an XIC is built
	PpmTolerance float64 `mapstructure:"ppm-tolerance" yaml:"ppm_tolerance"`

	// ppm tolerance for sibling isotope peaks of an envelope
	IsotopePpmTolerance float64 `mapstructure:"isotope-ppm-tolerance" yaml:"isotope_ppm_tolerance"`

	// ppm tolerance for the initial peakfinding pass
	PeakfindingPpmTolerance float64 `mapstructure:"peakfinding-ppm-tolerance" yaml:"peakfinding_ppm_tolerance"`

	// minimum number of isotope peaks for a valid envelope
	NumIsotopesRequired int `mapstructure:"num-isotopes-required" yaml:"num_isotopes_required"`

	// consecutive MS1 scans without a matching peak before an XIC walk stops
	MissedScansAllowed int `mapstructure:"missed-scans-allowed" yaml:"missed_scans_allowed"`

	// report integrated peak area instead of apex intensity
	Integrate bool `mapstructure:"integrate" yaml:"integrate"`

	// only quantify at the charge state of the identification
	IDSpecificChargeState bool `mapstructure:"id-specific-charge" yaml:"id_specific_charge_state"`

	// optional charge range override like "1:5";
	// empty means the run-wide range of identification charges
	ChargeRange string `mapstructure:"charge-range" yaml:"charge_range"`

	// relative valley depth that splits a chromatographic peak
	DiscriminationFactorToCutPeak float64 `mapstructure:"discrimination-factor" yaml:"discrimination_factor_to_cut_peak"`

	MatchBetweenRuns bool    `mapstructure:"mbr" yaml:"match_between_runs"`
	MbrPpmTolerance  float64 `mapstructure:"mbr-ppm-tolerance" yaml:"mbr_ppm_tolerance"`

	// maximum RT window width for transferred peaks, minutes
	MbrRtWindow float64 `mapstructure:"mbr-rt-window" yaml:"mbr_rt_window"`

	// window for counting neighbor peptides in donor selection, minutes
	MbrAlignmentWindow float64 `mapstructure:"mbr-alignment-window" yaml:"mbr_alignment_window"`

	// anchors collected on each side of a donor peak for RT prediction
	NumAnchorPeptides int `mapstructure:"num-anchor-peptides" yaml:"num_anchor_peptides_for_mbr"`

	DonorCriterion              DonorCriterion `mapstructure:"donor-criterion" yaml:"donor_criterion"`
	DonorQValueThreshold        float64        `mapstructure:"donor-q-threshold" yaml:"donor_q_value_threshold"`
	MbrDetectionQValueThreshold float64        `mapstructure:"mbr-q-threshold" yaml:"mbr_detection_q_value_threshold"`

	// require an MS2 identification of the donor protein in the
	// acceptor's condition before transferring
	RequireMsmsIdInCondition bool `mapstructure:"require-msms-id-in-condition" yaml:"require_msms_id_in_condition"`

	// quantify identifications with ambiguous peptide sequences
	QuantifyAmbiguousPeptides bool `mapstructure:"quantify-ambiguous" yaml:"quantify_ambiguous_peptides"`

	// modified sequences eligible for quantification; empty means all
	PeptidesToQuantify []string `mapstructure:"peptides-to-quantify" yaml:"peptide_modified_sequences_to_quantify"`

	// protein accession prefix that marks decoy identifications
	DecoyTag string `mapstructure:"decoy-tag" yaml:"decoy_tag"`

	MaxThreads          int          `mapstructure:"max-threads" yaml:"max_threads"`
	RandomSeed          int64        `mapstructure:"random-seed" yaml:"random_seed"`
	PepTrainingFraction float64      `mapstructure:"pep-training-fraction" yaml:"pep_training_fraction"`
	MbrScoreWeights     ScoreWeights `mapstructure:"mbr-score-weights" yaml:"mbr_score_weights"`
}

// Default returns the settings with all documented defaults
func Default() Settings {
	return Settings{
		PpmTolerance:                  10,
		IsotopePpmTolerance:           5,
		PeakfindingPpmTolerance:       20,
		NumIsotopesRequired:           2,
		MissedScansAllowed:            1,
		Integrate:                     false,
		IDSpecificChargeState:         false,
		DiscriminationFactorToCutPeak: 0.6,
		MatchBetweenRuns:              false,
		MbrPpmTolerance:               10,
		MbrRtWindow:                   1.0,
		MbrAlignmentWindow:            2.5,
		NumAnchorPeptides:             3,
		DonorCriterion:                DonorScore,
		DonorQValueThreshold:          0.01,
		MbrDetectionQValueThreshold:   0.05,
		RequireMsmsIdInCondition:      false,
		QuantifyAmbiguousPeptides:     false,
		DecoyTag:                      "rev_",
		MaxThreads:                    maxThreadsDefault(),
		RandomSeed:                    42,
		PepTrainingFraction:           0.25,
		MbrScoreWeights:               ScoreWeights{Ppm: 1, Rt: 1, Intensity: 1, Correlation: 1},
	}
}

func maxThreadsDefault() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// FromViper returns the default settings overridden by whatever
// Viper has bound from flags, environment or a config file
func FromViper(v *viper.Viper) (Settings, error) {
	s := Default()
	if err := v.Unmarshal(&s); err != nil {
		return s, err
	}
	if s.MaxThreads < 1 {
		s.MaxThreads = maxThreadsDefault()
	}
	return s, nil
}

// ChargeStates returns the charge range override, or ok=false when the
// run-wide range of identification charges should be used
func (s *Settings) ChargeStates() (int, int, bool, error) {
	if s.ChargeRange == "" {
		return 0, 0, false, nil
	}
	lo, hi, err := ParseIntRange(s.ChargeRange, 1, 10)
	if err != nil {
		return 0, 0, false, err
	}
	return lo, hi, true, nil
}

// ParseIntRange parses a string like "-12:6" into 2 values, -12 and 6.
// Parameters min and max are the "default" min/max values; when a value
// is not specified (e.g. "-12:"), the default is assigned.
func ParseIntRange(r string, min int, max int) (int, int, error) {
	re := regexp.MustCompile(`\s*(\-?\d*):(\-?\d*)`)
	m := re.FindStringSubmatch(r)
	minOut := min
	maxOut := max
	if len(m) >= 2 && m[1] != "" {
		minOut, _ = strconv.Atoi(m[1])
		if minOut < min {
			minOut = min
		}
	}
	if len(m) >= 3 && m[2] != "" {
		maxOut, _ = strconv.Atoi(m[2])
		if maxOut > max {
			maxOut = max
		}
	}
	var err error
	if minOut > maxOut {
		err = ErrRangeSpec
		minOut = maxOut
	}
	return minOut, maxOut, err
}
