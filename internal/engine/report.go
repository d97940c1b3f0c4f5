// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package engine

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"
)

var reportColumns = []string{
	"File Name",
	"Base Sequence",
	"Full Sequence",
	"Protein Groups",
	"Monoisotopic Mass",
	"Charges",
	"Intensity",
	"Num Envelopes",
	"RT Start",
	"RT Apex",
	"RT End",
	"Split RT",
	"MBR",
	"Random RT",
	"Decoy Peptide",
	"MBR Score",
	"MBR PEP",
	"MBR QValue",
}

// WriteTSV writes one row per chromatographic peak, runs in
// deterministic order
func (r *Results) WriteTSV(w io.Writer) error {
	if _, err := fmt.Fprintln(w, strings.Join(reportColumns, "\t")); err != nil {
		return err
	}
	for _, run := range r.RunOrder {
		for _, p := range r.Peaks[run.Label()] {
			id := p.Identification()
			if id == nil {
				continue
			}
			rtLo, rtHi := p.RTSpan()
			charges := make([]string, 0, 4)
			for _, z := range p.ChargeList() {
				charges = append(charges, strconv.Itoa(z))
			}
			fields := []string{
				run.Label(),
				id.BaseSequence,
				id.ModifiedSequence,
				strings.Join(id.ProteinGroups, ";"),
				formatFloat(id.MonoisotopicMass),
				strings.Join(charges, ";"),
				formatFloat(p.Intensity),
				strconv.Itoa(len(p.Envelopes)),
				formatFloat(rtLo),
				formatFloat(p.ApexRT()),
				formatFloat(rtHi),
				formatFloat(p.SplitRT),
				formatBool(p.IsMBR),
				formatBool(p.RandomRT),
				formatBool(p.DecoyPeptide),
				formatFloat(p.MbrScore),
				formatFloat(p.MbrPEP),
				formatFloat(p.MbrQValue),
			}
			if _, err := fmt.Fprintln(w, strings.Join(fields, "\t")); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteSummary writes the per-run diagnostics as YAML
func (r *Results) WriteSummary(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(r.Summary)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
