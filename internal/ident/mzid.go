// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package ident

import (
	"fmt"
	"io"

	"github.com/524D/lfquant/internal/isotopes"
	"github.com/524D/lfquant/internal/mzidentml"
)

// ReadMzIdentML reads identifications from an mzIdentML file and maps
// them onto the quantification model. The monoisotopic mass is computed
// from the peptide sequence plus the modification mass deltas; retention
// times are converted to minutes. Identifications without a valid
// retention time or with an uncomputable mass are skipped.
func ReadMzIdentML(r io.Reader, fileName string) ([]*Identification, error) {
	m, err := mzidentml.Read(r)
	if err != nil {
		return nil, fmt.Errorf("reading mzIdentML: %w", err)
	}

	ids := make([]*Identification, 0, m.NumIdents())
	for i := 0; i < m.NumIdents(); i++ {
		mzid, err := m.Ident(i)
		if err != nil {
			return nil, err
		}
		if mzid.RetentionTime < 0 {
			continue
		}
		comp, err := isotopes.CompositionOf(mzid.PepSeq)
		if err != nil {
			// Mass cannot be computed, skip
			continue
		}
		id := &Identification{
			FileName:         fileName,
			BaseSequence:     mzid.PepSeq,
			ModifiedSequence: modifiedSequence(mzid.PepSeq, mzid.ModMass),
			MonoisotopicMass: comp.MonoisotopicMass() + mzid.ModMass,
			PrecursorCharge:  mzid.Charge,
			MS2RetentionTime: mzid.RetentionTime / 60.0,
			PSMScore:         mzid.Score,
			QValue:           mzid.QValue,
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// modifiedSequence renders a full sequence from the base sequence and the
// total modification mass. mzIdentML does not localize modifications in a
// way we consume, so the mass delta is appended as a single annotation.
func modifiedSequence(baseSeq string, modMass float64) string {
	if modMass == 0 {
		return baseSeq
	}
	return fmt.Sprintf("%s[%+.4f]", baseSeq, modMass)
}
