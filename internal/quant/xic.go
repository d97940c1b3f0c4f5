// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package quant

import (
	"sort"

	"github.com/524D/lfquant/internal/peakindex"
)

// findRtMs1 returns the index of the MS1 scan whose retention time is the
// last one not greater than rt. Scans must be ordered by scan index.
func findRtMs1(rt float64, scans []peakindex.Ms1ScanInfo) int {
	j := sort.Search(len(scans), func(i int) bool { return scans[i].RT > rt })
	if j > 0 {
		j--
	}
	if j >= len(scans) {
		j = len(scans) - 1
	}
	return j
}

// Peakfind traces a mass through adjacent MS1 scans around rtCenter.
// Starting at the scan whose RT is the last one not above rtCenter, it
// walks right and then left, tolerating up to missedScansAllowed
// consecutive scans without a matching peak. A non-match at the seed scan
// itself does not count as missed. The result is ordered by RT.
func Peakfind(index *peakindex.Index, scans []peakindex.Ms1ScanInfo,
	rtCenter, mass float64, charge int, ppmTolerance float64,
	missedScansAllowed int) []*peakindex.IndexedPeak {

	if len(scans) == 0 {
		return nil
	}
	seed := findRtMs1(rtCenter, scans)

	var xic []*peakindex.IndexedPeak

	missed := 0
	for s := seed; s < len(scans); s++ {
		p := index.Get(mass, scans[s].ScanIndex, ppmTolerance, charge)
		if p == nil {
			if s != seed {
				missed++
			}
			if missed > missedScansAllowed {
				break
			}
			continue
		}
		missed = 0
		xic = append(xic, p)
	}

	missed = 0
	for s := seed - 1; s >= 0; s-- {
		p := index.Get(mass, scans[s].ScanIndex, ppmTolerance, charge)
		if p == nil {
			missed++
			if missed > missedScansAllowed {
				break
			}
			continue
		}
		missed = 0
		xic = append(xic, p)
	}

	sort.Slice(xic, func(i, j int) bool { return xic[i].RT < xic[j].RT })
	return xic
}
