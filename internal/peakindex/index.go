// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// Package peakindex provides a per-run lookup from (m/z, scan) to
// centroided MS1 peaks, and its persistence between engine passes.
package peakindex

import (
	"math"
	"sort"

	"github.com/524D/lfquant/internal/isotopes"
)

// IndexedPeak is one observed centroid. Immutable after indexing;
// owned by the Index for the lifetime of one run.
type IndexedPeak struct {
	Mz        float64
	Intensity float64
	ScanIndex int // zero-based MS1 scan index
	RT        float64
}

// Key identifies a physical centroid across (de)serialization,
// where pointer identity does not survive.
type Key struct {
	ScanIndex int
	Mz        float64
}

// Key returns the value identity of the peak
func (p *IndexedPeak) Key() Key {
	return Key{ScanIndex: p.ScanIndex, Mz: p.Mz}
}

// Ms1ScanInfo describes one MS1 scan of a run
type Ms1ScanInfo struct {
	ScanIndex  int // zero-based MS1 scan index
	ScanNumber int // one-based scan number in the raw file
	RT         float64
}

// Index holds all centroids of one run, bucketed by integer m/z so a
// ppm-window query inspects O(1) buckets. Within each bucket peaks are
// ordered by scan index, then m/z. Immutable after Build; concurrent
// readers only.
type Index struct {
	buckets map[int][]*IndexedPeak
	scans   []Ms1ScanInfo
}

// MS1Source streams the centroided MS1 scans of one run in ascending
// scan order. The mz and intensity slices are only valid during the
// callback.
type MS1Source interface {
	EachMS1Scan(f func(info Ms1ScanInfo, mz, intensity []float64) error) error
}

// Build streams all MS1 scans of a run into a new index
func Build(src MS1Source) (*Index, error) {
	x := &Index{buckets: make(map[int][]*IndexedPeak)}
	err := src.EachMS1Scan(func(info Ms1ScanInfo, mz, intensity []float64) error {
		x.scans = append(x.scans, info)
		for i := range mz {
			p := &IndexedPeak{
				Mz:        mz[i],
				Intensity: intensity[i],
				ScanIndex: info.ScanIndex,
				RT:        info.RT,
			}
			b := bucketOf(p.Mz)
			x.buckets[b] = append(x.buckets[b], p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	x.sortBuckets()
	return x, nil
}

func bucketOf(mz float64) int {
	return int(math.Floor(mz))
}

func (x *Index) sortBuckets() {
	for _, peaks := range x.buckets {
		sort.Slice(peaks, func(i, j int) bool {
			if peaks[i].ScanIndex != peaks[j].ScanIndex {
				return peaks[i].ScanIndex < peaks[j].ScanIndex
			}
			return peaks[i].Mz < peaks[j].Mz
		})
	}
	sort.Slice(x.scans, func(i, j int) bool { return x.scans[i].ScanIndex < x.scans[j].ScanIndex })
}

// Scans returns the MS1 scan infos of the run, ascending by index
func (x *Index) Scans() []Ms1ScanInfo {
	return x.scans
}

// NumPeaks returns the total number of indexed centroids
func (x *Index) NumPeaks() int {
	n := 0
	for _, peaks := range x.buckets {
		n += len(peaks)
	}
	return n
}

// Mz converts a neutral mass and charge to m/z
func Mz(neutralMass float64, charge int) float64 {
	z := float64(charge)
	return (neutralMass + z*isotopes.MassProton) / z
}

// NeutralMass converts an m/z and charge to a neutral mass
func NeutralMass(mz float64, charge int) float64 {
	z := float64(charge)
	return mz*z - z*isotopes.MassProton
}

// Get returns the most intense centroid in the given scan whose neutral
// mass is within ppmTolerance of targetMass at the given charge, or nil.
// Ties are broken by higher intensity.
func (x *Index) Get(targetMass float64, scanIndex int, ppmTolerance float64, charge int) *IndexedPeak {
	mz := Mz(targetMass, charge)
	tol := ppmTolerance / 1e6
	loBucket := bucketOf(mz * (1 - tol))
	hiBucket := bucketOf(mz * (1 + tol))

	var best *IndexedPeak
	for b := loBucket; b <= hiBucket; b++ {
		peaks := x.buckets[b]
		// Find the first peak of the requested scan
		i := sort.Search(len(peaks), func(i int) bool { return peaks[i].ScanIndex >= scanIndex })
		for ; i < len(peaks) && peaks[i].ScanIndex == scanIndex; i++ {
			p := peaks[i]
			obsMass := NeutralMass(p.Mz, charge)
			if math.Abs(obsMass-targetMass)/targetMass*1e6 > ppmTolerance {
				continue
			}
			if best == nil || p.Intensity > best.Intensity {
				best = p
			}
		}
	}
	return best
}
