package catchment

import (
	"math"
	"sort"

	"github.com/cp2b/biogas-cli/internal/model"
)

// statPercentiles are the percentiles reported for every column.
var statPercentiles = []int{25, 75, 90, 95}

// computeStatistics summarizes one column's values. Percentiles use linear
// interpolation between closest ranks; Std is the sample standard
// deviation. Values and order are the caller's; nothing is mutated.
func computeStatistics(values []float64) model.Statistics {
	s := model.Statistics{Count: len(values)}
	if len(values) == 0 {
		return s
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	for _, v := range sorted {
		s.Total += v
	}
	s.Mean = s.Total / float64(len(sorted))
	s.Median = percentile(sorted, 50)

	if len(sorted) > 1 {
		var ss float64
		for _, v := range sorted {
			d := v - s.Mean
			ss += d * d
		}
		s.Std = math.Sqrt(ss / float64(len(sorted)-1))
	}

	s.Percentiles = make(map[int]float64, len(statPercentiles))
	for _, p := range statPercentiles {
		s.Percentiles[p] = percentile(sorted, float64(p))
	}

	p25 := s.Percentiles[25]
	p75 := s.Percentiles[75]
	for _, v := range values {
		switch {
		case v == 0:
			s.Distribution.Zeros++
		case v <= p25:
			s.Distribution.Low++
		case v <= p75:
			s.Distribution.Medium++
		default:
			s.Distribution.High++
		}
	}

	return s
}

// percentile returns the p-th percentile of an ascending-sorted slice,
// interpolating linearly between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// weightedMean computes the distance-weighted mean with weight
// w = 1 - d/maxD. When every weight collapses to zero (all records at the
// same distance, or a single record at the center) it falls back to the
// plain mean.
func weightedMean(values, distances []float64) float64 {
	if len(values) == 0 || len(values) != len(distances) {
		return 0
	}

	maxD := 0.0
	for _, d := range distances {
		maxD = math.Max(maxD, d)
	}

	var sumWV, sumW float64
	if maxD > 0 {
		for i, v := range values {
			w := 1 - distances[i]/maxD
			sumWV += v * w
			sumW += w
		}
	}
	if sumW == 0 {
		var total float64
		for _, v := range values {
			total += v
		}
		return total / float64(len(values))
	}
	return sumWV / sumW
}
