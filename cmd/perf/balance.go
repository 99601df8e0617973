package perf

import (
	"fmt"
	"math"
)

// balance summarizes how evenly requests were spread over the sessions
type balance struct {
	Min, Max, Mean, StdDeviation float64
	// MinMaxRatio is 1 for a perfectly even spread
	MinMaxRatio float64
}

// newBalance computes the spread of the per session request counts
func newBalance(counts []int64) balance {
	if len(counts) == 0 {
		return balance{}
	}

	b := balance{Min: float64(counts[0]), Max: float64(counts[0]), MinMaxRatio: 1}
	var sum float64
	for _, c := range counts {
		v := float64(c)
		sum += v
		b.Min = math.Min(b.Min, v)
		b.Max = math.Max(b.Max, v)
	}
	b.Mean = sum / float64(len(counts))

	// population standard deviation
	var squared float64
	for _, c := range counts {
		diff := float64(c) - b.Mean
		squared += diff * diff
	}
	b.StdDeviation = math.Sqrt(squared / float64(len(counts)))

	if b.Max > 0 {
		b.MinMaxRatio = b.Min / b.Max
	}
	return b
}

func (b balance) String() string {
	return fmt.Sprintf("min=%.0f max=%.0f mean=%.1f stddev=%.1f min/max=%.2f", b.Min, b.Max, b.Mean, b.StdDeviation, b.MinMaxRatio)
}
