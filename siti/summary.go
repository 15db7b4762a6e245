package siti

import (
	"fmt"

	"github.com/RyanBlaney/sonido-siti/algorithms/common"
)

// SeriesStats summarizes one per-frame series
type SeriesStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
}

// Summary holds sequence level SI/TI statistics. The maxima are the figures
// used to place a sequence on the P.910 SI/TI plane.
type Summary struct {
	SI SeriesStats `json:"si"`
	TI SeriesStats `json:"ti"`
}

// Summarize computes sequence statistics for r
func Summarize(r *Result) Summary {
	return Summary{
		SI: seriesStats(r.SI),
		TI: seriesStats(r.TI),
	}
}

func seriesStats(values []float64) SeriesStats {
	if len(values) == 0 {
		return SeriesStats{}
	}
	lo, hi := common.MinMax(values)
	return SeriesStats{
		Count:  len(values),
		Min:    lo,
		Max:    hi,
		Mean:   common.Mean(values),
		StdDev: common.PopStdDev(values),
		P50:    common.Percentile(values, 0.5),
		P95:    common.Percentile(values, 0.95),
	}
}

func (s SeriesStats) String() string {
	return fmt.Sprintf("n=%d min=%.3f max=%.3f mean=%.3f std=%.3f p50=%.3f p95=%.3f",
		s.Count, s.Min, s.Max, s.Mean, s.StdDev, s.P50, s.P95)
}
