package usace

import (
	"math"
	"time"
)

type Statistics struct {
	TotalDays         int       `json:"totalDays"`
	TotalPeriods      int       `json:"totalPeriods"`
	AverageGeneration float64   `json:"averageGeneration"`
	PeakGeneration    float64   `json:"peakGeneration"`
	MinGeneration     float64   `json:"minGeneration"`
	ScrapedAt         time.Time `json:"scrapedAt"`
}

// ComputeStatistics aggregates every period of every schedule, the generation
// figures stay zero when there are no periods at all.
func ComputeStatistics(schedules Schedules, scrapedAt time.Time) Statistics {
	stats := Statistics{
		TotalDays: schedules.Len(),
		ScrapedAt: scrapedAt,
	}

	var sum float64
	peak := math.Inf(-1)
	min := math.Inf(1)
	for _, day := range schedules.All() {
		for _, p := range day.Periods {
			stats.TotalPeriods++
			sum += p.Generation
			peak = math.Max(peak, p.Generation)
			min = math.Min(min, p.Generation)
		}
	}
	if stats.TotalPeriods == 0 {
		return stats
	}

	stats.AverageGeneration = math.Round(sum / float64(stats.TotalPeriods))
	stats.PeakGeneration = peak
	stats.MinGeneration = min
	return stats
}
