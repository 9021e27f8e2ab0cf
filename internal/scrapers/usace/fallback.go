package usace

import (
	"time"
)

// illustrative hours used for every fallback day, they are not real data
var fallbackHours = []struct {
	timeRange  string
	generation float64
}{
	{"12:00 am - 1:00 am", 0},
	{"6:00 am - 7:00 am", 8},
	{"10:00 am - 11:00 am", 35},
	{"2:00 pm - 3:00 pm", 72},
	{"5:00 pm - 6:00 pm", 64},
	{"9:00 pm - 10:00 pm", 18},
}

// BuildFallback returns a well-formed result covering yesterday and today
// (in the timezone of `now`), marked with a source that is never the live one.
func BuildFallback(plant Plant, now time.Time) ScrapeResult {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	days := []time.Time{today.AddDate(0, 0, -1), today}

	var schedules Schedules
	for _, day := range days {
		periods := make([]GenerationPeriod, len(fallbackHours))
		for i, h := range fallbackHours {
			periods[i] = NewGenerationPeriod(h.timeRange, h.generation, PERIOD_SOURCE_FALLBACK)
		}
		// keys are distinct and every day has periods
		_ = schedules.Add(day.Format("2006-01-02"), DaySchedule{
			Date:      day.Format("Monday, January 2, 2006"),
			DateValue: day.Format("1/2/2006"),
			Success:   true,
			Periods:   periods,
			ScrapedAt: now,
		})
	}

	return ScrapeResult{
		Timestamp:  now,
		Plant:      plant.Name,
		PlantID:    plant.ID,
		Source:     SOURCE_FALLBACK,
		Schedules:  schedules,
		Statistics: ComputeStatistics(schedules, now),
	}
}
