package usace

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		generation float64
		expected   Status
	}{
		{generation: 0, expected: STATUS_BASE},
		{generation: 6, expected: STATUS_BASE},
		{generation: 10, expected: STATUS_BASE},
		{generation: 10.5, expected: STATUS_ACTIVE},
		{generation: 50, expected: STATUS_ACTIVE},
		{generation: 51, expected: STATUS_PEAK},
		{generation: 120, expected: STATUS_PEAK},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, StatusFor(test.generation), test.generation)
	}
}

func day(date string, generations ...float64) DaySchedule {
	periods := make([]GenerationPeriod, len(generations))
	for i, g := range generations {
		periods[i] = NewGenerationPeriod("12:00 am - 1:00 am", g, SOURCE_LIVE)
	}
	return DaySchedule{
		Date:      date,
		DateValue: date,
		Success:   true,
		Periods:   periods,
		ScrapedAt: time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC),
	}
}

func TestSchedulesRefusesEmptyAndDuplicate(t *testing.T) {
	var schedules Schedules

	err := schedules.Add("2026-03-01", DaySchedule{Date: "3/1/2026"})
	require.True(t, errors.Is(err, ErrEmptySchedule))

	require.NoError(t, schedules.Add("2026-03-01", day("3/1/2026", 6)))
	err = schedules.Add("2026-03-01", day("3/1/2026", 7))
	require.True(t, errors.Is(err, ErrDuplicateDate))

	require.Equal(t, 1, schedules.Len())
	first, ok := schedules.First()
	require.True(t, ok)
	require.Equal(t, float64(6), first.Periods[0].Generation)
}

func TestSchedulesJSONKeepsInsertionOrder(t *testing.T) {
	var schedules Schedules
	// deliberately not in lexical order
	require.NoError(t, schedules.Add("2026-03-03", day("3/3/2026", 60)))
	require.NoError(t, schedules.Add("2026-03-01", day("3/1/2026", 6)))
	require.NoError(t, schedules.Add("2026-03-02", day("3/2/2026", 20)))

	data, err := json.Marshal(schedules)
	require.NoError(t, err)

	var decoded Schedules
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, []string{"2026-03-03", "2026-03-01", "2026-03-02"}, decoded.Keys())

	if diff := cmp.Diff(schedules.All(), decoded.All()); diff != "" {
		t.Fatalf("schedules changed after decoding (-want +got):\n%s", diff)
	}

	var generic map[string]DaySchedule
	require.NoError(t, json.Unmarshal(data, &generic))
	require.Len(t, generic, 3)
	require.Equal(t, STATUS_PEAK, generic["2026-03-03"].Periods[0].Status)
}

func TestSchedulesJSONRejectsEmptyDay(t *testing.T) {
	var decoded Schedules
	err := json.Unmarshal([]byte(`{"2026-03-01":{"date":"x","periods":[]}}`), &decoded)
	require.True(t, errors.Is(err, ErrEmptySchedule))

	require.NoError(t, json.Unmarshal([]byte(`null`), &decoded))
	require.Equal(t, 0, decoded.Len())

	data, err := json.Marshal(Schedules{})
	require.NoError(t, err)
	require.Equal(t, "{}", string(data))
}

func TestComputeStatistics(t *testing.T) {
	at := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)

	var a Schedules
	require.NoError(t, a.Add("2026-03-01", day("3/1/2026", 6, 6, 0)))
	require.NoError(t, a.Add("2026-03-02", day("3/2/2026", 72, 35)))

	var b Schedules
	require.NoError(t, b.Add("2026-03-02", day("3/2/2026", 35, 72)))
	require.NoError(t, b.Add("2026-03-01", day("3/1/2026", 0, 6, 6)))

	expected := Statistics{
		TotalDays:         2,
		TotalPeriods:      5,
		AverageGeneration: 24, // 119 / 5 = 23.8
		PeakGeneration:    72,
		MinGeneration:     0,
		ScrapedAt:         at,
	}
	require.Equal(t, expected, ComputeStatistics(a, at))
	require.Equal(t, expected, ComputeStatistics(b, at))

	require.Equal(t, Statistics{ScrapedAt: at}, ComputeStatistics(Schedules{}, at))
}

func TestScrapeResultJSONFields(t *testing.T) {
	var schedules Schedules
	require.NoError(t, schedules.Add("2026-03-01", day("3/1/2026", 6)))
	at := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)

	data, err := json.Marshal(ScrapeResult{
		Timestamp:  at,
		Plant:      "Barkley Dam",
		PlantID:    "BAR",
		Source:     SOURCE_LIVE,
		Schedules:  schedules,
		Statistics: ComputeStatistics(schedules, at),
	})
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	for _, key := range []string{"timestamp", "plant", "plantId", "source", "schedules", "statistics"} {
		require.Contains(t, generic, key)
	}
	stats := generic["statistics"].(map[string]any)
	for _, key := range []string{"totalDays", "totalPeriods", "averageGeneration", "peakGeneration", "minGeneration", "scrapedAt"} {
		require.Contains(t, stats, key)
	}
}
