package usace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	SOURCE_LIVE            = "USACE Real-time"
	SOURCE_FALLBACK        = "USACE Fallback (Sample Data)"
	PERIOD_SOURCE_FALLBACK = "Fallback Data"
)

type Status string

const (
	STATUS_BASE   Status = "base"
	STATUS_ACTIVE Status = "active"
	STATUS_PEAK   Status = "peak"
)

// StatusFor classifies a generation value in MW, nothing but the
// magnitude takes part in the decision.
func StatusFor(generation float64) Status {
	switch {
	case generation > 50:
		return STATUS_PEAK
	case generation > 10:
		return STATUS_ACTIVE
	default:
		return STATUS_BASE
	}
}

// GenerationPeriod is one hour of reported output.
type GenerationPeriod struct {
	Time       string  `json:"time"`
	Generation float64 `json:"generation"`
	Status     Status  `json:"status"`
	Source     string  `json:"source"`
}

func NewGenerationPeriod(timeRange string, generation float64, source string) GenerationPeriod {
	return GenerationPeriod{
		Time:       timeRange,
		Generation: generation,
		Status:     StatusFor(generation),
		Source:     source,
	}
}

type DaySchedule struct {
	Date      string             `json:"date"`
	DateValue string             `json:"dateValue"`
	Success   bool               `json:"success"`
	Periods   []GenerationPeriod `json:"periods"`
	ScrapedAt time.Time          `json:"scrapedAt"`
}

// Schedules maps a date key (YYYY-MM-DD) to the schedule of that day, it
// remembers insertion order and serializes as a json object in that order.
type Schedules struct {
	keys  []string
	byKey map[string]DaySchedule
}

// Add appends a schedule, days without periods and repeated keys are refused.
func (s *Schedules) Add(key string, day DaySchedule) error {
	if len(day.Periods) == 0 {
		return fmt.Errorf("add schedule '%s': %w", key, ErrEmptySchedule)
	}
	if s.byKey == nil {
		s.byKey = map[string]DaySchedule{}
	}
	if _, exists := s.byKey[key]; exists {
		return fmt.Errorf("add schedule '%s': %w", key, ErrDuplicateDate)
	}
	s.keys = append(s.keys, key)
	s.byKey[key] = day
	return nil
}

func (s Schedules) Len() int {
	return len(s.keys)
}

func (s Schedules) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s Schedules) Get(key string) (DaySchedule, bool) {
	day, ok := s.byKey[key]
	return day, ok
}

// All returns the schedules in insertion order.
func (s Schedules) All() []DaySchedule {
	out := make([]DaySchedule, len(s.keys))
	for i, k := range s.keys {
		out[i] = s.byKey[k]
	}
	return out
}

func (s Schedules) First() (DaySchedule, bool) {
	if len(s.keys) == 0 {
		return DaySchedule{}, false
	}
	return s.byKey[s.keys[0]], true
}

func (s Schedules) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(s.byKey[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Schedules) UnmarshalJSON(data []byte) error {
	*s = Schedules{}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("schedules: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("schedules: expected string key, got %v", tok)
		}
		var day DaySchedule
		err = dec.Decode(&day)
		if err != nil {
			return fmt.Errorf("schedules: decode '%s': %w", key, err)
		}
		err = s.Add(key, day)
		if err != nil {
			return err
		}
	}

	_, err = dec.Token()
	return err
}

type ScrapeResult struct {
	Timestamp  time.Time  `json:"timestamp"`
	Plant      string     `json:"plant"`
	PlantID    string     `json:"plantId"`
	Source     string     `json:"source"`
	Schedules  Schedules  `json:"schedules"`
	Statistics Statistics `json:"statistics"`
}

// IsFallback tells if the result holds illustrative data instead of a live scrape.
func (r ScrapeResult) IsFallback() bool {
	return r.Source != SOURCE_LIVE
}
