package usace

import (
	"context"
	"fmt"
	"usace-scraper/internal/components/assert"
	"usace-scraper/internal/components/chrono"
	"usace-scraper/internal/components/telemetry"
)

const (
	report_scraper_run    = "scraper.run"
	report_scraper_result = "scraper.result"
)

const (
	PARSER_REGEX = "regex"
	PARSER_DOM   = "dom"
)

type Options struct {
	BaseURL string
	Plant   Plant
	Form    FormOptions
	Dates   DatePolicy
	// Parser selects the table extractor, PARSER_REGEX when empty.
	Parser string
	Client ClientOptions
}

func NewExtractor(parser, tableId string) (PeriodExtractor, error) {
	switch parser {
	case "", PARSER_REGEX:
		return RegexTable{TableID: tableId, Source: SOURCE_LIVE}, nil
	case PARSER_DOM:
		return DOMTable{TableID: tableId, Source: SOURCE_LIVE}, nil
	}
	return nil, fmt.Errorf("unknown parser '%s' (expected %s or %s)", parser, PARSER_REGEX, PARSER_DOM)
}

type Scraper struct {
	sequencer Sequencer
	plant     Plant
	time      chrono.TimeAPI
	tel       telemetry.API
}

func NewScraper(opts Options, time chrono.TimeAPI, tel telemetry.API) (Scraper, error) {
	assert.NotNil(time)
	assert.NotNil(tel)

	if opts.BaseURL == "" {
		return Scraper{}, fmt.Errorf("base url is required")
	}
	if opts.Dates.Mode == DATES_WINDOW && opts.Dates.Window <= 0 {
		return Scraper{}, fmt.Errorf("date window must be positive, got %d", opts.Dates.Window)
	}
	extractor, err := NewExtractor(opts.Parser, opts.Form.TableID)
	if err != nil {
		return Scraper{}, err
	}

	client := NewClient(tel, opts.Client)
	sequencer := NewSequencer(
		client,
		extractor,
		time,
		tel,
		opts.BaseURL,
		opts.Plant,
		opts.Form,
		opts.Dates,
	)

	return Scraper{
		sequencer: sequencer,
		plant:     opts.Plant,
		time:      time,
		tel:       telemetry.NewScopedAPI("usace_scraper", tel),
	}, nil
}

// Scrape runs the live sequence only, any fatal failure is returned.
func (s Scraper) Scrape(ctx context.Context) (ScrapeResult, error) {
	schedules, err := s.sequencer.Run(ctx)
	if err != nil {
		return ScrapeResult{}, err
	}

	now := s.time.Now()
	return ScrapeResult{
		Timestamp:  now,
		Plant:      s.plant.Name,
		PlantID:    s.plant.ID,
		Source:     SOURCE_LIVE,
		Schedules:  schedules,
		Statistics: ComputeStatistics(schedules, now),
	}, nil
}

// Run always returns a well-formed result, the fallback dataset is
// substituted when the live scrape fails and `degraded` is set.
func (s Scraper) Run(ctx context.Context) (result ScrapeResult, degraded bool) {
	result, err := s.Scrape(ctx)
	if err != nil {
		s.tel.ReportBroken(report_scraper_run, fmt.Errorf("live scrape failed, using fallback data: %w", err), s.plant.ID)
		result = BuildFallback(s.plant, s.time.Now())
		degraded = true
	}

	s.tel.ReportDebug(
		"scrape finished",
		result.Source,
		result.Statistics.TotalDays,
		result.Statistics.TotalPeriods,
	)
	s.tel.ReportCount(report_scraper_result, int64(result.Statistics.TotalPeriods))
	return result, degraded
}
