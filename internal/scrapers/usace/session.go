// session.go replays the WebForms interaction: load the page, select the
// plant, then post back once per date.

package usace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"
	"usace-scraper/internal/components/assert"
	"usace-scraper/internal/components/chrono"
	"usace-scraper/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("usace-scraper/session")

const (
	report_session_init          = "session.init"
	report_session_select_plant  = "session.select-plant"
	report_session_select_dates  = "session.select-dates"
	report_session_scrape_date   = "session.scrape-date"
	report_session_probe_submit  = "session.probe-submit"
	report_session_state_token   = "session.state-token"
	report_session_schedules     = "session.schedules"
	report_session_periods       = "session.periods"
	report_session_dates_options = "session.date-options"
)

type Stage int

const (
	STAGE_INIT Stage = iota + 1
	STAGE_PLANT_SELECTED
	STAGE_DATE_FETCHED
)

func (s Stage) String() string {
	switch s {
	case STAGE_INIT:
		return "init"
	case STAGE_PLANT_SELECTED:
		return "plant-selected"
	case STAGE_DATE_FETCHED:
		return "date-fetched"
	}
	return "not-started"
}

func canTransition(from, to Stage) bool {
	switch from {
	case 0:
		return to == STAGE_INIT
	case STAGE_INIT:
		return to == STAGE_PLANT_SELECTED
	case STAGE_PLANT_SELECTED, STAGE_DATE_FETCHED:
		return to == STAGE_DATE_FETCHED
	}
	return false
}

// SessionState is everything the remote form expects back on the next
// postback. It is never mutated, every step produces a new value.
type SessionState struct {
	Stage  Stage
	URL    string
	Cookie string
	Fields FormFields
}

// advance is the transition function of the session: it moves `prev` to
// `next` using the response that step produced.
func advance(prev SessionState, next Stage, res Response) (SessionState, FormFields, error) {
	if !canTransition(prev.Stage, next) {
		return prev, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev.Stage, next)
	}
	fields := ExtractFields(res.Body)
	if fields.StateToken() == "" {
		return prev, fields, fmt.Errorf("%s: %w", next, ErrMissingStateToken)
	}

	formUrl := res.URL
	if formUrl == "" {
		formUrl = prev.URL
	}
	return SessionState{
		Stage:  next,
		URL:    formUrl,
		Cookie: MergeCookies(prev.Cookie, res.Cookies),
		Fields: fields,
	}, fields, nil
}

// postback builds the body of the next postback from the carried hidden
// fields and the control values of this step.
func (s SessionState) postback(controls map[string]string) url.Values {
	form := url.Values{}
	for k, v := range s.Fields {
		form.Set(k, v)
	}
	form.Set(FIELD_EVENTARGUMENT, "")
	for k, v := range controls {
		form.Set(k, v)
	}
	return form
}

type FormOptions struct {
	PlantControl string
	DateControl  string
	// SubmitControl is the name of the button posted with a date, when empty
	// the date control itself is the event target (auto postback).
	SubmitControl string
	SubmitValue   string
	// ProbeSubmitControls are only tried when a date comes back without
	// periods, to tell which control the site expects now.
	ProbeSubmitControls []string
	PlaceholderValue    string
	TableID             string
}

const (
	DATES_ALL    = "all"
	DATES_WINDOW = "window"
)

type DatePolicy struct {
	Mode   string
	Window int
}

type scheduledDate struct {
	Option
	Day time.Time
}

func (d scheduledDate) key() string {
	return d.Day.Format("2006-01-02")
}

func (d scheduledDate) display() string {
	if d.Label != "" {
		return d.Label
	}
	return d.Day.Format("Monday, January 2, 2006")
}

// selectDates parses the date options (M/D/YYYY), orders them oldest first
// and applies the policy. Options that are not dates are returned separately.
func (p DatePolicy) selectDates(options []Option, loc *time.Location) ([]scheduledDate, []Option) {
	var dates []scheduledDate
	var invalid []Option
	seen := map[string]struct{}{}
	for _, o := range options {
		day, err := time.ParseInLocation("1/2/2006", o.Value, loc)
		if err != nil {
			invalid = append(invalid, o)
			continue
		}
		d := scheduledDate{Option: o, Day: day}
		if _, dup := seen[d.key()]; dup {
			continue
		}
		seen[d.key()] = struct{}{}
		dates = append(dates, d)
	}

	sort.SliceStable(dates, func(i, j int) bool {
		return dates[i].Day.Before(dates[j].Day)
	})

	if p.Mode != DATES_ALL && p.Window > 0 && len(dates) > p.Window {
		dates = dates[len(dates)-p.Window:]
	}
	return dates, invalid
}

// Sequencer drives one scrape of one plant.
type Sequencer struct {
	client    *Client
	extractor PeriodExtractor
	time      chrono.TimeAPI
	tel       telemetry.API
	baseUrl   string
	plant     Plant
	form      FormOptions
	dates     DatePolicy
}

func NewSequencer(
	client *Client,
	extractor PeriodExtractor,
	time chrono.TimeAPI,
	tel telemetry.API,
	baseUrl string,
	plant Plant,
	form FormOptions,
	dates DatePolicy,
) Sequencer {
	assert.NotNil(client)
	assert.NotNil(extractor)
	assert.NotNil(time)
	assert.NotNil(tel)
	assert.NotEmptyStr(baseUrl)
	assert.NotEmptyStr(plant.ID)
	assert.NotEmptyStr(form.PlantControl)
	assert.NotEmptyStr(form.DateControl)
	if dates.Mode == DATES_WINDOW {
		assert.Positive(dates.Window)
	}

	return Sequencer{
		client:    client,
		extractor: extractor,
		time:      time,
		tel:       telemetry.NewScopedAPI("usace_scraper", tel),
		baseUrl:   baseUrl,
		plant:     plant,
		form:      form,
		dates:     dates,
	}
}

func (s Sequencer) post(ctx context.Context, state SessionState, controls map[string]string) (Response, error) {
	target := state.URL
	if target == "" {
		target = s.baseUrl
	}
	res, err := s.client.Fetch(ctx, Request{
		Method:  http.MethodPost,
		URL:     target,
		Form:    state.postback(controls),
		Cookie:  state.Cookie,
		Headers: map[string]string{"referer": target},
	})
	if err != nil {
		return Response{}, err
	}
	if !res.IsSuccess() {
		return res, &TransportError{Op: http.MethodPost, URL: target, Status: res.Status, Err: ErrUnexpectedStatus}
	}
	return res, nil
}

func (s Sequencer) init(ctx context.Context) (SessionState, error) {
	ctx, span := tracer.Start(ctx, "session:Init")
	defer span.End()

	res, err := s.client.Fetch(ctx, Request{Method: http.MethodGet, URL: s.baseUrl})
	if err == nil && !res.IsSuccess() {
		err = &TransportError{Op: http.MethodGet, URL: s.baseUrl, Status: res.Status, Err: ErrUnexpectedStatus}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load entry page")
		s.tel.ReportBroken(report_session_init, err)
		return SessionState{}, fmt.Errorf("init: %w", err)
	}

	state, _, err := advance(SessionState{}, STAGE_INIT, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "entry page has no state token")
		s.tel.ReportBroken(report_session_init, err, s.baseUrl)
		return SessionState{}, fmt.Errorf("init: %w", err)
	}
	return state, nil
}

func (s Sequencer) selectPlant(ctx context.Context, state SessionState) (SessionState, []Option, error) {
	ctx, span := tracer.Start(ctx, "session:SelectPlant")
	defer span.End()
	span.SetAttributes(attribute.String("plant", s.plant.ID))

	res, err := s.post(ctx, state, map[string]string{
		FIELD_EVENTTARGET:   s.form.PlantControl,
		s.form.PlantControl: s.plant.ID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plant postback failed")
		s.tel.ReportBroken(report_session_select_plant, err, s.plant.ID)
		return state, nil, fmt.Errorf("select plant: %w", err)
	}

	next, _, err := advance(state, STAGE_PLANT_SELECTED, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plant response has no state token")
		s.tel.ReportBroken(report_session_select_plant, err, s.plant.ID)
		return state, nil, fmt.Errorf("select plant: %w", err)
	}

	options := ExtractOptions(res.Body, s.form.DateControl, s.form.PlaceholderValue)
	s.tel.ReportCount(report_session_dates_options, int64(len(options)))
	if len(options) == 0 {
		err = fmt.Errorf("select plant: %w (control '%s')", ErrNoDatesAvailable, s.form.DateControl)
		span.SetStatus(codes.Error, "no dates")
		s.tel.ReportBroken(report_session_select_plant, err, s.plant.ID)
		return next, nil, err
	}
	return next, options, nil
}

func (s Sequencer) postDate(ctx context.Context, state SessionState, date scheduledDate, submit string) (SessionState, []GenerationPeriod, error) {
	controls := map[string]string{
		s.form.PlantControl: s.plant.ID,
		s.form.DateControl:  date.Value,
	}
	if submit != "" {
		controls[FIELD_EVENTTARGET] = ""
		controls[submit] = s.form.SubmitValue
	} else {
		controls[FIELD_EVENTTARGET] = s.form.DateControl
	}

	res, err := s.post(ctx, state, controls)
	if err != nil {
		return state, nil, err
	}
	periods := s.extractor.ExtractPeriods(res.Body)

	next, _, err := advance(state, STAGE_DATE_FETCHED, res)
	if err != nil {
		// the periods of this response are still good, only the tokens for
		// the next postback are missing
		s.tel.ReportWarning(report_session_state_token, err, date.Value)
		return state, periods, nil
	}
	return next, periods, nil
}

func (s Sequencer) fetchDate(ctx context.Context, state SessionState, date scheduledDate) (SessionState, DaySchedule, error) {
	ctx, span := tracer.Start(ctx, "session:FetchDate")
	defer span.End()
	span.SetAttributes(attribute.String("date", date.Value))

	next, periods, err := s.postDate(ctx, state, date, s.form.SubmitControl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "date postback failed")
		return state, DaySchedule{}, &DateScrapeError{Date: date.Value, Err: err}
	}

	if len(periods) == 0 {
		for _, candidate := range s.form.ProbeSubmitControls {
			if candidate == s.form.SubmitControl {
				continue
			}
			probed, probedPeriods, err := s.postDate(ctx, state, date, candidate)
			if err != nil || len(probedPeriods) == 0 {
				continue
			}
			s.tel.ReportWarning(
				report_session_probe_submit,
				fmt.Errorf(
					"submit control '%s' returned periods where the configured '%s' did not, the form has likely changed",
					candidate, s.form.SubmitControl,
				),
				date.Value,
			)
			next, periods = probed, probedPeriods
			break
		}
	}

	if len(periods) == 0 {
		span.SetStatus(codes.Error, "no periods")
		return next, DaySchedule{}, &DateScrapeError{Date: date.Value, Err: ErrNoPeriods}
	}

	span.SetAttributes(attribute.Int("periods", len(periods)))
	return next, DaySchedule{
		Date:      date.display(),
		DateValue: date.Value,
		Success:   true,
		Periods:   periods,
		ScrapedAt: s.time.Now(),
	}, nil
}

// Run performs the whole sequence. Failing dates are reported and skipped,
// structural failures (no state token, no dates, nothing scraped) are returned.
func (s Sequencer) Run(ctx context.Context) (Schedules, error) {
	ctx, span := tracer.Start(ctx, "session:Run")
	defer span.End()

	var schedules Schedules

	state, err := s.init(ctx)
	if err != nil {
		return schedules, err
	}
	state, options, err := s.selectPlant(ctx, state)
	if err != nil {
		return schedules, err
	}

	dates, invalid := s.dates.selectDates(options, s.time.Now().Location())
	for _, o := range invalid {
		s.tel.ReportWarning(report_session_select_dates, fmt.Errorf("date option is not M/D/YYYY"), o.Value, o.Label)
	}
	if len(dates) == 0 {
		err = fmt.Errorf("select dates: %w", ErrNoDatesAvailable)
		s.tel.ReportBroken(report_session_select_dates, err)
		return schedules, err
	}
	s.tel.ReportDebug("selected dates", len(dates), s.dates.Mode, s.dates.Window)

	totalPeriods := 0
	for _, date := range dates {
		if ctx.Err() != nil {
			return schedules, ctx.Err()
		}

		next, day, err := s.fetchDate(ctx, state, date)
		state = next
		if err != nil {
			s.tel.ReportWarning(report_session_scrape_date, err)
			continue
		}

		err = schedules.Add(date.key(), day)
		if err != nil {
			s.tel.ReportWarning(report_session_scrape_date, err)
			continue
		}
		totalPeriods += len(day.Periods)
	}

	s.tel.ReportCount(report_session_schedules, int64(schedules.Len()))
	s.tel.ReportCount(report_session_periods, int64(totalPeriods))

	if schedules.Len() == 0 {
		span.SetStatus(codes.Error, "empty result")
		s.tel.ReportBroken(report_session_schedules, ErrEmptyResult, len(dates))
		return schedules, ErrEmptyResult
	}
	return schedules, nil
}
