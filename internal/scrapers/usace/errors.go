package usace

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout           = errors.New("request timed out")
	ErrUnexpectedStatus  = errors.New("unexpected http status")
	ErrTooManyRedirects  = errors.New("too many redirects")
	ErrMissingStateToken = errors.New("missing __VIEWSTATE state token (site markup changed or request blocked)")
	ErrNoDatesAvailable  = errors.New("no dates available after plant selection")
	ErrNoPeriods         = errors.New("generation table has no periods")
	ErrEmptyResult       = errors.New("no schedules with periods were scraped")
	ErrInvalidTransition = errors.New("invalid session stage transition")
	ErrEmptySchedule     = errors.New("schedule has no periods")
	ErrDuplicateDate     = errors.New("schedule date already present")
	ErrUnknownPlant      = errors.New("unknown plant")
)

// TransportError is a network failure or a non-2xx response on a required step.
type TransportError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DateScrapeError is a failure scraping one date, it never aborts the run.
type DateScrapeError struct {
	Date string
	Err  error
}

func (e *DateScrapeError) Error() string {
	return fmt.Sprintf("scrape date '%s': %s", e.Date, e.Err)
}

func (e *DateScrapeError) Unwrap() error {
	return e.Err
}
