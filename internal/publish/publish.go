// Package publish writes scrape results to the output directory for
// downstream consumers and reads them back.
package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"usace-scraper/internal/components/assert"
	"usace-scraper/internal/components/chrono"
	"usace-scraper/internal/components/telemetry"
	"usace-scraper/internal/scrapers/usace"
)

const (
	LATEST_FILE  = "usace-latest.json"
	SUMMARY_FILE = "summary.json"
)

const report_publish_write = "publish.write"

// BackupFile names the dated copy of a result, the date is the plant-local
// calendar day of `t`.
func BackupFile(t time.Time) string {
	return fmt.Sprintf("usace-backup-%s.json", t.In(chrono.Central()).Format("2006-01-02"))
}

type Summary struct {
	LastUpdated    time.Time        `json:"lastUpdated"`
	Plant          string           `json:"plant"`
	TotalSchedules int              `json:"totalSchedules"`
	Statistics     usace.Statistics `json:"statistics"`
	// LatestData is the first schedule in scrape order, null when there is none.
	LatestData *usace.DaySchedule `json:"latestData"`
}

func NewSummary(result usace.ScrapeResult) Summary {
	summary := Summary{
		LastUpdated:    result.Timestamp,
		Plant:          result.Plant,
		TotalSchedules: result.Schedules.Len(),
		Statistics:     result.Statistics,
	}
	if first, ok := result.Schedules.First(); ok {
		summary.LatestData = &first
	}
	return summary
}

type Writer struct {
	dir string
	tel telemetry.API
}

func NewWriter(dir string, tel telemetry.API) Writer {
	assert.NotEmptyStr(dir)
	assert.NotNil(tel)
	return Writer{
		dir: dir,
		tel: telemetry.NewScopedAPI("publish", tel),
	}
}

// writeJSON writes `value` pretty-printed next to its destination and
// renames it into place, readers never see a partial file.
func (w Writer) writeJSON(name string, value any) (string, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}
	data = append(data, '\n')

	target := filepath.Join(w.dir, name)
	tmp, err := os.CreateTemp(w.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", name, err)
	}
	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	err = os.Chmod(tmp.Name(), 0644)
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("chmod %s: %w", name, err)
	}
	err = os.Rename(tmp.Name(), target)
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	return target, nil
}

// Write stores the latest result, its dated backup and the summary. It
// returns the paths written.
func (w Writer) Write(result usace.ScrapeResult) ([]string, error) {
	err := os.MkdirAll(w.dir, 0755)
	if err != nil {
		w.tel.ReportBroken(report_publish_write, err, w.dir)
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	files := []struct {
		name  string
		value any
	}{
		{LATEST_FILE, result},
		{BackupFile(result.Timestamp), result},
		{SUMMARY_FILE, NewSummary(result)},
	}

	var written []string
	for _, f := range files {
		path, err := w.writeJSON(f.name, f.value)
		if err != nil {
			w.tel.ReportBroken(report_publish_write, err, f.name)
			return written, err
		}
		written = append(written, path)
	}

	w.tel.ReportDebug("wrote results", written)
	return written, nil
}

// ReadLatest loads the last result written to `dir`.
func ReadLatest(dir string) (usace.ScrapeResult, error) {
	var result usace.ScrapeResult
	data, err := os.ReadFile(filepath.Join(dir, LATEST_FILE))
	if err != nil {
		return result, err
	}
	err = json.Unmarshal(data, &result)
	if err != nil {
		return result, fmt.Errorf("decode %s: %w", LATEST_FILE, err)
	}
	return result, nil
}
