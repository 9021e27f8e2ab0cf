package commands

import (
	"bytes"
	"context"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
	"usace-scraper/internal/components/telemetry"
	"usace-scraper/internal/publish"
	"usace-scraper/internal/scrapers/usace"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// the generation schedule page
		base_url: "https://example.test/GenerationSchedule.aspx",
		plant: "CHE",
		dates: { mode: "all" },
		form: { submit_control: "Button1" },
	}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		output_dir: "/tmp/usace",
	}`), 0644))

	cfg, err := loadConfig(path, false)
	require.NoError(t, err)
	require.Equal(t, "https://example.test/GenerationSchedule.aspx", cfg.BaseURL)
	require.Equal(t, "CHE", cfg.Plant)
	require.Equal(t, "/tmp/usace", cfg.OutputDir)
	require.Equal(t, usace.DATES_ALL, cfg.Dates.Mode)
	require.Equal(t, "Button1", cfg.Form.SubmitControl)
	// untouched fields come from the defaults
	require.Equal(t, defaultConfig.Form.PlantControl, cfg.Form.PlantControl)
	require.Equal(t, usace.DEFAULT_TABLE_ID, cfg.Form.TableID)
	require.Equal(t, 30, cfg.TimeoutSeconds)

	opts, err := cfg.scraperOptions()
	require.NoError(t, err)
	require.Equal(t, "Cheatham Dam", opts.Plant.Name)
	require.Equal(t, 30*time.Second, opts.Client.Timeout)
	require.Equal(t, 1.0, opts.Client.RequestsPerSecond)
	require.Equal(t, []string{"Button1", "btnSubmit", "btnGo"}, opts.Form.ProbeSubmitControls)
	require.Nil(t, opts.Client.Output)
	require.Nil(t, opts.Client.RootCAs)
}

func TestLoadConfigKeepsExplicitZeroes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		base_url: "https://example.test/GenerationSchedule.aspx",
		requests_per_second: 0,
		form: { probe_submit_controls: [] },
	}`), 0644))

	cfg, err := loadConfig(path, false)
	require.NoError(t, err)
	opts, err := cfg.scraperOptions()
	require.NoError(t, err)
	require.Equal(t, 0.0, opts.Client.RequestsPerSecond)
	require.Empty(t, opts.Form.ProbeSubmitControls)
	// the defaults themselves are untouched
	require.Equal(t, 1.0, *defaultConfig.RequestsPerSecond)
	require.Len(t, *defaultConfig.Form.ProbeSubmitControls, 3)
}

func TestLoadConfigSearchesParents(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.json5"), []byte(`{plant: "DAL"}`), 0644))
	nested := filepath.Join(root, "data", "backups")
	require.NoError(t, os.MkdirAll(nested, 0755))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() {
		os.Chdir(wd)
	})

	cfg, err := loadConfig("config.json5", true)
	require.NoError(t, err)
	require.Equal(t, "DAL", cfg.Plant)

	cfg, err = loadConfig("config.json5", false)
	require.NoError(t, err)
	require.Equal(t, defaultConfig.Plant, cfg.Plant)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "config.json5"), false)
	require.NoError(t, err)
	require.Equal(t, defaultConfig.Plant, cfg.Plant)

	_, err = cfg.scraperOptions()
	require.Error(t, err)
}

func TestScraperOptionsValidation(t *testing.T) {
	cfg := defaultConfig
	cfg.BaseURL = "https://example.test"

	cfg.Plant = "Hoover"
	_, err := cfg.scraperOptions()
	require.ErrorIs(t, err, usace.ErrUnknownPlant)

	cfg.Plant = "BAR"
	cfg.Dates.Mode = "recent"
	_, err = cfg.scraperOptions()
	require.Error(t, err)

	cfg.Dates.Mode = usace.DATES_WINDOW
	cfg.Dates.Window = 0
	_, err = cfg.scraperOptions()
	require.Error(t, err)

	cfg.Dates.Window = 5
	cfg.CAFile = filepath.Join(t.TempDir(), "missing.pem")
	_, err = cfg.scraperOptions()
	require.Error(t, err)

	cfg.CAFile = ""
	cfg.DebugDir = filepath.Join(t.TempDir(), "resty")
	opts, err := cfg.scraperOptions()
	require.NoError(t, err)
	require.NotNil(t, opts.Client.Output)
	require.DirExists(t, cfg.DebugDir)
}

func TestParseDatesFlag(t *testing.T) {
	dates, err := parseDatesFlag("ALL")
	require.NoError(t, err)
	require.Equal(t, DatesConfig{Mode: usace.DATES_ALL}, dates)

	dates, err = parseDatesFlag("3")
	require.NoError(t, err)
	require.Equal(t, DatesConfig{Mode: usace.DATES_WINDOW, Window: 3}, dates)

	for _, bad := range []string{"0", "-2", "recent", ""} {
		_, err = parseDatesFlag(bad)
		require.Error(t, err, bad)
	}
}

func TestScrapeOnceFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := defaultConfig
	cfg.BaseURL = server.URL
	cfg.RequestsPerSecond = ptr(0.0)
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")

	err := scrapeOnce(context.Background(), cfg, telemetry.NewRecorder(), true)
	require.Error(t, err)
	require.NoDirExists(t, cfg.OutputDir)

	err = scrapeOnce(context.Background(), cfg, telemetry.NewRecorder(), false)
	require.NoError(t, err)

	result, err := publish.ReadLatest(cfg.OutputDir)
	require.NoError(t, err)
	require.Equal(t, usace.SOURCE_FALLBACK, result.Source)
	require.Equal(t, "BAR", result.PlantID)

	var out bytes.Buffer
	renderResult(&out, result)
	require.Contains(t, out.String(), "Barkley Dam")
	require.Contains(t, out.String(), "peak")
}

func TestScrapeOnceInterrupted(t *testing.T) {
	cfg := defaultConfig
	cfg.BaseURL = "http://127.0.0.1:1"
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := scrapeOnce(ctx, cfg, telemetry.NewRecorder(), false)
	require.ErrorIs(t, err, context.Canceled)
	require.NoDirExists(t, cfg.OutputDir)
}

func TestScraperOptionsCAFile(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	dir := t.TempDir()
	cfg := defaultConfig
	cfg.BaseURL = server.URL

	cfg.CAFile = filepath.Join(dir, "empty.pem")
	require.NoError(t, os.WriteFile(cfg.CAFile, []byte("not a certificate"), 0644))
	_, err := cfg.scraperOptions()
	require.Error(t, err)

	cfg.CAFile = filepath.Join(dir, "server.pem")
	certPem := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
	require.NoError(t, os.WriteFile(cfg.CAFile, certPem, 0644))
	opts, err := cfg.scraperOptions()
	require.NoError(t, err)
	require.NotNil(t, opts.Client.RootCAs)
}

func TestScrapeOnceWithDebugDir(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := defaultConfig
	cfg.BaseURL = server.URL
	cfg.RequestsPerSecond = ptr(0.0)
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.DebugDir = filepath.Join(t.TempDir(), "resty")

	err := scrapeOnce(context.Background(), cfg, telemetry.NewRecorder(), false)
	require.NoError(t, err)

	// the entry page GET has no body and is still dumped
	dump, err := os.ReadFile(filepath.Join(cfg.DebugDir, "001-GET.txt"))
	require.NoError(t, err)
	require.Contains(t, string(dump), "---- RESPONSE ----")
	require.Contains(t, string(dump), "503")

	result, err := publish.ReadLatest(cfg.OutputDir)
	require.NoError(t, err)
	require.Equal(t, usace.SOURCE_FALLBACK, result.Source)
}

type fakeCron struct {
	mutex   sync.Mutex
	specs   []string
	jobs    []func()
	stopped bool
	err     error
}

func (c *fakeCron) Cron(spec string, callback func()) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.err != nil {
		return c.err
	}
	c.specs = append(c.specs, spec)
	c.jobs = append(c.jobs, callback)
	return nil
}

func (c *fakeCron) Stop() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.stopped = true
}

func TestRunDaemon(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cron := &fakeCron{}
	runs := 0

	done := make(chan error)
	go func() {
		done <- runDaemon(ctx, cron, "0 * * * *", true, func() { runs++ })
	}()

	require.Eventually(t, func() bool {
		cron.mutex.Lock()
		defer cron.mutex.Unlock()
		return len(cron.jobs) == 1
	}, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.Equal(t, []string{"0 * * * *"}, cron.specs)
	require.True(t, cron.stopped)
	// --now ran the job once before the first tick
	require.Equal(t, 1, runs)
}

func TestRunDaemonBadSpec(t *testing.T) {
	cron := &fakeCron{err: errors.New("expected exactly 5 fields")}
	err := runDaemon(context.Background(), cron, "every hour", true, func() {
		t.Fatal("job must not run when scheduling fails")
	})
	require.Error(t, err)
	require.True(t, cron.stopped)
}
