package commands

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"usace-scraper/internal/components/telemetry"
	"usace-scraper/internal/scrapers/usace"
	"usace-scraper/lib/configutil"
	"usace-scraper/lib/restyutil"
)

// FormConfig names the controls of the page. A nil ProbeSubmitControls falls
// back to the defaults, an empty list turns probing off.
type FormConfig struct {
	PlantControl        string    `json:"plant_control"`
	DateControl         string    `json:"date_control"`
	SubmitControl       string    `json:"submit_control"`
	SubmitValue         string    `json:"submit_value"`
	ProbeSubmitControls *[]string `json:"probe_submit_controls"`
	PlaceholderValue    string    `json:"placeholder_value"`
	TableID             string    `json:"table_id"`
}

type DatesConfig struct {
	// "all" or "window"
	Mode   string `json:"mode"`
	Window int    `json:"window"`
}

// Config is the configuration file. RequestsPerSecond is a pointer so 0 can
// turn rate limiting off without being replaced by the default.
type Config struct {
	BaseURL           string           `json:"base_url"`
	Plant             string           `json:"plant"`
	OutputDir         string           `json:"output_dir"`
	Dates             DatesConfig      `json:"dates"`
	Parser            string           `json:"parser"`
	Form              FormConfig       `json:"form"`
	InsecureTLSHosts  []string         `json:"insecure_tls_hosts"`
	CAFile            string           `json:"ca_file"`
	RequestsPerSecond *float64         `json:"requests_per_second"`
	TimeoutSeconds    int              `json:"timeout_seconds"`
	DebugDir          string           `json:"debug_dir"`
	Cron              string           `json:"cron"`
	Telemetry         telemetry.Config `json:"telemetry"`
}

var defaultConfig = Config{
	Plant:     "BAR",
	OutputDir: "data",
	Dates: DatesConfig{
		Mode:   usace.DATES_WINDOW,
		Window: 5,
	},
	Parser: usace.PARSER_REGEX,
	Form: FormConfig{
		PlantControl:        "DropDownList1",
		DateControl:         "DropDownList2",
		SubmitValue:         "Submit",
		ProbeSubmitControls: ptr([]string{"Button1", "btnSubmit", "btnGo"}),
		PlaceholderValue:    "-1",
		TableID:             usace.DEFAULT_TABLE_ID,
	},
	RequestsPerSecond: ptr(1.0),
	TimeoutSeconds:    30,
	Cron:              "0 * * * *",
}

func ptr[T any](v T) *T {
	return &v
}

// loadConfig reads the config file (a missing file is not an error, flags
// can supply everything) and fills the remaining fields with defaults. With
// `search` the file is looked up in the working directory and its parents.
func loadConfig(path string, search bool) (Config, error) {
	var cfg Config
	var err error
	if search {
		cfg, err = configutil.ReadRecursively[Config](path)
	} else {
		cfg, err = configutil.ReadConfig[Config](path)
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err = configutil.WithDefaults(cfg, defaultConfig)
	if err != nil {
		return Config{}, fmt.Errorf("apply config defaults: %w", err)
	}
	return cfg, nil
}

// parseDatesFlag understands "all" or the size of the trailing window.
func parseDatesFlag(value string) (DatesConfig, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == usace.DATES_ALL {
		return DatesConfig{Mode: usace.DATES_ALL}, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return DatesConfig{}, fmt.Errorf("--dates expects 'all' or a positive number, got '%s'", value)
	}
	return DatesConfig{Mode: usace.DATES_WINDOW, Window: n}, nil
}

func (c Config) scraperOptions() (usace.Options, error) {
	if c.BaseURL == "" {
		return usace.Options{}, fmt.Errorf("base_url is not configured")
	}
	plant, err := usace.LookupPlant(c.Plant)
	if err != nil {
		return usace.Options{}, err
	}
	if c.Dates.Mode != usace.DATES_ALL && c.Dates.Mode != usace.DATES_WINDOW {
		return usace.Options{}, fmt.Errorf("dates.mode must be '%s' or '%s', got '%s'", usace.DATES_ALL, usace.DATES_WINDOW, c.Dates.Mode)
	}
	if c.Dates.Mode == usace.DATES_WINDOW && c.Dates.Window <= 0 {
		return usace.Options{}, fmt.Errorf("dates.window must be positive, got %d", c.Dates.Window)
	}

	var roots *x509.CertPool
	if c.CAFile != "" {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return usace.Options{}, fmt.Errorf("ca file: %w", err)
		}
		roots = x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return usace.Options{}, fmt.Errorf("ca file: no certificates in '%s'", c.CAFile)
		}
	}

	var probes []string
	if c.Form.ProbeSubmitControls != nil {
		probes = *c.Form.ProbeSubmitControls
	}
	var requestsPerSecond float64
	if c.RequestsPerSecond != nil {
		requestsPerSecond = *c.RequestsPerSecond
	}

	var output restyutil.InstrumentOutput
	if c.DebugDir != "" {
		fsOutput, err := restyutil.NewFilesystemOutput(c.DebugDir)
		if err != nil {
			return usace.Options{}, fmt.Errorf("debug dir: %w", err)
		}
		output = fsOutput
	}

	return usace.Options{
		BaseURL: c.BaseURL,
		Plant:   plant,
		Form: usace.FormOptions{
			PlantControl:        c.Form.PlantControl,
			DateControl:         c.Form.DateControl,
			SubmitControl:       c.Form.SubmitControl,
			SubmitValue:         c.Form.SubmitValue,
			ProbeSubmitControls: probes,
			PlaceholderValue:    c.Form.PlaceholderValue,
			TableID:             c.Form.TableID,
		},
		Dates: usace.DatePolicy{
			Mode:   c.Dates.Mode,
			Window: c.Dates.Window,
		},
		Parser: c.Parser,
		Client: usace.ClientOptions{
			Timeout:           time.Duration(c.TimeoutSeconds) * time.Second,
			RequestsPerSecond: requestsPerSecond,
			InsecureTLSHosts:  c.InsecureTLSHosts,
			RootCAs:           roots,
			Output:            output,
		},
	}, nil
}
