package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"finscrape/internal/browser/rodpage"
	"finscrape/internal/components/configutil"
	"finscrape/internal/components/telemetry"
	"finscrape/internal/delivery"
	"finscrape/internal/harvest"
	"finscrape/internal/scraper"
	"finscrape/internal/scrapers"
	"finscrape/internal/scrapers/visacal"
)

type BrowserConfig struct {
	// ControlURL connects to a running chrome (ex. a docker container) instead of launching one.
	ControlURL       string  `json:"control_url"`
	Bin              string  `json:"bin"`
	Headful          bool    `json:"headful"`
	Proxy            string  `json:"proxy"`
	ActionsPerSecond float64 `json:"actions_per_second"`
}

type Config struct {
	Company string `json:"company"`
	// Credentials are overridden by FINSCRAPE_<FIELD> environment variables,
	// ex. FINSCRAPE_PASSWORD.
	Credentials map[string]string `json:"credentials"`
	// StartDate is formatted YYYY-MM-DD.
	StartDate           string `json:"start_date"`
	CombineInstallments bool   `json:"combine_installments"`
	// FailOnMissingStartPeriod aborts instead of scanning every billing cycle when
	// the start month is not selectable.
	FailOnMissingStartPeriod bool `json:"fail_on_missing_start_period"`
	Preflight                bool `json:"preflight"`

	LoginTimeoutSeconds int `json:"login_timeout_seconds"`
	SettleDelayMs       int `json:"settle_delay_ms"`

	Browser   BrowserConfig          `json:"browser"`
	Webhook   delivery.WebhookConfig `json:"webhook"`
	Email     delivery.EmailConfig   `json:"email"`
	Telemetry telemetry.Config       `json:"telemetry"`
}

func readConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if os.IsNotExist(err) {
		// flags and environment variables are enough to run
		return Config{Company: string(scrapers.VisaCal)}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if cfg.Company == "" {
		cfg.Company = string(scrapers.VisaCal)
	}
	return cfg, nil
}

// credentials merges the configured credentials with the environment, the
// environment wins.
func (c Config) credentials(fields []string) scraper.Credentials {
	creds := scraper.Credentials{}
	for k, v := range c.Credentials {
		creds[k] = v
	}
	for _, field := range fields {
		key := "FINSCRAPE_" + strings.ToUpper(field)
		creds[field] = configutil.EnvOr(key, creds[field])
	}
	return creds
}

func (c Config) startDate(loc *time.Location) (time.Time, error) {
	if c.StartDate == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, c.StartDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start date %q: %w", c.StartDate, err)
	}
	return t, nil
}

func (c Config) browserOptions() rodpage.Options {
	return rodpage.Options{
		ControlURL:       c.Browser.ControlURL,
		Bin:              c.Browser.Bin,
		Headless:         !c.Browser.Headful,
		Proxy:            c.Browser.Proxy,
		ActionsPerSecond: c.Browser.ActionsPerSecond,
	}
}

func (c Config) visaCalOptions() visacal.Options {
	opts := visacal.DefaultOptions()
	if c.SettleDelayMs > 0 {
		opts.SettleDelay = time.Duration(c.SettleDelayMs) * time.Millisecond
	}
	if c.FailOnMissingStartPeriod {
		opts.MissingStartPeriod = harvest.FailOnMissingStart
	}
	return opts
}

func (c Config) loginTimeout() time.Duration {
	if c.LoginTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.LoginTimeoutSeconds) * time.Second
}
