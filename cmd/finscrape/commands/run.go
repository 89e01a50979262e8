package commands

import (
	"context"
	"fmt"
	"time"

	"finscrape/internal/browser/rodpage"
	"finscrape/internal/components/chrono"
	"finscrape/internal/components/dump"
	"finscrape/internal/components/telemetry"
	"finscrape/internal/delivery"
	"finscrape/internal/ledger"
	"finscrape/internal/scraper"
	"finscrape/internal/scrapers"
)

const report_delivery = "delivery"

type runner struct {
	cfg   Config
	clock chrono.TimeAPI
	tel   telemetry.API
	dump  dump.Output
}

func newRunner(cfg Config, tel telemetry.API) (runner, error) {
	r := runner{cfg: cfg, clock: chrono.NewStandardTime(), tel: tel, dump: dump.Discard{}}
	if dumpDir != "" {
		out, err := dump.NewFilesystemOutput(dumpDir, tel)
		if err != nil {
			return runner{}, err
		}
		r.dump = timestamped{out: out, clock: r.clock}
	}
	return r, nil
}

// timestamped prefixes snapshot ids with the time of the run so runs do not
// overwrite each other.
type timestamped struct {
	out   dump.Output
	clock chrono.TimeAPI
}

func (t timestamped) Write(id, contents string) {
	t.out.Write(t.clock.Now().Format("20060102-150405")+"-"+id, contents)
}

func newTelemetry(cfg Config) telemetry.API {
	if cfg.Telemetry.Enabled() {
		return telemetry.Multi(telemetry.SlogAPI{}, telemetry.NewOtelAPI("finscrape"))
	}
	return telemetry.SlogAPI{}
}

// run performs one scrape with a fresh browser and delivers its result.
func (r runner) run(ctx context.Context) (ledger.ScrapeResult, error) {
	company := scrapers.CompanyType(r.cfg.Company)
	def, err := scrapers.Lookup(company)
	if err != nil {
		return ledger.ScrapeResult{}, err
	}
	creds := r.cfg.credentials(def.LoginFields)
	missing, err := scrapers.MissingFields(company, creds)
	if err != nil {
		return ledger.ScrapeResult{}, err
	}
	if len(missing) > 0 {
		return ledger.ScrapeResult{}, fmt.Errorf("missing credentials: %v", missing)
	}

	start, err := r.cfg.startDate(chrono.Jerusalem())
	if err != nil {
		return ledger.ScrapeResult{}, err
	}

	connector, err := scrapers.New(company, scrapers.Deps{
		Clock:   r.clock,
		Tel:     r.tel,
		VisaCal: r.cfg.visaCalOptions(),
	})
	if err != nil {
		return ledger.ScrapeResult{}, err
	}

	if r.cfg.Preflight {
		client, err := scraper.NewPreflightClient(connector.LoginOptions(creds).UserAgent, r.tel)
		if err != nil {
			return ledger.ScrapeResult{}, err
		}
		err = scraper.Preflight(ctx, client, def.LoginURL)
		if err != nil {
			return ledger.ScrapeResult{}, err
		}
	}

	b, err := rodpage.Launch(ctx, r.cfg.browserOptions(), r.tel)
	if err != nil {
		return ledger.ScrapeResult{}, err
	}
	defer b.Close()

	page, err := b.NewPage(ctx)
	if err != nil {
		return ledger.ScrapeResult{}, err
	}
	defer page.Close()

	orchestrator := scraper.NewOrchestrator(connector, scraper.Options{
		FetchOptions: scraper.FetchOptions{
			StartDate:           start,
			CombineInstallments: r.cfg.CombineInstallments,
		},
		LoginTimeout: r.cfg.loginTimeout(),
		Dump:         r.dump,
	}, r.tel)
	result := orchestrator.Scrape(ctx, page, creds)

	r.deliver(ctx, result)
	return result, nil
}

// deliver failures are reported, they never fail the scrape itself.
func (r runner) deliver(ctx context.Context, result ledger.ScrapeResult) {
	if r.cfg.Webhook.URL != "" {
		hook := delivery.NewWebhook(r.cfg.Webhook, r.tel)
		err := hook.Deliver(ctx, delivery.Payload{
			Company:   r.cfg.Company,
			ScrapedAt: r.clock.Now(),
			Result:    result,
		})
		if err != nil {
			r.tel.ReportBroken(report_delivery, fmt.Errorf("webhook: %w", err))
		}
	}

	if !result.Success && r.cfg.Email.Enabled() {
		sendCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		mail := delivery.FailureNotice(r.cfg.Email, r.cfg.Company, result)
		err := delivery.NewMailer(r.cfg.Email).Send(sendCtx, mail)
		if err != nil {
			r.tel.ReportBroken(report_delivery, fmt.Errorf("email: %w", err))
		}
	}
}

// setupTelemetry installs the otlp exporters when they are configured and
// returns the function flushing them.
func setupTelemetry(ctx context.Context, cfg Config) (func(), error) {
	if !cfg.Telemetry.Enabled() {
		return func() {}, nil
	}
	otel, err := telemetry.Setup(ctx, "finscrape", cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		otel.Shutdown(shutdownCtx)
	}, nil
}
