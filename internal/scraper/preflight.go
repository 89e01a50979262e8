package scraper

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"time"

	"finscrape/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// NewPreflightClient creates the http client used to probe a portal before a
// browser is launched for it.
func NewPreflightClient(userAgent string, tel telemetry.API) (*resty.Client, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	if userAgent != "" {
		client.SetHeader("user-agent", userAgent)
	}
	client.SetTimeout(30 * time.Second)

	limiter := rate.NewLimiter(2, 2)
	client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})
	telemetry.InstrumentResty(client, telemetry.NewScopedAPI("preflight", tel))
	return client, nil
}

// Preflight checks that url answers before a browser is spent on it, a portal
// under maintenance usually answers with a 5xx.
func Preflight(ctx context.Context, client *resty.Client, url string) error {
	ctx, span := tracer.Start(ctx, "Preflight")
	defer span.End()

	res, err := client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return fmt.Errorf("preflight %s: %w", url, err)
	}
	if res.StatusCode() >= 500 {
		return fmt.Errorf("preflight %s: portal answered %s", url, res.Status())
	}
	return nil
}
