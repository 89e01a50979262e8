// Package delivery hands a finished scrape to the outside world, as a webhook
// call or a failure e-mail.
package delivery

import (
	"context"
	"fmt"
	"time"

	"finscrape/internal/components/telemetry"
	"finscrape/internal/ledger"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("finscrape/delivery")

type WebhookConfig struct {
	URL string `json:"url"`
	// Token is sent as a bearer token when set.
	Token string `json:"token"`
}

// Payload is the body POSTed to the webhook.
type Payload struct {
	Company   string              `json:"company"`
	ScrapedAt time.Time           `json:"scrapedAt"`
	Result    ledger.ScrapeResult `json:"result"`
}

type Webhook struct {
	client *resty.Client
	url    string
}

func NewWebhook(cfg WebhookConfig, tel telemetry.API) Webhook {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(2)
	client.SetHeader("content-type", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	telemetry.InstrumentResty(client, telemetry.NewScopedAPI("webhook", tel))
	return Webhook{client: client, url: cfg.URL}
}

func (w Webhook) Deliver(ctx context.Context, payload Payload) error {
	ctx, span := tracer.Start(ctx, "Webhook:Deliver")
	defer span.End()

	res, err := w.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(w.url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post webhook")
		return err
	}
	if res.IsError() {
		err = fmt.Errorf("webhook answered %s", res.Status())
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
