package delivery

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"finscrape/internal/ledger"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

type EmailConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

func (c EmailConfig) Enabled() bool {
	return c.Server != "" && len(c.To) > 0
}

// FailureNotice builds the e-mail sent when a scrape of company did not succeed.
func FailureNotice(cfg EmailConfig, company string, result ledger.ScrapeResult) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("finscrape <%s>", cfg.EmailAddress)
	mail.To = cfg.To
	mail.Subject = fmt.Sprintf("[finscrape] %s scrape failed: %s", company, result.ErrorType)

	message := result.ErrorMessage
	if message == "" {
		message = "(no details)"
	}
	mail.Text = []byte(fmt.Sprintf(`The scrape of %s did not succeed.

Error type: %s
Details: %s

No transactions were delivered for this run.`, company, result.ErrorType, message))
	return mail
}

type Mailer struct {
	cfg EmailConfig
}

func NewMailer(cfg EmailConfig) Mailer {
	return Mailer{cfg: cfg}
}

func (m Mailer) Send(ctx context.Context, mail *email.Email) error {
	_, span := tracer.Start(ctx, "Mailer:Send")
	defer span.End()

	addr := fmt.Sprintf("%s:%d", m.cfg.Server, m.cfg.Port)
	err := mail.Send(addr, smtp.PlainAuth("", m.cfg.EmailAddress, m.cfg.Password, m.cfg.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
