package email

import (
	"context"
	"net"
	"time"

	"outreach_backend/internal/outreach/dispatch"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/config"

	gomail "github.com/wneessen/go-mail"

	"github.com/google/uuid"
)

// SMTPSender delivers outreach email over a direct SMTP connection via
// go-mail, for operators running their own relay instead of Brevo.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates an SMTPSender from the email configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

// Send delivers one message. SMTP submission gives no delivery receipt, so
// the provider ID is locally generated for the touch ledger.
func (s *SMTPSender) Send(ctx context.Context, lead domain.Lead, content dispatch.Content) (dispatch.SendResult, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return dispatch.SendResult{}, &domain.ProviderError{
			Channel: domain.ChannelEmail,
			Code:    domain.CodeInvalidRecipient,
			Message: "smtp from: " + err.Error(),
		}
	}
	if err := msg.To(lead.EmailAddress()); err != nil {
		return dispatch.SendResult{}, &domain.ProviderError{
			Channel: domain.ChannelEmail,
			Code:    domain.CodeInvalidRecipient,
			Message: "smtp to: " + err.Error(),
		}
	}
	msg.Subject(content.Subject)
	msg.SetBodyString(gomail.TypeTextHTML, content.Body)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return dispatch.SendResult{}, &domain.ProviderError{
			Channel: domain.ChannelEmail,
			Message: "smtp client: " + err.Error(),
		}
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		// Submission failures are indistinguishable from relay hiccups here;
		// the classifier treats them as transient.
		return dispatch.SendResult{}, &domain.ProviderError{
			Channel: domain.ChannelEmail,
			Message: "smtp send: " + err.Error(),
		}
	}

	return dispatch.SendResult{ProviderID: "smtp-" + uuid.NewString()}, nil
}
