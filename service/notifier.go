package service

import (
	"context"
	"fmt"
	"go-auth-api/logger"
	"text/template"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

// Notifier delivers verification codes and reset links out of band.
type Notifier interface {
	SendVerification(ctx context.Context, to, name, code string) error
	SendPasswordReset(ctx context.Context, to, name, link string) error
}

// MailParams is passed as data when executing the mail templates.
type MailParams struct {
	Name       string
	Email      string
	Code       string
	Link       string
	Expiration time.Duration
}

const verificationTemplate = `Hi {{.Name}},

Your email verification code is:

{{.Code}}

The code is valid for {{printf "%.f" .Expiration.Minutes}} minutes.

If you did not try to sign in, you can ignore this email.
`

const passwordResetTemplate = `Hi {{.Name}},

Someone asked to reset the password of the account registered with {{.Email}}.
Use the link below to choose a new password:

{{.Link}}

The link is valid for {{printf "%.f" .Expiration.Minutes}} minutes.

If you did not request a password reset, you can ignore this email.
`

var (
	verificationTmpl  = template.Must(template.New("verification").Parse(verificationTemplate))
	passwordResetTmpl = template.Must(template.New("password-reset").Parse(passwordResetTemplate))
)

// MailSender delivers composed messages. *mail.Client satisfies it.
type MailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPNotifier sends plain text mails through an SMTP relay.
type SMTPNotifier struct {
	sender     MailSender
	from       string
	expiration time.Duration
}

// NewSMTPNotifier builds a go-mail client for the relay. STARTTLS is used
// when the server offers it and PLAIN auth only when a username is set.
func NewSMTPNotifier(host string, port int, username, password, from string, expiration time.Duration) (*SMTPNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(10 * time.Second),
	}
	if username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return newSMTPNotifier(client, from, expiration), nil
}

func newSMTPNotifier(sender MailSender, from string, expiration time.Duration) *SMTPNotifier {
	return &SMTPNotifier{sender: sender, from: from, expiration: expiration}
}

func (n *SMTPNotifier) SendVerification(ctx context.Context, to, name, code string) error {
	params := MailParams{Name: name, Email: to, Code: code, Expiration: n.expiration}
	return n.deliver(ctx, to, "Verify your email address", verificationTmpl, params)
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, to, name, link string) error {
	params := MailParams{Name: name, Email: to, Link: link, Expiration: n.expiration}
	return n.deliver(ctx, to, "Reset your password", passwordResetTmpl, params)
}

func (n *SMTPNotifier) deliver(ctx context.Context, to, subject string, tmpl *template.Template, params MailParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := n.compose(to, subject, tmpl, params)
	if err != nil {
		return err
	}

	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send %s mail: %w", tmpl.Name(), err)
	}

	logger.Log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Mail sent")
	return nil
}

func (n *SMTPNotifier) compose(to, subject string, tmpl *template.Template, params MailParams) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, fmt.Errorf("set mail sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set mail recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	if err := msg.SetBodyTextTemplate(tmpl, params); err != nil {
		return nil, fmt.Errorf("render %s mail: %w", tmpl.Name(), err)
	}
	return msg, nil
}

// LogNotifier writes the messages to the application log instead of mailing
// them. It is meant for local development.
type LogNotifier struct{}

func (LogNotifier) SendVerification(ctx context.Context, to, name, code string) error {
	logger.Log.WithFields(logrus.Fields{"to": to, "name": name, "code": code}).Info("Verification code issued")
	return nil
}

func (LogNotifier) SendPasswordReset(ctx context.Context, to, name, link string) error {
	logger.Log.WithFields(logrus.Fields{"to": to, "name": name, "link": link}).Info("Password reset link issued")
	return nil
}
