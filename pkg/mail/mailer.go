package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"sync"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// ErrMailerNotConfigured is returned when no SMTP host is set.
var ErrMailerNotConfigured = errors.New("mailer not configured")

// Mailer sends account e-mails.
type Mailer interface {
	SendVerification(ctx context.Context, to, username, verifyURL string) error
}

// SMTPOptions configures the SMTP transport.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TLS is one of "mandatory", "opportunistic" or "none".
	TLS     string
	Timeout time.Duration
}

// SMTPMailer delivers mail through an SMTP relay.
type SMTPMailer struct {
	opts SMTPOptions
}

// NewSMTPMailer validates options and returns a mailer.
func NewSMTPMailer(opts SMTPOptions) (*SMTPMailer, error) {
	opts.Host = strings.TrimSpace(opts.Host)
	if opts.Host == "" {
		return nil, ErrMailerNotConfigured
	}
	if strings.TrimSpace(opts.From) == "" {
		return nil, errors.New("mail from address is required")
	}
	if opts.Port <= 0 {
		opts.Port = 587
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &SMTPMailer{opts: opts}, nil
}

// SendVerification mails the account verification link.
func (m *SMTPMailer) SendVerification(ctx context.Context, to, username, verifyURL string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.opts.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	text, html, err := renderVerification(username, verifyURL)
	if err != nil {
		return err
	}
	msg.Subject(verificationSubject)
	msg.SetBodyString(gomail.TypeTextPlain, text)
	msg.AddAlternativeString(gomail.TypeTextHTML, html)

	client, err := gomail.NewClient(m.opts.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	return nil
}

func (m *SMTPMailer) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(m.opts.Port),
		gomail.WithTimeout(m.opts.Timeout),
	}
	switch strings.ToLower(strings.TrimSpace(m.opts.TLS)) {
	case "mandatory":
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	case "none":
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	default:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if m.opts.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.opts.Username),
			gomail.WithPassword(m.opts.Password),
		)
	}
	return opts
}

const verificationSubject = "Verify your iVisionary account"

var verificationHTML = template.Must(template.New("verify").Parse(
	`<p>Hello {{.Username}},</p>` +
		`<p>Please confirm your e-mail address to finish creating your iVisionary account.</p>` +
		`<p><a href="{{.URL}}">Verify e-mail</a></p>` +
		`<p>The link expires in 24 hours.</p>`))

func renderVerification(username, verifyURL string) (string, string, error) {
	if _, err := url.ParseRequestURI(verifyURL); err != nil {
		return "", "", fmt.Errorf("invalid verification url: %w", err)
	}
	var html bytes.Buffer
	if err := verificationHTML.Execute(&html, struct{ Username, URL string }{username, verifyURL}); err != nil {
		return "", "", fmt.Errorf("render verification mail: %w", err)
	}
	text := fmt.Sprintf("Hello %s,\n\nPlease confirm your e-mail address:\n%s\n\nThe link expires in 24 hours.\n", username, verifyURL)
	return text, html.String(), nil
}

// VerificationURL joins the public base URL with the verify route.
func VerificationURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/verify-email/" + url.PathEscape(token)
}

// Sent is one message captured by RecordingMailer.
type Sent struct {
	To       string
	Username string
	URL      string
}

// RecordingMailer captures messages instead of sending them. Err, when set,
// is returned from every send.
type RecordingMailer struct {
	mu   sync.Mutex
	Err  error
	sent []Sent
}

func (r *RecordingMailer) SendVerification(_ context.Context, to, username, verifyURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, Sent{To: to, Username: username, URL: verifyURL})
	return nil
}

// Sent returns captured messages.
func (r *RecordingMailer) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}
