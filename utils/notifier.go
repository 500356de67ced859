package utils

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
	"mailwarm/config"
	"mailwarm/warmup"
)

var ErrNotifierDisabled = errors.New("notification SMTP is not configured")

// Notifier delivers operational alerts and reports from the service's own
// SMTP relay, never from an enrolled account.
type Notifier struct {
	cfg  config.SMTPConfig
	send sendFunc
}

func NewNotifier(cfg config.SMTPConfig) *Notifier {
	return &Notifier{cfg: cfg, send: dialAndSend}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.cfg.Host != ""
}

func (n *Notifier) deliver(to, subject, body string) error {
	if !n.Enabled() {
		return ErrNotifierDisabled
	}
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.Username, n.cfg.Password)
	if err := n.send(d, m); err != nil {
		return fmt.Errorf("notify %s: %w", to, err)
	}
	return nil
}

var kindTitles = map[warmup.ErrorKind]string{
	warmup.KindAuth:    "Authentication error",
	warmup.KindSend:    "Sending error",
	warmup.KindReceive: "Receiving error",
	warmup.KindSpam:    "Spam placement detected",
	warmup.KindBounce:  "Bounced message",
}

// SendErrorAlert mails the owner about an operational error on one account.
func (n *Notifier) SendErrorAlert(to string, kind warmup.ErrorKind, account, detail string) error {
	title, ok := kindTitles[kind]
	if !ok {
		title = "Warmup error"
	}
	subject := fmt.Sprintf("[MailWarm] %s on %s", title, account)

	var b strings.Builder
	fmt.Fprintf(&b, "%s was reported for %s.\n\n", title, account)
	fmt.Fprintf(&b, "Details: %s\n\n", detail)
	b.WriteString("Warmup for this account continues on the next scheduled send. ")
	b.WriteString("You can change which errors are emailed to you in your notification settings.\n")
	return n.deliver(to, subject, b.String())
}

// SendReport mails a daily summary or weekly report.
func (n *Notifier) SendReport(to, subject, body string) error {
	return n.deliver(to, "[MailWarm] "+subject, body)
}
