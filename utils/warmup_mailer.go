package utils

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/gomail.v2"
	"mailwarm/models"
	"mailwarm/warmup"
)

const WarmupHeader = "X-Warmup"

var ErrNoRecipient = errors.New("no warmup recipient available")

type sendFunc func(d *gomail.Dialer, m *gomail.Message) error

func dialAndSend(d *gomail.Dialer, m *gomail.Message) error {
	return d.DialAndSend(m)
}

// WarmupMailer sends warmup messages through an enrolled account's own SMTP
// server, retrying transient failures with a quadratic backoff.
type WarmupMailer struct {
	fallbackRecipient string
	maxRetries        int
	backoff           func(attempt int) time.Duration
	send              sendFunc
}

func NewWarmupMailer(fallbackRecipient string, maxRetries int) *WarmupMailer {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &WarmupMailer{
		fallbackRecipient: fallbackRecipient,
		maxRetries:        maxRetries,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
		send: dialAndSend,
	}
}

// SendWarmupEmail delivers one warmup message from account to the given
// address, or to the configured fallback recipient when to is empty. It
// returns the Message-ID of the delivered message.
func (wm *WarmupMailer) SendWarmupEmail(ctx context.Context, account *models.EmailAccount, to string) (string, error) {
	if to == "" {
		to = wm.fallbackRecipient
	}
	if !warmup.ValidEmail(to) {
		return "", ErrNoRecipient
	}

	password, err := Decrypt(account.SMTPPassword)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}

	dialer := gomail.NewDialer(account.SMTPHost, account.SMTPPort, account.SMTPUsername, password)
	dialer.LocalName = domainOf(account.Email)
	if account.UseSSL {
		dialer.TLSConfig = &tls.Config{ServerName: account.SMTPHost}
	}

	msg, messageID := wm.compose(account, to)

	timer := prometheus.NewTimer(WarmupSendDuration)
	defer timer.ObserveDuration()

	var lastErr error
	for attempt := 1; attempt <= wm.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wm.backoff(attempt)):
			}
		}

		lastErr = wm.send(dialer, msg)
		if lastErr == nil {
			return messageID, nil
		}
		if !IsTemporaryError(lastErr) {
			break
		}
	}

	return "", fmt.Errorf("send failed after retries: %w", lastErr)
}

func (wm *WarmupMailer) compose(account *models.EmailAccount, to string) (*gomail.Message, string) {
	subject, body := warmupContent(account.Email)
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(account.Email))

	m := gomail.NewMessage()
	m.SetHeader("From", account.Email)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", messageID)
	m.SetHeader("X-Mailer", "MailWarm/1.0")
	m.SetHeader("Auto-Submitted", "auto-generated")
	m.SetHeader(WarmupHeader, "true")
	m.SetDateHeader("Date", time.Now())
	m.SetBody("text/plain", body)
	return m, messageID
}

var (
	warmupSubjects = []string{
		"Quick question about your recent post",
		"Following up on our last conversation",
		"Checking in to see how you're doing",
		"Thought you might find this interesting",
		"Let's reconnect soon",
		"An idea I wanted to share with you",
		"Regarding your recent project",
	}
	warmupBodies = []string{
		"Hi there,\n\nI wanted to follow up on our previous conversation. Let me know if you have any questions!\n\nBest regards,\n%s",
		"Hello,\n\nI came across this and thought you might find it valuable. What do you think?\n\nRegards,\n%s",
		"Hi,\n\nJust checking in to see if you had any thoughts on this topic?\n\nThanks,\n%s",
		"Greetings,\n\nI wanted to share this with you. Let me know your thoughts when you get a chance.\n\nBest,\n%s",
	}
)

func warmupContent(from string) (string, string) {
	signature := from
	if i := strings.Index(from, "@"); i > 0 {
		signature = from[:i]
	}
	subject := warmupSubjects[rand.Intn(len(warmupSubjects))]
	body := fmt.Sprintf(warmupBodies[rand.Intn(len(warmupBodies))], signature)
	return subject, body
}

// IsTemporaryError reports whether an SMTP failure is worth retrying.
func IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	tempErrors := []string{
		"try again",
		"temporary",
		"421",
		"450",
		"451",
		"452",
	}
	for _, tempErr := range tempErrors {
		if strings.Contains(errStr, tempErr) {
			return true
		}
	}
	return false
}
