package warmup

import (
	"regexp"
	"strings"
)

// ErrorKind classifies an operational failure for notification routing.
type ErrorKind string

const (
	KindAuth    ErrorKind = "auth"
	KindSend    ErrorKind = "send"
	KindReceive ErrorKind = "receive"
	KindSpam    ErrorKind = "spam"
	KindBounce  ErrorKind = "bounce"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether addr has the shape user@domain.tld.
func ValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}

// NotificationConfig is the immutable form of an owner's error notification settings.
type NotificationConfig struct {
	NotificationEmail     string
	NotifyOnAuthError     bool
	NotifyOnSendError     bool
	NotifyOnReceiveError  bool
	NotifyOnSpamDetection bool
	NotifyOnBounce        bool
}

// Decision is the routing outcome. The zero value means do nothing.
type Decision struct {
	Notify bool
	To     string
}

// Route decides whether an error of the given kind should be mailed to the
// owner's notification address.
func Route(kind ErrorKind, cfg NotificationConfig) Decision {
	var enabled bool
	switch kind {
	case KindAuth:
		enabled = cfg.NotifyOnAuthError
	case KindSend:
		enabled = cfg.NotifyOnSendError
	case KindReceive:
		enabled = cfg.NotifyOnReceiveError
	case KindSpam:
		enabled = cfg.NotifyOnSpamDetection
	case KindBounce:
		enabled = cfg.NotifyOnBounce
	}
	to := strings.TrimSpace(cfg.NotificationEmail)
	if !enabled || !ValidEmail(to) {
		return Decision{}
	}
	return Decision{Notify: true, To: to}
}
