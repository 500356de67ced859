package worker

import (
	"strings"

	"mailwarm/warmup"
)

var (
	authMarkers = []string{
		"535", "534", "530 5.7.0", "authentication failed", "authentication unsuccessful",
		"invalid credentials", "username and password not accepted", "login failed",
		"authenticationfailed", "failed to decrypt",
	}
	spamMarkers = []string{
		"spam", "blacklist", "blocklist", "blocked", "554 5.7.1", "reputation",
	}
	bounceMarkers = []string{
		"550", "551", "553", "user unknown", "no such user", "mailbox unavailable",
		"does not exist", "recipient address rejected",
	}
)

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// ClassifySendError maps an SMTP failure to the notification category the
// owner configures alerts for.
func ClassifySendError(err error) warmup.ErrorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, authMarkers):
		return warmup.KindAuth
	case containsAny(msg, spamMarkers):
		return warmup.KindSpam
	case containsAny(msg, bounceMarkers):
		return warmup.KindBounce
	default:
		return warmup.KindSend
	}
}

// ClassifyReceiveError maps an IMAP failure the same way; anything that is not
// an authentication problem is a receive error.
func ClassifyReceiveError(err error) warmup.ErrorKind {
	if containsAny(strings.ToLower(err.Error()), authMarkers) {
		return warmup.KindAuth
	}
	return warmup.KindReceive
}
