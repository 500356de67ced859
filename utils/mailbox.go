package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/textproto"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"gopkg.in/gomail.v2"
	"mailwarm/models"
)

const mailboxTimeout = 30 * time.Second

// spamFolders are the junk folder names used by the common providers.
var spamFolders = []string{"Junk", "Spam", "[Gmail]/Spam", "Junk E-mail", "Bulk Mail"}

type InboxMessage struct {
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
}

// MailboxScan is the result of one pass over an account's mailbox.
type MailboxScan struct {
	Received []InboxMessage
	Spam     []InboxMessage
	Bounces  []InboxMessage
}

func dialIMAP(account *models.EmailAccount) (*client.Client, error) {
	password, err := Decrypt(account.IMAPPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt IMAP password: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", account.IMAPHost, account.IMAPPort)
	var c *client.Client
	if account.UseSSL {
		c, err = client.DialTLS(addr, &tls.Config{ServerName: account.IMAPHost})
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	c.Timeout = mailboxTimeout

	if err := c.Login(account.IMAPUsername, password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("IMAP authentication failed: %w", err)
	}
	return c, nil
}

// IMAPScanner reads warmup traffic from enrolled accounts over IMAP.
type IMAPScanner struct{}

// Scan collects unseen warmup messages from the inbox and the junk folder,
// plus unseen delivery failure reports, and marks them seen.
func (IMAPScanner) Scan(ctx context.Context, account *models.EmailAccount) (MailboxScan, error) {
	var scan MailboxScan

	c, err := dialIMAP(account)
	if err != nil {
		return scan, err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", false); err != nil {
		return scan, fmt.Errorf("failed to select mailbox: %w", err)
	}
	if scan.Received, err = collectUnseen(c, headerCriteria(WarmupHeader, "true")); err != nil {
		return scan, err
	}
	if scan.Bounces, err = collectUnseen(c, headerCriteria("From", "MAILER-DAEMON")); err != nil {
		return scan, err
	}

	for _, folder := range spamFolders {
		if ctx.Err() != nil {
			return scan, ctx.Err()
		}
		if _, err := c.Select(folder, false); err != nil {
			continue
		}
		found, err := collectUnseen(c, headerCriteria(WarmupHeader, "true"))
		if err != nil {
			return scan, err
		}
		scan.Spam = append(scan.Spam, found...)
		break
	}
	return scan, nil
}

func headerCriteria(key, value string) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Header = textproto.MIMEHeader{}
	criteria.Header.Add(key, value)
	return criteria
}

func collectUnseen(c *client.Client, criteria *imap.SearchCriteria) ([]InboxMessage, error) {
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope}, messages)
	}()

	var out []InboxMessage
	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}
		out = append(out, InboxMessage{
			MessageID: msg.Envelope.MessageId,
			From:      formatAddress(msg.Envelope.From),
			Subject:   msg.Envelope.Subject,
		})
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("error during fetch: %w", err)
	}

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.Store(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return nil, fmt.Errorf("failed to mark messages seen: %w", err)
	}
	return out, nil
}

func formatAddress(addrs []*imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	return addrs[0].MailboxName + "@" + addrs[0].HostName
}

// CheckIMAPLogin connects and authenticates against the account's IMAP server.
func CheckIMAPLogin(account *models.EmailAccount) error {
	c, err := dialIMAP(account)
	if err != nil {
		return err
	}
	return c.Logout()
}

// CheckSMTPLogin connects and authenticates against the account's SMTP server
// without sending anything.
func CheckSMTPLogin(account *models.EmailAccount) error {
	password, err := Decrypt(account.SMTPPassword)
	if err != nil {
		return fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}

	d := gomail.NewDialer(account.SMTPHost, account.SMTPPort, account.SMTPUsername, password)
	if account.UseSSL {
		d.TLSConfig = &tls.Config{ServerName: account.SMTPHost}
	}
	sc, err := d.Dial()
	if err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	return sc.Close()
}
