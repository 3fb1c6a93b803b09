package email

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/taskradar/internal/apperr"
)

// IMAPClient wraps go-imap v2 for reading a single mailbox.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	mailbox  string
}

// NewIMAPClient creates a new IMAP client configuration. An empty mailbox
// reads INBOX.
func NewIMAPClient(
	host, port, username, password string, tls bool, mailbox string,
) *IMAPClient {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
		mailbox:  mailbox,
	}
}

// connect dials, authenticates and selects the mailbox. The connection is
// closed when ctx is done; the returned func logs out and releases it.
func (c *IMAPClient) connect(ctx context.Context) (*imapclient.Client, func(), error) {
	const op = "imap connect"
	if c.host == "" || c.username == "" {
		return nil, nil, apperr.ConfigurationMissing(op, "email host and username are required")
	}

	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error
	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, nil, apperr.Transient(op, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	release := func() {
		stop()
		_ = client.Logout().Wait()
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		release()
		return nil, nil, apperr.ConfigurationMissing(op,
			"authentication failed for %s: %v", c.username, err)
	}

	if _, err := client.Select(c.mailbox, nil).Wait(); err != nil {
		release()
		return nil, nil, apperr.Transient(op, err)
	}

	return client, release, nil
}

// FetchUnseen returns up to limit unseen messages received since the given
// time, oldest first. Bodies are fetched with PEEK so nothing is flagged.
func (c *IMAPClient) FetchUnseen(
	ctx context.Context, since time.Time, limit int,
) ([]Message, error) {
	const op = "imap fetch unseen"

	client, release, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	criteria := &imap.SearchCriteria{
		Since:   since,
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, apperr.Transient(op, err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	// Take the most recent when over the limit.
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var messages []Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		m := messageFromBuffer(buf)
		if raw := buf.FindBodySection(bodySection); raw != nil {
			m.TextBody, m.HTMLBody = parseMIMEBody(raw)
		}
		messages = append(messages, m)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, apperr.Transient(op, err)
	}

	return messages, nil
}

// MarkSeen adds the \Seen flag to the given messages.
func (c *IMAPClient) MarkSeen(ctx context.Context, uids []imap.UID) error {
	if len(uids) == 0 {
		return nil
	}

	client, release, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer release()

	storeCmd := client.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)

	if err := storeCmd.Close(); err != nil {
		return apperr.Transient("imap mark seen", err)
	}
	return nil
}

// messageFromBuffer extracts the envelope fields of a fetched message.
func messageFromBuffer(buf *imapclient.FetchMessageBuffer) Message {
	m := Message{UID: buf.UID}

	if buf.Envelope != nil {
		m.MessageID = buf.Envelope.MessageID
		m.Subject = buf.Envelope.Subject
		m.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				m.From = from.Name
			} else {
				m.From = from.Addr()
			}
		}
	}

	return m
}

// parseMIMEBody parses a raw RFC 2822 message with go-message and returns
// its text/plain and text/html parts. Attachments are skipped.
func parseMIMEBody(raw []byte) (textBody, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Not MIME; treat the whole thing as plain text.
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}
