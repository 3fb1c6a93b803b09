// Package email turns unseen IMAP messages into notifications.
package email

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/taskradar/internal/model"
)

// SourceApp is the source_app recorded on notifications created from mail.
const SourceApp = "email"

const (
	defaultWindow = 24 * time.Hour
	defaultLimit  = 50

	// maxContentLen caps the body stored on a notification.
	maxContentLen = 4000
)

// messageNamespace derives stable notification IDs from Message-IDs.
var messageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("taskradar:email"))

// Mailbox is the IMAP surface the ingestor needs.
type Mailbox interface {
	FetchUnseen(ctx context.Context, since time.Time, limit int) ([]Message, error)
	MarkSeen(ctx context.Context, uids []imap.UID) error
}

// NotificationCreator persists notifications, ignoring known IDs.
type NotificationCreator interface {
	CreateNotification(ctx context.Context, n model.Notification) (*model.Notification, error)
}

// Ingestor runs the IMAP ingestion cycle.
type Ingestor struct {
	mailbox Mailbox
	store   NotificationCreator
	log     logrus.FieldLogger
	now     func() time.Time
	window  time.Duration
	limit   int
}

// NewIngestor creates an Ingestor reading the last 24h of unseen mail.
func NewIngestor(
	mailbox Mailbox,
	store NotificationCreator,
	log logrus.FieldLogger,
	now func() time.Time,
) *Ingestor {
	if now == nil {
		now = time.Now
	}
	return &Ingestor{
		mailbox: mailbox,
		store:   store,
		log:     log,
		now:     now,
		window:  defaultWindow,
		limit:   defaultLimit,
	}
}

// Run fetches unseen messages, stores one notification per message and
// flags the stored ones \Seen. Messages that fail to store stay unseen and
// are picked up next cycle.
func (i *Ingestor) Run(ctx context.Context) error {
	messages, err := i.mailbox.FetchUnseen(ctx, i.now().Add(-i.window), i.limit)
	if err != nil {
		return err
	}

	stored := make([]imap.UID, 0, len(messages))
	for _, msg := range messages {
		n := ToNotification(msg, i.now())
		if _, err := i.store.CreateNotification(ctx, n); err != nil {
			i.log.WithError(err).WithField("message_id", msg.MessageID).
				Warn("storing email notification")
			continue
		}
		stored = append(stored, msg.UID)
	}

	if err := i.mailbox.MarkSeen(ctx, stored); err != nil {
		return fmt.Errorf("marking %d messages seen: %w", len(stored), err)
	}

	if len(stored) > 0 {
		i.log.WithField("count", len(stored)).Info("ingested email notifications")
	}
	return nil
}

// ToNotification maps a message to a notification. The ID is derived from
// the Message-ID so re-fetching the same message is a no-op insert.
func ToNotification(msg Message, now time.Time) model.Notification {
	key := msg.MessageID
	if key == "" {
		key = fmt.Sprintf("uid:%d:%d", msg.UID, msg.Date.Unix())
	}

	title := strings.TrimSpace(msg.Subject)
	if title == "" {
		title = "(no subject)"
	}

	body := strings.TrimSpace(msg.TextBody)
	if body == "" {
		body = stripHTML(msg.HTMLBody)
	}
	content := body
	if msg.From != "" {
		content = "From: " + msg.From + "\n\n" + body
	}
	if r := []rune(content); len(r) > maxContentLen {
		content = string(r[:maxContentLen])
	}

	ts := msg.Date
	if ts.IsZero() {
		ts = now
	}

	return model.Notification{
		ID:        uuid.NewSHA1(messageNamespace, []byte(key)).String(),
		SourceApp: SourceApp,
		Title:     title,
		Content:   content,
		Timestamp: ts,
	}
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags and decodes common entities, giving a
// basic plain-text rendering.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
