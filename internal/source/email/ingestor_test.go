package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskradar/internal/store"
	"github.com/nhle/taskradar/internal/testutil"
)

type fakeMailbox struct {
	messages []Message
	fetchErr error
	since    time.Time
	seen     []imap.UID
}

func (f *fakeMailbox) FetchUnseen(_ context.Context, since time.Time, _ int) ([]Message, error) {
	f.since = since
	return f.messages, f.fetchErr
}

func (f *fakeMailbox) MarkSeen(_ context.Context, uids []imap.UID) error {
	f.seen = append(f.seen, uids...)
	return nil
}

func TestToNotification(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	date := now.Add(-time.Hour)

	msg := Message{
		UID:       7,
		MessageID: "abc@mail.example.com",
		Subject:   "  Pick up prescription  ",
		From:      "Pharmacy",
		Date:      date,
		TextBody:  "Your order is ready.",
	}

	n := ToNotification(msg, now)
	assert.Equal(t, SourceApp, n.SourceApp)
	assert.Equal(t, "Pick up prescription", n.Title)
	assert.Equal(t, "From: Pharmacy\n\nYour order is ready.", n.Content)
	assert.Equal(t, date, n.Timestamp)
	assert.NotEmpty(t, n.ID)

	again := ToNotification(msg, now.Add(time.Hour))
	assert.Equal(t, n.ID, again.ID, "same Message-ID must map to the same notification")

	msg.MessageID = "other@mail.example.com"
	assert.NotEqual(t, n.ID, ToNotification(msg, now).ID)
}

func TestToNotificationFallbacks(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	n := ToNotification(Message{
		UID:      3,
		HTMLBody: "<p>Dentist&nbsp;at 3pm</p><br/>Bring &amp; sign form",
	}, now)

	assert.Equal(t, "(no subject)", n.Title)
	assert.Equal(t, "Dentist at 3pm\n\nBring & sign form", n.Content)
	assert.Equal(t, now, n.Timestamp)

	long := ToNotification(Message{UID: 4, TextBody: strings.Repeat("é", maxContentLen+10)}, now)
	assert.Equal(t, maxContentLen, len([]rune(long.Content)))
}

func TestIngestorStoresAndMarksSeen(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	log, _ := test.NewNullLogger()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mailbox := &fakeMailbox{messages: []Message{
		{UID: 1, MessageID: "m1@x", Subject: "Buy milk", Date: now.Add(-time.Hour)},
		{UID: 2, MessageID: "m2@x", Subject: "Call bank", Date: now.Add(-2 * time.Hour)},
	}}

	ing := NewIngestor(mailbox, s, log, func() time.Time { return now })
	require.NoError(t, ing.Run(ctx))

	assert.Equal(t, now.Add(-24*time.Hour), mailbox.since)
	assert.ElementsMatch(t, []imap.UID{1, 2}, mailbox.seen)

	pending, err := s.GetUnprocessedNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "Buy milk", pending[0].Title)
	assert.Equal(t, SourceApp, pending[0].SourceApp)

	// A re-delivered message does not produce a second notification.
	require.NoError(t, ing.Run(ctx))
	pending, err = s.GetUnprocessedNotifications(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

type failingCreator struct{ store.NotificationStore }

func TestIngestorFetchErrorPropagates(t *testing.T) {
	log, _ := test.NewNullLogger()
	fail := errors.New("connection reset")
	mailbox := &fakeMailbox{fetchErr: fail}

	ing := NewIngestor(mailbox, failingCreator{}, log, nil)
	err := ing.Run(context.Background())
	assert.ErrorIs(t, err, fail)
	assert.Empty(t, mailbox.seen)
}

func TestParseMIMEBody(t *testing.T) {
	raw := strings.Join([]string{
		"From: shop@example.com",
		"Subject: Order",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"plain body",
		"--b1",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<b>html body</b>",
		"--b1--",
		"",
	}, "\r\n")

	text, html := parseMIMEBody([]byte(raw))
	assert.Equal(t, "plain body", strings.TrimSpace(text))
	assert.Equal(t, "<b>html body</b>", strings.TrimSpace(html))
}
