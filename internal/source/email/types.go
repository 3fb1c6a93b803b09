package email

import (
	"time"

	"github.com/emersion/go-imap/v2"
)

// Message holds the parts of an IMAP message that become a notification.
type Message struct {
	UID       imap.UID
	MessageID string
	Subject   string
	From      string
	Date      time.Time
	TextBody  string
	HTMLBody  string
}
