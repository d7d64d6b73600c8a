package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jordanseet/internwatch/internal/model"
)

// Ensure TelegramNotifier implements model.Notifier.
var _ model.Notifier = (*TelegramNotifier)(nil)

// MessageSender is the transport used to deliver formatted alerts. Satisfied
// by telegram.Client.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// TelegramNotifier formats posting alerts and sends them over a MessageSender.
type TelegramNotifier struct {
	sender  MessageSender
	siteURL string // prefix for relative posting links
	logger  *slog.Logger
}

// NewTelegramNotifier returns a notifier that sends one message per posting.
func NewTelegramNotifier(sender MessageSender, siteURL string, logger *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:  sender,
		siteURL: strings.TrimRight(siteURL, "/"),
		logger:  logger,
	}
}

// NotifyPosting sends one alert for the posting. Failure is returned to the
// caller; the engine decides whether the delivery counts as done.
func (n *TelegramNotifier) NotifyPosting(ctx context.Context, chatID int64, p model.Posting) error {
	if err := n.sender.SendMessage(ctx, chatID, n.FormatPosting(p)); err != nil {
		return fmt.Errorf("notify %d about %s: %w", chatID, p.Link, err)
	}
	n.logger.Info("alert sent", "chat_id", chatID, "title", p.Title, "company", p.Company)
	return nil
}

// SendTestMessage sends a dummy posting alert to verify the integration works.
func SendTestMessage(ctx context.Context, n model.Notifier, chatID int64) error {
	testPosting := model.Posting{
		Title:    "Test Notification",
		Company:  "InternWatch",
		Location: "Everywhere",
		Duration: "Forever",
		PostedOn: "Just now",
		Link:     "https://www.internsg.com/jobs/",
	}
	return n.NotifyPosting(ctx, chatID, testPosting)
}

// FormatPosting renders one posting as the alert message body.
func (n *TelegramNotifier) FormatPosting(p model.Posting) string {
	link := p.Link
	if strings.HasPrefix(link, "/") {
		link = n.siteURL + link
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New internship: %s at %s\n", p.Title, p.Company)
	if p.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", p.Location)
	}
	if p.Duration != "" {
		fmt.Fprintf(&b, "Duration: %s\n", p.Duration)
	}
	if p.PostedOn != "" {
		fmt.Fprintf(&b, "Posted: %s\n", p.PostedOn)
	}
	b.WriteString(link)
	return b.String()
}
