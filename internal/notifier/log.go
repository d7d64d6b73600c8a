package notifier

import (
	"context"
	"log/slog"

	"github.com/jordanseet/internwatch/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes alerts to the given logger instead of a chat. Used in
// log-mode config and one-shot check runs.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each posting via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyPosting logs the posting with its subscriber. Returns nil (stdout
// logging does not fail).
func (n *LogNotifier) NotifyPosting(_ context.Context, chatID int64, p model.Posting) error {
	n.logger.Info("new posting",
		"chat_id", chatID,
		"title", p.Title,
		"company", p.Company,
		"location", p.Location,
		"duration", p.Duration,
		"link", p.Link,
	)
	return nil
}
