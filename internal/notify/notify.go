package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message is one push to one device token.
type Message struct {
	Token    string            `json:"token"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	ImageUrl string            `json:"imageUrl,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// Result counts per-device outcomes of one Send.
type Result struct {
	SuccessCount int
	FailureCount int
}

// Notifier delivers push messages to user devices. A returned error means
// nothing was delivered; per-device failures are only counted.
type Notifier interface {
	Send(ctx context.Context, messages []Message) (Result, error)
}

// LogNotifier records pushes in the log instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, messages []Message) (Result, error) {
	for _, m := range messages {
		n.logger.Info("Push notification",
			zap.String("token", redact(m.Token)),
			zap.String("title", m.Title),
			zap.String("type", m.Data["type"]))
	}
	return Result{SuccessCount: len(messages)}, nil
}

// redact keeps only the last four characters of a device token.
func redact(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
