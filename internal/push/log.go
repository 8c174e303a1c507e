package push

import (
	"context"
	"log/slog"
)

var _ SingleSender = LogSender{}

// LogSender records deliveries instead of sending them. Used when no
// gateway credentials are configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, token string, msg Message) Result {
	slog.Info("push send (gateway disabled)", "title", msg.Title, "token_suffix", tokenSuffix(token))
	return Result{Outcome: Delivered}
}

func tokenSuffix(token string) string {
	if len(token) <= 6 {
		return token
	}
	return token[len(token)-6:]
}
