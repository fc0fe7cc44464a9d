package notify

import (
	"context"

	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

// NoopNotifier discards events. Used when Telegram is disabled.
type NoopNotifier struct{}

var _ interfaces.Notifier = (*NoopNotifier)(nil)

func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (NoopNotifier) Publish(ctx context.Context, ev types.Event) {}
