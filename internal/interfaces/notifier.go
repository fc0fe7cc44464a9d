package interfaces

import (
	"context"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

// Notifier forwards engine events to an external channel. Best-effort;
// the engine ignores delivery failures.
type Notifier interface {
	Publish(ctx context.Context, ev types.Event)
}
