package notify

import (
	"context"
	"sync"

	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

// Relay is a late-bound Notifier. The engine is constructed before the
// Telegram bot (which itself needs the engine), so the engine gets the
// relay and the bot is bound afterwards. Unbound, events are dropped.
type Relay struct {
	mu     sync.RWMutex
	target interfaces.Notifier
}

var _ interfaces.Notifier = (*Relay)(nil)

func NewRelay() *Relay { return &Relay{} }

func (r *Relay) Bind(target interfaces.Notifier) {
	r.mu.Lock()
	r.target = target
	r.mu.Unlock()
}

func (r *Relay) Publish(ctx context.Context, ev types.Event) {
	r.mu.RLock()
	target := r.target
	r.mu.RUnlock()
	if target != nil {
		target.Publish(ctx, ev)
	}
}
