package interfaces

import (
	"context"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

// Store persists portfolio state. Load returns (nil, nil) on first run
// so the caller can initialize defaults. Writes are last-write-wins.
type Store interface {
	Save(ctx context.Context, p *types.Portfolio) error
	Load(ctx context.Context) (*types.Portfolio, error)
	Close() error
}
