package interfaces

import (
	"context"

	"github.com/ricky22407-lang/bitrader/internal/types"
)

// Exchange is the live order-signing collaborator. In live mode the
// executor routes every fill through it before mutating the ledger; a
// failure fails that execute call only, never the process.
type Exchange interface {
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderAck, error)
}
