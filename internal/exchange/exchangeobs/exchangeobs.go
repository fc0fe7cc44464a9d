package exchangeobs

import (
	"context"

	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/logger"
	"github.com/ricky22407-lang/bitrader/internal/trace"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

// observableExchange wraps an Exchange with logging and tracing.
type observableExchange struct {
	exchange interfaces.Exchange
}

var _ interfaces.Exchange = (*observableExchange)(nil)

// Wrap wraps an exchange with observability middleware.
func Wrap(exchange interfaces.Exchange) interfaces.Exchange {
	return &observableExchange{
		exchange: exchange,
	}
}

func (oe *observableExchange) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderAck, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.PlaceOrder")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Placing order",
		"symbol", req.Symbol,
		"side", req.Side,
		"market", string(req.Market),
		"amount", req.Amount,
	)

	ack, err := oe.exchange.PlaceOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Order placement failed", err,
			"symbol", req.Symbol,
			"side", req.Side,
		)
		return types.OrderAck{}, err
	}

	logger.InfoSkip(ctx, 1, "Order placed",
		"symbol", req.Symbol,
		"order_id", ack.OrderID,
		"status", ack.Status,
	)
	return ack, nil
}
