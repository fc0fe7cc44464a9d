package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"

	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/logger"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

// BinanceExchange signs live market orders. It holds one spot and one
// futures client behind the same credentials; orders are routed by the
// request's market bucket.
type BinanceExchange struct {
	spot *binance.Client
	fut  *futures.Client
}

var _ interfaces.Exchange = (*BinanceExchange)(nil)

// NewBinanceExchange builds the live order path. Missing credentials
// are an error here so misconfiguration surfaces at startup, not on
// the first fill.
func NewBinanceExchange(apiKey, secretKey string, testnet bool) (*BinanceExchange, error) {
	if apiKey == "" || secretKey == "" {
		return nil, errors.New("binance credentials missing")
	}
	if testnet {
		binance.UseTestnet = true
		futures.UseTestnet = true
	}
	return &BinanceExchange{
		spot: binance.NewClient(apiKey, secretKey),
		fut:  futures.NewClient(apiKey, secretKey),
	}, nil
}

// PlaceOrder submits a market order. A non-nil error fails the
// caller's execute call only; the engine keeps running.
func (b *BinanceExchange) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderAck, error) {
	qty := strconv.FormatFloat(req.Amount, 'f', 6, 64)

	if req.Market == types.Futures {
		side := futures.SideTypeBuy
		if req.Side == "SELL" {
			side = futures.SideTypeSell
		}
		res, err := b.fut.NewCreateOrderService().
			Symbol(req.Symbol).
			Side(side).
			Type(futures.OrderTypeMarket).
			Quantity(qty).
			Do(ctx)
		if err != nil {
			return types.OrderAck{}, fmt.Errorf("futures order %s %s: %w", req.Side, req.Symbol, err)
		}
		logger.Info(ctx, "Futures order placed",
			"symbol", req.Symbol, "side", req.Side, "order_id", res.OrderID)
		return types.OrderAck{
			OrderID: strconv.FormatInt(res.OrderID, 10),
			Status:  string(res.Status),
		}, nil
	}

	side := binance.SideTypeBuy
	if req.Side == "SELL" {
		side = binance.SideTypeSell
	}
	res, err := b.spot.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(qty).
		Do(ctx)
	if err != nil {
		return types.OrderAck{}, fmt.Errorf("spot order %s %s: %w", req.Side, req.Symbol, err)
	}
	logger.Info(ctx, "Spot order placed",
		"symbol", req.Symbol, "side", req.Side, "order_id", res.OrderID)
	return types.OrderAck{
		OrderID: strconv.FormatInt(res.OrderID, 10),
		Status:  string(res.Status),
	}, nil
}
