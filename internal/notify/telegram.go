package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/ricky22407-lang/bitrader/internal/interfaces"
	"github.com/ricky22407-lang/bitrader/internal/logger"
	"github.com/ricky22407-lang/bitrader/internal/types"
)

// TelegramBot is both the Notifier for engine events and the remote
// control surface: arm/disarm, portfolio status, manual trades and the
// emergency stop. Only the configured chat ID is honored.
type TelegramBot struct {
	bot          *tele.Bot
	engine       interfaces.Engine
	authorizedID int64
	startTime    time.Time
}

var _ interfaces.Notifier = (*TelegramBot)(nil)

func NewTelegramBot(token string, authorizedID int64, eng interfaces.Engine) (*TelegramBot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	tb := &TelegramBot{
		bot:          b,
		engine:       eng,
		authorizedID: authorizedID,
		startTime:    time.Now(),
	}
	tb.setupHandlers()
	return tb, nil
}

// Start blocks on the long poller. Run it on its own goroutine.
func (tb *TelegramBot) Start() {
	logger.Info(context.Background(), "Telegram bot started", "chat_id", tb.authorizedID)
	tb.bot.Start()
}

func (tb *TelegramBot) Stop() {
	tb.bot.Stop()
}

var (
	btnArm      = tele.Btn{Text: "Arm trading", Unique: "arm"}
	btnDisarm   = tele.Btn{Text: "Disarm", Unique: "disarm"}
	btnStatus   = tele.Btn{Text: "Status", Unique: "status"}
	btnCloseAll = tele.Btn{Text: "Close everything", Unique: "close_all"}
)

func (tb *TelegramBot) setupHandlers() {
	tb.bot.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender().ID != tb.authorizedID {
				return c.Send("Unauthorized")
			}
			return next(c)
		}
	})

	tb.bot.Handle("/start", tb.handleStart)
	tb.bot.Handle("/status", tb.handleStatus)
	tb.bot.Handle("/arm", tb.handleArm)
	tb.bot.Handle("/disarm", tb.handleDisarm)
	tb.bot.Handle("/close_all", tb.handleCloseAll)
	tb.bot.Handle("/buy", tb.handleBuy)
	tb.bot.Handle("/sell", tb.handleSell)

	tb.bot.Handle(&btnArm, tb.handleArm)
	tb.bot.Handle(&btnDisarm, tb.handleDisarm)
	tb.bot.Handle(&btnStatus, tb.handleStatus)
	tb.bot.Handle(&btnCloseAll, tb.handleCloseAll)
}

func (tb *TelegramBot) handleStart(c tele.Context) error {
	menu := &tele.ReplyMarkup{}
	armBtn := btnArm
	if tb.engine.Armed() {
		armBtn = btnDisarm
	}
	menu.Inline(
		menu.Row(armBtn, btnStatus),
		menu.Row(btnCloseAll),
	)

	state := "disarmed"
	if tb.engine.Armed() {
		state = "armed"
	}
	return c.Send(fmt.Sprintf("Autonomous trader\n\nState: %s\n\nPick an action:", state), menu)
}

func (tb *TelegramBot) handleStatus(c tele.Context) error {
	p := tb.engine.Snapshot()

	var sb strings.Builder
	state := "disarmed"
	if tb.engine.Armed() {
		state = "armed"
	}
	fmt.Fprintf(&sb, "State: %s\n", state)
	fmt.Fprintf(&sb, "Cash: %.2f\nEquity: %.2f\n", p.Cash, p.Equity)
	fmt.Fprintf(&sb, "Open positions: %d spot, %d futures\n", len(p.SpotPositions), len(p.FuturesPositions))
	fmt.Fprintf(&sb, "Trades: %d\n", len(p.TradeHistory))
	if remaining := tb.engine.BreakerRemaining(); remaining > 0 {
		fmt.Fprintf(&sb, "Circuit breaker: cooling down, %s left\n", remaining.Round(time.Second))
	}

	for _, pos := range append(append([]*types.Position{}, p.SpotPositions...), p.FuturesPositions...) {
		fmt.Fprintf(&sb, "\n%s %s %s\n  %.6f @ %.4f -> %.4f (%+.2f%%)\n  PnL %+.2f",
			pos.Market, pos.Side, pos.Symbol,
			pos.Amount, pos.EntryPrice, pos.CurrentPrice, pos.PnLPct, pos.UnrealizedPnL)
	}

	fmt.Fprintf(&sb, "\n\nUptime: %s", time.Since(tb.startTime).Round(time.Minute))
	return c.Send(sb.String())
}

func (tb *TelegramBot) handleArm(c tele.Context) error {
	tb.engine.Arm()
	return c.Send("Armed. The engine will act on decisions.")
}

func (tb *TelegramBot) handleDisarm(c tele.Context) error {
	tb.engine.Disarm()
	return c.Send("Disarmed. Open positions stay managed by stops.")
}

func (tb *TelegramBot) handleCloseAll(c tele.Context) error {
	closed := tb.engine.LiquidateAll(context.Background(), "Emergency Stop")
	return c.Send(fmt.Sprintf("Closed %d positions.", closed))
}

func (tb *TelegramBot) handleBuy(c tele.Context) error {
	return tb.manual(c, types.Buy)
}

func (tb *TelegramBot) handleSell(c tele.Context) error {
	return tb.manual(c, types.Sell)
}

// manual parses an optional fraction argument, default 25% of the
// relevant balance.
func (tb *TelegramBot) manual(c tele.Context, side types.Action) error {
	fraction := 0.25
	if arg := strings.TrimSpace(c.Message().Payload); arg != "" {
		if _, err := fmt.Sscanf(arg, "%f", &fraction); err != nil || fraction <= 0 || fraction > 1 {
			return c.Send("Usage: /buy [fraction 0-1] or /sell [fraction 0-1]")
		}
	}
	trade, err := tb.engine.ManualTrade(context.Background(), side, fraction)
	if err != nil {
		return c.Send("Trade failed: " + err.Error())
	}
	if trade == nil {
		return c.Send("Nothing to do (no price yet, or below minimum size).")
	}
	return c.Send(fmt.Sprintf("%s %.6f %s @ %.4f", trade.Side, trade.Amount, trade.Symbol, trade.Price))
}

// Publish implements interfaces.Notifier. Best-effort: a send failure
// is logged and dropped.
func (tb *TelegramBot) Publish(ctx context.Context, ev types.Event) {
	var msg string
	switch ev.Kind {
	case types.EventTrade, types.EventLiquidation:
		prefix := "Trade"
		if ev.Kind == types.EventLiquidation {
			prefix = "LIQUIDATION"
		}
		msg = fmt.Sprintf("%s: %s", prefix, ev.Message)
		if t := ev.Trade; t != nil {
			msg = fmt.Sprintf("%s\n%.6f @ %.4f", msg, t.Amount, t.Price)
			if t.PnL != nil {
				msg = fmt.Sprintf("%s\nPnL %+.2f", msg, *t.PnL)
			}
		}
	case types.EventBreaker:
		msg = "Circuit breaker: " + ev.Message
	default:
		msg = ev.Message
	}

	if _, err := tb.bot.Send(&tele.User{ID: tb.authorizedID}, msg); err != nil {
		logger.Warn(ctx, "Telegram notification failed", "error", err, "kind", string(ev.Kind))
	}
}
