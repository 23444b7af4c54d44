package notify

import (
	"context"

	"github.com/rs/zerolog"

	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/money"
)

// Log writes one structured line per event. Failures are logged at warn level.
type Log struct {
	logger    zerolog.Logger
	formatter *money.Formatter
}

func NewLog(logger zerolog.Logger, formatter *money.Formatter) *Log {
	if formatter == nil {
		formatter = money.NewFormatter(money.DefaultLocale)
	}
	return &Log{logger: logger.With().Str("component", "notify").Logger(), formatter: formatter}
}

func (l *Log) Emit(_ context.Context, event domain.Event) {
	var ev *zerolog.Event
	switch event.Kind {
	case domain.EventStockInsufficient, domain.EventInvalidDiscount, domain.EventCartEmpty, domain.EventCheckoutFailed:
		ev = l.logger.Warn()
	default:
		ev = l.logger.Info()
	}

	ev = ev.Str("event", string(event.Kind))
	if event.ProductID != "" {
		ev = ev.Str("product_id", event.ProductID).Str("product", event.ProductName)
	}
	if event.Kind == domain.EventStockInsufficient {
		ev = ev.Int("available", event.Available).Int("requested", event.Requested)
	}
	if event.ReceiptID != "" {
		ev = ev.Str("receipt_id", event.ReceiptID).
			Str("total", l.formatter.Format(event.Total)).
			Str("profit", l.formatter.Format(event.Profit))
	}
	ev.Msg(event.Message)
}
