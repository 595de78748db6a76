// Package notify delivers reminder and escalation messages to phones.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/gmsas95/mediremind/internal/errors"
	"github.com/gmsas95/mediremind/internal/metrics"
)

// Transport delivers one message to one phone number.
type Transport interface {
	Name() string
	Send(ctx context.Context, phone, message string) error
}

// Chain tries transports in order and stops at the first success. Delivery
// is best-effort: a transport failure is logged and the next one is tried.
type Chain struct {
	transports []Transport
	logger     *zap.Logger
}

// NewChain builds a delivery chain over the given transports.
func NewChain(logger *zap.Logger, transports ...Transport) *Chain {
	return &Chain{transports: transports, logger: logger}
}

func (c *Chain) Name() string { return "chain" }

// Send walks the chain until one transport delivers.
func (c *Chain) Send(ctx context.Context, phone, message string) error {
	if len(c.transports) == 0 {
		return errors.ErrSendFailed
	}

	var lastErr error
	for _, t := range c.transports {
		if err := t.Send(ctx, phone, message); err != nil {
			c.logger.Warn("transport failed, trying next",
				zap.String("transport", t.Name()),
				zap.Error(err))
			lastErr = err
			continue
		}
		metrics.RecordTransportSend(t.Name())
		return nil
	}

	return errors.Wrap(lastErr, errors.ErrSendFailed.Code, "all transports failed")
}
