// Package poller long-polls Telegram for updates and republishes each one to
// the broker. The offset cursor advances only after a confirmed publish, so
// a broker failure re-serves the same update instead of dropping it.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mymmrac/telego"
	"golang.org/x/time/rate"

	"github.com/glagolgames/wordchain/internal/broker"
)

// publishRate caps outbound publishes to stay inside Telegram-scale traffic.
const publishRate = 20

const fetchRetryDelay = 5 * time.Second

// UpdatesFetcher is the one Bot API call the poller makes.
type UpdatesFetcher interface {
	GetUpdates(ctx context.Context, offset int, timeout int) ([]telego.Update, error)
}

// Poller is the long-poll loop.
type Poller struct {
	fetcher UpdatesFetcher
	pub     broker.Publisher
	limiter *rate.Limiter
	timeout int
	offset  int
	log     *slog.Logger
}

// New builds a poller. timeout is the getUpdates long-poll window in seconds.
func New(fetcher UpdatesFetcher, pub broker.Publisher, timeout int, log *slog.Logger) *Poller {
	return &Poller{
		fetcher: fetcher,
		pub:     pub,
		limiter: rate.NewLimiter(rate.Limit(publishRate), 1),
		timeout: timeout,
		log:     log,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("poller started", slog.Int("timeout", p.timeout))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		updates, err := p.fetcher.GetUpdates(ctx, p.offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Error("get updates failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", fetchRetryDelay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(fetchRetryDelay):
			}
			continue
		}
		for _, upd := range updates {
			if err := p.publish(ctx, upd); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Offset not advanced: Telegram re-serves this update on
				// the next fetch.
				p.log.Error("publish update failed",
					slog.Int("update_id", upd.UpdateID),
					slog.String("error", err.Error()))
				break
			}
			p.offset = upd.UpdateID + 1
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}
	}
}

func (p *Poller) publish(ctx context.Context, upd telego.Update) error {
	body, err := json.Marshal(upd)
	if err != nil {
		return fmt.Errorf("marshal update %d: %w", upd.UpdateID, err)
	}
	return p.pub.PublishRaw(ctx, broker.KeyPoller, 0, body)
}
