package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/micko4develop/crypto-dash/internal/dashboard"
)

type notifier interface {
	Send(ctx context.Context, msg string) error
}

// FailureAlerter reports listing outages. It fires once when the dashboard
// enters Failed and again only after a Ready view has been seen.
type FailureAlerter struct {
	sender  notifier
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	alerted bool
	wg      sync.WaitGroup
}

func NewFailureAlerter(sender notifier, log zerolog.Logger) *FailureAlerter {
	return &FailureAlerter{
		sender:  sender,
		timeout: 30 * time.Second,
		log:     log.With().Str("component", "notifications").Logger(),
	}
}

// Observe is a dashboard observer. Delivery runs in the background so the
// controller is never held up by the webhook.
func (a *FailureAlerter) Observe(v dashboard.View) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch v.State {
	case dashboard.Ready:
		a.alerted = false
	case dashboard.Failed:
		if a.alerted {
			return
		}
		a.alerted = true
		kind := v.ErrorKind
		msg := fmt.Sprintf("market listing unavailable (%s): %s", kind, v.Error)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
			defer cancel()
			if err := a.sender.Send(ctx, msg); err != nil {
				a.log.Warn().Err(err).Str("kind", kind).Msg("outage alert not delivered")
			}
		}()
	}
}

// Wait blocks until every alert in flight has been delivered or dropped.
func (a *FailureAlerter) Wait() {
	a.wg.Wait()
}
