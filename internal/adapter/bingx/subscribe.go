package bingx

import (
	"github.com/ccxgo/ccxgo/internal/adapter"
	"github.com/ccxgo/ccxgo/internal/domain"
)

// SubscriptionFrames records the requested streams for Start's internal
// upstream dial and REST poller; the facade's transport connects to the
// local relay, which needs no subscribe/unsubscribe frame of its own.
func (a *Adapter) SubscriptionFrames(streams []domain.StreamDescriptor) (adapter.SubscriptionPlan, error) {
	a.streamsMu.Lock()
	a.streams = append([]domain.StreamDescriptor(nil), streams...)
	a.streamsMu.Unlock()
	return adapter.SubscriptionPlan{}, nil
}
