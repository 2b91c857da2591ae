package binance

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ccxgo/ccxgo/internal/adapter"
	"github.com/ccxgo/ccxgo/internal/domain"
)

type subscribeFrame struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// StreamKey is the canonical key function (spec.md §3).
func (a *Adapter) StreamKey(d domain.StreamDescriptor) string {
	return domain.StreamKey(d)
}

// SubscriptionFrames builds one combined SUBSCRIBE/UNSUBSCRIBE frame pair
// for every requested stream, grounded on binance.py's
// get_websocket_endpoint_path (one frame, one params entry per stream).
func (a *Adapter) SubscriptionFrames(streams []domain.StreamDescriptor) (adapter.SubscriptionPlan, error) {
	params := make([]string, 0, len(streams))
	for _, d := range streams {
		venueSymbol, err := a.VenueSymbol(d.Symbol)
		if err != nil {
			return adapter.SubscriptionPlan{}, err
		}
		lowered := strings.ToLower(venueSymbol)

		switch d.Endpoint {
		case domain.EndpointOrderBook:
			params = append(params, lowered+"@depth@100ms")
		case domain.EndpointKline:
			venueInterval, err := a.VenueInterval(d.Interval)
			if err != nil {
				return adapter.SubscriptionPlan{}, err
			}
			params = append(params, lowered+"@kline_"+venueInterval)
		case domain.EndpointTrades:
			params = append(params, lowered+"@trade")
		case domain.EndpointTicker:
			params = append(params, lowered+"@ticker")
		default:
			return adapter.SubscriptionPlan{}, fmt.Errorf("binance: unsupported endpoint %q", d.Endpoint)
		}
	}

	subscribe, err := json.Marshal(subscribeFrame{Method: "SUBSCRIBE", Params: params, ID: 1})
	if err != nil {
		return adapter.SubscriptionPlan{}, err
	}
	unsubscribe, err := json.Marshal(subscribeFrame{Method: "UNSUBSCRIBE", Params: params, ID: 2})
	if err != nil {
		return adapter.SubscriptionPlan{}, err
	}

	return adapter.SubscriptionPlan{
		OnOpen:  []adapter.Frame{{Payload: subscribe, IsText: true}},
		OnClose: []adapter.Frame{{Payload: unsubscribe, IsText: true}},
	}, nil
}
