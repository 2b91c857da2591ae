package bybit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ccxgo/ccxgo/internal/adapter"
	"github.com/ccxgo/ccxgo/internal/domain"
)

type opFrame struct {
	Op    string   `json:"op"`
	Args  []string `json:"args"`
	ReqID string   `json:"req_id"`
}

// SubscriptionFrames builds one combined subscribe/unsubscribe pair
// covering every requested topic, grounded on get_websocket_endpoint_path.
func (a *Adapter) SubscriptionFrames(streams []domain.StreamDescriptor) (adapter.SubscriptionPlan, error) {
	args := make([]string, 0, len(streams))
	for _, d := range streams {
		venueSymbol, err := a.VenueSymbol(d.Symbol)
		if err != nil {
			return adapter.SubscriptionPlan{}, err
		}
		venueSymbol = strings.ToUpper(venueSymbol)

		switch d.Endpoint {
		case domain.EndpointOrderBook:
			args = append(args, fmt.Sprintf("orderbook.%d.%s", orderBookDepth, venueSymbol))
		case domain.EndpointKline:
			vi, err := venueInterval(d.Interval)
			if err != nil {
				return adapter.SubscriptionPlan{}, err
			}
			args = append(args, fmt.Sprintf("kline.%s.%s", vi, venueSymbol))
		case domain.EndpointTrades:
			args = append(args, "publicTrade."+venueSymbol)
		case domain.EndpointTicker:
			args = append(args, "tickers."+venueSymbol)
		default:
			return adapter.SubscriptionPlan{}, fmt.Errorf("bybit: unsupported endpoint %q", d.Endpoint)
		}
	}

	subscribe, err := json.Marshal(opFrame{Op: "subscribe", Args: args, ReqID: "ccxgo-sub"})
	if err != nil {
		return adapter.SubscriptionPlan{}, err
	}
	unsubscribe, err := json.Marshal(opFrame{Op: "unsubscribe", Args: args, ReqID: "ccxgo-unsub"})
	if err != nil {
		return adapter.SubscriptionPlan{}, err
	}

	return adapter.SubscriptionPlan{
		OnOpen:       []adapter.Frame{{Payload: subscribe, IsText: true}},
		OnClose:      []adapter.Frame{{Payload: unsubscribe, IsText: true}},
		PingInterval: pingIntervalS,
		PingTimeout:  10,
	}, nil
}

// PingFrame is the op:"ping" keepalive payload, grounded on __send_ping.
func PingFrame() []byte {
	b, _ := json.Marshal(opFrame{Op: "ping", ReqID: "ccxgo-ping"})
	return b
}
