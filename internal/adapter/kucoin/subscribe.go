package kucoin

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ccxgo/ccxgo/internal/adapter"
	"github.com/ccxgo/ccxgo/internal/domain"
)

type topicFrame struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Topic          string `json:"topic"`
	PrivateChannel bool   `json:"privateChannel"`
	Response       bool   `json:"response"`
}

// SubscriptionFrames builds one subscribe/unsubscribe frame per stream,
// grounded on get_websocket_endpoint_path (one topic per
// /spotMarket/level2Depth50, /market/candles, /market/match or
// /market/ticker channel). WebsocketURL is called first so the minted
// token's ping interval/timeout are populated before building the plan.
func (a *Adapter) SubscriptionFrames(streams []domain.StreamDescriptor) (adapter.SubscriptionPlan, error) {
	a.WebsocketURL()

	connID := fmt.Sprintf("%d", time.Now().UnixNano())

	var onOpen, onClose []adapter.Frame
	for _, d := range streams {
		venueSymbol, err := a.VenueSymbol(d.Symbol)
		if err != nil {
			return adapter.SubscriptionPlan{}, err
		}

		var topic string
		switch d.Endpoint {
		case domain.EndpointOrderBook:
			topic = "/spotMarket/level2Depth50:" + venueSymbol
		case domain.EndpointKline:
			vi, err := a.VenueInterval(d.Interval)
			if err != nil {
				return adapter.SubscriptionPlan{}, err
			}
			topic = "/market/candles:" + venueSymbol + "_" + vi
		case domain.EndpointTrades:
			topic = "/market/match:" + venueSymbol
		case domain.EndpointTicker:
			topic = "/market/ticker:" + venueSymbol
		default:
			return adapter.SubscriptionPlan{}, fmt.Errorf("kucoin: unsupported endpoint %q", d.Endpoint)
		}

		open, err := json.Marshal(topicFrame{ID: connID, Type: "subscribe", Topic: topic, PrivateChannel: false, Response: true})
		if err != nil {
			return adapter.SubscriptionPlan{}, err
		}
		closeFrame, err := json.Marshal(topicFrame{ID: connID, Type: "unsubscribe", Topic: topic, PrivateChannel: false, Response: true})
		if err != nil {
			return adapter.SubscriptionPlan{}, err
		}

		onOpen = append(onOpen, adapter.Frame{Payload: open, IsText: true})
		onClose = append(onClose, adapter.Frame{Payload: closeFrame, IsText: true})
	}

	return adapter.SubscriptionPlan{
		URLSuffix:    "&connectId=" + connID,
		OnOpen:       onOpen,
		OnClose:      onClose,
		PingInterval: a.pingIntervalS,
		PingTimeout:  a.pingTimeoutS,
	}, nil
}

// PingFrame is the {"type":"ping"} keepalive payload, grounded on
// __send_ping.
func PingFrame() []byte {
	b, _ := json.Marshal(map[string]string{
		"id":   fmt.Sprintf("%d", time.Now().UnixNano()),
		"type": "ping",
	})
	return b
}
