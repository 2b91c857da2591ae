// Package adapter defines the uniform capability set every venue plugin
// implements (spec.md §4.3) and a registered-factory lookup by exchange
// identifier, replacing the original Python implementation's dynamic
// importlib dispatch with Go's static registered-factory pattern
// (spec.md §9 design note).
package adapter

import (
	"context"
	"fmt"

	"github.com/ccxgo/ccxgo/internal/domain"
)

// Frame is one control-plane message the transport must send. It carries
// no spacing; the facade sets the inter-frame spacing when it converts
// frames for the transport.
type Frame struct {
	Payload []byte
	IsText  bool
}

// SubscriptionPlan is what the transport needs to drive one upstream
// connection for a set of streams (spec.md §4.3.6).
type SubscriptionPlan struct {
	URLSuffix    string
	OnOpen       []Frame
	OnClose      []Frame
	PingInterval int // seconds; 0 means rely on transport-level ping/pong
	PingTimeout  int // seconds
}

// Adapter is the capability set every venue plugin implements.
type Adapter interface {
	// Name returns the adapter's exchange identifier.
	Name() domain.Exchange

	// APIURL and WebsocketURL resolve live or sandbox endpoints per the
	// testmode the adapter was constructed with.
	APIURL() string
	WebsocketURL() string

	// ExchangeInfo and FullSymbolList fetch and cache (7200s TTL) the
	// venue's symbol catalog, producing canonical "BASE/QUOTE" symbols.
	ExchangeInfo(ctx context.Context, fullList bool) (*domain.ExchangeInfo, error)
	FullSymbolList(ctx context.Context, sorted bool) ([]string, error)

	// IsSymbolSupported is a catalog membership test.
	IsSymbolSupported(ctx context.Context, canonicalSymbol string) (bool, error)

	// CanonicalizeSymbol/VenueSymbol and CanonicalizeInterval/VenueInterval
	// convert between venue-native and canonical representations. These
	// are bijections where the venue permits; documented surjections
	// (many-to-one) are noted per adapter.
	CanonicalizeSymbol(venueSymbol string) (string, error)
	VenueSymbol(canonicalSymbol string) (string, error)
	CanonicalizeInterval(venueInterval string) (string, error)
	VenueInterval(canonicalInterval string) (string, error)

	// StreamKey is the canonical key function (spec.md §3).
	StreamKey(d domain.StreamDescriptor) string

	// SubscriptionFrames produces everything the transport needs to open
	// and maintain one upstream connection for the given streams.
	SubscriptionFrames(streams []domain.StreamDescriptor) (SubscriptionPlan, error)

	// Decode classifies and normalizes one raw wire frame. It returns a
	// nil record (and nil error) for unrecognized or keepalive frames.
	Decode(raw []byte) (domain.Record, error)

	// Start/Stop manage adapter-owned auxiliary goroutines (REST pollers,
	// application-level ping workers, the local relay). Either may be a
	// no-op for adapters with no auxiliary state.
	Start(ctx context.Context) error
	Stop() error

	// ResetTransientState is called by the transport on every reconnect
	// so stale order-book deltas are discarded (spec.md §4.3.9).
	ResetTransientState()

	// ValidateStreams rejects descriptors the venue cannot serve (e.g.
	// an unsupported interval) before the facade ever starts a connection.
	ValidateStreams(streams []domain.StreamDescriptor) error

	// MaxStreams is the venue's stream-count ceiling (spec.md §4.1).
	MaxStreams() int
}

// Factory constructs a new Adapter instance for testmode on/off.
type Factory func(testmode bool, debug bool) (Adapter, error)

var registry = map[domain.Exchange]Factory{}

// Register adds a venue factory to the registry. Adapter packages call
// this from an init() function.
func Register(name domain.Exchange, f Factory) {
	registry[name] = f
}

// New constructs the adapter for a supported exchange identifier.
func New(name domain.Exchange, testmode bool, debug bool) (Adapter, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("ccxgo: exchange %q is not registered", name)
	}
	return f(testmode, debug)
}

// IsSupported reports whether name has a registered factory.
func IsSupported(name domain.Exchange) bool {
	_, ok := registry[name]
	return ok
}
