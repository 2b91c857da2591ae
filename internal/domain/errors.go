package domain

import "fmt"

// ConfigError is returned from Facade.New for any problem with the
// supplied configuration: unsupported exchange/endpoint/interval/symbol,
// a malformed stream list, out-of-range bounds, or too many streams.
// It is always fatal to construction and never recovered from internally.
type ConfigError struct {
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ccxgo: config error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("ccxgo: config error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

func NewConfigError(reason string, cause error) *ConfigError {
	return &ConfigError{Reason: reason, Cause: cause}
}

// TransientNetworkError wraps a REST failure, a WebSocket read/write
// failure, or a JSON decode failure. It is logged and the decode path
// returns a nil record; the transport layer auto-reconnects. It is never
// surfaced to a facade consumer.
type TransientNetworkError struct {
	Venue Exchange
	Op    string
	Cause error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("ccxgo: %s: transient network error during %s: %v", e.Venue, e.Op, e.Cause)
}

func (e *TransientNetworkError) Unwrap() error { return e.Cause }

// ProtocolGap describes an order-book sequence gap (Binance-family) or a
// non-monotonic sequence id (OKX/Bybit). No adapter constructs it: the
// Binance-family adapters resync on a gap directly, and the OKX and Bybit
// adapters do not check sequence ids.
type ProtocolGap struct {
	Venue        Exchange
	Symbol       string
	ExpectedFrom int64
	Got          int64
}

func (e *ProtocolGap) Error() string {
	return fmt.Sprintf("ccxgo: %s %s: sequence gap, expected continuation from %d, got %d",
		e.Venue, e.Symbol, e.ExpectedFrom, e.Got)
}

// AuthOrTokenError wraps a Kucoin bullet-public (or similar) token mint
// failure. It is retried internally; it is surfaced to a consumer only
// indirectly, via IsConnectionsOk() returning false after the staleness
// window elapses.
type AuthOrTokenError struct {
	Venue Exchange
	Cause error
}

func (e *AuthOrTokenError) Error() string {
	return fmt.Sprintf("ccxgo: %s: auth/token error: %v", e.Venue, e.Cause)
}

func (e *AuthOrTokenError) Unwrap() error { return e.Cause }

// ShutdownTimeout signals that background workers failed to join within
// the grace deadline during Stop(); the facade logs it and returns it from
// Stop. No connection is force-closed.
type ShutdownTimeout struct {
	Worker string
	After  string
}

func (e *ShutdownTimeout) Error() string {
	return fmt.Sprintf("ccxgo: worker %s did not shut down within %s", e.Worker, e.After)
}
