package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ccxgo/ccxgo/internal/domain"
	"github.com/ccxgo/ccxgo/internal/restclient"
)

type exchangeInfoResponse struct {
	Symbols []struct {
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
		Status     string `json:"status"`
		Symbol     string `json:"symbol"`
	} `json:"symbols"`
}

// ExchangeInfo fetches (or serves from the restclient's 7200s cache) the
// full symbol catalog and normalizes it into canonical "BASE/QUOTE" form.
func (a *Adapter) ExchangeInfo(ctx context.Context, fullList bool) (*domain.ExchangeInfo, error) {
	url := a.APIURL() + "/exchangeInfo"
	body, err := a.rest.GetCached(ctx, url, restclient.ExchangeInfoTTL)
	if err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBinance, Op: "exchangeInfo", Cause: err}
	}
	if body == nil {
		return nil, nil
	}

	var parsed exchangeInfoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBinance, Op: "exchangeInfo decode", Cause: err}
	}

	info := &domain.ExchangeInfo{Exchange: domain.ExchangeBinance}
	for _, s := range parsed.Symbols {
		if s.BaseAsset == "" || s.QuoteAsset == "" {
			continue
		}
		info.Symbols = append(info.Symbols, domain.SymbolInfo{
			Symbol:      strings.ToUpper(s.BaseAsset) + "/" + strings.ToUpper(s.QuoteAsset),
			VenueSymbol: s.Symbol,
			Status:      s.Status,
		})
	}

	a.catalogMu.Lock()
	a.catalog = info
	a.catalogMu.Unlock()

	return info, nil
}

// FullSymbolList returns every canonical symbol the catalog carries.
func (a *Adapter) FullSymbolList(ctx context.Context, sorted bool) ([]string, error) {
	info, err := a.ExchangeInfo(ctx, true)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}

	out := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		out = append(out, s.Symbol)
	}
	if sorted {
		sort.Strings(out)
	}
	return out, nil
}

// IsSymbolSupported reports catalog membership.
func (a *Adapter) IsSymbolSupported(ctx context.Context, canonicalSymbol string) (bool, error) {
	list, err := a.FullSymbolList(ctx, false)
	if err != nil {
		return false, err
	}
	for _, s := range list {
		if s == canonicalSymbol {
			return true, nil
		}
	}
	return false, nil
}

// CanonicalizeSymbol converts a venue symbol (e.g. "BTCUSDT") to
// canonical "BASE/QUOTE" form using the cached catalog.
func (a *Adapter) CanonicalizeSymbol(venueSymbol string) (string, error) {
	a.catalogMu.Lock()
	catalog := a.catalog
	a.catalogMu.Unlock()

	if catalog != nil {
		for _, s := range catalog.Symbols {
			if strings.EqualFold(s.VenueSymbol, venueSymbol) {
				return s.Symbol, nil
			}
		}
	}
	return "", fmt.Errorf("binance: symbol %q not found in catalog", venueSymbol)
}

// VenueSymbol converts a canonical "BASE/QUOTE" symbol to Binance's
// concatenated uppercase wire form; this direction needs no catalog.
func (a *Adapter) VenueSymbol(canonicalSymbol string) (string, error) {
	if !strings.Contains(canonicalSymbol, "/") {
		return "", fmt.Errorf("binance: %q is not a canonical BASE/QUOTE symbol", canonicalSymbol)
	}
	return strings.ToUpper(strings.ReplaceAll(canonicalSymbol, "/", "")), nil
}

// CanonicalizeInterval converts Binance's kline interval to canonical
// form. Binance intervals are identical to canonical except month, which
// Binance spells "1M" (capital) and canonical spells "1mo".
func (a *Adapter) CanonicalizeInterval(venueInterval string) (string, error) {
	if venueInterval == "1M" {
		return "1mo", nil
	}
	for _, c := range domain.SupportedIntervals() {
		if c == venueInterval {
			return c, nil
		}
	}
	return "", fmt.Errorf("binance: unsupported venue interval %q", venueInterval)
}

// VenueInterval is CanonicalizeInterval's inverse.
func (a *Adapter) VenueInterval(canonicalInterval string) (string, error) {
	if canonicalInterval == "1mo" {
		return "1M", nil
	}
	for _, c := range domain.SupportedIntervals() {
		if c == canonicalInterval && c != "1mo" {
			return c, nil
		}
	}
	return "", fmt.Errorf("binance: unsupported canonical interval %q", canonicalInterval)
}
