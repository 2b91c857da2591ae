package okx

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/ccxgo/ccxgo/internal/domain"
	"github.com/ccxgo/ccxgo/internal/restclient"
)

type instrumentsResponse struct {
	Data []struct {
		InstID   string `json:"instId"`
		BaseCcy  string `json:"baseCcy"`
		QuoteCcy string `json:"quoteCcy"`
		State    string `json:"state"`
	} `json:"data"`
}

// ExchangeInfo fetches the SPOT instrument catalog, grounded on
// get_exchange_info/get_exchange_full_list_symbols.
func (a *Adapter) ExchangeInfo(ctx context.Context, fullList bool) (*domain.ExchangeInfo, error) {
	url := a.APIURL() + "/api/v5/public/instruments?instType=SPOT"
	body, err := a.rest.GetCached(ctx, url, restclient.ExchangeInfoTTL)
	if err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeOKX, Op: "exchangeInfo", Cause: err}
	}
	if body == nil {
		return nil, nil
	}
	var parsed instrumentsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeOKX, Op: "exchangeInfo decode", Cause: err}
	}
	info := &domain.ExchangeInfo{Exchange: domain.ExchangeOKX}
	for _, s := range parsed.Data {
		if s.BaseCcy == "" || s.QuoteCcy == "" {
			continue
		}
		status := "TRADING"
		if s.State != "live" {
			status = "BREAK"
		}
		info.Symbols = append(info.Symbols, domain.SymbolInfo{
			Symbol:      strings.ToUpper(s.BaseCcy) + "/" + strings.ToUpper(s.QuoteCcy),
			VenueSymbol: s.InstID,
			Status:      status,
		})
	}
	a.catalogMu.Lock()
	a.catalog = info
	a.catalogMu.Unlock()
	return info, nil
}

func (a *Adapter) FullSymbolList(ctx context.Context, sorted bool) ([]string, error) {
	info, err := a.ExchangeInfo(ctx, true)
	if err != nil || info == nil {
		return nil, err
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

// IsSymbolSupported matches on a normalized (slash/dash-stripped,
// lowercased) comparison, grounded on get_unified_symbol_from_symbol.
func (a *Adapter) IsSymbolSupported(ctx context.Context, canonicalSymbol string) (bool, error) {
	list, err := a.FullSymbolList(ctx, false)
	if err != nil {
		return false, err
	}
	want := normalizeSymbol(canonicalSymbol)
	for _, s := range list {
		if normalizeSymbol(s) == want {
			return true, nil
		}
	}
	return false, nil
}

func normalizeSymbol(s string) string {
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.ToLower(s)
}
