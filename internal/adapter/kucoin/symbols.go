package kucoin

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/ccxgo/ccxgo/internal/domain"
	"github.com/ccxgo/ccxgo/internal/restclient"
)

type symbolsResponse struct {
	Data []struct {
		BaseCurrency  string `json:"baseCurrency"`
		QuoteCurrency string `json:"quoteCurrency"`
		Symbol        string `json:"symbol"`
		EnableTrading bool   `json:"enableTrading"`
	} `json:"data"`
}

func (a *Adapter) ExchangeInfo(ctx context.Context, fullList bool) (*domain.ExchangeInfo, error) {
	url := a.APIURL() + "/api/v2/symbols"
	body, err := a.rest.GetCached(ctx, url, restclient.ExchangeInfoTTL)
	if err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeKucoin, Op: "exchangeInfo", Cause: err}
	}
	if body == nil {
		return nil, nil
	}
	var parsed symbolsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeKucoin, Op: "exchangeInfo decode", Cause: err}
	}
	info := &domain.ExchangeInfo{Exchange: domain.ExchangeKucoin}
	for _, s := range parsed.Data {
		if s.BaseCurrency == "" || s.QuoteCurrency == "" {
			continue
		}
		status := "TRADING"
		if !s.EnableTrading {
			status = "BREAK"
		}
		info.Symbols = append(info.Symbols, domain.SymbolInfo{
			Symbol:      strings.ToUpper(s.BaseCurrency) + "/" + strings.ToUpper(s.QuoteCurrency),
			VenueSymbol: s.Symbol,
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
