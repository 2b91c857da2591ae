package bybit

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/ccxgo/ccxgo/internal/domain"
	"github.com/ccxgo/ccxgo/internal/restclient"
)

type instrumentsInfoResponse struct {
	Result struct {
		List []struct {
			BaseCoin  string `json:"baseCoin"`
			QuoteCoin string `json:"quoteCoin"`
			Symbol    string `json:"symbol"`
			Status    string `json:"status"`
		} `json:"list"`
	} `json:"result"`
}

func (a *Adapter) ExchangeInfo(ctx context.Context, fullList bool) (*domain.ExchangeInfo, error) {
	url := a.APIURL() + "/v5/market/instruments-info?category=spot"
	body, err := a.rest.GetCached(ctx, url, restclient.ExchangeInfoTTL)
	if err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBybit, Op: "exchangeInfo", Cause: err}
	}
	if body == nil {
		return nil, nil
	}
	var parsed instrumentsInfoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.TransientNetworkError{Venue: domain.ExchangeBybit, Op: "exchangeInfo decode", Cause: err}
	}
	info := &domain.ExchangeInfo{Exchange: domain.ExchangeBybit}
	for _, s := range parsed.Result.List {
		if s.BaseCoin == "" || s.QuoteCoin == "" {
			continue
		}
		info.Symbols = append(info.Symbols, domain.SymbolInfo{
			Symbol:      strings.ToUpper(s.BaseCoin) + "/" + strings.ToUpper(s.QuoteCoin),
			VenueSymbol: s.Symbol,
			Status:      s.Status,
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
