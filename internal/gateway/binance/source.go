package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"omerta/internal/logger"
	"omerta/internal/store"
)

// Source fetches spot prices from Binance. Read-only: no keys, no signed
// endpoints.
type Source struct {
	cfg    Config
	client *binance.Client
	nowFn  func() time.Time
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	client := binance.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{
		cfg:    final,
		client: client,
		nowFn:  time.Now,
	}
}

// FetchPrices returns one snapshot per requested asset, quoted against the
// configured quote asset. Assets without a matching symbol are skipped with
// a warning so one delisted coin never fails the whole pass.
func (s *Source) FetchPrices(ctx context.Context, assets []string) ([]store.PriceSnapshot, error) {
	if len(assets) == 0 {
		return nil, nil
	}
	wanted := make(map[string]string, len(assets))
	symbols := make([]string, 0, len(assets))
	for _, raw := range assets {
		asset := store.NormalizeAsset(raw)
		if asset == "" {
			continue
		}
		symbol := asset + s.cfg.QuoteAsset
		wanted[symbol] = asset
		symbols = append(symbols, symbol)
	}
	if len(symbols) == 0 {
		return nil, nil
	}

	prices, err := s.client.NewListPricesService().Symbols(symbols).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance list prices: %w", err)
	}

	now := s.nowFn().UTC()
	out := make([]store.PriceSnapshot, 0, len(prices))
	for _, p := range prices {
		asset, ok := wanted[strings.ToUpper(p.Symbol)]
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(p.Price, 64)
		if err != nil || price <= 0 {
			logger.Warnf("binance: bad price %q for %s, skipped", p.Price, p.Symbol)
			continue
		}
		out = append(out, store.PriceSnapshot{
			Asset:     asset,
			Price:     price,
			Timestamp: now,
			Source:    "binance",
		})
		delete(wanted, strings.ToUpper(p.Symbol))
	}
	for symbol := range wanted {
		logger.Warnf("binance: no price returned for %s", symbol)
	}
	return out, nil
}
