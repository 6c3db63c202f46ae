package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/models"
	"github.com/jotbill/jotbill-server/src/store"
	cache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

const ratesCacheKey = "rates"

// erAPIResponse is the shape returned by the open.er-api.com endpoint.
type erAPIResponse struct {
	Result      string                     `json:"result"`
	BaseCode    string                     `json:"base_code"`
	Rates       map[string]decimal.Decimal `json:"rates"`
	TimeLastUTC string                     `json:"time_last_update_utc"`
}

// ratesService serves exchange rates with a three-step fallback: live
// fetch, then the last good table persisted in the store, then the
// built-in defaults. The in-process cache bounds how often the remote
// endpoint is hit.
type ratesService struct {
	store      *store.Store
	httpClient *http.Client
	cache      *cache.Cache
	url        string
	base       string
}

func NewRatesService(st *store.Store, url, baseCurrency string, timeout time.Duration) RatesService {
	return &ratesService{
		store:      st,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache.New(1*time.Hour, 10*time.Minute),
		url:        url,
		base:       baseCurrency,
	}
}

func (s *ratesService) Current(ctx context.Context) models.ExchangeRatesData {
	if cached, found := s.cache.Get(ratesCacheKey); found {
		return cached.(models.ExchangeRatesData)
	}
	data, err := s.Refresh(ctx)
	if err != nil {
		// Refresh already fell back; this branch only means the fetch
		// failed and we are serving the persisted or default table.
		logger.L.Debug("Serving non-live exchange rates", "error", err)
	}
	return data
}

// Refresh fetches the live table. On failure it returns the most recent
// persisted table, or the built-in defaults, along with the fetch error.
func (s *ratesService) Refresh(ctx context.Context) (models.ExchangeRatesData, error) {
	data, err := s.fetch(ctx)
	if err != nil {
		logger.L.Warn("Exchange rate fetch failed, falling back", "error", err)
		if persisted := s.store.RatesCache(ctx); persisted != nil && len(persisted.Rates) > 0 {
			s.cache.Set(ratesCacheKey, *persisted, cache.DefaultExpiration)
			return *persisted, err
		}
		defaults := models.DefaultRates()
		s.cache.Set(ratesCacheKey, defaults, cache.DefaultExpiration)
		return defaults, err
	}

	s.cache.Set(ratesCacheKey, data, cache.DefaultExpiration)
	if saveErr := s.store.SaveRatesCache(ctx, data); saveErr != nil {
		logger.L.Warn("Could not persist fetched exchange rates", "error", saveErr)
	}
	return data, nil
}

func (s *ratesService) fetch(ctx context.Context) (models.ExchangeRatesData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return models.ExchangeRatesData{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return models.ExchangeRatesData{}, fmt.Errorf("requesting rates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.ExchangeRatesData{}, fmt.Errorf("rates endpoint returned status %d", resp.StatusCode)
	}
	var body erAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.ExchangeRatesData{}, fmt.Errorf("decoding rates response: %w", err)
	}
	if body.Result != "success" || len(body.Rates) == 0 {
		return models.ExchangeRatesData{}, fmt.Errorf("rates endpoint result %q with %d rates", body.Result, len(body.Rates))
	}
	if body.BaseCode != "" && body.BaseCode != s.base {
		return models.ExchangeRatesData{}, fmt.Errorf("rates endpoint base %q, expected %q", body.BaseCode, s.base)
	}
	return models.ExchangeRatesData{
		Rates:       body.Rates,
		LastUpdated: time.Now().UnixMilli(),
	}, nil
}

// Rate returns units of target per one unit of source. Both table
// entries are expressed as units per one unit of the base currency, so
// rate(source, target) = table[target] / table[source]. Identical codes
// are exactly 1, never computed.
func (s *ratesService) Rate(ctx context.Context, source, target string) (decimal.Decimal, error) {
	if source == target {
		return decimal.NewFromInt(1), nil
	}
	table := s.Current(ctx).Rates
	from, ok := table[source]
	if !ok || from.IsZero() {
		return decimal.Zero, fmt.Errorf("no exchange rate for %s", source)
	}
	to, ok := table[target]
	if !ok {
		return decimal.Zero, fmt.Errorf("no exchange rate for %s", target)
	}
	return to.Div(from), nil
}

// Convert returns the amount in the target currency and the rate used,
// both unrounded. Rounding is the display layer's job.
func (s *ratesService) Convert(ctx context.Context, amount decimal.Decimal, source, target string) (decimal.Decimal, decimal.Decimal, error) {
	rate, err := s.Rate(ctx, source, target)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return amount.Mul(rate), rate, nil
}
