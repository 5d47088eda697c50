// Package fx holds USD-relative exchange rates for cross-currency
// price comparison.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"
)

const DefaultFeedURL = "https://open.er-api.com/v6/latest/USD"

// Defaults keep conversions sane before the first successful refresh.
var defaultRates = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"TRY": 34.0,
	"JPY": 150.0,
	"CNY": 7.2,
	"CAD": 1.36,
	"AUD": 1.52,
}

type Table struct {
	mu     sync.RWMutex
	rates  map[string]float64
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewTable(feedURL string) *Table {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	rates := make(map[string]float64, len(defaultRates))
	for k, v := range defaultRates {
		rates[k] = v
	}
	return &Table{
		rates:  rates,
		url:    feedURL,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: slog.Default().With("component", "fx"),
	}
}

// Rate returns the USD-relative rate for a currency code.
func (t *Table) Rate(currency string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rates[currency]
	return r, ok && r > 0
}

// ToUSD converts an amount to USD. The amount comes back unchanged when
// the rate is missing or zero; non-finite amounts yield NaN-safe false.
func (t *Table) ToUSD(amount float64, currency string) (float64, bool) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, false
	}
	rate, ok := t.Rate(currency)
	if !ok {
		return amount, true
	}
	return amount / rate, true
}

// Refresh pulls the latest rates. Previous values are kept on any
// failure; USD stays pinned to 1.
func (t *Table) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build fx request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("fx fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fx feed returned status %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode fx payload: %w", err)
	}
	if len(payload.Rates) == 0 {
		return fmt.Errorf("fx payload contained no rates")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for code, rate := range payload.Rates {
		if rate > 0 {
			t.rates[code] = rate
		}
	}
	t.rates["USD"] = 1
	return nil
}

// Run refreshes immediately and then on every tick of interval until
// the context is cancelled.
func (t *Table) Run(ctx context.Context, interval time.Duration) {
	if err := t.Refresh(ctx); err != nil {
		t.logger.Warn("initial fx refresh failed", "error", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Refresh(ctx); err != nil {
				t.logger.Warn("fx refresh failed, keeping previous rates", "error", err)
			}
		}
	}
}
