// Package alerts evaluates notification rules per item per check and
// dispatches through the configured sinks with per-(rule,item)
// cooldowns.
package alerts

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/pricewatch/internal/models"
)

// Rule names key the cooldown map and tag outgoing notifications.
const (
	RuleTargetHit     = "target"
	RulePriceDrop     = "drop"
	RulePriceDrop24h  = "drop24h"
	RuleAllTimeLow    = "all_time_low"
	RuleLowConfidence = "low_confidence"
	RuleStale         = "stale"
	RuleOutOfStock    = "out_of_stock"
)

// Notifier fans a message out to the configured sinks.
type Notifier interface {
	Notify(title, body string)
}

type Engine struct {
	rules     func() models.AlertRules
	cooldowns CooldownStore
	notifier  Notifier
	logger    *slog.Logger
}

func NewEngine(rules func() models.AlertRules, cooldowns CooldownStore, notifier Notifier) *Engine {
	return &Engine{
		rules:     rules,
		cooldowns: cooldowns,
		notifier:  notifier,
		logger:    slog.Default().With("component", "alerts"),
	}
}

func (e *Engine) fire(rule string, item models.Item, now time.Time, title, body string) {
	window := time.Duration(e.rules().NotifyCooldownMinutes) * time.Minute
	key := rule + ":" + item.ID
	if !e.cooldowns.Allow(key, window, now) {
		e.logger.Debug("alert suppressed by cooldown", "rule", rule, "item", item.ID)
		return
	}
	e.logger.Info("alert fired", "rule", rule, "item", item.ID, "title", title)
	e.notifier.Notify(title, body)
}

// OnPriceChange evaluates the price rules. item is the pre-update
// snapshot; newPrice is the freshly extracted price.
func (e *Engine) OnPriceChange(item models.Item, newPrice float64, now time.Time) {
	rules := e.rules()
	oldPrice := item.CurrentPrice

	if rules.TargetHitEnabled && item.TargetPrice > 0 &&
		newPrice <= item.TargetPrice &&
		(oldPrice == nil || *oldPrice > item.TargetPrice) {
		e.fire(RuleTargetHit, item, now,
			fmt.Sprintf("Target price hit: %s", item.Name),
			fmt.Sprintf("%s is now %.2f %s (target %.2f)\n%s", item.Name, newPrice, item.Currency, item.TargetPrice, item.URL))
	}

	if oldPrice == nil {
		return
	}

	if rules.PriceDropEnabled && newPrice < *oldPrice {
		e.fire(RulePriceDrop, item, now,
			fmt.Sprintf("Price drop: %s", item.Name),
			fmt.Sprintf("%s dropped from %.2f to %.2f %s\n%s", item.Name, *oldPrice, newPrice, item.Currency, item.URL))
	}

	if rules.PriceDrop24hEnabled && newPrice < *oldPrice {
		if ref := referencePoint(item.History, now.Add(-24*time.Hour)); ref != nil && ref.Price > 0 {
			pct := (ref.Price - newPrice) / ref.Price * 100
			if pct >= rules.PriceDrop24hPercent {
				e.fire(RulePriceDrop24h, item, now,
					fmt.Sprintf("%.0f%%+ drop in 24h: %s", rules.PriceDrop24hPercent, item.Name),
					fmt.Sprintf("%s fell %.1f%% in the last day, now %.2f %s\n%s", item.Name, pct, newPrice, item.Currency, item.URL))
			}
		}
	}

	if rules.AllTimeLowEnabled && newPrice < historicalLow(item) {
		e.fire(RuleAllTimeLow, item, now,
			fmt.Sprintf("All-time low: %s", item.Name),
			fmt.Sprintf("%s hit an all-time low of %.2f %s\n%s", item.Name, newPrice, item.Currency, item.URL))
	}
}

// OnStock fires when the item transitions to out of stock.
func (e *Engine) OnStock(item models.Item, newStatus models.StockStatus, now time.Time) {
	if newStatus != models.StockOutOfStock || item.StockStatus == models.StockOutOfStock {
		return
	}
	e.fire(RuleOutOfStock, item, now,
		fmt.Sprintf("Out of stock: %s", item.Name),
		fmt.Sprintf("%s appears to be out of stock\n%s", item.Name, item.URL))
}

// OnLowConfidence fires when extraction confidence lands in (0,
// threshold).
func (e *Engine) OnLowConfidence(item models.Item, confidence int, now time.Time) {
	rules := e.rules()
	if !rules.LowConfidenceEnabled {
		return
	}
	if confidence <= 0 || confidence >= rules.LowConfidenceThreshold {
		return
	}
	e.fire(RuleLowConfidence, item, now,
		fmt.Sprintf("Low extraction confidence: %s", item.Name),
		fmt.Sprintf("Price for %s was extracted with confidence %d; the selector may need attention\n%s", item.Name, confidence, item.URL))
}

// OnFail fires the stale alert when an item has not had a successful
// check for longer than the configured window.
func (e *Engine) OnFail(item models.Item, now time.Time) {
	rules := e.rules()
	if !rules.StaleEnabled || item.LastChecked.IsZero() {
		return
	}
	if now.Sub(item.LastChecked) <= time.Duration(rules.StaleHours)*time.Hour {
		return
	}
	e.fire(RuleStale, item, now,
		fmt.Sprintf("Checks failing: %s", item.Name),
		fmt.Sprintf("%s has had no successful check for over %dh\n%s", item.Name, rules.StaleHours, item.URL))
}

// referencePoint picks the history point closest in time to target.
func referencePoint(history []models.PricePoint, target time.Time) *models.PricePoint {
	var best *models.PricePoint
	var bestDelta time.Duration
	for i := range history {
		delta := history[i].Date.Sub(target)
		if delta < 0 {
			delta = -delta
		}
		if best == nil || delta < bestDelta {
			best = &history[i]
			bestDelta = delta
		}
	}
	return best
}

// historicalLow is the lowest of history and the current price.
func historicalLow(item models.Item) float64 {
	low := 0.0
	set := false
	for _, p := range item.History {
		if !set || p.Price < low {
			low = p.Price
			set = true
		}
	}
	if item.CurrentPrice != nil && (!set || *item.CurrentPrice < low) {
		low = *item.CurrentPrice
		set = true
	}
	if !set {
		return 0
	}
	return low
}
