package models

import (
	"time"

	"github.com/google/uuid"
)

type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockOutOfStock StockStatus = "out_of_stock"
	StockUnknown    StockStatus = "unknown"
)

type CheckStatus string

const (
	CheckOK   CheckStatus = "ok"
	CheckFail CheckStatus = "fail"
)

// PricePoint is one entry in an item's price history. Dates are
// non-decreasing within a history slice.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Item is a tracked product. User-editable fields are URL, Selector,
// TargetPrice, Name and ListID; everything else is written by the
// scheduler during sweeps.
type Item struct {
	ID          string  `json:"id"`
	URL         string  `json:"url"`
	Name        string  `json:"name"`
	Selector    string  `json:"selector,omitempty"`
	TargetPrice float64 `json:"target_price,omitempty"`
	ListID      string  `json:"list_id"`

	CurrentPrice  *float64 `json:"current_price"`
	Currency      string   `json:"currency"`
	PriceInUSD    *float64 `json:"price_in_usd"`
	LastSeenPrice *float64 `json:"last_seen_price,omitempty"`

	StockStatus     StockStatus `json:"stock_status"`
	StockConfidence int         `json:"stock_confidence"`
	StockReason     string      `json:"stock_reason,omitempty"`
	StockSource     string      `json:"stock_source,omitempty"`

	ExtractionConfidence int `json:"extraction_confidence"`

	LastChecked      time.Time   `json:"last_checked,omitzero"`
	LastCheckAttempt time.Time   `json:"last_check_attempt,omitzero"`
	LastCheckStatus  CheckStatus `json:"last_check_status,omitempty"`
	LastCheckError   string      `json:"last_check_error,omitempty"`

	History []PricePoint `json:"history"`

	AddedAt time.Time `json:"added_at"`
}

func NewItem(url, name string) *Item {
	return &Item{
		ID:          uuid.NewString(),
		URL:         url,
		Name:        name,
		ListID:      "default",
		Currency:    "USD",
		StockStatus: StockUnknown,
		History:     make([]PricePoint, 0),
		AddedAt:     time.Now(),
	}
}

// LastHistory returns the newest history point, or nil.
func (it *Item) LastHistory() *PricePoint {
	if len(it.History) == 0 {
		return nil
	}
	return &it.History[len(it.History)-1]
}

// List is a user-defined grouping of items.
type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlertRules is the global alert configuration.
type AlertRules struct {
	TargetHitEnabled       bool    `json:"target_hit_enabled"`
	PriceDropEnabled       bool    `json:"price_drop_enabled"`
	PriceDrop24hEnabled    bool    `json:"price_drop_24h_enabled"`
	PriceDrop24hPercent    float64 `json:"price_drop_24h_percent"`
	AllTimeLowEnabled      bool    `json:"all_time_low_enabled"`
	LowConfidenceEnabled   bool    `json:"low_confidence_enabled"`
	LowConfidenceThreshold int     `json:"low_confidence_threshold"`
	StaleEnabled           bool    `json:"stale_enabled"`
	StaleHours             int     `json:"stale_hours"`
	NotifyCooldownMinutes  int     `json:"notify_cooldown_minutes"`
}

func DefaultAlertRules() AlertRules {
	return AlertRules{
		TargetHitEnabled:       true,
		PriceDropEnabled:       true,
		PriceDrop24hEnabled:    true,
		PriceDrop24hPercent:    5,
		AllTimeLowEnabled:      true,
		LowConfidenceEnabled:   true,
		LowConfidenceThreshold: 55,
		StaleEnabled:           true,
		StaleHours:             12,
		NotifyCooldownMinutes:  240,
	}
}

// Settings is the persisted user configuration blob.
type Settings struct {
	DiscordWebhook string     `json:"discord_webhook,omitempty"`
	TelegramToken  string     `json:"telegram_token,omitempty"`
	TelegramChatID string     `json:"telegram_chat_id,omitempty"`
	Lists          []List     `json:"lists"`
	AlertRules     AlertRules `json:"alert_rules"`
}

func DefaultSettings() *Settings {
	return &Settings{
		Lists:      []List{{ID: "default", Name: "Default"}},
		AlertRules: DefaultAlertRules(),
	}
}

// CheckRecord is one diagnostics entry describing a single check outcome.
type CheckRecord struct {
	Time         time.Time   `json:"time"`
	ItemID       string      `json:"item_id"`
	ItemName     string      `json:"item_name"`
	URL          string      `json:"url"`
	ListID       string      `json:"list_id"`
	OK           bool        `json:"ok"`
	Price        *float64    `json:"price"`
	Currency     string      `json:"currency,omitempty"`
	Confidence   int         `json:"confidence"`
	Source       string      `json:"source,omitempty"`
	SelectorUsed string      `json:"selector_used,omitempty"`
	StockStatus  StockStatus `json:"stock_status,omitempty"`
	OutOfStock   bool        `json:"out_of_stock"`
	StockReason  string      `json:"stock_reason,omitempty"`
	Error        string      `json:"error,omitempty"`
}
