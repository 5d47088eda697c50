// Package scheduler drives periodic sweeps across all tracked items,
// one sweep at a time, pacing fetches politely.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/pricewatch/internal/alerts"
	"github.com/maltedev/pricewatch/internal/diag"
	"github.com/maltedev/pricewatch/internal/extractor"
	"github.com/maltedev/pricewatch/internal/fx"
	"github.com/maltedev/pricewatch/internal/models"
	"github.com/maltedev/pricewatch/internal/ratelimit"
	"github.com/maltedev/pricewatch/internal/store"
	"github.com/maltedev/pricewatch/internal/urlguard"
)

// ErrBusy is returned by Trigger while a sweep is already running.
var ErrBusy = errors.New("sweep already running")

const historyDedupWindow = 24 * time.Hour

// Fetcher retrieves rendered HTML for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Archiver optionally records every check outcome to external storage.
type Archiver interface {
	Record(ctx context.Context, rec models.CheckRecord)
}

type Scheduler struct {
	store   *store.Store
	guard   *urlguard.Guard
	fetcher Fetcher
	fxTable *fx.Table
	engine  *alerts.Engine
	diag    *diag.Buffer
	archive Archiver

	limiter ratelimit.Limiter
	logger  *slog.Logger

	mu          sync.Mutex
	sweeping    bool
	currentItem string
}

func New(st *store.Store, guard *urlguard.Guard, fetcher Fetcher, fxTable *fx.Table, engine *alerts.Engine, diagBuf *diag.Buffer, archive Archiver, limiter ratelimit.Limiter) *Scheduler {
	return &Scheduler{
		store:   st,
		guard:   guard,
		fetcher: fetcher,
		fxTable: fxTable,
		engine:  engine,
		diag:    diagBuf,
		archive: archive,
		limiter: limiter,
		logger:  slog.Default().With("component", "scheduler"),
	}
}

// Run sweeps immediately and then on every tick of interval until ctx
// is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	if err := s.Trigger(ctx); err != nil && !errors.Is(err, ErrBusy) {
		s.logger.Error("initial sweep failed", "error", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Trigger(ctx); err != nil && !errors.Is(err, ErrBusy) {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Trigger runs a sweep to completion, or reports ErrBusy when one is
// in flight.
func (s *Scheduler) Trigger(ctx context.Context) error {
	if !s.acquire() {
		return ErrBusy
	}
	defer s.release()
	s.sweep(ctx)
	return nil
}

// TriggerAsync claims the sweep slot synchronously and runs the sweep
// in the background, so callers get an immediate busy/started answer.
func (s *Scheduler) TriggerAsync(ctx context.Context) error {
	if !s.acquire() {
		return ErrBusy
	}
	go func() {
		defer s.release()
		s.sweep(ctx)
	}()
	return nil
}

func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sweeping {
		return false
	}
	s.sweeping = true
	return true
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.sweeping = false
	s.currentItem = ""
	s.mu.Unlock()
}

// Sweeping reports whether a sweep is currently running.
func (s *Scheduler) Sweeping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeping
}

// CurrentItemID is the item being checked right now, empty between
// sweeps.
func (s *Scheduler) CurrentItemID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentItem
}

func (s *Scheduler) sweep(ctx context.Context) {
	ids := s.store.IDs()
	s.logger.Info("sweep started", "items", len(ids))
	start := time.Now()

	for i, id := range ids {
		if ctx.Err() != nil {
			s.logger.Info("sweep aborted", "checked", i)
			return
		}
		s.setCurrentItem(id)
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.Info("sweep aborted", "checked", i)
			return
		}
		s.checkItem(ctx, id)
	}
	s.logger.Info("sweep finished", "items", len(ids), "elapsed", time.Since(start))
}

func (s *Scheduler) setCurrentItem(id string) {
	s.mu.Lock()
	s.currentItem = id
	s.mu.Unlock()
}

// checkItem runs one full check: guard, fetch, extract, state update,
// alerts, diagnostics. Errors mark the item failed and never abort the
// sweep.
func (s *Scheduler) checkItem(ctx context.Context, id string) {
	item, ok := s.store.Get(id)
	if !ok {
		return
	}
	now := time.Now()

	if err := s.guard.Validate(ctx, item.URL); err != nil {
		s.recordFailure(ctx, item, now, err.Error())
		return
	}

	html, err := s.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		s.recordFailure(ctx, item, now, err.Error())
		return
	}

	res, err := extractor.Extract(html, item.Selector, item.URL)
	if err != nil {
		s.recordFailure(ctx, item, now, err.Error())
		return
	}

	if res.Price == nil && res.Availability.Status != models.StockOutOfStock {
		s.recordFailure(ctx, item, now, "No price extracted")
		return
	}

	s.applyResult(item, res, now)
	s.recordSuccess(ctx, item, res, now)
}

// applyResult evaluates alerts against the pre-update snapshot, then
// mutates the item under the store lock. No I/O happens inside the
// update closure.
func (s *Scheduler) applyResult(snapshot models.Item, res extractor.Result, now time.Time) {
	outOfStock := res.Availability.Status == models.StockOutOfStock

	if res.Price != nil && !outOfStock {
		if snapshot.CurrentPrice == nil || *snapshot.CurrentPrice != *res.Price {
			s.engine.OnPriceChange(snapshot, *res.Price, now)
		}
	}
	s.engine.OnStock(snapshot, res.Availability.Status, now)
	s.engine.OnLowConfidence(snapshot, res.Confidence, now)

	var priceInUSD *float64
	if res.Price != nil {
		if rate, ok := s.fxTable.Rate(res.Currency); ok {
			usd := *res.Price / rate
			priceInUSD = &usd
		}
	}

	err := s.store.Update(snapshot.ID, func(it *models.Item) error {
		it.Currency = res.Currency
		if it.Currency == "" {
			it.Currency = "USD"
		}
		it.ExtractionConfidence = res.Confidence
		it.StockStatus = res.Availability.Status
		it.StockConfidence = res.Availability.Confidence
		it.StockReason = res.Availability.Reason
		it.StockSource = res.Availability.Source
		it.LastChecked = now
		it.LastCheckAttempt = now
		it.LastCheckStatus = models.CheckOK
		it.LastCheckError = ""

		if outOfStock {
			// Keep the last in-stock price visible; a price scraped off
			// an out-of-stock page is remembered but not trusted.
			if res.Price != nil {
				it.LastSeenPrice = res.Price
			}
			return nil
		}

		if res.Price != nil {
			price := *res.Price
			it.CurrentPrice = &price
			it.LastSeenPrice = &price
			it.PriceInUSD = priceInUSD
			appendHistory(it, price, now)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to update item", "item", snapshot.ID, "error", err)
	}
}

// appendHistory adds a point only when the price changed or the last
// point is older than a day, keeping dates monotonic.
func appendHistory(it *models.Item, price float64, now time.Time) {
	last := it.LastHistory()
	if last != nil && last.Price == price && now.Sub(last.Date) <= historyDedupWindow {
		return
	}
	if last != nil && now.Before(last.Date) {
		return
	}
	it.History = append(it.History, models.PricePoint{Date: now, Price: price})
}

func (s *Scheduler) recordSuccess(ctx context.Context, item models.Item, res extractor.Result, now time.Time) {
	rec := models.CheckRecord{
		Time:         now,
		ItemID:       item.ID,
		ItemName:     item.Name,
		URL:          item.URL,
		ListID:       item.ListID,
		OK:           true,
		Price:        res.Price,
		Currency:     res.Currency,
		Confidence:   res.Confidence,
		Source:       res.Source,
		SelectorUsed: res.SelectorUsed,
		StockStatus:  res.Availability.Status,
		OutOfStock:   res.Availability.Status == models.StockOutOfStock,
		StockReason:  res.Availability.Reason,
	}
	s.diag.Add(rec)
	if s.archive != nil {
		s.archive.Record(ctx, rec)
	}
}

func (s *Scheduler) recordFailure(ctx context.Context, item models.Item, now time.Time, msg string) {
	s.logger.Warn("check failed", "item", item.ID, "url", item.URL, "error", msg)

	err := s.store.Update(item.ID, func(it *models.Item) error {
		it.LastCheckAttempt = now
		it.LastCheckStatus = models.CheckFail
		it.LastCheckError = msg
		return nil
	})
	if err != nil {
		s.logger.Error("failed to record check failure", "item", item.ID, "error", err)
	}

	s.engine.OnFail(item, now)

	rec := models.CheckRecord{
		Time:        now,
		ItemID:      item.ID,
		ItemName:    item.Name,
		URL:         item.URL,
		ListID:      item.ListID,
		OK:          false,
		StockStatus: item.StockStatus,
		Error:       msg,
	}
	s.diag.Add(rec)
	if s.archive != nil {
		s.archive.Record(ctx, rec)
	}
}
