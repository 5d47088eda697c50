// Package notify fans alert messages out to the configured sinks. A
// failing sink is logged and never blocks the others.
package notify

import (
	"log/slog"
	"sync"

	"github.com/maltedev/pricewatch/internal/models"
)

// Sink delivers one notification.
type Sink interface {
	Name() string
	Send(title, body string) error
}

// Dispatcher builds the active sink set from settings on every send,
// so webhook and bot edits take effect without a restart.
type Dispatcher struct {
	settings func() models.Settings
	proxyBase string
	logger   *slog.Logger

	mu       sync.Mutex
	telegram *TelegramSink
	tgToken  string
	tgChatID string

	desktop Sink
}

func NewDispatcher(settings func() models.Settings, webhookProxyBase string) *Dispatcher {
	return &Dispatcher{
		settings:  settings,
		proxyBase: webhookProxyBase,
		logger:    slog.Default().With("component", "notify"),
		desktop:   newDesktopSink(),
	}
}

// Notify sends (title, body) through every configured sink.
func (d *Dispatcher) Notify(title, body string) {
	for _, sink := range d.activeSinks() {
		if err := sink.Send(title, body); err != nil {
			d.logger.Warn("notification sink failed", "sink", sink.Name(), "error", err)
		}
	}
}

func (d *Dispatcher) activeSinks() []Sink {
	set := d.settings()
	var sinks []Sink
	if d.desktop != nil {
		sinks = append(sinks, d.desktop)
	}
	if set.DiscordWebhook != "" {
		sinks = append(sinks, NewWebhookSink(set.DiscordWebhook, d.proxyBase))
	}
	if tg := d.telegramSink(set); tg != nil {
		sinks = append(sinks, tg)
	}
	return sinks
}

// telegramSink caches the bot client per token so each send does not
// re-run the bot handshake.
func (d *Dispatcher) telegramSink(set models.Settings) Sink {
	if set.TelegramToken == "" || set.TelegramChatID == "" {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.telegram != nil && d.tgToken == set.TelegramToken && d.tgChatID == set.TelegramChatID {
		return d.telegram
	}
	tg, err := NewTelegramSink(set.TelegramToken, set.TelegramChatID)
	if err != nil {
		d.logger.Warn("telegram sink unavailable", "error", err)
		return nil
	}
	d.telegram = tg
	d.tgToken = set.TelegramToken
	d.tgChatID = set.TelegramChatID
	return tg
}
