package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/pricewatch/internal/models"
)

func TestAddGetUpdateDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	item := models.NewItem("https://example.com/p/1", "Widget")
	require.NoError(t, s.Add(item))

	got, ok := s.Get(item.ID)
	require.True(t, ok)
	assert.Equal(t, "Widget", got.Name)
	assert.Equal(t, "default", got.ListID)

	require.NoError(t, s.Update(item.ID, func(it *models.Item) error {
		price := 9.99
		it.CurrentPrice = &price
		return nil
	}))
	got, _ = s.Get(item.ID)
	require.NotNil(t, got.CurrentPrice)
	assert.Equal(t, 9.99, *got.CurrentPrice)

	require.NoError(t, s.Delete(item.ID))
	_, ok = s.Get(item.ID)
	assert.False(t, ok)

	assert.ErrorIs(t, s.Update("missing", func(*models.Item) error { return nil }), ErrItemNotFound)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	first := models.NewItem("https://example.com/p/1", "First")
	second := models.NewItem("https://example.com/p/2", "Second")
	require.NoError(t, s.Add(first))
	require.NoError(t, s.Add(second))

	require.NoError(t, s.UpdateSettings(func(set *models.Settings) error {
		set.DiscordWebhook = "https://discord.com/api/webhooks/1/abc"
		return nil
	}))

	reopened, err := Open(dir)
	require.NoError(t, err)

	ids := reopened.IDs()
	require.Len(t, ids, 2)
	assert.Equal(t, []string{first.ID, second.ID}, ids, "insertion order survives reload")
	assert.Equal(t, "https://discord.com/api/webhooks/1/abc", reopened.Settings().DiscordWebhook)
}

func TestSnapshotIsACopy(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	item := models.NewItem("https://example.com/p/1", "Widget")
	item.History = []models.PricePoint{{Price: 10}}
	require.NoError(t, s.Add(item))

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	snap[0].Name = "mutated"
	snap[0].History[0].Price = 99

	got, _ := s.Get(item.ID)
	assert.Equal(t, "Widget", got.Name)
	assert.Equal(t, 10.0, got.History[0].Price)
}

func TestAtomicWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Add(models.NewItem("https://example.com/p/1", "Widget")))

	_, err = os.Stat(filepath.Join(dir, "items.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "items.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultSettings(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	rules := s.AlertRules()
	assert.True(t, rules.TargetHitEnabled)
	assert.Equal(t, 240, rules.NotifyCooldownMinutes)
	assert.Equal(t, 55, rules.LowConfidenceThreshold)
	assert.True(t, s.HasList("default"))
	assert.False(t, s.HasList("wishlist"))
}
