package browser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDeadSession(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"target closed", errors.New("playwright: Target closed"), true},
		{"browser closed", errors.New("Browser has been closed"), true},
		{"websocket drop", errors.New("websocket: close 1006 (abnormal closure)"), true},
		{"plain timeout", errors.New("Timeout 45000ms exceeded"), false},
		{"dns error", errors.New("net::ERR_NAME_NOT_RESOLVED"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isDeadSession(tt.err))
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.True(t, opts.Headless)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.NotEmpty(t, opts.UserAgents)
	assert.Equal(t, 1, opts.MaxConcurrent)
}

func TestBlockedResourceTypes(t *testing.T) {
	for _, rt := range []string{"image", "stylesheet", "font", "media"} {
		_, blocked := blockedResourceTypes[rt]
		assert.True(t, blocked, rt)
	}
	_, blocked := blockedResourceTypes["document"]
	assert.False(t, blocked)
}
