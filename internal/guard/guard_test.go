package guard

import (
	"testing"
	"time"

	"github.com/keysprint/core/config"
	"github.com/stretchr/testify/assert"
)

func TestWindowAllowsUpToBudgetThenRefuses(t *testing.T) {
	var w Window
	now := time.Now()

	for i := 0; i < config.MaxPacketsPerWindow; i++ {
		assert.True(t, w.Allow(now), "packet %d should be within budget", i)
	}
	assert.False(t, w.Allow(now), "packet beyond budget should be refused")
}

func TestWindowResetsAfterRollover(t *testing.T) {
	var w Window
	now := time.Now()

	for i := 0; i < config.MaxPacketsPerWindow; i++ {
		w.Allow(now)
	}
	assert.False(t, w.Allow(now))

	later := now.Add(config.PacketRateWindow + time.Millisecond)
	assert.True(t, w.Allow(later), "a new window should reset the budget")
}
