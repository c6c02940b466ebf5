package components

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBlocksWithinCooldown(t *testing.T) {
	rl := NewRateLimiter(time.Minute)
	assert.True(t, rl.CanUse("user"))
	assert.False(t, rl.CanUse("user"))
	assert.Greater(t, rl.TimeUntilNext("user"), time.Duration(0))
}

func TestRateLimiterIsPerUser(t *testing.T) {
	rl := NewRateLimiter(time.Minute)
	assert.True(t, rl.CanUse("alice"))
	assert.True(t, rl.CanUse("bob"))
}

func TestRateLimiterAllowsAfterCooldown(t *testing.T) {
	rl := NewRateLimiter(20 * time.Millisecond)
	assert.True(t, rl.CanUse("user"))
	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.CanUse("user"))
	assert.Zero(t, rl.TimeUntilNext("unknown"))
}
