package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/curriculum-relay/internal/domain"
)

func TestJoinRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewJoinRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow(1))
	assert.True(t, rl.Allow(1))
	assert.False(t, rl.Allow(1))
	assert.True(t, rl.Allow(2), "limits are per identity")

	now = now.Add(11 * time.Second)
	assert.True(t, rl.Allow(1))
}

func TestJoinRateLimiterForgetsIdleIdentities(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewJoinRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	for uid := domain.UserID(1); uid <= 5; uid++ {
		assert.True(t, rl.Allow(uid))
	}
	assert.Equal(t, 5, rl.tracked())

	now = now.Add(11 * time.Second)
	assert.True(t, rl.Allow(6))
	assert.Equal(t, 1, rl.tracked())
}

func TestJoinRateLimiterZeroLimitKeepsNoHistory(t *testing.T) {
	rl := NewJoinRateLimiter(0, 10*time.Second)

	assert.False(t, rl.Allow(1))
	assert.Equal(t, 0, rl.tracked())
}

func (rl *JoinRateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.history)
}
