package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/triage-bot/internal/domain"
)

func TestBackoffDoublesPerAttempt(t *testing.T) {
	base := 60 * time.Second

	assert.Equal(t, 60*time.Second, Backoff(base, 0))
	assert.Equal(t, 120*time.Second, Backoff(base, 1))
	assert.Equal(t, 240*time.Second, Backoff(base, 2))
	assert.Equal(t, 60*time.Second, Backoff(base, -1))
}

func TestLaneOrderWeightsOverCycle(t *testing.T) {
	firsts := make(map[domain.PriorityClass]int)
	for i := uint64(0); i < laneCycle; i++ {
		order := laneOrder(i)
		assert.Len(t, order, 3)
		assert.ElementsMatch(t,
			[]domain.PriorityClass{domain.PriorityHigh, domain.PriorityNormal, domain.PriorityLow},
			order)
		firsts[order[0]]++
	}

	assert.Equal(t, 9, firsts[domain.PriorityHigh])
	assert.Equal(t, 5, firsts[domain.PriorityNormal])
	assert.Equal(t, 1, firsts[domain.PriorityLow])
}

func TestLaneOrderRepeats(t *testing.T) {
	for i := uint64(0); i < laneCycle; i++ {
		assert.Equal(t, laneOrder(i), laneOrder(i+laneCycle))
	}
}
