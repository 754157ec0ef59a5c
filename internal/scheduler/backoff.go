package scheduler

import (
	"time"

	"github.com/spec-kit/triage-bot/internal/domain"
)

// Backoff doubles the base delay for every attempt already spent:
// attempt 0 waits base, attempt 1 waits 2*base, attempt 2 waits 4*base.
func Backoff(base time.Duration, retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > 16 {
		retryCount = 16
	}
	return base << uint(retryCount)
}

// laneCycle spreads lane preference over a repeating 15-poll window so
// that lower lanes drain even under sustained high-priority load. The
// 9/5/1 split mirrors the lane weights.
const laneCycle = 15

func laneOrder(counter uint64) []domain.PriorityClass {
	switch pos := counter % laneCycle; {
	case pos < 9:
		return []domain.PriorityClass{domain.PriorityHigh, domain.PriorityNormal, domain.PriorityLow}
	case pos < 14:
		return []domain.PriorityClass{domain.PriorityNormal, domain.PriorityHigh, domain.PriorityLow}
	default:
		return []domain.PriorityClass{domain.PriorityLow, domain.PriorityHigh, domain.PriorityNormal}
	}
}
