package services

import (
	"time"

	"closetapi/logging"

	gobreaker "github.com/sony/gobreaker/v2"
)

const defaultBreakerTimeout = 30 * time.Second

// newBreaker opens after consecutiveFailures failures in a row and probes
// again with one request after timeout.
func newBreaker(name string, consecutiveFailures uint32, timeout time.Duration, logger *logging.Logger) *gobreaker.CircuitBreaker[any] {
	if consecutiveFailures == 0 {
		consecutiveFailures = 5
	}
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}
