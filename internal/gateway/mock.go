package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

// MockProvider simulates an external settlement API for local runs and
// tests. It introduces a short delay and fails a configurable fraction of
// calls.
type MockProvider struct {
	// Name prefixes the generated reference, e.g. "RELOADLY".
	Name string
	// FailureRate is the probability of failure (0.0 to 1.0).
	FailureRate float64
	// MaxDelay bounds the simulated network latency. Zero disables the delay.
	MaxDelay time.Duration
}

// NewMockProvider creates a provider that succeeds ~90% of the time with
// up to one second of simulated latency.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		Name:        name,
		FailureRate: 0.1,
		MaxDelay:    time.Second,
	}
}

// Settle simulates one provider call. The delay is cancellable so a hung
// provider cannot stall its lane past context cancellation.
func (p *MockProvider) Settle(ctx context.Context, kind string, amountMicros int64, currency string, details json.RawMessage) (string, error) {
	if p.MaxDelay > 0 {
		delay := time.Duration(rand.Int63n(int64(p.MaxDelay)))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("provider call canceled: %w", ctx.Err())
		}
	}

	if rand.Float64() < p.FailureRate {
		return "", fmt.Errorf("%s: provider temporarily unavailable", p.Name)
	}

	ref := fmt.Sprintf("%s-%s-%05d", p.Name, time.Now().Format("20060102-150405"), rand.Intn(100000))
	return ref, nil
}
