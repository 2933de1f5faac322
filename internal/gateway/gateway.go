package gateway

import (
	"context"
	"encoding/json"

	"github.com/afripay/wallet-core/internal/domain"
)

// Provider is the external settlement interface. The pipeline is
// indifferent to provider-specific request/response shape beyond this
// binary outcome plus an opaque reference.
type Provider interface {
	// Settle finalizes one financial action. It returns the provider's
	// reference on success and an error on any non-success outcome.
	Settle(ctx context.Context, kind string, amountMicros int64, currency string, details json.RawMessage) (string, error)
}

// Registry routes each transaction kind to its settlement provider.
// Unknown kinds fall through to the default provider.
type Registry struct {
	providers map[string]Provider
	fallback  Provider
}

func NewRegistry(fallback Provider) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		fallback:  fallback,
	}
}

// Register binds a provider to a transaction kind.
func (r *Registry) Register(kind string, p Provider) *Registry {
	r.providers[kind] = p
	return r
}

// ForKind returns the provider responsible for settling the given kind.
func (r *Registry) ForKind(kind string) Provider {
	if p, ok := r.providers[kind]; ok {
		return p
	}
	return r.fallback
}

// InternalProvider settles transactions that never leave the platform:
// wallet-to-wallet transfers whose balances already moved on the request
// path. It always succeeds with an internal reference.
type InternalProvider struct{}

func NewInternalProvider() *InternalProvider {
	return &InternalProvider{}
}

func (p *InternalProvider) Settle(ctx context.Context, kind string, amountMicros int64, currency string, details json.RawMessage) (string, error) {
	return domain.ProviderInternal, nil
}
