package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/afripay/wallet-core/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRouting(t *testing.T) {
	topup := NewMockProvider("payment-gateway")
	registry := NewRegistry(NewInternalProvider()).
		Register(domain.KindTopUp, topup)

	assert.Same(t, Provider(topup), registry.ForKind(domain.KindTopUp))

	fallback := registry.ForKind("something-new")
	_, ok := fallback.(*InternalProvider)
	assert.True(t, ok)
}

func TestInternalProviderAlwaysSucceeds(t *testing.T) {
	p := NewInternalProvider()
	ref, err := p.Settle(context.Background(), domain.KindTransfer, 5_000_000, "USD", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderInternal, ref)
}

func TestMockProviderReference(t *testing.T) {
	p := &MockProvider{Name: "card-issuer"}
	ref, err := p.Settle(context.Background(), domain.KindCardOrder, 2_000_000, "USD", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "card-issuer-"))
}

func TestMockProviderCancellation(t *testing.T) {
	p := &MockProvider{Name: "slow", MaxDelay: 5 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Settle(ctx, domain.KindTopUp, 1_000_000, "USD", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
