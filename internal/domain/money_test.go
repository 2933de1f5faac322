package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMoney_ToDecimal(t *testing.T) {
	m := NewMoney(10_500_000, "USD") // 10.50 USD
	d := m.ToDecimal()
	assert.Equal(t, "10.5", d.String())
}

func TestFromDecimal(t *testing.T) {
	d := decimal.NewFromFloat(10.50)
	micros := FromDecimal(d)
	assert.Equal(t, int64(10_500_000), micros)
}

func TestMoney_Multiply(t *testing.T) {
	m := NewMoney(100_000_000, "USD") // 100 USD
	scaled := m.Multiply(decimal.NewFromFloat(0.015))
	assert.Equal(t, int64(1_500_000), scaled.Amount) // 1.50 USD
	assert.Equal(t, "USD", scaled.Currency)
}

func TestFeeFor_Purchases(t *testing.T) {
	// 1.5% of 200
	assert.Equal(t, int64(3_000_000), FeeFor(KindUtility, 200_000_000))
	assert.Equal(t, int64(3_000_000), FeeFor(KindSubscription, 200_000_000))
	assert.Equal(t, int64(3_000_000), FeeFor(KindBettingFund, 200_000_000))
}

func TestFeeFor_Transfer(t *testing.T) {
	// 1% of 200
	assert.Equal(t, int64(2_000_000), FeeFor(KindTransfer, 200_000_000))
}

func TestFeeFor_NoFeeKinds(t *testing.T) {
	assert.Equal(t, int64(0), FeeFor(KindTopUp, 200_000_000))
	assert.Equal(t, int64(0), FeeFor(KindLoyaltyRedeem, 200_000_000))
}

func TestCardOrderFee(t *testing.T) {
	assert.Equal(t, int64(2_000_000), CardOrderFee(CardTypeVirtual))
	assert.Equal(t, int64(10_000_000), CardOrderFee(CardTypePhysical))
}

func TestLoyaltyAccrual(t *testing.T) {
	// One point per 10 whole units spent.
	assert.Equal(t, int64(10), LoyaltyAccrual(100_000_000))
	assert.Equal(t, int64(0), LoyaltyAccrual(9_999_999))
	assert.Equal(t, int64(1), LoyaltyAccrual(19_000_000))
}

func TestLoyaltyCashValue(t *testing.T) {
	// 100 points = 1 USD.
	assert.Equal(t, int64(1_000_000), LoyaltyCashValue(100))
	assert.Equal(t, int64(500_000), LoyaltyCashValue(50))
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "15.00 NGN", NewMoney(15_000_000, "NGN").String())
}
