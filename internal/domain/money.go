package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value in a specific currency.
// Amount is stored as BIGINT micros (10^-6) to avoid floating point errors.
type Money struct {
	Amount   int64  // micros
	Currency string // ISO 4217
}

// NewMoney creates a new Money instance from micros.
func NewMoney(amount int64, currency string) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}

// ToDecimal converts the int64 micros to a shopspring/decimal.Decimal.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(1_000_000))
}

// FromDecimal converts a decimal.Decimal to int64 micros.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(1_000_000)).IntPart()
}

// Multiply returns a new Money instance scaled by a factor.
// It uses shopspring/decimal for precision and rounds down.
func (m Money) Multiply(factor decimal.Decimal) Money {
	amountDec := m.ToDecimal().Mul(factor)
	return Money{
		Amount:   FromDecimal(amountDec),
		Currency: m.Currency,
	}
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.ToDecimal().StringFixed(2), m.Currency)
}

// Fee rates per transaction kind. Purchases carry 1.5%, transfers 1%.
var (
	purchaseFeeRate = decimal.NewFromFloat(0.015)
	transferFeeRate = decimal.NewFromFloat(0.01)
)

// Flat card issuance fees in USD micros.
const (
	VirtualCardFeeMicros  int64 = 2_000_000
	PhysicalCardFeeMicros int64 = 10_000_000
)

// FeeFor returns the fee in micros charged for a transaction of the given
// kind and amount. Card orders use a flat fee, see CardOrderFee.
func FeeFor(kind string, amountMicros int64) int64 {
	m := NewMoney(amountMicros, "")
	switch kind {
	case KindUtility, KindSubscription, KindBettingFund:
		return m.Multiply(purchaseFeeRate).Amount
	case KindTransfer:
		return m.Multiply(transferFeeRate).Amount
	default:
		return 0
	}
}

// CardOrderFee returns the flat issuance fee for a card type.
func CardOrderFee(cardType string) int64 {
	if cardType == CardTypePhysical {
		return PhysicalCardFeeMicros
	}
	return VirtualCardFeeMicros
}

// LoyaltyAccrual returns the loyalty points earned on a spend:
// one point per 10 whole currency units.
func LoyaltyAccrual(amountMicros int64) int64 {
	return amountMicros / 10_000_000
}

// LoyaltyCashValue converts redeemed points to wallet micros. 100 points = 1 USD.
func LoyaltyCashValue(points int64) int64 {
	return points * 10_000
}
