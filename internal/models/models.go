package models

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID            uuid.UUID `json:"id"`
	Country       string    `json:"country"`
	Currency      string    `json:"currency"`
	BalanceMicros int64     `json:"balance_micros"`
	LoyaltyPoints int64     `json:"loyalty_points"`
	DeviceToken   string    `json:"device_token,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Transaction struct {
	ID           uuid.UUID `json:"id"`
	AccountID    uuid.UUID `json:"account_id"`
	Kind         string    `json:"kind"`
	AmountMicros int64     `json:"amount_micros"`
	FeeMicros    int64     `json:"fee_micros"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"` // "pending", "completed", "failed"
	Provider     string    `json:"provider"`
	ProviderRef  string    `json:"provider_ref,omitempty"`
	Details      []byte    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Card struct {
	ID                 uuid.UUID `json:"id"`
	AccountID          uuid.UUID `json:"account_id"`
	Type               string    `json:"type"` // "virtual" or "physical"
	CardNumber         string    `json:"card_number"`
	Status             string    `json:"status"` // "active", "frozen", "cancelled"
	SpendingLimitMicros int64    `json:"spending_limit_micros"`
	CreatedAt          time.Time `json:"created_at"`
}
