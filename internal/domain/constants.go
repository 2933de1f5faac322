package domain

// Transaction kinds.
const (
	KindTopUp         = "topup"
	KindUtility       = "utility"
	KindSubscription  = "subscription"
	KindBettingFund   = "betting-fund"
	KindCardOrder     = "card-order"
	KindTransfer      = "transfer"
	KindLoyaltyRedeem = "loyalty-redeem"
)

// Transaction statuses. Terminal states are never left again; a fraud hold
// is the single sanctioned override and it only moves a transaction back to
// pending.
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// Card types and statuses.
const (
	CardTypeVirtual  = "virtual"
	CardTypePhysical = "physical"

	CardStatusActive    = "active"
	CardStatusFrozen    = "frozen"
	CardStatusCancelled = "cancelled"
)

// Providers used for settlement routing. Internal settles without an
// external call; the rest name the gateway family the worker dispatches to.
const (
	ProviderInternal       = "internal"
	ProviderPaymentGateway = "payment-gateway"
	ProviderCardIssuer     = "card-issuer"
)

var supportedCurrencies = map[string]struct{}{
	"EGP": {}, "DZD": {}, "MAD": {}, "TND": {}, "LYD": {},
	"ETB": {}, "KES": {}, "UGX": {}, "TZS": {}, "SDG": {},
	"NGN": {}, "GHS": {}, "XOF": {}, "XAF": {},
	"ZAR": {}, "AOA": {}, "ZMW": {}, "ZWL": {}, "BWP": {},
	"CDF": {},
	"USD": {}, "BTC": {}, "USDT": {}, "ETH": {},
}

// SupportedCurrency reports whether the ISO/crypto code is accepted.
func SupportedCurrency(code string) bool {
	_, ok := supportedCurrencies[code]
	return ok
}

// SupportedCurrencies returns the accepted currency codes.
func SupportedCurrencies() []string {
	out := make([]string, 0, len(supportedCurrencies))
	for c := range supportedCurrencies {
		out = append(out, c)
	}
	return out
}

// SettlementKinds are the transaction kinds that require an envelope and an
// external settlement call.
var SettlementKinds = map[string]struct{}{
	KindTopUp:       {},
	KindUtility:     {},
	KindSubscription: {},
	KindBettingFund: {},
	KindCardOrder:   {},
	KindTransfer:    {},
}

// PurchaseKinds are the request-path purchase kinds that debit the wallet
// optimistically at enqueue time.
var PurchaseKinds = map[string]struct{}{
	KindUtility:      {},
	KindSubscription: {},
	KindBettingFund:  {},
}
