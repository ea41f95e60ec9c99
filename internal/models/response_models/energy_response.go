package response_models

type EnergyResponse struct {
	Plan             string `json:"plan"`
	Current          int64  `json:"current"`
	Max              int64  `json:"max"`
	LifetimeConsumed int64  `json:"lifetime_consumed"`
	LastRechargeAt   string `json:"last_recharge_at,omitempty"`
	RechargedNow     int64  `json:"recharged_now"`
}

type EnergyTransactionResponse struct {
	ID            string         `json:"id"`
	Action        string         `json:"action"`
	Delta         int64          `json:"delta"`
	BalanceBefore int64          `json:"balance_before"`
	BalanceAfter  int64          `json:"balance_after"`
	CreatedAt     string         `json:"created_at"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
