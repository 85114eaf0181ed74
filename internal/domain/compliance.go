package domain

// ComplianceStatus is the derived daily-loss standing of one tenant.
type ComplianceStatus string

const (
	StatusSafe     ComplianceStatus = "SAFE"
	StatusWarning  ComplianceStatus = "WARNING"
	StatusLimitHit ComplianceStatus = "LIMIT_HIT"
)

// ComplianceConfig holds the configured limits for one tenant key. A zero
// limit disables the corresponding check.
type ComplianceConfig struct {
	TenantKey string `json:"tenant_key"`

	DailyLossLimit   float64 `json:"daily_loss_limit" yaml:"daily_loss_limit"`     // absolute money
	DailyLossPercent float64 `json:"daily_loss_percent" yaml:"daily_loss_percent"` // percent of balance
	IncludeFloating  bool    `json:"include_floating" yaml:"include_floating"`

	CloseOpenTrades  bool `json:"close_open_trades" yaml:"close_open_trades"`
	PreventNewTrades bool `json:"prevent_new_trades" yaml:"prevent_new_trades"`

	NewsLeadMinutes float64 `json:"news_lead_minutes" yaml:"news_lead_minutes"`
}

// DefaultComplianceConfig returns the provisioning defaults: a 5% daily
// drawdown limit that blocks new trades, no news gate.
func DefaultComplianceConfig(tenantKey string) ComplianceConfig {
	return ComplianceConfig{
		TenantKey:        NormalizeTenantKey(tenantKey),
		DailyLossPercent: 5,
		PreventNewTrades: true,
	}
}

// ComplianceState is the running daily standing for one tenant key.
// Transitions are monotonic within a trading day; only an account.reset
// event (day boundary) clears the latch.
type ComplianceState struct {
	RealizedLoss float64          `json:"realized_loss"`
	FloatingLoss float64          `json:"floating_loss"`
	Balance      float64          `json:"balance"`
	Status       ComplianceStatus `json:"status"`

	// NewsBlocked is derived from the last news.update, independent of
	// the loss status.
	NewsBlocked bool `json:"news_blocked"`
}
