package domain

// BreakevenPolicy configures the auto-breakeven automation. When an open
// position's profit reaches TriggerPips, the stop is moved to entry plus
// OffsetPips (offset may be negative to lock in a small profit on sells,
// or leave a small buffer).
type BreakevenPolicy struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	TriggerPips float64 `json:"trigger_pips" yaml:"trigger_pips"`
	OffsetPips  float64 `json:"offset_pips" yaml:"offset_pips"`
}

// TargetDefaultPolicy configures take-profit auto-population for plans
// submitted without an explicit target.
type TargetDefaultPolicy struct {
	Enabled bool         `json:"enabled" yaml:"enabled"`
	Policy  TargetPolicy `json:"policy" yaml:"policy"`
	MinRR   float64      `json:"min_rr" yaml:"min_rr"`
}

// PartialTPPolicy configures the partial take-profit ladder automation.
type PartialTPPolicy struct {
	Enabled bool       `json:"enabled" yaml:"enabled"`
	Ladder  ExitLadder `json:"ladder" yaml:"ladder"`
}

// AutomationSettings bundles every protective-automation toggle for one
// tenant key. Created with defaults at provisioning, changed by explicit
// user action, persisted by the settings repository.
type AutomationSettings struct {
	TenantKey     string              `json:"tenant_key"`
	Breakeven     BreakevenPolicy     `json:"breakeven"`
	TargetDefault TargetDefaultPolicy `json:"target_default"`
	PartialTP     PartialTPPolicy     `json:"partial_tp"`
}

// DefaultAutomationSettings returns the provisioning defaults: everything
// disabled, ratio-mode target at 2R with a 1R floor.
func DefaultAutomationSettings(tenantKey string) AutomationSettings {
	return AutomationSettings{
		TenantKey: NormalizeTenantKey(tenantKey),
		Breakeven: BreakevenPolicy{TriggerPips: 10, OffsetPips: 0},
		TargetDefault: TargetDefaultPolicy{
			Policy: TargetPolicy{Mode: TargetRatio, RR: 2},
			MinRR:  1,
		},
	}
}
