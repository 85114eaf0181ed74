package domain

import "context"

// SettingsRepository persists per-tenant automation and compliance
// configuration so toggles survive a relay restart.
type SettingsRepository interface {
	SaveAutomation(ctx context.Context, settings AutomationSettings) error
	GetAutomation(ctx context.Context, tenantKey string) (*AutomationSettings, error)
	ListAutomation(ctx context.Context) ([]AutomationSettings, error)

	SaveCompliance(ctx context.Context, cfg ComplianceConfig) error
	GetCompliance(ctx context.Context, tenantKey string) (*ComplianceConfig, error)
	ListCompliance(ctx context.Context) ([]ComplianceConfig, error)
}
