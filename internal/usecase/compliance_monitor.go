package usecase

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Akshayfx/trader-manager-sub000/internal/domain"
)

// tenantCompliance is the running daily state for one tenant key.
type tenantCompliance struct {
	cfg   domain.ComplianceConfig
	state domain.ComplianceState

	// closeAllSent latches the close-all directive so a limit breach
	// flattens the account once, not on every subsequent update.
	closeAllSent bool
}

// ComplianceMonitor enforces daily-loss and news-proximity restrictions per
// tenant key. Status transitions are monotonic within a trading day: once
// WARNING or LIMIT_HIT is reached it stays until the day-boundary reset,
// even if floating losses recover.
type ComplianceMonitor struct {
	logger *zap.Logger

	mu       sync.Mutex
	tenants  map[string]*tenantCompliance
	defaults *domain.ComplianceConfig
}

func NewComplianceMonitor(logger *zap.Logger) *ComplianceMonitor {
	return &ComplianceMonitor{
		logger:  logger,
		tenants: make(map[string]*tenantCompliance),
	}
}

// SetDefaults installs the operator-configured limit template used for
// tenants that have no stored configuration of their own. Tenants already
// materialized keep their config.
func (m *ComplianceMonitor) SetDefaults(cfg domain.ComplianceConfig) {
	m.mu.Lock()
	m.defaults = &cfg
	m.mu.Unlock()
}

// Configure sets the limits for a tenant key, keeping any running state.
func (m *ComplianceMonitor) Configure(tenantKey string, cfg domain.ComplianceConfig) {
	m.mu.Lock()
	t := m.tenantLocked(tenantKey)
	t.cfg = cfg
	m.mu.Unlock()
}

// tenantLocked returns (creating if needed) the state for a tenant key.
// Caller holds the mutex.
func (m *ComplianceMonitor) tenantLocked(tenantKey string) *tenantCompliance {
	key := domain.NormalizeTenantKey(tenantKey)
	t, ok := m.tenants[key]
	if !ok {
		cfg := domain.DefaultComplianceConfig(key)
		if m.defaults != nil {
			cfg = *m.defaults
			cfg.TenantKey = key
		}
		t = &tenantCompliance{
			cfg:   cfg,
			state: domain.ComplianceState{Status: domain.StatusSafe},
		}
		m.tenants[key] = t
	}
	return t
}

// effectiveLimit resolves the configured daily-loss limit in money terms.
// When both an absolute and a percent limit are set, the tighter one wins.
func (t *tenantCompliance) effectiveLimit() float64 {
	abs := t.cfg.DailyLossLimit
	pct := 0.0
	if t.cfg.DailyLossPercent > 0 && t.state.Balance > 0 {
		pct = t.state.Balance * t.cfg.DailyLossPercent / 100
	}
	switch {
	case abs > 0 && pct > 0:
		if abs < pct {
			return abs
		}
		return pct
	case abs > 0:
		return abs
	default:
		return pct
	}
}

// OnAccountUpdate folds an account snapshot into the tenant's daily state
// and returns the new status plus whether a close-all directive must be
// emitted now. The directive fires at most once per day per tenant.
func (m *ComplianceMonitor) OnAccountUpdate(tenantKey string, balance, realizedLoss, floatingPL float64) (domain.ComplianceStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.tenantLocked(tenantKey)
	t.state.Balance = balance
	t.state.RealizedLoss = realizedLoss
	t.state.FloatingLoss = 0
	if floatingPL < 0 {
		t.state.FloatingLoss = -floatingPL
	}

	totalLoss := t.state.RealizedLoss
	if t.cfg.IncludeFloating {
		totalLoss += t.state.FloatingLoss
	}

	limit := t.effectiveLimit()
	status := domain.StatusSafe
	if limit > 0 {
		switch {
		case totalLoss >= limit:
			status = domain.StatusLimitHit
		case totalLoss >= 0.8*limit:
			status = domain.StatusWarning
		}
	}

	// Monotonic within the day: never downgrade.
	if rank(status) > rank(t.state.Status) {
		t.state.Status = status
		m.logger.Warn("compliance status escalated",
			zap.String("tenant", domain.NormalizeTenantKey(tenantKey)),
			zap.String("status", string(status)),
			zap.Float64("total_loss", totalLoss),
			zap.Float64("limit", limit))
	}

	emitCloseAll := false
	if t.state.Status == domain.StatusLimitHit && t.cfg.CloseOpenTrades && !t.closeAllSent {
		t.closeAllSent = true
		emitCloseAll = true
	}
	return t.state.Status, emitCloseAll
}

// OnNewsUpdate records proximity to the next high-impact event. Only
// high-impact news within the configured lead time blocks trading.
func (m *ComplianceMonitor) OnNewsUpdate(tenantKey string, news domain.NewsPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.tenantLocked(tenantKey)
	highImpact := strings.EqualFold(news.Impact, "high")
	t.state.NewsBlocked = t.cfg.NewsLeadMinutes > 0 &&
		highImpact &&
		news.MinutesUntilEvent >= 0 &&
		news.MinutesUntilEvent <= t.cfg.NewsLeadMinutes
}

// CheckOrderAllowed gates a submit-order call. The reason code is empty
// when the order may proceed; otherwise it is a machine-readable rejection
// reason, never an error.
func (m *ComplianceMonitor) CheckOrderAllowed(tenantKey string) (allowed bool, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.tenantLocked(tenantKey)
	if t.state.NewsBlocked {
		return false, domain.ReasonNewsBlock
	}
	if t.state.Status == domain.StatusLimitHit && t.cfg.PreventNewTrades {
		return false, domain.ReasonDailyLossLimit
	}
	return true, ""
}

// Status returns the current derived state for a tenant key.
func (m *ComplianceMonitor) Status(tenantKey string) domain.ComplianceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tenantLocked(tenantKey).state
}

// Reset clears the daily latch for a tenant at the day boundary. The
// configured limits survive; only running state resets.
func (m *ComplianceMonitor) Reset(tenantKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.tenantLocked(tenantKey)
	balance := t.state.Balance
	t.state = domain.ComplianceState{Status: domain.StatusSafe, Balance: balance}
	t.closeAllSent = false
	m.logger.Info("compliance state reset", zap.String("tenant", domain.NormalizeTenantKey(tenantKey)))
}

func rank(s domain.ComplianceStatus) int {
	switch s {
	case domain.StatusLimitHit:
		return 2
	case domain.StatusWarning:
		return 1
	default:
		return 0
	}
}
