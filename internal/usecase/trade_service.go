package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Akshayfx/trader-manager-sub000/internal/domain"
)

// TradeService orchestrates the relay core: it owns the dispatch table,
// validates and enriches trade plans, drives the protective automations
// from the bridge price/position stream, and gates submissions through the
// compliance monitor.
type TradeService struct {
	registry   *Registry
	router     *Router
	calc       *RiskCalculator
	automation *AutomationEngine
	compliance *ComplianceMonitor
	settings   domain.SettingsRepository
	logger     *zap.Logger

	mu                 sync.RWMutex
	settingsCache      map[string]domain.AutomationSettings
	automationDefaults *domain.AutomationSettings
}

func NewTradeService(
	registry *Registry,
	router *Router,
	calc *RiskCalculator,
	automation *AutomationEngine,
	compliance *ComplianceMonitor,
	settings domain.SettingsRepository,
	logger *zap.Logger,
) *TradeService {
	s := &TradeService{
		registry:      registry,
		router:        router,
		calc:          calc,
		automation:    automation,
		compliance:    compliance,
		settings:      settings,
		logger:        logger,
		settingsCache: make(map[string]domain.AutomationSettings),
	}
	s.routes(router)
	return s
}

// routes installs one handler per message type. Explicit table, no
// fallthrough: every type, ai.signal included, has its own entry.
func (s *TradeService) routes(rt *Router) {
	rt.Handle(domain.MsgMTConnect, s.handleBridgeConnect)
	rt.Handle(domain.MsgMTTick, s.handleTick)
	rt.Handle(domain.MsgMTPing, s.handlePing)
	rt.Handle(domain.MsgAccountStatus, s.handleAccountStatus)
	rt.Handle(domain.MsgAccountReset, s.handleAccountReset)
	rt.Handle(domain.MsgPositionStatus, s.handlePositionStatus)
	rt.Handle(domain.MsgTradeExecute, s.handleTradeExecute)
	rt.Handle(domain.MsgTradeClose, s.handleBridgeCommand)
	rt.Handle(domain.MsgTradeModify, s.handleBridgeCommand)
	rt.Handle(domain.MsgSettingsAuto, s.handleAutomationSettings)
	rt.Handle(domain.MsgSettingsCompliance, s.handleComplianceSettings)
	rt.Handle(domain.MsgNewsUpdate, s.handleNewsUpdate)
	rt.Handle(domain.MsgAISignal, s.handleAISignal)
	rt.Handle(domain.MsgStatusGet, s.handleStatusGet)
}

// LoadSettings warms the per-tenant settings cache from the repository so
// automations keep their configuration across a relay restart.
func (s *TradeService) LoadSettings(ctx context.Context) error {
	all, err := s.settings.ListAutomation(ctx)
	if err != nil {
		return fmt.Errorf("load automation settings: %w", err)
	}
	s.mu.Lock()
	for _, settings := range all {
		s.settingsCache[settings.TenantKey] = settings
	}
	s.mu.Unlock()

	configs, err := s.settings.ListCompliance(ctx)
	if err != nil {
		return fmt.Errorf("load compliance configs: %w", err)
	}
	for _, cfg := range configs {
		s.compliance.Configure(cfg.TenantKey, cfg)
	}
	s.logger.Info("tenant settings loaded",
		zap.Int("automation_tenants", len(all)),
		zap.Int("compliance_tenants", len(configs)))
	return nil
}

// SetAutomationDefaults installs the operator-configured automation
// template handed to tenants seen for the first time.
func (s *TradeService) SetAutomationDefaults(template domain.AutomationSettings) {
	s.mu.Lock()
	s.automationDefaults = &template
	s.mu.Unlock()
}

// automationFor returns the cached settings for a tenant, provisioning
// defaults on first sight.
func (s *TradeService) automationFor(tenantKey string) domain.AutomationSettings {
	key := domain.NormalizeTenantKey(tenantKey)
	s.mu.RLock()
	settings, ok := s.settingsCache[key]
	s.mu.RUnlock()
	if ok {
		return settings
	}
	s.mu.Lock()
	if s.automationDefaults != nil {
		settings = *s.automationDefaults
		settings.TenantKey = key
	} else {
		settings = domain.DefaultAutomationSettings(key)
	}
	s.settingsCache[key] = settings
	s.mu.Unlock()
	return settings
}

// --- order submission ---

// SubmitOrder validates, gates, and enriches a trade plan, then routes the
// resulting open directive to the tenant's bridge. The returned TradeResult
// is always well-formed; policy rejections carry a reason code and are not
// errors.
func (s *TradeService) SubmitOrder(ctx context.Context, conn *domain.Connection, plan domain.TradePlan) domain.TradeResult {
	if plan.Symbol == "" || (plan.Direction != domain.DirectionBuy && plan.Direction != domain.DirectionSell) {
		return domain.TradeResult{Accepted: false, Reason: domain.ReasonInvalidPlan}
	}

	if allowed, reason := s.compliance.CheckOrderAllowed(conn.TenantKey); !allowed {
		s.logger.Info("order blocked by compliance",
			zap.String("tenant", conn.TenantKey),
			zap.String("reason", reason))
		return domain.TradeResult{Accepted: false, Reason: reason}
	}

	plan.StopPips = domain.PipsBetween(plan.EntryPrice, plan.StopLoss, plan.Symbol)
	if plan.StopLoss == 0 {
		plan.StopPips = 0
	}

	if plan.LotSize == 0 && plan.RiskType != "" {
		budget := s.calc.ResolveRiskBudget(plan.RiskType, plan.RiskValue, conn.Account.Balance)
		plan.LotSize = s.calc.ComputeLotSize(budget, plan.StopPips, plan.Symbol)
		if plan.LotSize == 0 {
			return domain.TradeResult{Accepted: false, Reason: domain.ReasonZeroLotSize}
		}
	}
	if plan.LotSize <= 0 {
		return domain.TradeResult{Accepted: false, Reason: domain.ReasonZeroLotSize}
	}

	settings := s.automationFor(conn.TenantKey)
	s.automation.ApplyTargetDefault(&plan, settings)

	env := domain.NewEnvelope(domain.MsgTradeOpen, plan)
	for _, category := range s.bridgeCategories(conn) {
		s.router.SendToBridge(env, category, conn.TenantKey)
	}
	s.logger.Info("order routed",
		zap.String("tenant", conn.TenantKey),
		zap.String("symbol", plan.Symbol),
		zap.String("direction", string(plan.Direction)),
		zap.Float64("lots", plan.LotSize))

	return domain.TradeResult{Accepted: true, Plan: &plan}
}

// bridgeCategories picks the bridge generations a command from conn should
// reach. Bridges address their own generation; control clients address
// every generation the tenant has live, defaulting to both when none is.
func (s *TradeService) bridgeCategories(conn *domain.Connection) []domain.Category {
	if conn.Category.IsBridge() {
		return []domain.Category{conn.Category}
	}
	var live []domain.Category
	for _, category := range []domain.Category{domain.CategoryBridgeV1, domain.CategoryBridgeV2} {
		if len(s.registry.Lookup(category, conn.TenantKey)) > 0 {
			live = append(live, category)
		}
	}
	if len(live) == 0 {
		return []domain.Category{domain.CategoryBridgeV1, domain.CategoryBridgeV2}
	}
	return live
}

// --- handlers ---

func (s *TradeService) handleBridgeConnect(ctx context.Context, conn *domain.Connection, env domain.Envelope) error {
	var snap domain.AccountSnapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		return fmt.Errorf("mt.connect payload: %w", err)
	}
	s.registry.UpdateAccount(conn.ID, snap)
	s.router.SendToControls(domain.NewEnvelope(domain.MsgAccountStatus, snap), conn.TenantKey)
	return nil
}

func (s *TradeService) handleTick(ctx context.Context, conn *domain.Connection, env domain.Envelope) error {
	var tick domain.TickPayload
	if err := json.Unmarshal(env.Data, &tick); err != nil {
		return fmt.Errorf("mt.tick payload: %w", err)
	}
	if tick.Symbol == "" {
		return fmt.Errorf("mt.tick payload: missing symbol")
	}

	settings := s.automationFor(conn.TenantKey)
	for _, directive := range s.automation.OnTick(conn.TenantKey, tick, settings) {
		s.router.SendToBridge(directive, conn.Category, conn.TenantKey)
	}

	s.router.SendToControls(env, conn.TenantKey)
	return nil
}

func (s *TradeService) handlePing(ctx context.Context, conn *domain.Connection, env domain.Envelope) error {
	s.registry.Touch(conn.ID)
	s.router.Send(conn, domain.NewEnvelope(domain.MsgMTPong, nil))
	return nil
}

func (s *TradeService) handleAccountStatus(ctx context.Context, conn *domain.Connection, env domain.Envelope) error {
	var payload struct {
		domain.AccountSnapshot
		RealizedLoss float64 `json:"realized_loss"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return fmt.Errorf("account.status payload: %w", err)
	}
	s.registry.UpdateAccount(conn.ID, payload.AccountSnapshot)

	status, emitCloseAll := s.compliance.OnAccountUpdate(conn.TenantKey,
		payload.Balance, payload.RealizedLoss, payload.FloatingPL)
	if emitCloseAll {
		closeAll := domain.NewEnvelope(domain.MsgTradeCloseAll, domain.CloseAllDirective{
			Reason: domain.ReasonDailyLossLimit,
		})
		for _, category := range s.bridgeCategories(conn) {
			s.router.SendToBridge(closeAll, category, conn.TenantKey)
		}
		s.logger.Warn("daily loss limit hit, close-all issued",
			zap.String("tenant", conn.TenantKey))
	}

	s.router.SendToControls(env, conn.TenantKey)
	s.router.SendToControls(domain.NewEnvelope(domain.MsgComplianceStatus, map[string]interface{}{
		"status": status,
	}), conn.TenantKey)
	return nil
}

func (s *TradeService) handleAccountReset(ctx context.Context, conn *domain.Connection, env domain.Envelope) error {
	s.compliance.Reset(conn.TenantKey)
	s.router.SendToControls(domain.NewEnvelope(domain.MsgComplianceStatus, map[string]interface{}{
		"status": domain.StatusSafe,
	}), conn.TenantKey)
	return nil
}

func (s *TradeService) handlePositionStatus(ctx context.Context, conn *domain.Connection, env domain.Envelope) error {
	var payload domain.PositionStatusPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return fmt.Errorf("position.status payload: %w", err)
	}
	settings := s.automationFor(conn.TenantKey)
	s.automation.ObservePositions(conn.TenantKey, payload.Positions, settings)
	s.router.SendToControls(env, conn.TenantKey)
	return nil
}

func (s *TradeService) handleTradeExecute(ctx context.Context, conn *domain.Connection, env domain.Envelope) error {
	var plan domain.TradePlan
	if err := json.Unmarshal(env.Data, &plan); err != nil {
		return fmt.Errorf("trade.execute payload: %w", err)
	}
	result := s.SubmitOrder(ctx, conn, plan)
	s.router.Send(conn, domain.NewEnvelope(domain.MsgTradeResult, result))
	return nil
}

// handleBridgeCommand relays close/modify commands from controls to the
// tenant's bridge untouched.
func (s *TradeService) handleBridgeCommand(ctx context.Context, conn *domain.Connection, env domain.Envelope) error {
	for _, category := range s.bridgeCategories(conn) {
		s.router.SendToBridge(env, category, conn.TenantKey)
	}
	return nil
}

func (s *TradeService) handleAutomationSettings(ctx context.Context, conn *domain.Connection, env domain.Envelope) error {
	var settings domain.AutomationSettings
	if err := json.Unmarshal(env.Data, &settings); err != nil {
		return fmt.Errorf("settings.automation payload: %w", err)
	}
	if settings.TenantKey == "" {
		settings.TenantKey = conn.TenantKey
	}
	settings.TenantKey = domain.NormalizeTenantKey(settings.TenantKey)
	if settings.PartialTP.Enabled && !settings.PartialTP.Ladder.Valid() {
		return fmt.Errorf("partial ladder needs at least one level with percent in (0,100]")
	}

	s.mu.Lock()
	s.settingsCache[settings.TenantKey] = settings
	s.mu.Unlock()

	if err := s.settings.SaveAutomation(ctx, settings); err != nil {
		// The toggle is live either way; persistence failure only costs
		// durability across restarts.
		s.logger.Error("failed to persist automation settings",
			zap.String("tenant", settings.TenantKey),
			zap.Error(err))
	}

	s.router.Send(conn, domain.NewEnvelope(domain.MsgSettingsAck, settings))
	return nil
}

func (s *TradeService) handleComplianceSettings(ctx context.Context, conn *domain.Connection, env domain.Envelope) error {
	var cfg domain.ComplianceConfig
	if err := json.Unmarshal(env.Data, &cfg); err != nil {
		return fmt.Errorf("settings.compliance payload: %w", err)
	}
	if cfg.TenantKey == "" {
		cfg.TenantKey = conn.TenantKey
	}
	cfg.TenantKey = domain.NormalizeTenantKey(cfg.TenantKey)
	if cfg.DailyLossLimit < 0 || cfg.DailyLossPercent < 0 || cfg.DailyLossPercent > 100 {
		return fmt.Errorf("daily loss limit must be non-negative, percent within [0,100]")
	}

	s.compliance.Configure(cfg.TenantKey, cfg)

	if err := s.settings.SaveCompliance(ctx, cfg); err != nil {
		// Limits are live either way; persistence failure only costs
		// durability across restarts.
		s.logger.Error("failed to persist compliance config",
			zap.String("tenant", cfg.TenantKey),
			zap.Error(err))
	}

	s.router.Send(conn, domain.NewEnvelope(domain.MsgSettingsAck, cfg))
	return nil
}

func (s *TradeService) handleNewsUpdate(ctx context.Context, conn *domain.Connection, env domain.Envelope) error {
	var news domain.NewsPayload
	if err := json.Unmarshal(env.Data, &news); err != nil {
		return fmt.Errorf("news.update payload: %w", err)
	}
	s.compliance.OnNewsUpdate(conn.TenantKey, news)
	s.router.SendToControls(env, conn.TenantKey)
	return nil
}

// handleAISignal relays analysis signals to the tenant's control clients.
func (s *TradeService) handleAISignal(ctx context.Context, conn *domain.Connection, env domain.Envelope) error {
	s.router.SendToControls(env, conn.TenantKey)
	return nil
}

func (s *TradeService) handleStatusGet(ctx context.Context, conn *domain.Connection, env domain.Envelope) error {
	counts := s.registry.Counts()
	payload := make(map[string]int, len(counts))
	for category, n := range counts {
		payload[string(category)] = n
	}
	s.router.Send(conn, domain.NewEnvelope(domain.MsgStatusReport, payload))
	return nil
}

// NotifyEvicted tells a tenant's control clients that one of its bridges
// was dropped by the liveness sweep.
func (s *TradeService) NotifyEvicted(evicted []*domain.Connection) {
	for _, conn := range evicted {
		if !conn.Category.IsBridge() {
			continue
		}
		s.router.SendToControls(domain.NewEnvelope(domain.MsgBridgeOffline, map[string]string{
			"category": string(conn.Category),
		}), conn.TenantKey)
	}
}
