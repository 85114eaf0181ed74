package usecase

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/Akshayfx/trader-manager-sub000/internal/domain"
)

// scopeKey identifies one automation scope: tenant x symbol x ticket.
type scopeKey struct {
	tenant string
	symbol string
	ticket string
}

// positionState is the armed automation state for one open position.
// A position arms when it first appears in a position.status snapshot and
// re-arms (fresh state) when its ticket disappears and reappears.
type positionState struct {
	direction    domain.Direction
	entry        float64
	originalLots float64

	breakevenFired bool
	ladder         []domain.ExitLevel
}

// AutomationEngine runs the protective automations: auto-breakeven,
// partial take-profit ladders, and take-profit defaulting. Transitions for
// a scope are serialized under the engine mutex, so two concurrent ticks
// cannot both observe "armed" and double-fire a directive.
type AutomationEngine struct {
	calc   *RiskCalculator
	logger *zap.Logger

	mu     sync.Mutex
	states map[scopeKey]*positionState
}

func NewAutomationEngine(calc *RiskCalculator, logger *zap.Logger) *AutomationEngine {
	return &AutomationEngine{
		calc:   calc,
		logger: logger,
		states: make(map[scopeKey]*positionState),
	}
}

// ObservePositions reconciles the engine against a bridge position
// snapshot. New tickets arm with their original size and, when partial-TP
// is enabled, a frozen copy of the resolved ladder. Tickets missing from
// the snapshot are discarded so the next position under the same symbol
// starts over.
func (e *AutomationEngine) ObservePositions(tenantKey string, positions []domain.PositionState, settings domain.AutomationSettings) {
	tenantKey = domain.NormalizeTenantKey(tenantKey)

	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[scopeKey]bool, len(positions))
	for _, pos := range positions {
		key := scopeKey{tenant: tenantKey, symbol: pos.Symbol, ticket: pos.Ticket}
		seen[key] = true
		if state, ok := e.states[key]; ok {
			// Partial-TP enabled after the position opened: activation
			// happens on the next snapshot, freezing the ladder then.
			if state.ladder == nil && settings.PartialTP.Enabled && settings.PartialTP.Ladder.Valid() {
				state.ladder = e.calc.ComputePartialExitLadder(state.entry, state.direction, key.symbol, settings.PartialTP.Ladder.Levels)
			}
			continue
		}
		state := &positionState{
			direction:    pos.Direction,
			entry:        pos.OpenPrice,
			originalLots: pos.Lots,
		}
		if settings.PartialTP.Enabled && settings.PartialTP.Ladder.Valid() {
			// Activation freezes the ladder configuration for this position.
			state.ladder = e.calc.ComputePartialExitLadder(pos.OpenPrice, pos.Direction, pos.Symbol, settings.PartialTP.Ladder.Levels)
		}
		e.states[key] = state
		e.logger.Debug("automation armed",
			zap.String("tenant", tenantKey),
			zap.String("symbol", pos.Symbol),
			zap.String("ticket", pos.Ticket))
	}

	for key := range e.states {
		if key.tenant == tenantKey && !seen[key] {
			delete(e.states, key)
		}
	}
}

// OnTick evaluates every armed automation for (tenant, symbol) against a
// new price and returns the directives to forward to the bridge. Each
// automation fires at most once per position per arming; disabling a
// toggle stops future checks but does not retract anything already
// emitted.
func (e *AutomationEngine) OnTick(tenantKey string, tick domain.TickPayload, settings domain.AutomationSettings) []domain.Envelope {
	tenantKey = domain.NormalizeTenantKey(tenantKey)

	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.Envelope
	unit := domain.QuantumFor(tick.Symbol).Unit

	for key, state := range e.states {
		if key.tenant != tenantKey || key.symbol != tick.Symbol {
			continue
		}

		// Positions are valued at the price that would close them.
		closePrice := tick.Bid
		if state.direction == domain.DirectionSell {
			closePrice = tick.Ask
		}
		profitPips := (closePrice - state.entry) / unit
		if state.direction == domain.DirectionSell {
			profitPips = -profitPips
		}

		if settings.Breakeven.Enabled && !state.breakevenFired && profitPips >= settings.Breakeven.TriggerPips {
			state.breakevenFired = true
			newStop := state.entry + settings.Breakeven.OffsetPips*unit
			if state.direction == domain.DirectionSell {
				newStop = state.entry - settings.Breakeven.OffsetPips*unit
			}
			out = append(out, domain.NewEnvelope(domain.MsgTradeModifyStop, domain.StopModifyDirective{
				Ticket:   key.ticket,
				Symbol:   key.symbol,
				StopLoss: newStop,
			}))
			e.logger.Info("breakeven triggered",
				zap.String("tenant", tenantKey),
				zap.String("ticket", key.ticket),
				zap.Float64("profit_pips", profitPips))
		}

		if settings.PartialTP.Enabled {
			for i := range state.ladder {
				lv := &state.ladder[i]
				if lv.Triggered {
					continue
				}
				crossed := closePrice >= lv.Price
				if state.direction == domain.DirectionSell {
					crossed = closePrice <= lv.Price
				}
				if !crossed {
					continue
				}
				lv.Triggered = true
				// Sized against the original position, not the remainder.
				lots := math.Floor(state.originalLots*lv.Percent+lotEpsilon) / 100
				if lots < MinLotSize {
					// A 0.01-lot position has nothing to peel off below
					// 100%; consume the level without a directive.
					e.logger.Debug("partial level below broker minimum",
						zap.String("tenant", tenantKey),
						zap.String("ticket", key.ticket),
						zap.Float64("percent", lv.Percent))
					continue
				}
				out = append(out, domain.NewEnvelope(domain.MsgTradePartialClose, domain.PartialCloseDirective{
					Ticket:  key.ticket,
					Symbol:  key.symbol,
					Lots:    lots,
					Percent: lv.Percent,
					Price:   lv.Price,
				}))
				e.logger.Info("partial exit triggered",
					zap.String("tenant", tenantKey),
					zap.String("ticket", key.ticket),
					zap.Float64("price", lv.Price),
					zap.Float64("percent", lv.Percent))
			}
		}
	}
	return out
}

// ApplyTargetDefault populates the take-profit of a plan that has none,
// when the target-default automation is enabled. Plans with an explicit
// target are left alone.
func (e *AutomationEngine) ApplyTargetDefault(plan *domain.TradePlan, settings domain.AutomationSettings) {
	if !settings.TargetDefault.Enabled || plan.TakeProfit != 0 {
		return
	}
	stopPips := domain.PipsBetween(plan.EntryPrice, plan.StopLoss, plan.Symbol)
	price, targetPips := e.calc.ComputeAutoTakeProfit(
		plan.EntryPrice, plan.Direction, stopPips,
		settings.TargetDefault.Policy, settings.TargetDefault.MinRR, plan.Symbol)
	plan.TakeProfit = price
	plan.TargetPips = targetPips
}

// ArmedLadder returns the frozen ladder for one position, for chart-side
// display. Nil when the scope is not armed.
func (e *AutomationEngine) ArmedLadder(tenantKey, symbol, ticket string) []domain.ExitLevel {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.states[scopeKey{tenant: domain.NormalizeTenantKey(tenantKey), symbol: symbol, ticket: ticket}]
	if !ok || state.ladder == nil {
		return nil
	}
	out := make([]domain.ExitLevel, len(state.ladder))
	copy(out, state.ladder)
	return out
}
