package usecase

import (
	"math"

	"github.com/Akshayfx/trader-manager-sub000/internal/domain"
)

// Lot size bounds enforced by every broker we bridge to.
const (
	MinLotSize = 0.01
	MaxLotSize = 100.0
)

// lotEpsilon absorbs binary float noise before truncation. Stop distances
// arrive as price differences divided by the quantum unit, which leaves
// values like 20.000000000000018; without the epsilon that noise shaves a
// whole 0.01 lot step off the result.
const lotEpsilon = 1e-9

// PartialOfOriginalSize names the partial-close sizing policy: each ladder
// level closes a percentage of the ORIGINAL position size, not of whatever
// remains after earlier levels. The bridge advisors implement the same
// policy, so it must not change without coordinating a protocol bump.
const PartialOfOriginalSize = true

// RiskCalculator holds the position-sizing and target math shared by the
// relay and both control clients. Every method is pure: identical inputs
// give identical outputs on every call, with no clock or ambient state.
// Independent reimplementations on the clients must agree with this one
// bit-for-bit.
type RiskCalculator struct{}

func NewRiskCalculator() *RiskCalculator {
	return &RiskCalculator{}
}

// ResolveRiskBudget turns a plan's risk declaration into a money amount.
func (c *RiskCalculator) ResolveRiskBudget(riskType domain.RiskType, riskValue, balance float64) float64 {
	if riskType == domain.RiskPercent {
		return balance * riskValue / 100
	}
	return riskValue
}

// ComputeLotSize sizes a position from a money risk budget and a stop
// distance in quantum units. The result is truncated to two decimals and
// clamped to [MinLotSize, MaxLotSize]. A non-positive stop distance yields
// 0, meaning "cannot size — stop not set"; callers must not treat 0 as a
// valid order size.
func (c *RiskCalculator) ComputeLotSize(riskBudget, stopDistancePips float64, symbol string) float64 {
	if stopDistancePips <= 0 || riskBudget <= 0 {
		return 0
	}
	lots := riskBudget / (stopDistancePips * domain.PipValuePerLot(symbol))
	lots = math.Floor(lots*100+lotEpsilon) / 100
	if lots < MinLotSize {
		return MinLotSize
	}
	if lots > MaxLotSize {
		return MaxLotSize
	}
	return lots
}

// ComputeAutoTakeProfit derives a take-profit price from a target policy.
// Whatever the mode produces, the target is floored so the reward:risk
// ratio never drops below minRR. Returns the absolute price and the target
// distance in pips.
func (c *RiskCalculator) ComputeAutoTakeProfit(entry float64, direction domain.Direction, stopDistancePips float64, policy domain.TargetPolicy, minRR float64, symbol string) (price, targetPips float64) {
	switch policy.Mode {
	case domain.TargetFixedMoney:
		perPip := policy.LotSize * domain.PipValuePerLot(symbol)
		if perPip > 0 {
			targetPips = policy.Amount / perPip
		}
	case domain.TargetFixedPips:
		targetPips = policy.Pips
	default: // ratio
		targetPips = stopDistancePips * policy.RR
	}

	if stopDistancePips > 0 && minRR > 0 && targetPips/stopDistancePips < minRR {
		targetPips = stopDistancePips * minRR
	}

	unit := domain.QuantumFor(symbol).Unit
	if direction == domain.DirectionSell {
		price = entry - targetPips*unit
	} else {
		price = entry + targetPips*unit
	}
	return price, targetPips
}

// ComputePartialExitLadder resolves every ladder level to an absolute price
// and a pip distance from entry. Pip-mode levels are converted with the
// buy-plus/sell-minus convention; price-mode levels pass through but get
// their pip equivalent recomputed so displays agree everywhere.
func (c *RiskCalculator) ComputePartialExitLadder(entry float64, direction domain.Direction, symbol string, levels []domain.ExitLevel) []domain.ExitLevel {
	unit := domain.QuantumFor(symbol).Unit
	out := make([]domain.ExitLevel, len(levels))
	for i, lv := range levels {
		resolved := lv
		switch lv.Mode {
		case domain.TriggerPrice:
			resolved.Price = lv.Value
		default: // pips
			if direction == domain.DirectionSell {
				resolved.Price = entry - lv.Value*unit
			} else {
				resolved.Price = entry + lv.Value*unit
			}
		}
		resolved.Pips = domain.PipsBetween(resolved.Price, entry, symbol)
		out[i] = resolved
	}
	return out
}
