package usecase_test

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/Akshayfx/trader-manager-sub000/internal/domain"
	"github.com/Akshayfx/trader-manager-sub000/internal/usecase"
)

func newEngine() *usecase.AutomationEngine {
	return usecase.NewAutomationEngine(usecase.NewRiskCalculator(), zap.NewNop())
}

func breakevenSettings() domain.AutomationSettings {
	s := domain.DefaultAutomationSettings("ALPHA")
	s.Breakeven = domain.BreakevenPolicy{Enabled: true, TriggerPips: 10, OffsetPips: 2}
	return s
}

func buyPosition(ticket string, lots float64) domain.PositionState {
	return domain.PositionState{
		Ticket:    ticket,
		Symbol:    "EURUSD",
		Direction: domain.DirectionBuy,
		Lots:      lots,
		OpenPrice: 1.1000,
	}
}

func TestBreakevenFiresOncePerPosition(t *testing.T) {
	engine := newEngine()
	settings := breakevenSettings()
	engine.ObservePositions("ALPHA", []domain.PositionState{buyPosition("t1", 1.0)}, settings)

	tick := domain.TickPayload{Symbol: "EURUSD", Bid: 1.1012, Ask: 1.1013}

	out := engine.OnTick("ALPHA", tick, settings)
	if len(out) != 1 || out[0].Type != domain.MsgTradeModifyStop {
		t.Fatalf("want one stop-modify directive, got %v", out)
	}

	var directive domain.StopModifyDirective
	if err := json.Unmarshal(out[0].Data, &directive); err != nil {
		t.Fatal(err)
	}
	// Stop moves to entry plus the 2 pip offset.
	if directive.StopLoss < 1.10019 || directive.StopLoss > 1.10021 {
		t.Errorf("stop = %f, want 1.1002", directive.StopLoss)
	}

	// Repeated ticks above the threshold must not re-fire.
	for i := 0; i < 5; i++ {
		if out := engine.OnTick("ALPHA", tick, settings); len(out) != 0 {
			t.Fatalf("breakeven re-fired on tick %d: %v", i, out)
		}
	}
}

func TestBreakevenBelowTriggerDoesNotFire(t *testing.T) {
	engine := newEngine()
	settings := breakevenSettings()
	engine.ObservePositions("ALPHA", []domain.PositionState{buyPosition("t1", 1.0)}, settings)

	out := engine.OnTick("ALPHA", domain.TickPayload{Symbol: "EURUSD", Bid: 1.1005, Ask: 1.1006}, settings)
	if len(out) != 0 {
		t.Fatalf("fired below trigger: %v", out)
	}
}

func TestBreakevenDisabledDoesNotFire(t *testing.T) {
	engine := newEngine()
	settings := breakevenSettings()
	settings.Breakeven.Enabled = false
	engine.ObservePositions("ALPHA", []domain.PositionState{buyPosition("t1", 1.0)}, settings)

	out := engine.OnTick("ALPHA", domain.TickPayload{Symbol: "EURUSD", Bid: 1.1050, Ask: 1.1051}, settings)
	if len(out) != 0 {
		t.Fatalf("disabled automation fired: %v", out)
	}
}

func TestBreakevenRearmsAfterPositionCloses(t *testing.T) {
	engine := newEngine()
	settings := breakevenSettings()
	tick := domain.TickPayload{Symbol: "EURUSD", Bid: 1.1015, Ask: 1.1016}

	engine.ObservePositions("ALPHA", []domain.PositionState{buyPosition("t1", 1.0)}, settings)
	if out := engine.OnTick("ALPHA", tick, settings); len(out) != 1 {
		t.Fatalf("first arming did not fire: %v", out)
	}

	// Position closes, then a new ticket opens on the same symbol.
	engine.ObservePositions("ALPHA", nil, settings)
	engine.ObservePositions("ALPHA", []domain.PositionState{buyPosition("t2", 1.0)}, settings)

	out := engine.OnTick("ALPHA", tick, settings)
	if len(out) != 1 {
		t.Fatalf("re-armed automation did not fire for new ticket: %v", out)
	}
}

func TestBreakevenSellSide(t *testing.T) {
	engine := newEngine()
	settings := breakevenSettings()
	pos := domain.PositionState{
		Ticket:    "s1",
		Symbol:    "EURUSD",
		Direction: domain.DirectionSell,
		Lots:      0.5,
		OpenPrice: 1.1000,
	}
	engine.ObservePositions("ALPHA", []domain.PositionState{pos}, settings)

	// Sell closes at the ask; 12 pips in profit.
	out := engine.OnTick("ALPHA", domain.TickPayload{Symbol: "EURUSD", Bid: 1.0987, Ask: 1.0988}, settings)
	if len(out) != 1 {
		t.Fatalf("sell breakeven did not fire: %v", out)
	}
	var directive domain.StopModifyDirective
	if err := json.Unmarshal(out[0].Data, &directive); err != nil {
		t.Fatal(err)
	}
	// Offset locks profit below entry on a sell.
	if directive.StopLoss < 1.09979 || directive.StopLoss > 1.09981 {
		t.Errorf("stop = %f, want 1.0998", directive.StopLoss)
	}
}

func TestPartialLadderFiresPerLevelOnOriginalSize(t *testing.T) {
	engine := newEngine()
	settings := domain.DefaultAutomationSettings("ALPHA")
	settings.PartialTP = domain.PartialTPPolicy{
		Enabled: true,
		Ladder: domain.ExitLadder{
			Active: true,
			Levels: []domain.ExitLevel{
				{Mode: domain.TriggerPips, Value: 10, Percent: 50},
				{Mode: domain.TriggerPips, Value: 20, Percent: 50},
			},
		},
	}
	engine.ObservePositions("ALPHA", []domain.PositionState{buyPosition("t1", 2.0)}, settings)

	// First level crosses.
	out := engine.OnTick("ALPHA", domain.TickPayload{Symbol: "EURUSD", Bid: 1.1011, Ask: 1.1012}, settings)
	if len(out) != 1 || out[0].Type != domain.MsgTradePartialClose {
		t.Fatalf("want one partial close, got %v", out)
	}
	var d1 domain.PartialCloseDirective
	if err := json.Unmarshal(out[0].Data, &d1); err != nil {
		t.Fatal(err)
	}
	if d1.Lots != 1.0 {
		t.Errorf("level 1 lots = %f, want 1.00 (50%% of original)", d1.Lots)
	}

	// Same tick range again: level 1 stays triggered.
	if out := engine.OnTick("ALPHA", domain.TickPayload{Symbol: "EURUSD", Bid: 1.1011, Ask: 1.1012}, settings); len(out) != 0 {
		t.Fatalf("triggered level re-fired: %v", out)
	}

	// Second level crosses: still 50% of the ORIGINAL 2.0 lots, not of the
	// 1.0 remaining.
	out = engine.OnTick("ALPHA", domain.TickPayload{Symbol: "EURUSD", Bid: 1.1021, Ask: 1.1022}, settings)
	if len(out) != 1 {
		t.Fatalf("level 2 did not fire: %v", out)
	}
	var d2 domain.PartialCloseDirective
	if err := json.Unmarshal(out[0].Data, &d2); err != nil {
		t.Fatal(err)
	}
	if d2.Lots != 1.0 {
		t.Errorf("level 2 lots = %f, want 1.00 (50%% of original)", d2.Lots)
	}
}

func TestPartialLadderGapFiresBothLevels(t *testing.T) {
	engine := newEngine()
	settings := domain.DefaultAutomationSettings("ALPHA")
	settings.PartialTP = domain.PartialTPPolicy{
		Enabled: true,
		Ladder: domain.ExitLadder{
			Active: true,
			Levels: []domain.ExitLevel{
				{Mode: domain.TriggerPips, Value: 10, Percent: 25},
				{Mode: domain.TriggerPips, Value: 20, Percent: 25},
			},
		},
	}
	engine.ObservePositions("ALPHA", []domain.PositionState{buyPosition("t1", 1.0)}, settings)

	// One tick jumps past both levels.
	out := engine.OnTick("ALPHA", domain.TickPayload{Symbol: "EURUSD", Bid: 1.1025, Ask: 1.1026}, settings)
	if len(out) != 2 {
		t.Fatalf("want both levels to fire, got %d", len(out))
	}
}

func TestPartialLadderArmsForAlreadyOpenPosition(t *testing.T) {
	engine := newEngine()

	// Position opens before partial-TP is switched on.
	plain := domain.DefaultAutomationSettings("ALPHA")
	engine.ObservePositions("ALPHA", []domain.PositionState{buyPosition("t1", 2.0)}, plain)

	settings := plain
	settings.PartialTP = domain.PartialTPPolicy{
		Enabled: true,
		Ladder: domain.ExitLadder{
			Active: true,
			Levels: []domain.ExitLevel{{Mode: domain.TriggerPips, Value: 10, Percent: 50}},
		},
	}
	// Next snapshot carries the new settings for the same ticket.
	engine.ObservePositions("ALPHA", []domain.PositionState{buyPosition("t1", 2.0)}, settings)

	out := engine.OnTick("ALPHA", domain.TickPayload{Symbol: "EURUSD", Bid: 1.1011, Ask: 1.1012}, settings)
	if len(out) != 1 || out[0].Type != domain.MsgTradePartialClose {
		t.Fatalf("ladder enabled mid-flight did not fire: %v", out)
	}
	var d domain.PartialCloseDirective
	if err := json.Unmarshal(out[0].Data, &d); err != nil {
		t.Fatal(err)
	}
	if d.Lots != 1.0 {
		t.Errorf("lots = %f, want 1.00 (50%% of original)", d.Lots)
	}
}

func TestPartialLadderSkipsBelowMinimumLot(t *testing.T) {
	engine := newEngine()
	settings := domain.DefaultAutomationSettings("ALPHA")
	settings.PartialTP = domain.PartialTPPolicy{
		Enabled: true,
		Ladder: domain.ExitLadder{
			Active: true,
			Levels: []domain.ExitLevel{
				{Mode: domain.TriggerPips, Value: 10, Percent: 50},
				{Mode: domain.TriggerPips, Value: 20, Percent: 100},
			},
		},
	}
	// 50% of a 0.01-lot position rounds to nothing closeable.
	engine.ObservePositions("ALPHA", []domain.PositionState{buyPosition("t1", 0.01)}, settings)

	out := engine.OnTick("ALPHA", domain.TickPayload{Symbol: "EURUSD", Bid: 1.1011, Ask: 1.1012}, settings)
	if len(out) != 0 {
		t.Fatalf("sub-minimum partial close emitted: %v", out)
	}

	// The level is consumed, not retried; the 100% level still fires.
	out = engine.OnTick("ALPHA", domain.TickPayload{Symbol: "EURUSD", Bid: 1.1021, Ask: 1.1022}, settings)
	if len(out) != 1 {
		t.Fatalf("full-close level did not fire: %v", out)
	}
	var d domain.PartialCloseDirective
	if err := json.Unmarshal(out[0].Data, &d); err != nil {
		t.Fatal(err)
	}
	if d.Lots != 0.01 {
		t.Errorf("lots = %f, want 0.01", d.Lots)
	}
}

func TestApplyTargetDefault(t *testing.T) {
	engine := newEngine()
	settings := domain.DefaultAutomationSettings("ALPHA")
	settings.TargetDefault.Enabled = true

	plan := &domain.TradePlan{
		Symbol:     "EURUSD",
		Direction:  domain.DirectionBuy,
		EntryPrice: 1.1000,
		StopLoss:   1.0980, // 20 pips
	}
	engine.ApplyTargetDefault(plan, settings)

	// Default policy is ratio 2R.
	if plan.TakeProfit < 1.10399 || plan.TakeProfit > 1.10401 {
		t.Errorf("take profit = %f, want 1.1040", plan.TakeProfit)
	}
	if plan.TargetPips < 39.99 || plan.TargetPips > 40.01 {
		t.Errorf("target pips = %f, want 40", plan.TargetPips)
	}
}

func TestApplyTargetDefaultRespectsExplicitTarget(t *testing.T) {
	engine := newEngine()
	settings := domain.DefaultAutomationSettings("ALPHA")
	settings.TargetDefault.Enabled = true

	plan := &domain.TradePlan{
		Symbol:     "EURUSD",
		Direction:  domain.DirectionBuy,
		EntryPrice: 1.1000,
		StopLoss:   1.0980,
		TakeProfit: 1.1100,
	}
	engine.ApplyTargetDefault(plan, settings)
	if plan.TakeProfit != 1.1100 {
		t.Errorf("explicit take profit overwritten: %f", plan.TakeProfit)
	}
}

func TestTenantsAreIsolated(t *testing.T) {
	engine := newEngine()
	settings := breakevenSettings()
	engine.ObservePositions("ALPHA", []domain.PositionState{buyPosition("t1", 1.0)}, settings)

	// BETA's ticks must not drive ALPHA's positions.
	out := engine.OnTick("BETA", domain.TickPayload{Symbol: "EURUSD", Bid: 1.1050, Ask: 1.1051}, settings)
	if len(out) != 0 {
		t.Fatalf("cross-tenant fire: %v", out)
	}
}

func TestArmedLadderSnapshot(t *testing.T) {
	engine := newEngine()
	settings := domain.DefaultAutomationSettings("ALPHA")
	settings.PartialTP = domain.PartialTPPolicy{
		Enabled: true,
		Ladder: domain.ExitLadder{
			Active: true,
			Levels: []domain.ExitLevel{{Mode: domain.TriggerPips, Value: 10, Percent: 100}},
		},
	}
	engine.ObservePositions("ALPHA", []domain.PositionState{buyPosition("t1", 1.0)}, settings)

	ladder := engine.ArmedLadder("ALPHA", "EURUSD", "t1")
	if len(ladder) != 1 {
		t.Fatalf("want frozen ladder, got %v", ladder)
	}
	if ladder[0].Price < 1.10099 || ladder[0].Price > 1.10101 {
		t.Errorf("resolved price = %f, want 1.1010", ladder[0].Price)
	}
	if engine.ArmedLadder("ALPHA", "EURUSD", "ghost") != nil {
		t.Error("unknown ticket must return nil")
	}
}
