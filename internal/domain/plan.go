package domain

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

type EntryType string

const (
	EntryMarket  EntryType = "market"
	EntryPending EntryType = "pending"
)

// RiskType selects how the risk budget of a plan is expressed.
type RiskType string

const (
	RiskPercent RiskType = "percent" // percent of account balance
	RiskMoney   RiskType = "money"   // fixed money amount
)

// TradePlan describes an intended or open position. Clients construct it;
// the risk calculator validates and enriches it. Once submitted as an order
// it is treated as immutable — modifications require a new plan.
type TradePlan struct {
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	EntryType  EntryType `json:"entry_type"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	LotSize    float64   `json:"lot_size"`
	RiskType   RiskType  `json:"risk_type"`
	RiskValue  float64   `json:"risk_value"`

	// Enrichment filled in by the calculator.
	StopPips   float64 `json:"stop_pips,omitempty"`
	TargetPips float64 `json:"target_pips,omitempty"`
}

// TargetMode selects how a default take-profit is derived.
type TargetMode string

const (
	TargetRatio      TargetMode = "ratio"       // stop distance x reward:risk
	TargetFixedMoney TargetMode = "fixed_money" // money amount at given lot size
	TargetFixedPips  TargetMode = "fixed_pips"  // flat pip distance
)

// TargetPolicy parameterizes computeAutoTakeProfit.
type TargetPolicy struct {
	Mode    TargetMode `json:"mode" yaml:"mode"`
	RR      float64    `json:"rr,omitempty" yaml:"rr"`
	Amount  float64    `json:"amount,omitempty" yaml:"amount"`
	LotSize float64    `json:"lot_size,omitempty" yaml:"lot_size"`
	Pips    float64    `json:"pips,omitempty" yaml:"pips"`
}
