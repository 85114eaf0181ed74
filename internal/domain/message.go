package domain

import "encoding/json"

// Envelope is the wire shape of every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an outbound envelope. Marshal failures
// collapse to an empty data field; payloads are plain structs and maps, so
// this does not happen in practice.
func NewEnvelope(msgType string, payload interface{}) Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{Type: msgType}
	}
	return Envelope{Type: msgType, Data: data}
}

// Inbound message types.
const (
	MsgMTConnect          = "mt.connect"
	MsgMTTick             = "mt.tick"
	MsgMTPing             = "mt.ping"
	MsgAccountStatus      = "account.status"
	MsgAccountReset       = "account.reset"
	MsgPositionStatus     = "position.status"
	MsgTradeExecute       = "trade.execute"
	MsgTradeClose         = "trade.close"
	MsgTradeModify        = "trade.modify"
	MsgSettingsAuto       = "settings.automation"
	MsgSettingsCompliance = "settings.compliance"
	MsgNewsUpdate         = "news.update"
	MsgAISignal           = "ai.signal"
	MsgStatusGet          = "status.get"
)

// Outbound message types.
const (
	MsgMTPong            = "mt.pong"
	MsgTradeOpen         = "trade.open"
	MsgTradeModifyStop   = "trade.modifystop"
	MsgTradePartialClose = "trade.partialclose"
	MsgTradeCloseAll     = "trade.closeall"
	MsgTradeResult       = "trade.result"
	MsgComplianceStatus  = "compliance.status"
	MsgBridgeOffline     = "bridge.offline"
	MsgSettingsAck       = "settings.ack"
	MsgStatusReport      = "status.report"
	MsgError             = "error"
)

// Rejection reason codes. Returned in trade.result payloads; these are
// policy outcomes, not errors.
const (
	ReasonDailyLossLimit = "daily_loss_limit"
	ReasonNewsBlock      = "news_block"
	ReasonZeroLotSize    = "zero_lot_size"
	ReasonInvalidPlan    = "invalid_plan"
)

// ErrorPayload is the data of an "error" envelope.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TickPayload is the data of an "mt.tick" envelope.
type TickPayload struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// PositionState describes one open position as reported by a bridge.
type PositionState struct {
	Ticket    string    `json:"ticket"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Lots      float64   `json:"lots"`
	OpenPrice float64   `json:"open_price"`
	StopLoss  float64   `json:"stop_loss"`
	Profit    float64   `json:"profit"`
}

// PositionStatusPayload is the data of a "position.status" envelope.
type PositionStatusPayload struct {
	Positions []PositionState `json:"positions"`
}

// NewsPayload is the data of a "news.update" envelope.
type NewsPayload struct {
	MinutesUntilEvent float64 `json:"minutes_until_event"`
	Impact            string  `json:"impact"`
	Title             string  `json:"title,omitempty"`
}

// StopModifyDirective instructs a bridge to move a position's stop loss.
type StopModifyDirective struct {
	Ticket   string  `json:"ticket"`
	Symbol   string  `json:"symbol"`
	StopLoss float64 `json:"stop_loss"`
}

// PartialCloseDirective instructs a bridge to close part of a position.
type PartialCloseDirective struct {
	Ticket  string  `json:"ticket"`
	Symbol  string  `json:"symbol"`
	Lots    float64 `json:"lots"`
	Percent float64 `json:"percent"`
	Price   float64 `json:"price"`
}

// CloseAllDirective instructs a bridge to flatten every open position.
type CloseAllDirective struct {
	Reason string `json:"reason"`
}

// TradeResult is the accept/reject reply to a trade.execute submission.
type TradeResult struct {
	Accepted bool       `json:"accepted"`
	Reason   string     `json:"reason,omitempty"`
	Plan     *TradePlan `json:"plan,omitempty"`
}
