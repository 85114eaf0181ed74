package domain

// TriggerMode selects how a ladder level expresses its trigger.
type TriggerMode string

const (
	TriggerPips  TriggerMode = "pips"  // distance from entry in quantum units
	TriggerPrice TriggerMode = "price" // absolute price
)

// ExitLevel is one rung of a partial-exit ladder. Percent is of the
// ORIGINAL position size, in (0,100].
type ExitLevel struct {
	Mode      TriggerMode `json:"mode"`
	Value     float64     `json:"value"`
	Percent   float64     `json:"percent"`
	Price     float64     `json:"price,omitempty"` // resolved absolute price
	Pips      float64     `json:"pips,omitempty"`  // resolved pip distance
	Triggered bool        `json:"triggered"`
}

// ExitLadder is an ordered partial-exit configuration. Levels may only be
// edited while inactive; activation freezes the set used to arm triggers.
type ExitLadder struct {
	Active bool        `json:"active"`
	Levels []ExitLevel `json:"levels"`
}

// Valid reports whether the ladder can be activated: at least one level,
// every percent in (0,100]. Percents need not sum to 100.
func (l ExitLadder) Valid() bool {
	if len(l.Levels) == 0 {
		return false
	}
	for _, lv := range l.Levels {
		if lv.Percent <= 0 || lv.Percent > 100 {
			return false
		}
	}
	return true
}
