package domain

import (
	"math"
	"strings"
)

// InstrumentClass is a coarse family hint derived from the symbol name.
type InstrumentClass string

const (
	ClassForex  InstrumentClass = "forex"
	ClassYen    InstrumentClass = "yen"
	ClassMetal  InstrumentClass = "metal"
	ClassCrypto InstrumentClass = "crypto"
)

// Quantum describes the standardized price increment of an instrument
// family: the unit one pip represents and the display precision that goes
// with it.
type Quantum struct {
	Unit          float64
	DisplayDigits int
	Class         InstrumentClass
}

var metalHints = []string{"XAU", "XAG", "GOLD", "SILVER"}
var cryptoHints = []string{"BTC", "ETH", "LTC", "XRP", "DOGE", "SOL"}

// QuantumFor classifies a symbol by substring and returns its quantum.
// Total: anything unrecognized falls back to the 4-decimal forex quantum.
// Every client and the relay must agree on these values, so they are fixed
// constants rather than broker-supplied metadata.
func QuantumFor(symbol string) Quantum {
	s := strings.ToUpper(symbol)
	for _, hint := range metalHints {
		if strings.Contains(s, hint) {
			return Quantum{Unit: 0.1, DisplayDigits: 2, Class: ClassMetal}
		}
	}
	for _, hint := range cryptoHints {
		if strings.Contains(s, hint) {
			return Quantum{Unit: 1.0, DisplayDigits: 2, Class: ClassCrypto}
		}
	}
	if strings.Contains(s, "JPY") {
		return Quantum{Unit: 0.01, DisplayDigits: 3, Class: ClassYen}
	}
	return Quantum{Unit: 0.0001, DisplayDigits: 5, Class: ClassForex}
}

// PipsBetween returns the non-negative distance between two prices in
// quantum units of the symbol.
func PipsBetween(priceA, priceB float64, symbol string) float64 {
	return math.Abs(priceA-priceB) / QuantumFor(symbol).Unit
}

// PipValuePerLot is the money value of one pip for one standard lot. Forex
// and metals settle at 10 per pip per lot; crypto CFDs at 1. The same
// constants are hardcoded in the bridge advisors, so lot sizing agrees
// across every client.
func PipValuePerLot(symbol string) float64 {
	if QuantumFor(symbol).Class == ClassCrypto {
		return 1.0
	}
	return 10.0
}
