package domain

import (
	"strings"
	"time"
)

// Category classifies a connected client.
type Category string

const (
	CategoryBridgeV1       Category = "bridge-v1"
	CategoryBridgeV2       Category = "bridge-v2"
	CategoryControlDesktop Category = "control-desktop"
	CategoryControlMobile  Category = "control-mobile"
)

// Categories lists every valid category in a stable order.
var Categories = []Category{
	CategoryBridgeV1,
	CategoryBridgeV2,
	CategoryControlDesktop,
	CategoryControlMobile,
}

// ParseCategory maps a handshake header value to a Category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return known, true
		}
	}
	return "", false
}

// IsBridge reports whether the category is an execution bridge generation.
func (c Category) IsBridge() bool {
	return c == CategoryBridgeV1 || c == CategoryBridgeV2
}

// DefaultTenantKey is used when a client connects without a magic key.
const DefaultTenantKey = "DEFAULT"

// NormalizeTenantKey folds a magic key to its canonical form. Keys are
// case-insensitive; an empty key maps to DefaultTenantKey.
func NormalizeTenantKey(key string) string {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return DefaultTenantKey
	}
	return key
}

// AccountSnapshot is the last account state reported by a bridge.
type AccountSnapshot struct {
	Balance       float64 `json:"balance"`
	Equity        float64 `json:"equity"`
	FloatingPL    float64 `json:"floating_pl"`
	OpenPositions int     `json:"open_positions"`
}

// Transport is the write side of one physical client link. Writes are
// fire-and-forget: a failed or skipped write is not reported to callers.
type Transport interface {
	// WriteEnvelope sends one outbound envelope. Implementations must be
	// safe for concurrent use.
	WriteEnvelope(env Envelope) error
	// Writable reports whether the link is still able to accept writes.
	Writable() bool
	// Close tears the link down. Idempotent.
	Close() error
}

// Connection is one live client link tracked by the registry. Category and
// tenant key are fixed at handshake; Account and LastSeen are updated by
// inbound traffic.
type Connection struct {
	ID        string
	Category  Category
	TenantKey string
	Transport Transport

	Account  AccountSnapshot
	LastSeen time.Time
}
