package shop

import "strings"

// Mode selects which pricing and availability rules apply.
type Mode uint8

const (
	ModeBuying  Mode = iota // Shop sells to the shopper
	ModeSelling             // Shop buys back from the shopper
)

// String returns "buying" or "selling".
func (m Mode) String() string {
	switch m {
	case ModeBuying:
		return "buying"
	case ModeSelling:
		return "selling"
	default:
		return "unknown"
	}
}

// ParseMode converts "buying"/"selling" (or "buy"/"sell") to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buying", "buy":
		return ModeBuying, true
	case "selling", "sell":
		return ModeSelling, true
	}
	return ModeBuying, false
}

// Stat enumerates shopper attributes the shop consults.
type Stat uint8

const (
	// StatBuyingDiscountPercentage is the barter stat: percent off buy prices.
	StatBuyingDiscountPercentage Stat = iota
)
