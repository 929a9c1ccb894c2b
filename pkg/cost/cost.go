// Package cost converts provider token usage into USD for the audit ledger.
// All functions are pure.
package cost

import (
	"math"
	"strconv"
)

// Rates in pico-dollars (1e-12 USD) per single token. Integer arithmetic keeps
// ledger sums exact: 0.000125 USD per 1,000 input tokens and
// 0.000375 USD per 1,000 output tokens.
const (
	InputPicoPerToken  int64 = 125_000
	OutputPicoPerToken int64 = 375_000

	picoPerUSD = 1e12

	// LedgerDecimals is the scale of the cost_usd column.
	LedgerDecimals = 8
)

// Pico returns the exact cost of a call in pico-dollars.
// Negative token counts are treated as zero.
func Pico(tokensIn, tokensOut int) int64 {
	in := max(int64(tokensIn), 0)
	out := max(int64(tokensOut), 0)
	return in*InputPicoPerToken + out*OutputPicoPerToken
}

// Compute returns the USD cost of a call: in/1000*0.000125 + out/1000*0.000375.
func Compute(tokensIn, tokensOut int) float64 {
	return float64(Pico(tokensIn, tokensOut)) / picoPerUSD
}

// Round rounds usd to the ledger scale.
func Round(usd float64) float64 {
	const scale = 1e8
	return math.Round(usd*scale) / scale
}

// Format renders usd with exactly LedgerDecimals digits, as stored.
func Format(usd float64) string {
	return strconv.FormatFloat(usd, 'f', LedgerDecimals, 64)
}
