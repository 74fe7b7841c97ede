// Package scoring maps a run's raw numbers to its ranking metric.
package scoring

// Penalty tuning: the first FreeMistakes mistakes cost nothing, every
// mistake beyond that and every hint adds PenaltyMs.
const (
	PenaltyMs    = 30000
	FreeMistakes = 3
)

// FinalMs computes the penalty-adjusted final time in milliseconds.
// Integer milliseconds in, integer milliseconds out, no upper bound.
func FinalMs(elapsedMs, mistakes, hints int) int {
	penalized := mistakes - FreeMistakes
	if penalized < 0 {
		penalized = 0
	}
	return elapsedMs + PenaltyMs*penalized + PenaltyMs*hints
}
