// Package score computes per-question scores. The same code runs on the
// player surface (provisional display) and inside the privileged submit
// operation (authoritative value), so the two can never disagree on the
// formula itself.
package score

// Scoring constants. Compile-time on purpose: client and server must agree.
const (
	// BaseScore is awarded for any correct validated answer.
	BaseScore = 100
	// PenaltyAmount is deducted per full-but-wrong attempt.
	PenaltyAmount = 15
	// TimeoutPenalty is the extra deduction for never answering.
	TimeoutPenalty = 2 * PenaltyAmount
	// BonusCutoffSeconds is the minimum time remaining to earn a speed bonus.
	BonusCutoffSeconds = 10
	// MaxTimeSeconds is the nominal round duration the formula was tuned for.
	MaxTimeSeconds = 30
)

// SpeedBonus returns the bonus for answering with timeRemaining seconds left.
// Zero below the cutoff, twice the remaining seconds otherwise. Monotonic
// non-decreasing in timeRemaining.
func SpeedBonus(timeRemaining int) int {
	if timeRemaining < BonusCutoffSeconds {
		return 0
	}
	return timeRemaining * 2
}

// FinalScore returns the score delta for a correct validated answer. The
// result may be negative when penalties outweigh the base; there is no floor
// here (the cumulative player score is clamped by the submit operation
// instead).
func FinalScore(timeRemaining, penaltyCount int) int {
	return BaseScore + SpeedBonus(timeRemaining) - penaltyCount*PenaltyAmount
}

// TimeoutScore returns the score delta for a round that ended by timer
// expiry: no base, no bonus, accumulated penalties plus a heavier timeout
// penalty.
func TimeoutScore(penaltyCount int) int {
	return -(penaltyCount*PenaltyAmount + TimeoutPenalty)
}
