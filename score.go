package main

// Score bands used by the result and history views.
const (
	scoreBandLow      = "low"
	scoreBandModerate = "moderate"
	scoreBandHigh     = "high"
)

// scoreBand buckets a deception score: below 30 is low, below 60 moderate.
func scoreBand(score int) string {
	switch {
	case score < 30:
		return scoreBandLow
	case score < 60:
		return scoreBandModerate
	default:
		return scoreBandHigh
	}
}

// honestyScore is the complement shown next to the deception score.
func honestyScore(score int) int {
	return 100 - score
}
