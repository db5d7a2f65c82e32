package interview

// Coverage bounds used by the adaptive policy.
const (
	lowCoverage  = 0.5
	highCoverage = 0.9
)

// NextDifficulty is the adaptive difficulty policy. It is a pure function of
// the latest evaluation signals and the current difficulty:
//
//   - poor coverage or a below-threshold rating lowers difficulty one level;
//   - near-full coverage plus a rating clearing the threshold by the margin
//     raises it one level;
//   - anything else holds it constant.
func NextDifficulty(coverage, overall, threshold, margin float64, current Difficulty) Difficulty {
	switch {
	case coverage < lowCoverage || overall < threshold:
		return current.Lower()
	case coverage >= highCoverage && overall >= threshold+margin:
		return current.Raise()
	default:
		return current
	}
}

// ShouldProbe reports whether the policy wants the next question to be a
// follow-up on missing material, which is exactly the lowering branch of
// NextDifficulty.
func ShouldProbe(coverage, overall, threshold float64) bool {
	return coverage < lowCoverage || overall < threshold
}
