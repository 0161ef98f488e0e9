package attendance

import "rotary-ams-gateway/internal/model"

// StreakThreshold is the number of consecutive absences that triggers highlighting.
const StreakThreshold = 3

// ConsecutiveAbsences returns, for each position of statuses, whether the cell
// is part of a run of at least StreakThreshold absences.
//
// Every time the running count reaches the threshold the current position and
// the two before it are marked, so a long run ends up marked from its first
// absence onwards.
func ConsecutiveAbsences(statuses []model.Status) []bool {
	highlighted := make([]bool, len(statuses))
	count := 0
	for i, status := range statuses {
		if status.Normalize() != model.StatusAbsent {
			count = 0
			continue
		}
		count++
		if count < StreakThreshold {
			continue
		}
		for j := i - (StreakThreshold - 1); j <= i; j++ {
			if j >= 0 {
				highlighted[j] = true
			}
		}
	}
	return highlighted
}
