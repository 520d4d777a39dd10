package broadcast

import (
	"strings"

	"github.com/hbollon/go-edlib"
)

// DefaultMatchThreshold is the minimum similarity for a fuzzy scene match.
const DefaultMatchThreshold = 0.6

// MatchScene returns the candidate most similar to requested, compared
// case-insensitively with normalised Damerau-Levenshtein similarity.
//
// Parameters:
//   - requested: Scene name as configured
//   - candidates: Scene names reported by the software
//   - threshold: Minimum similarity in [0,1] for a candidate to be accepted
//
// Returns:
//   - string: The best candidate, or requested when none reaches threshold
//   - bool: true when a candidate was chosen
func MatchScene(requested string, candidates []string, threshold float64) (string, bool) {
	want := strings.ToLower(requested)

	best, bestScore := -1, float32(-1)
	for i, c := range candidates {
		score, err := edlib.StringsSimilarity(want, strings.ToLower(c), edlib.DamerauLevenshtein)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 || float64(bestScore) < threshold {
		return requested, false
	}
	return candidates[best], true
}
