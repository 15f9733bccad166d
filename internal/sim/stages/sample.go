package stages

import (
	"fmt"
	"math/rand"
)

// weightedChoice draws one index with probability proportional to the
// given weights (normalized to sum 1).
func weightedChoice(rng *rand.Rand, weights []float64) (int, error) {
	var sum float64
	for i, w := range weights {
		if w < 0 {
			return 0, fmt.Errorf("negative weight %v at index %d", w, i)
		}
		sum += w
	}
	if sum <= 0 {
		return 0, fmt.Errorf("weights sum to %v", sum)
	}
	r := rng.Float64() * sum
	for i, w := range weights {
		r -= w
		if r < 0 {
			return i, nil
		}
	}
	return len(weights) - 1, nil
}
