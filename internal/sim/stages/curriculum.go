package stages

import "math"

// CurriculumState tracks which prefix of the stage set is selectable and
// the bookkeeping that drives unlocking. It is owned by one Env; two
// wrapper instances never share counters.
type CurriculumState struct {
	// MaxUnlocked is the count of selectable stages. Monotonically
	// non-decreasing, bounded by the stage-set size.
	MaxUnlocked int

	// Weights has exactly MaxUnlocked entries.
	Weights []float64

	// CompletionCount and StepsTaken are parallel to the full stage set.
	CompletionCount []int
	StepsTaken      []int
}

func newCurriculumState(size, unlockStages int) CurriculumState {
	maxUnlocked := size
	if unlockStages > 0 {
		maxUnlocked = 1
	}
	w := make([]float64, maxUnlocked)
	for i := range w {
		w[i] = 1
	}
	return CurriculumState{
		MaxUnlocked:     maxUnlocked,
		Weights:         w,
		CompletionCount: make([]int, size),
		StepsTaken:      make([]int, size),
	}
}

// balanceWeights recomputes Weights from accumulated steps: stages with
// fewer steps get more sampling mass, and the newest unlocked stage gets
// an extra MaxUnlocked factor.
func (c *CurriculumState) balanceWeights() []float64 {
	w := make([]float64, c.MaxUnlocked)
	for i := range w {
		w[i] = 1e6 / (1 + math.Log(float64(c.StepsTaken[i])+1))
	}
	w[len(w)-1] *= float64(c.MaxUnlocked)
	c.Weights = w
	return w
}

// recordCompletion counts one flag on stage idx and unlocks the next stage
// once the completion count exceeds the threshold. Reports whether
// MaxUnlocked grew. Without step balancing, an unlock resets Weights to
// uniform with the newest entry weighted by the new MaxUnlocked.
func (c *CurriculumState) recordCompletion(idx, threshold int, balanceSteps bool) bool {
	c.CompletionCount[idx]++
	if c.CompletionCount[idx] <= threshold {
		return false
	}
	next := idx + 2
	if size := len(c.CompletionCount); next > size {
		next = size
	}
	if next <= c.MaxUnlocked {
		return false
	}
	c.MaxUnlocked = next
	if !balanceSteps {
		w := make([]float64, c.MaxUnlocked)
		for i := range w {
			w[i] = 1
		}
		w[len(w)-1] = float64(c.MaxUnlocked)
		c.Weights = w
	}
	return true
}
