package stages

import (
	"math"
	"math/rand"
	"testing"
)

func TestWeightedChoice_DegenerateWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		idx, err := weightedChoice(rng, []float64{0, 0, 5})
		if err != nil {
			t.Fatalf("weightedChoice: %v", err)
		}
		if idx != 2 {
			t.Fatalf("picked zero-weight index %d", idx)
		}
	}
}

func TestWeightedChoice_RejectsBadWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := weightedChoice(rng, []float64{1, -1}); err == nil {
		t.Fatalf("negative weight accepted")
	}
	if _, err := weightedChoice(rng, []float64{0, 0}); err == nil {
		t.Fatalf("zero-sum weights accepted")
	}
	if _, err := weightedChoice(rng, nil); err == nil {
		t.Fatalf("empty weights accepted")
	}
}

func TestWeightedChoice_Proportions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const draws = 20000
	counts := [2]int{}
	for i := 0; i < draws; i++ {
		idx, err := weightedChoice(rng, []float64{1, 3})
		if err != nil {
			t.Fatalf("weightedChoice: %v", err)
		}
		counts[idx]++
	}
	got := float64(counts[1]) / draws
	if math.Abs(got-0.75) > 0.02 {
		t.Fatalf("index 1 frequency = %v, want ~0.75", got)
	}
}
