package stages

import (
	"fmt"
	"strconv"
	"strings"
)

// Grid dimensions: 8 worlds of 4 stages each.
const (
	NumWorlds = 8
	NumStages = 4
)

// StageID formats a (world, stage) pair as the canonical "w-s" identifier.
func StageID(world, stage int) string {
	return fmt.Sprintf("%d-%d", world, stage)
}

// ParseStageID resolves a "w-s" identifier to its (world, stage) pair.
// Malformed identifiers are accepted at construction and only rejected
// here, when a reset actually tries to resolve one.
func ParseStageID(id string) (world, stage int, err error) {
	a, b, ok := strings.Cut(id, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed stage id %q", id)
	}
	world, err = strconv.Atoi(a)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed stage id %q: %w", id, err)
	}
	stage, err = strconv.Atoi(b)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed stage id %q: %w", id, err)
	}
	if world < 1 || world > NumWorlds {
		return 0, 0, fmt.Errorf("stage id %q: world out of range [1,%d]", id, NumWorlds)
	}
	if stage < 1 || stage > NumStages {
		return 0, 0, fmt.Errorf("stage id %q: stage out of range [1,%d]", id, NumStages)
	}
	return world, stage, nil
}
