// Package stages selects, at episode boundaries, which pre-built level
// instance an agent interacts with, and optionally runs a curriculum that
// unlocks later stages as the agent finishes earlier ones.
package stages

import (
	"errors"
	"fmt"
	"image"
	"math/rand"

	"marioenv.ai/internal/sim/level"
)

// Render modes.
const (
	RenderNone     = ""
	RenderHuman    = "human"
	RenderRGBArray = "rgb_array"
)

var (
	ErrClosed        = errors.New("stages: env is closed")
	ErrNoActiveStage = errors.New("stages: no active stage, reset required")
)

// LevelEnv is the per-stage collaborator contract. level.Env satisfies it;
// tests substitute fakes.
type LevelEnv interface {
	Reset(seed *int64) (level.Obs, error)
	Step(action int) (level.StepResult, error)
	Render() (*image.RGBA, error)
	Screen() (*image.RGBA, error)
	GetActionMeanings() []string
	GetKeysToAction() map[string]int
	Close() error
}

// Viewer displays frames in human render mode. Optional; owned by the Env
// once injected and released on Close.
type Viewer interface {
	Update(*image.RGBA)
	Close() error
}

// Config are the construction parameters of the selector.
type Config struct {
	// RomMode is passed through to every level instance.
	RomMode string

	// Stages is the ordered set of selectable "w-s" identifiers. Empty
	// means uniform-random mode: all 32 instances are built and each
	// episode samples the full grid uniformly.
	Stages []string

	RenderMode string

	// UnlockStages enables the curriculum: the number of completions of a
	// stage required before the stage after it unlocks. Zero disables.
	UnlockStages int

	// BalanceSteps weights sampling toward stages with fewer accumulated
	// steps instead of using the static curriculum weights.
	BalanceSteps bool

	// Physics is forwarded to each level instance.
	Physics level.Physics

	// Viewer receives frames in human render mode.
	Viewer Viewer
}

// ResetOptions are the per-episode overrides. A nil Seed leaves the RNG
// untouched; a non-nil Stages replaces the stage set for this call only.
type ResetOptions struct {
	Seed   *int64
	Stages []string
}

// Env is the stage selector / curriculum wrapper. Single-threaded by
// design: parallel rollouts need independent Env values.
type Env struct {
	cfg  Config
	grid [NumWorlds][NumStages]LevelEnv
	rng  *rand.Rand
	cur  CurriculumState

	active      LevelEnv
	activeStage string
	activeIndex int // index into cfg.Stages; -1 in uniform mode
	episode     int

	viewer Viewer
	closed bool
}

type levelFactory func(level.Config) (LevelEnv, error)

func defaultFactory(cfg level.Config) (LevelEnv, error) {
	return level.New(cfg)
}

// New builds one level instance per named stage (all 32 in uniform-random
// mode) and initializes the curriculum counters.
func New(cfg Config) (*Env, error) {
	return newEnv(cfg, defaultFactory)
}

func newEnv(cfg Config, build levelFactory) (*Env, error) {
	switch cfg.RenderMode {
	case RenderNone, RenderHuman, RenderRGBArray:
	default:
		return nil, fmt.Errorf("invalid render mode %q", cfg.RenderMode)
	}
	if len(cfg.Stages) == 0 && (cfg.UnlockStages > 0 || cfg.BalanceSteps) {
		return nil, errors.New("curriculum requires a non-empty stage set")
	}

	e := &Env{
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(rand.Int63())),
		cur:         newCurriculumState(len(cfg.Stages), cfg.UnlockStages),
		activeIndex: -1,
		viewer:      cfg.Viewer,
	}

	want := func(world, stage int) bool {
		if len(cfg.Stages) == 0 {
			return true
		}
		id := StageID(world, stage)
		for _, s := range cfg.Stages {
			if s == id {
				return true
			}
		}
		return false
	}
	for world := 1; world <= NumWorlds; world++ {
		for stage := 1; stage <= NumStages; stage++ {
			if !want(world, stage) {
				continue
			}
			inst, err := build(level.Config{
				World:   world,
				Stage:   stage,
				RomMode: cfg.RomMode,
				Physics: cfg.Physics,
			})
			if err != nil {
				return nil, fmt.Errorf("build stage %s: %w", StageID(world, stage), err)
			}
			e.grid[world-1][stage-1] = inst
		}
	}
	return e, nil
}

// Seed reseeds the selector's random source and returns the seed applied.
// A nil seed is a no-op and returns an empty slice.
func (e *Env) Seed(seed *int64) []int64 {
	if seed == nil {
		return nil
	}
	e.rng = rand.New(rand.NewSource(*seed))
	return []int64{*seed}
}

// Curriculum exposes a copy of the current curriculum counters.
func (e *Env) Curriculum() CurriculumState {
	c := e.cur
	c.Weights = append([]float64(nil), e.cur.Weights...)
	c.CompletionCount = append([]int(nil), e.cur.CompletionCount...)
	c.StepsTaken = append([]int(nil), e.cur.StepsTaken...)
	return c
}

// ActiveStage returns the stage chosen by the last Reset and its index
// into the constructor stage set (-1 in uniform mode or before any reset).
func (e *Env) ActiveStage() (string, int) {
	return e.activeStage, e.activeIndex
}

// Episode returns the number of resets so far.
func (e *Env) Episode() int {
	return e.episode
}

// Reset picks the next stage, switches the active instance to it, and
// delegates the reset, returning the instance's observation unchanged.
func (e *Env) Reset(opts *ResetOptions) (level.Obs, error) {
	if e.closed {
		return level.Obs{}, ErrClosed
	}
	var seed *int64
	stageSet := e.cfg.Stages
	if opts != nil {
		seed = opts.Seed
		if opts.Stages != nil {
			stageSet = opts.Stages
		}
	}
	e.Seed(seed)

	var world, stage int
	if len(stageSet) > 0 {
		weights := e.cur.Weights
		if e.cfg.BalanceSteps {
			weights = e.cur.balanceWeights()
		}
		// Sample over the unlocked prefix. An override set shorter than the
		// prefix truncates the weights with it.
		n := e.cur.MaxUnlocked
		if n > len(stageSet) {
			n = len(stageSet)
		}
		stageSet = stageSet[:n]
		if len(weights) > n {
			weights = weights[:n]
		}
		if len(weights) != n {
			return level.Obs{}, fmt.Errorf("stage set size %d does not match %d weights", n, len(weights))
		}
		idx, err := weightedChoice(e.rng, weights)
		if err != nil {
			return level.Obs{}, err
		}
		chosen := stageSet[idx]
		var werr error
		if world, stage, werr = ParseStageID(chosen); werr != nil {
			return level.Obs{}, werr
		}
		e.activeStage = chosen
		e.activeIndex = -1
		for i, s := range e.cfg.Stages {
			if s == chosen {
				e.activeIndex = i
				break
			}
		}
		if e.activeIndex < 0 {
			return level.Obs{}, fmt.Errorf("stage %q not in the constructor stage set", chosen)
		}
	} else {
		world = 1 + e.rng.Intn(NumWorlds)
		stage = 1 + e.rng.Intn(NumStages)
		e.activeStage = StageID(world, stage)
		e.activeIndex = -1
	}

	inst := e.grid[world-1][stage-1]
	if inst == nil {
		return level.Obs{}, fmt.Errorf("no instance built for stage %s", StageID(world, stage))
	}
	e.active = inst
	e.episode++
	return inst.Reset(seed)
}

// Step delegates one frame to the active instance and updates the
// curriculum counters from the outcome.
func (e *Env) Step(action int) (level.StepResult, error) {
	if e.closed {
		return level.StepResult{}, ErrClosed
	}
	if e.active == nil {
		return level.StepResult{}, ErrNoActiveStage
	}
	res, err := e.active.Step(action)
	if err != nil {
		return res, err
	}
	if e.activeIndex >= 0 {
		e.cur.StepsTaken[e.activeIndex]++
		if e.cfg.UnlockStages > 0 && res.Info.FlagGet {
			e.cur.recordCompletion(e.activeIndex, e.cfg.UnlockStages, e.cfg.BalanceSteps)
		}
	}
	return res, err
}

// Render delegates to the active instance: the pixel buffer in rgb_array
// mode, a viewer update and no value in human mode, nothing otherwise.
func (e *Env) Render() (*image.RGBA, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if e.active == nil {
		return nil, ErrNoActiveStage
	}
	switch e.cfg.RenderMode {
	case RenderRGBArray:
		return e.active.Render()
	case RenderHuman:
		img, err := e.active.Render()
		if err != nil {
			return nil, err
		}
		if e.viewer != nil {
			e.viewer.Update(img)
		}
		return nil, nil
	default:
		return nil, nil
	}
}

// Screen returns the active instance's screen buffer.
func (e *Env) Screen() (*image.RGBA, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if e.active == nil {
		return nil, ErrNoActiveStage
	}
	return e.active.Screen()
}

func (e *Env) GetActionMeanings() ([]string, error) {
	inst, err := e.metadataInstance()
	if err != nil {
		return nil, err
	}
	return inst.GetActionMeanings(), nil
}

func (e *Env) GetKeysToAction() (map[string]int, error) {
	inst, err := e.metadataInstance()
	if err != nil {
		return nil, err
	}
	return inst.GetKeysToAction(), nil
}

// metadataInstance prefers the active instance but falls back to any
// constructed one: action metadata is identical across stages.
func (e *Env) metadataInstance() (LevelEnv, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if e.active != nil {
		return e.active, nil
	}
	for w := range e.grid {
		for s := range e.grid[w] {
			if e.grid[w][s] != nil {
				return e.grid[w][s], nil
			}
		}
	}
	return nil, ErrNoActiveStage
}

// Close closes every constructed instance and releases the viewer.
// Closing twice is an error, signaling caller misuse.
func (e *Env) Close() error {
	if e.closed {
		return ErrClosed
	}
	e.closed = true
	var firstErr error
	for w := range e.grid {
		for s := range e.grid[w] {
			inst := e.grid[w][s]
			if inst == nil {
				continue
			}
			if err := inst.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			e.grid[w][s] = nil
		}
	}
	e.active = nil
	if e.viewer != nil {
		if err := e.viewer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.viewer = nil
	}
	return firstErr
}
