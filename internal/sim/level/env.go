// Package level implements a deterministic side-scroller level simulation
// with the observable surface of one emulated NES stage: byte-bitmap
// actions, scalar observations, a 256x240 screen, and a flag at the end of
// the course. It is not an emulator; it exists so the stage selector has
// concrete instances to own and switch between.
package level

import (
	"errors"
	"fmt"
	"image"
	"math"
	"math/rand"
)

var (
	ErrClosed    = errors.New("level: env is closed")
	ErrNotReset  = errors.New("level: step before reset")
	ErrDone      = errors.New("level: episode is done, reset required")
	ErrBadAction = errors.New("level: action out of range")
)

// Obs is the scalar observation returned by Reset and Step.
type Obs struct {
	X        int
	Y        int
	TimeLeft int
	Score    int
}

// Info carries auxiliary diagnostics, including the flag signal the
// curriculum watches for.
type Info struct {
	FlagGet  bool
	Dead     bool
	X        int
	TimeLeft int
}

// StepResult is the (observation, reward, done, info) tuple of one frame.
type StepResult struct {
	Obs    Obs
	Reward float64
	Done   bool
	Info   Info
}

type enemy struct {
	x     float64
	alive bool
}

// Env is one level instance. Not safe for concurrent use.
type Env struct {
	cfg Config
	rng *rand.Rand

	// course geometry, fixed per (world, stage)
	flagX float64
	pits  [][2]float64

	// per-episode state
	x, y     float64
	vy       float64
	onGround bool
	frame    int
	timeLeft int
	score    int
	enemies  []enemy

	started bool
	done    bool
	closed  bool

	screen *image.RGBA
}

const groundY = 192.0

// New builds a level instance. The episode is not started until Reset.
func New(cfg Config) (*Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Physics.Normalize()
	e := &Env{
		cfg: cfg,
		rng: rand.New(rand.NewSource(int64(cfg.World)*100 + int64(cfg.Stage))),
	}
	e.flagX = courseLength(cfg.World, cfg.Stage)
	e.pits = coursePits(cfg.World, cfg.Stage, e.flagX)
	e.screen = image.NewRGBA(image.Rect(0, 0, ScreenWidth, ScreenHeight))
	return e, nil
}

// courseLength grows with world and stage so later levels take longer runs.
func courseLength(world, stage int) float64 {
	return 3200 + float64(world-1)*160 + float64(stage-1)*80
}

// coursePits places gaps in the ground at fixed intervals, wider in later
// worlds. The first stretch and the flag approach are always solid.
func coursePits(world, stage int, flagX float64) [][2]float64 {
	width := 28.0 + float64(world)*2
	var pits [][2]float64
	for start := 520.0; start < flagX-300; start += 430 + float64(stage)*40 {
		pits = append(pits, [2]float64{start, start + width})
	}
	return pits
}

// Reset starts a new episode. A nil seed keeps the instance RNG as-is so
// repeated resets continue the same enemy-placement stream.
func (e *Env) Reset(seed *int64) (Obs, error) {
	if e.closed {
		return Obs{}, ErrClosed
	}
	if seed != nil {
		e.rng = rand.New(rand.NewSource(*seed))
	}
	e.x = 40
	e.y = groundY
	e.vy = 0
	e.onGround = true
	e.frame = 0
	e.timeLeft = e.cfg.Physics.TimeLimit
	e.score = 0
	e.done = false
	e.started = true

	// Enemy placement is the only randomized part of a course. Count and
	// spread scale with world so later levels are more hostile. Enemies
	// keep clear of pits and their landing zones so every course stays
	// completable.
	n := 3 + e.cfg.World
	e.enemies = e.enemies[:0]
	for i := 0; i < n; i++ {
		base := 400 + float64(i)*(e.flagX-800)/float64(n)
		pos := base + float64(e.rng.Intn(120))
		for _, p := range e.pits {
			if pos > p[0]-60 && pos < p[1]+90 {
				pos = p[1] + 90
			}
		}
		e.enemies = append(e.enemies, enemy{x: pos, alive: true})
	}
	return e.obs(), nil
}

// Step advances the simulation by one frame.
func (e *Env) Step(action int) (StepResult, error) {
	if e.closed {
		return StepResult{}, ErrClosed
	}
	if !e.started {
		return StepResult{}, ErrNotReset
	}
	if e.done {
		return StepResult{}, ErrDone
	}
	if action < 0 || action >= ActionSpace {
		return StepResult{}, fmt.Errorf("%w: %d", ErrBadAction, action)
	}

	p := e.cfg.Physics
	xBefore := e.x
	clockBefore := e.timeLeft

	// Horizontal movement.
	speed := p.WalkSpeed
	if action&BtnB != 0 {
		speed = p.RunSpeed
	}
	switch {
	case action&BtnRight != 0:
		e.x += speed
	case action&BtnLeft != 0:
		e.x = math.Max(0, e.x-speed)
	}

	// Jumping and gravity.
	if action&BtnA != 0 && e.onGround {
		e.vy = -p.JumpImpulse
		e.onGround = false
	}
	if !e.onGround {
		e.y += e.vy
		e.vy += p.Gravity
		if e.y >= groundY && !e.overPit() {
			e.y = groundY
			e.vy = 0
			e.onGround = true
		}
	} else if e.overPit() {
		e.onGround = false
		e.vy = 0
	}

	// Game clock.
	e.frame++
	if e.frame%p.ClockFrames == 0 {
		e.timeLeft--
	}

	dead := false
	flag := false
	switch {
	case e.y > groundY+40: // fell into a pit
		dead = true
	case e.timeLeft <= 0:
		dead = true
	case e.hitEnemy():
		dead = true
	case e.x >= e.flagX:
		flag = true
		e.x = e.flagX
		e.score += e.timeLeft * 50
	}
	e.done = dead || flag

	// Velocity + clock + terminal reward, clipped.
	reward := (e.x - xBefore) + float64(e.timeLeft-clockBefore)
	if dead {
		reward += p.DeathPenalty
	}
	if flag {
		reward += p.FlagBonus
	}
	reward = math.Max(-p.RewardClip, math.Min(p.RewardClip, reward))

	return StepResult{
		Obs:    e.obs(),
		Reward: reward,
		Done:   e.done,
		Info: Info{
			FlagGet:  flag,
			Dead:     dead,
			X:        int(e.x),
			TimeLeft: e.timeLeft,
		},
	}, nil
}

func (e *Env) overPit() bool {
	for _, p := range e.pits {
		if e.x >= p[0] && e.x <= p[1] {
			return true
		}
	}
	return false
}

// hitEnemy reports a ground-level collision; jumping over an enemy stomps
// it for points instead.
func (e *Env) hitEnemy() bool {
	for i := range e.enemies {
		en := &e.enemies[i]
		if !en.alive || math.Abs(e.x-en.x) > 8 {
			continue
		}
		if e.onGround {
			return true
		}
		en.alive = false
		e.score += 100
	}
	return false
}

func (e *Env) obs() Obs {
	return Obs{
		X:        int(e.x),
		Y:        int(groundY - e.y),
		TimeLeft: e.timeLeft,
		Score:    e.score,
	}
}

// Flag reports whether the last step reached the end-of-course flag.
func (e *Env) Flag() bool {
	return e.done && e.x >= e.flagX
}

// Screen returns the backing screen buffer, re-rendered for the current
// frame.
func (e *Env) Screen() (*image.RGBA, error) {
	return e.Render()
}

func (e *Env) GetActionMeanings() []string {
	return ActionMeanings()
}

func (e *Env) GetKeysToAction() map[string]int {
	return KeysToAction()
}

// Close releases the instance. Closing twice is a programmer error.
func (e *Env) Close() error {
	if e.closed {
		return ErrClosed
	}
	e.closed = true
	e.screen = nil
	return nil
}
