package level

import "fmt"

// Screen dimensions of the NES PPU output.
const (
	ScreenWidth  = 256
	ScreenHeight = 240
)

// Physics holds the per-frame movement and reward constants. Zero values
// are replaced by defaults in Normalize so a partial tuning file still
// yields a playable level.
type Physics struct {
	WalkSpeed   float64 `yaml:"walk_speed"`
	RunSpeed    float64 `yaml:"run_speed"`
	JumpImpulse float64 `yaml:"jump_impulse"`
	Gravity     float64 `yaml:"gravity"`

	// TimeLimit is the starting game clock; it ticks down once every
	// ClockFrames frames and the run ends when it reaches zero.
	TimeLimit   int `yaml:"time_limit"`
	ClockFrames int `yaml:"clock_frames"`

	RewardClip   float64 `yaml:"reward_clip"`
	FlagBonus    float64 `yaml:"flag_bonus"`
	DeathPenalty float64 `yaml:"death_penalty"`
}

func DefaultPhysics() Physics {
	return Physics{
		WalkSpeed:    1.5,
		RunSpeed:     2.5,
		JumpImpulse:  10,
		Gravity:      0.7,
		TimeLimit:    400,
		ClockFrames:  24,
		RewardClip:   15,
		FlagBonus:    15,
		DeathPenalty: -15,
	}
}

func (p *Physics) Normalize() {
	d := DefaultPhysics()
	if p.WalkSpeed <= 0 {
		p.WalkSpeed = d.WalkSpeed
	}
	if p.RunSpeed <= 0 {
		p.RunSpeed = d.RunSpeed
	}
	if p.JumpImpulse <= 0 {
		p.JumpImpulse = d.JumpImpulse
	}
	if p.Gravity <= 0 {
		p.Gravity = d.Gravity
	}
	if p.TimeLimit <= 0 {
		p.TimeLimit = d.TimeLimit
	}
	if p.ClockFrames <= 0 {
		p.ClockFrames = d.ClockFrames
	}
	if p.RewardClip <= 0 {
		p.RewardClip = d.RewardClip
	}
	if p.FlagBonus <= 0 {
		p.FlagBonus = d.FlagBonus
	}
	if p.DeathPenalty >= 0 {
		p.DeathPenalty = d.DeathPenalty
	}
}

// Config identifies one level and carries its physics.
type Config struct {
	World   int
	Stage   int
	RomMode string
	Physics Physics
}

func (c Config) Validate() error {
	if c.World < 1 || c.World > 8 {
		return fmt.Errorf("world out of range [1,8]: %d", c.World)
	}
	if c.Stage < 1 || c.Stage > 4 {
		return fmt.Errorf("stage out of range [1,4]: %d", c.Stage)
	}
	return nil
}
