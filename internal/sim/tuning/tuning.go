// Package tuning loads the run configuration: which stages are
// selectable, how the curriculum unlocks them, and the level physics.
package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"marioenv.ai/internal/sim/level"
	"marioenv.ai/internal/sim/stages"
)

type Config struct {
	RomMode              string   `yaml:"rom_mode"`
	Stages               []string `yaml:"stages"`
	RenderMode           string   `yaml:"render_mode"`
	UnlockStages         int      `yaml:"unlock_stages"`
	BalanceStepsPerStage bool     `yaml:"balance_steps_per_stage"`

	Level level.Physics `yaml:"level"`
}

func Defaults() Config {
	return Config{
		RomMode: "vanilla",
		Stages:  []string{"1-1", "1-2", "1-3", "1-4"},
		Level:   level.DefaultPhysics(),
	}
}

// Load reads the tuning file. An empty path returns Defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("tuning.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("tuning.yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	c.RomMode = strings.TrimSpace(c.RomMode)
	if c.RomMode == "" {
		c.RomMode = "vanilla"
	}
	c.RenderMode = strings.TrimSpace(c.RenderMode)
	if c.UnlockStages < 0 {
		c.UnlockStages = 0
	}
	c.Level.Normalize()
}

func (c Config) Validate() error {
	switch c.RenderMode {
	case stages.RenderNone, stages.RenderHuman, stages.RenderRGBArray:
	default:
		return fmt.Errorf("invalid render_mode %q", c.RenderMode)
	}
	if len(c.Stages) == 0 && (c.UnlockStages > 0 || c.BalanceStepsPerStage) {
		return fmt.Errorf("unlock_stages/balance_steps_per_stage require a non-empty stages list")
	}
	return nil
}

// SelectorConfig maps the run configuration onto the stage selector.
func (c Config) SelectorConfig() stages.Config {
	return stages.Config{
		RomMode:      c.RomMode,
		Stages:       c.Stages,
		RenderMode:   c.RenderMode,
		UnlockStages: c.UnlockStages,
		BalanceSteps: c.BalanceStepsPerStage,
		Physics:      c.Level,
	}
}
