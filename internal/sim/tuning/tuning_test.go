package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write tuning: %v", err)
	}
	return path
}

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RomMode != "vanilla" {
		t.Fatalf("RomMode = %q, want vanilla", cfg.RomMode)
	}
	if len(cfg.Stages) == 0 {
		t.Fatalf("default stage set is empty")
	}
	if cfg.Level.WalkSpeed <= 0 {
		t.Fatalf("physics not defaulted: %+v", cfg.Level)
	}
}

func TestLoad_ParsesAndNormalizes(t *testing.T) {
	path := writeTuning(t, `
rom_mode: ""
stages: ["1-1", "1-2"]
unlock_stages: 3
balance_steps_per_stage: true
render_mode: rgb_array
level:
  walk_speed: 2
  time_limit: 300
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RomMode != "vanilla" {
		t.Fatalf("empty rom_mode not defaulted: %q", cfg.RomMode)
	}
	if cfg.UnlockStages != 3 || !cfg.BalanceStepsPerStage {
		t.Fatalf("curriculum fields lost: %+v", cfg)
	}
	if cfg.Level.WalkSpeed != 2 || cfg.Level.TimeLimit != 300 {
		t.Fatalf("explicit physics lost: %+v", cfg.Level)
	}
	if cfg.Level.RunSpeed <= 0 {
		t.Fatalf("omitted physics not defaulted: %+v", cfg.Level)
	}

	sel := cfg.SelectorConfig()
	if sel.UnlockStages != 3 || !sel.BalanceSteps || len(sel.Stages) != 2 {
		t.Fatalf("selector config mismatch: %+v", sel)
	}
}

func TestLoad_RejectsBadRenderMode(t *testing.T) {
	path := writeTuning(t, `render_mode: video`)
	if _, err := Load(path); err == nil {
		t.Fatalf("bad render_mode accepted")
	}
}

func TestLoad_RejectsCurriculumWithoutStages(t *testing.T) {
	path := writeTuning(t, `
stages: []
unlock_stages: 1
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("curriculum without stages accepted")
	}
}
