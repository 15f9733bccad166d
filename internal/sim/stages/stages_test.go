package stages

import (
	"errors"
	"image"
	"math"
	"testing"

	"marioenv.ai/internal/sim/level"
)

// fakeLevel stands in for a per-stage instance and records lifecycle calls.
type fakeLevel struct {
	id       string
	resets   int
	steps    int
	closes   int
	flagNext bool
}

func (f *fakeLevel) Reset(seed *int64) (level.Obs, error) {
	f.resets++
	return level.Obs{X: 40}, nil
}

func (f *fakeLevel) Step(action int) (level.StepResult, error) {
	f.steps++
	flag := f.flagNext
	return level.StepResult{
		Obs:  level.Obs{X: 41},
		Done: flag,
		Info: level.Info{FlagGet: flag},
	}, nil
}

func (f *fakeLevel) Render() (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, level.ScreenWidth, level.ScreenHeight)), nil
}

func (f *fakeLevel) Screen() (*image.RGBA, error) { return f.Render() }

func (f *fakeLevel) GetActionMeanings() []string { return []string{"NOOP"} }

func (f *fakeLevel) GetKeysToAction() map[string]int { return map[string]int{"ArrowRight": 1} }

func (f *fakeLevel) Close() error {
	f.closes++
	return nil
}

// fakeGrid builds an env with fake instances and returns them by stage id.
func fakeGrid(t *testing.T, cfg Config) (*Env, map[string]*fakeLevel) {
	t.Helper()
	built := map[string]*fakeLevel{}
	env, err := newEnv(cfg, func(lc level.Config) (LevelEnv, error) {
		f := &fakeLevel{id: StageID(lc.World, lc.Stage)}
		built[f.id] = f
		return f, nil
	})
	if err != nil {
		t.Fatalf("newEnv: %v", err)
	}
	return env, built
}

func seedOf(v int64) *int64 { return &v }

func TestClose_ClosesEveryInstanceExactlyOnce(t *testing.T) {
	env, built := fakeGrid(t, Config{Stages: []string{"1-1", "1-2", "2-3"}})
	if len(built) != 3 {
		t.Fatalf("built %d instances, want 3", len(built))
	}
	if err := env.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for id, f := range built {
		if f.closes != 1 {
			t.Fatalf("stage %s closed %d times, want 1", id, f.closes)
		}
	}
	if err := env.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("second Close: got %v, want ErrClosed", err)
	}
}

func TestReset_SeededSelectionIsDeterministic(t *testing.T) {
	stageSet := []string{"1-1", "1-2", "1-3", "1-4", "2-1"}
	sequence := func() []string {
		env, _ := fakeGrid(t, Config{Stages: stageSet})
		defer env.Close()
		var out []string
		if _, err := env.Reset(&ResetOptions{Seed: seedOf(1234)}); err != nil {
			t.Fatalf("seeded reset: %v", err)
		}
		s, _ := env.ActiveStage()
		out = append(out, s)
		for i := 0; i < 19; i++ {
			if _, err := env.Reset(nil); err != nil {
				t.Fatalf("reset %d: %v", i, err)
			}
			s, _ := env.ActiveStage()
			out = append(out, s)
		}
		return out
	}

	a, b := sequence(), sequence()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("selection diverged at episode %d: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestCurriculumDisabled_MaxUnlockedIsFullSet(t *testing.T) {
	stageSet := []string{"1-1", "1-2", "1-3"}
	env, built := fakeGrid(t, Config{Stages: stageSet})
	defer env.Close()

	for i := 0; i < 10; i++ {
		if _, err := env.Reset(&ResetOptions{Seed: seedOf(int64(i))}); err != nil {
			t.Fatalf("reset: %v", err)
		}
		s, _ := env.ActiveStage()
		built[s].flagNext = true
		if _, err := env.Step(0); err != nil {
			t.Fatalf("step: %v", err)
		}
		built[s].flagNext = false
		if got := env.Curriculum().MaxUnlocked; got != len(stageSet) {
			t.Fatalf("MaxUnlocked = %d, want %d", got, len(stageSet))
		}
	}
}

func TestUnlock_RaisesMaxUnlockedAndResetsWeights(t *testing.T) {
	const k = 2
	stageSet := []string{"1-1", "1-2", "1-3", "1-4"}
	env, built := fakeGrid(t, Config{Stages: stageSet, UnlockStages: k})
	defer env.Close()

	if got := env.Curriculum().MaxUnlocked; got != 1 {
		t.Fatalf("initial MaxUnlocked = %d, want 1", got)
	}

	// k flags leave the gate closed; the k+1-th opens it.
	for i := 0; i < k; i++ {
		flagStep(t, env, built)
		if got := env.Curriculum().MaxUnlocked; got != 1 {
			t.Fatalf("after %d flags MaxUnlocked = %d, want 1", i+1, got)
		}
	}
	flagStep(t, env, built)

	cur := env.Curriculum()
	if cur.MaxUnlocked != 2 {
		t.Fatalf("MaxUnlocked = %d, want 2", cur.MaxUnlocked)
	}
	if len(cur.Weights) != 2 || cur.Weights[0] != 1 || cur.Weights[1] != 2 {
		t.Fatalf("Weights = %v, want [1 2]", cur.Weights)
	}
	if cur.CompletionCount[0] != k+1 {
		t.Fatalf("CompletionCount[0] = %d, want %d", cur.CompletionCount[0], k+1)
	}
}

// flagStep resets, then steps the selected stage once with the flag signal.
func flagStep(t *testing.T, env *Env, built map[string]*fakeLevel) {
	t.Helper()
	if _, err := env.Reset(nil); err != nil {
		t.Fatalf("reset: %v", err)
	}
	s, _ := env.ActiveStage()
	built[s].flagNext = true
	if _, err := env.Step(0); err != nil {
		t.Fatalf("step: %v", err)
	}
	built[s].flagNext = false
}

func TestSampling_NeverSelectsBeyondMaxUnlocked(t *testing.T) {
	stageSet := []string{"1-1", "1-2", "1-3", "1-4"}
	env, built := fakeGrid(t, Config{Stages: stageSet, UnlockStages: 1})
	defer env.Close()

	// Unlock the second stage, then sample a lot.
	flagStep(t, env, built)
	flagStep(t, env, built)
	if got := env.Curriculum().MaxUnlocked; got != 2 {
		t.Fatalf("MaxUnlocked = %d, want 2", got)
	}
	for i := 0; i < 200; i++ {
		if _, err := env.Reset(nil); err != nil {
			t.Fatalf("reset: %v", err)
		}
		_, idx := env.ActiveStage()
		if idx < 0 || idx >= 2 {
			t.Fatalf("selected index %d outside unlocked prefix", idx)
		}
	}
}

func TestScenario_TwoStageCurriculum(t *testing.T) {
	env, built := fakeGrid(t, Config{Stages: []string{"1-1", "1-2"}, UnlockStages: 1})
	defer env.Close()

	if _, err := env.Reset(&ResetOptions{Seed: seedOf(0)}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s, idx := env.ActiveStage(); s != "1-1" || idx != 0 {
		t.Fatalf("selected %s (index %d), want 1-1 (only unlocked stage)", s, idx)
	}

	built["1-1"].flagNext = true
	for i := 0; i < 2; i++ {
		if _, err := env.Step(0); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	built["1-1"].flagNext = false

	cur := env.Curriculum()
	if cur.CompletionCount[0] != 2 {
		t.Fatalf("CompletionCount = %d, want 2", cur.CompletionCount[0])
	}
	if cur.MaxUnlocked != 2 {
		t.Fatalf("MaxUnlocked = %d, want 2", cur.MaxUnlocked)
	}
	if len(cur.Weights) != 2 || cur.Weights[0] != 1 || cur.Weights[1] != 2 {
		t.Fatalf("Weights = %v, want [1 2]", cur.Weights)
	}

	// "1-2" is now reachable.
	found := false
	for i := 0; i < 100 && !found; i++ {
		if _, err := env.Reset(nil); err != nil {
			t.Fatalf("reset: %v", err)
		}
		if s, _ := env.ActiveStage(); s == "1-2" {
			found = true
		}
	}
	if !found {
		t.Fatalf("1-2 never selected after unlocking")
	}
}

func TestBalanceSteps_WeightsFollowStepCounts(t *testing.T) {
	stageSet := []string{"1-1", "1-2"}
	env, built := fakeGrid(t, Config{Stages: stageSet, UnlockStages: 1, BalanceSteps: true})
	defer env.Close()

	// Unlock the second stage, accumulating steps on the first.
	flagStep(t, env, built)
	flagStep(t, env, built)
	cur := env.Curriculum()
	if cur.MaxUnlocked != 2 {
		t.Fatalf("MaxUnlocked = %d, want 2", cur.MaxUnlocked)
	}

	if _, err := env.Reset(nil); err != nil {
		t.Fatalf("reset: %v", err)
	}
	cur = env.Curriculum()
	want0 := 1e6 / (1 + math.Log(float64(cur.StepsTaken[0])+1))
	want1 := 1e6 / (1 + math.Log(float64(cur.StepsTaken[1])+1)) * 2
	if math.Abs(cur.Weights[0]-want0) > 1e-6 || math.Abs(cur.Weights[1]-want1) > 1e-6 {
		t.Fatalf("Weights = %v, want [%v %v]", cur.Weights, want0, want1)
	}
}

func TestUniformMode_BuildsFullGrid(t *testing.T) {
	env, built := fakeGrid(t, Config{})
	defer env.Close()
	if len(built) != NumWorlds*NumStages {
		t.Fatalf("built %d instances, want %d", len(built), NumWorlds*NumStages)
	}
	for i := 0; i < 50; i++ {
		if _, err := env.Reset(nil); err != nil {
			t.Fatalf("reset: %v", err)
		}
		s, idx := env.ActiveStage()
		if idx != -1 {
			t.Fatalf("uniform mode index = %d, want -1", idx)
		}
		if _, _, err := ParseStageID(s); err != nil {
			t.Fatalf("uniform mode picked invalid stage %q", s)
		}
		if _, err := env.Step(0); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
}

func TestReset_StageSetOverride(t *testing.T) {
	env, _ := fakeGrid(t, Config{Stages: []string{"1-1", "1-2", "1-3"}})
	defer env.Close()
	for i := 0; i < 20; i++ {
		if _, err := env.Reset(&ResetOptions{Stages: []string{"1-3"}}); err != nil {
			t.Fatalf("reset: %v", err)
		}
		if s, idx := env.ActiveStage(); s != "1-3" || idx != 2 {
			t.Fatalf("selected %s (index %d), want 1-3 (index 2)", s, idx)
		}
	}
}

func TestStepAndRenderBeforeResetFail(t *testing.T) {
	env, _ := fakeGrid(t, Config{Stages: []string{"1-1"}, RenderMode: RenderRGBArray})
	defer env.Close()
	if _, err := env.Step(0); !errors.Is(err, ErrNoActiveStage) {
		t.Fatalf("Step before reset: got %v, want ErrNoActiveStage", err)
	}
	if _, err := env.Render(); !errors.Is(err, ErrNoActiveStage) {
		t.Fatalf("Render before reset: got %v, want ErrNoActiveStage", err)
	}
}

type recordingViewer struct {
	frames int
	closes int
}

func (v *recordingViewer) Update(*image.RGBA) { v.frames++ }
func (v *recordingViewer) Close() error {
	v.closes++
	return nil
}

func TestRender_Modes(t *testing.T) {
	rgb, _ := fakeGrid(t, Config{Stages: []string{"1-1"}, RenderMode: RenderRGBArray})
	defer rgb.Close()
	if _, err := rgb.Reset(nil); err != nil {
		t.Fatalf("reset: %v", err)
	}
	img, err := rgb.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img == nil || img.Bounds().Dx() == 0 {
		t.Fatalf("rgb_array mode returned empty frame")
	}

	v := &recordingViewer{}
	human, _ := fakeGrid(t, Config{Stages: []string{"1-1"}, RenderMode: RenderHuman, Viewer: v})
	if _, err := human.Reset(nil); err != nil {
		t.Fatalf("reset: %v", err)
	}
	img, err = human.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img != nil {
		t.Fatalf("human mode returned a frame")
	}
	if v.frames != 1 {
		t.Fatalf("viewer got %d frames, want 1", v.frames)
	}
	if err := human.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if v.closes != 1 {
		t.Fatalf("viewer closed %d times, want 1", v.closes)
	}
}

func TestConstruct_Validation(t *testing.T) {
	if _, err := newEnv(Config{RenderMode: "video"}, defaultFactory); err == nil {
		t.Fatalf("invalid render mode accepted")
	}
	if _, err := newEnv(Config{UnlockStages: 1}, defaultFactory); err == nil {
		t.Fatalf("curriculum without stage set accepted")
	}
	if _, err := newEnv(Config{BalanceSteps: true}, defaultFactory); err == nil {
		t.Fatalf("balancing without stage set accepted")
	}
}

func TestReset_MalformedStageFailsLazily(t *testing.T) {
	// A malformed id builds no instance and only fails when selected.
	env, built := fakeGrid(t, Config{Stages: []string{"9-9"}})
	defer env.Close()
	if len(built) != 0 {
		t.Fatalf("built %d instances for a malformed id, want 0", len(built))
	}
	if _, err := env.Reset(nil); err == nil {
		t.Fatalf("reset resolved a malformed stage id")
	}
}

func TestSeed_NilIsNoop(t *testing.T) {
	env, _ := fakeGrid(t, Config{Stages: []string{"1-1"}})
	defer env.Close()
	if got := env.Seed(nil); got != nil {
		t.Fatalf("Seed(nil) = %v, want empty", got)
	}
	if got := env.Seed(seedOf(42)); len(got) != 1 || got[0] != 42 {
		t.Fatalf("Seed(42) = %v, want [42]", got)
	}
}
