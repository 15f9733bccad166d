// Interactive play: drives the stage selector from the keyboard and shows
// the screen in a window.
package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"

	"marioenv.ai/internal/sim/level"
	"marioenv.ai/internal/sim/stages"
	"marioenv.ai/internal/sim/tuning"
)

// ebiten names for the key identifiers KeysToAction uses.
var keyByName = map[string]ebiten.Key{
	"ArrowRight": ebiten.KeyArrowRight,
	"ArrowLeft":  ebiten.KeyArrowLeft,
	"ArrowDown":  ebiten.KeyArrowDown,
	"ArrowUp":    ebiten.KeyArrowUp,
	"KeyX":       ebiten.KeyX,
	"KeyZ":       ebiten.KeyZ,
	"Enter":      ebiten.KeyEnter,
	"ShiftRight": ebiten.KeyShiftRight,
}

type game struct {
	env    *stages.Env
	keys   map[string]int
	logger *log.Logger
	frame  []byte
}

func (g *game) Update() error {
	action := 0
	for name, bit := range g.keys {
		key, ok := keyByName[name]
		if !ok {
			continue
		}
		if ebiten.IsKeyPressed(key) {
			action |= bit
		}
	}
	res, err := g.env.Step(action)
	if err != nil {
		return err
	}
	if res.Done {
		stage, _ := g.env.ActiveStage()
		g.logger.Printf("episode done stage=%s flag=%v score=%d", stage, res.Info.FlagGet, res.Obs.Score)
		if _, err := g.env.Reset(nil); err != nil {
			return err
		}
	}
	img, err := g.env.Screen()
	if err != nil {
		return err
	}
	copy(g.frame, img.Pix)
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.WritePixels(g.frame)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return level.ScreenWidth, level.ScreenHeight
}

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		stageList  = flag.String("stages", "", "comma-separated stage override, e.g. 1-1,1-2")
		seed       = flag.Int64("seed", 0, "episode seed (0 = unseeded)")
		scale      = flag.Int("scale", 3, "window scale factor")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[play] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := tuning.Load(strings.TrimSpace(*tuningPath))
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if *stageList != "" {
		cfg.Stages = strings.Split(*stageList, ",")
	}
	// The window is the renderer here; the env itself stays headless.
	cfg.RenderMode = stages.RenderNone
	// Manual play wants the full set, not a curriculum gate.
	cfg.UnlockStages = 0
	cfg.BalanceStepsPerStage = false

	env, err := stages.New(cfg.SelectorConfig())
	if err != nil {
		logger.Fatalf("build env: %v", err)
	}
	defer func() {
		if err := env.Close(); err != nil {
			logger.Printf("close env: %v", err)
		}
	}()

	var opts *stages.ResetOptions
	if *seed != 0 {
		opts = &stages.ResetOptions{Seed: seed}
	}
	if _, err := env.Reset(opts); err != nil {
		logger.Fatalf("reset: %v", err)
	}
	stage, _ := env.ActiveStage()
	logger.Printf("playing stage %s (arrows move, X jump, Z run)", stage)

	keys, err := env.GetKeysToAction()
	if err != nil {
		logger.Fatalf("keys to action: %v", err)
	}

	g := &game{
		env:    env,
		keys:   keys,
		logger: logger,
		frame:  make([]byte, 4*level.ScreenWidth*level.ScreenHeight),
	}
	ebiten.SetWindowSize(level.ScreenWidth**scale, level.ScreenHeight**scale)
	ebiten.SetWindowTitle("marioenv " + stage)
	ebiten.SetTPS(60)
	if err := ebiten.RunGame(g); err != nil && err != ebiten.Termination {
		logger.Fatalf("run: %v", err)
	}
}
