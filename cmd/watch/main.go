// Watches a live rollout: runs the stage selector with a scripted policy
// and shows every frame in a desktop window.
package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"marioenv.ai/internal/sim/level"
	"marioenv.ai/internal/sim/stages"
	"marioenv.ai/internal/sim/tuning"
	"marioenv.ai/internal/viewer"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		stageList  = flag.String("stages", "", "comma-separated stage override, e.g. 1-1,1-2")
		seed       = flag.Int64("seed", 0, "episode seed (0 = unseeded)")
		scale      = flag.Int("scale", 3, "window scale factor")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := tuning.Load(strings.TrimSpace(*tuningPath))
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if *stageList != "" {
		cfg.Stages = strings.Split(*stageList, ",")
	}
	cfg.RenderMode = stages.RenderHuman

	v := viewer.New("marioenv", level.ScreenWidth, level.ScreenHeight, *scale)
	sc := cfg.SelectorConfig()
	sc.Viewer = v

	env, err := stages.New(sc)
	if err != nil {
		logger.Fatalf("build env: %v", err)
	}

	var opts *stages.ResetOptions
	if *seed != 0 {
		opts = &stages.ResetOptions{Seed: seed}
	}
	if _, err := env.Reset(opts); err != nil {
		logger.Fatalf("reset: %v", err)
	}
	stage, _ := env.ActiveStage()
	logger.Printf("watching stage %s", stage)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		ticker := time.NewTicker(time.Second / 60)
		defer ticker.Stop()
		for range ticker.C {
			select {
			case <-stop:
				return
			default:
			}
			action := level.BtnRight | level.BtnB
			if rng.Intn(4) == 0 {
				action |= level.BtnA
			}
			res, err := env.Step(action)
			if err != nil {
				logger.Printf("step: %v", err)
				return
			}
			if _, err := env.Render(); err != nil {
				logger.Printf("render: %v", err)
				return
			}
			if res.Done {
				stage, _ := env.ActiveStage()
				logger.Printf("episode %d done stage=%s flag=%v", env.Episode(), stage, res.Info.FlagGet)
				if _, err := env.Reset(nil); err != nil {
					logger.Printf("reset: %v", err)
					return
				}
				stage, _ = env.ActiveStage()
				logger.Printf("watching stage %s", stage)
			}
		}
	}()

	// Run blocks on the main goroutine until the window is dismissed.
	if err := v.Run(); err != nil {
		logger.Fatalf("viewer: %v", err)
	}
	close(stop)
	<-done
	if err := env.Close(); err != nil {
		logger.Printf("close env: %v", err)
	}
}
