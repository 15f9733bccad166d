// Summarizes episode logs: per-stage episode counts, completion rates,
// and step totals.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"marioenv.ai/internal/persistence/episodelog"
)

func main() {
	var (
		dir    = flag.String("episodes", "./data/episodes", "episode log directory")
		prefix = flag.String("prefix", "episodes", "log file prefix")
	)
	flag.Parse()

	recs, err := episodelog.ReadDir(*dir, *prefix)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read episode logs:", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("no episodes recorded")
		return
	}

	type agg struct {
		episodes int
		flags    int
		steps    int
		reward   float64
	}
	byStage := map[string]*agg{}
	for _, r := range recs {
		a := byStage[r.Stage]
		if a == nil {
			a = &agg{}
			byStage[r.Stage] = a
		}
		a.episodes++
		if r.FlagGet {
			a.flags++
		}
		a.steps += r.Steps
		a.reward += r.TotalReward
	}

	ids := make([]string, 0, len(byStage))
	for id := range byStage {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("%-6s %9s %7s %10s %12s\n", "stage", "episodes", "flags", "steps", "avg_reward")
	for _, id := range ids {
		a := byStage[id]
		fmt.Printf("%-6s %9d %7d %10d %12.2f\n", id, a.episodes, a.flags, a.steps, a.reward/float64(a.episodes))
	}
}
