// A throwaway random agent: connects, resets, and mashes right+run with
// occasional jumps until interrupted. Useful for smoke-testing a server.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"marioenv.ai/internal/protocol"
	"marioenv.ai/internal/sim/level"
)

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "bot", "agent name")
		seed = flag.Int64("seed", 0, "episode seed (0 = unseeded)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	rng := rand.New(rand.NewSource(1))
	var agentID string

	sendReset := func() {
		reset := protocol.ResetMsg{
			Type:            protocol.TypeReset,
			ProtocolVersion: protocol.Version,
			AgentID:         agentID,
		}
		if *seed != 0 {
			reset.Seed = seed
		}
		_ = conn.WriteJSON(reset)
	}

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			agentID = w.AgentID
			logger.Printf("WELCOME agent_id=%s stages=%v", w.AgentID, w.EnvParams.Stages)
			sendReset()

		case protocol.TypeObs:
			var obs protocol.ObsMsg
			if err := json.Unmarshal(msg, &obs); err != nil {
				continue
			}
			if obs.Done {
				logger.Printf("episode %d done stage=%s steps=%d flag=%v", obs.Episode, obs.Stage, obs.Step, obs.Flag)
				sendReset()
				continue
			}
			action := level.BtnRight | level.BtnB
			if rng.Intn(4) == 0 {
				action |= level.BtnA
			}
			act := protocol.ActMsg{
				Type:            protocol.TypeAct,
				ProtocolVersion: protocol.Version,
				AgentID:         agentID,
				Action:          action,
			}
			_ = conn.WriteJSON(act)

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				continue
			}
			logger.Printf("ERROR %s: %s", e.Code, e.Message)
		}
	}
}
