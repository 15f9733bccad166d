package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"marioenv.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, msg any) {
		t.Helper()
		b, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	resetSchema := compile("reset.schema.json")
	obsSchema := compile("obs.schema.json")
	actSchema := compile("act.schema.json")
	errorSchema := compile("error.schema.json")

	validate(helloSchema, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       "bot1",
		Capabilities:    &protocol.HelloCapabilities{WantFrames: true},
	})

	// Capability fields the server does not implement are rejected.
	var badHello any
	if err := json.Unmarshal([]byte(`{"type":"HELLO","protocol_version":"1.0","agent_name":"bot1","capabilities":{"max_queue":8}}`), &badHello); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := helloSchema.Validate(badHello); err == nil {
		t.Fatalf("unknown capability field accepted")
	}

	validate(welcomeSchema, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         "A1",
		EnvParams: protocol.EnvParams{
			RomMode:        "vanilla",
			Stages:         []string{"1-1", "1-2"},
			UnlockStages:   2,
			ScreenWidth:    256,
			ScreenHeight:   240,
			ActionMeanings: []string{"NOOP", "right"},
		},
	})

	seed := int64(7)
	validate(resetSchema, protocol.ResetMsg{
		Type:            protocol.TypeReset,
		ProtocolVersion: protocol.Version,
		AgentID:         "A1",
		Seed:            &seed,
		Stages:          []string{"1-2"},
	})

	validate(obsSchema, protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		AgentID:         "A1",
		Episode:         1,
		Step:            12,
		Stage:           "1-1",
		Player:          protocol.PlayerObs{X: 300, Y: 0, TimeLeft: 398, Score: 100},
		Reward:          2.5,
		Done:            false,
		Flag:            false,
	})

	validate(actSchema, protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		AgentID:         "A1",
		Action:          0x21,
	})

	validate(errorSchema, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrNoEpisode,
		Message:         "RESET required before ACT",
	})
}
