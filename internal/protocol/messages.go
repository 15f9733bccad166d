package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	AgentName       string             `json:"agent_name"`
	Capabilities    *HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	// WantFrames asks the server to attach PNG-encoded screen frames to
	// every OBS message. Off by default: frames are two orders of magnitude
	// heavier than the scalar observation.
	WantFrames bool `json:"want_frames,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	AgentID         string    `json:"agent_id"`
	EnvParams       EnvParams `json:"env_params"`
}

type EnvParams struct {
	RomMode        string   `json:"rom_mode"`
	Stages         []string `json:"stages,omitempty"`
	UnlockStages   int      `json:"unlock_stages,omitempty"`
	BalanceSteps   bool     `json:"balance_steps_per_stage,omitempty"`
	ScreenWidth    int      `json:"screen_width"`
	ScreenHeight   int      `json:"screen_height"`
	ActionMeanings []string `json:"action_meanings"`
}

// RESET (client -> server): start a new episode.
type ResetMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	AgentID         string   `json:"agent_id"`
	Seed            *int64   `json:"seed,omitempty"`
	Stages          []string `json:"stages,omitempty"`
}

// OBS (server -> client)
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentID         string `json:"agent_id"`

	Episode int    `json:"episode"`
	Step    int    `json:"step"`
	Stage   string `json:"stage"`

	Player PlayerObs `json:"player"`
	Reward float64   `json:"reward"`
	Done   bool      `json:"done"`
	Flag   bool      `json:"flag_get"`

	// Base64 PNG of the screen, present only when the client asked for
	// frames in HELLO.
	FramePNG string `json:"frame_png,omitempty"`
}

type PlayerObs struct {
	X        int `json:"x"`
	Y        int `json:"y"`
	TimeLeft int `json:"time_left"`
	Score    int `json:"score"`
}

// ACT (client -> server): one controller bitmap for one frame.
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentID         string `json:"agent_id"`
	Action          int    `json:"action"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
