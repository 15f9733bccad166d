package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Episode/env state.
	ErrNoEpisode = "E_NO_EPISODE"
	ErrEnvClosed = "E_ENV_CLOSED"
	ErrBadAction = "E_BAD_ACTION"
	ErrBadStage  = "E_BAD_STAGE"
	ErrInternal  = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrNoEpisode:       {},
	ErrEnvClosed:       {},
	ErrBadAction:       {},
	ErrBadStage:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
