// Package ws serves the environment to agents over websocket. Each
// connection owns one stage-selector env, so parallel rollouts are
// independent by construction and the env stays single-threaded.
package ws

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"log"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"marioenv.ai/internal/persistence/episodelog"
	"marioenv.ai/internal/persistence/indexdb"
	"marioenv.ai/internal/protocol"
	"marioenv.ai/internal/sim/level"
	"marioenv.ai/internal/sim/stages"
	"marioenv.ai/internal/sim/tuning"
)

type Server struct {
	cfg tuning.Config
	log *log.Logger

	episodes *episodelog.Writer
	index    *indexdb.SQLiteIndex

	nextAgent atomic.Int64
	upgrader  websocket.Upgrader
}

// NewServer builds a server handing each connection a fresh env built from
// cfg. episodes and index may be nil to disable telemetry.
func NewServer(cfg tuning.Config, episodes *episodelog.Writer, index *indexdb.SQLiteIndex, logger *log.Logger) *Server {
	return &Server{
		cfg:      cfg,
		log:      logger,
		episodes: episodes,
		index:    index,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

type session struct {
	agentID    string
	wantFrames bool

	env      *stages.Env
	seed     *int64
	steps    int
	reward   float64
	flagged  bool
	inFlight bool
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		defer func() {
			if err := sess.env.Close(); err != nil {
				s.log.Printf("close env for %s: %v", sess.agentID, err)
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.sendError(conn, protocol.ErrProtoBadRequest, "bad json")
				continue
			}
			switch base.Type {
			case protocol.TypeReset:
				var reset protocol.ResetMsg
				if err := json.Unmarshal(msg, &reset); err != nil {
					s.sendError(conn, protocol.ErrProtoBadRequest, "bad RESET")
					continue
				}
				s.handleReset(conn, sess, &reset)
			case protocol.TypeAct:
				var act protocol.ActMsg
				if err := json.Unmarshal(msg, &act); err != nil {
					s.sendError(conn, protocol.ErrProtoBadRequest, "bad ACT")
					continue
				}
				s.handleAct(conn, sess, &act)
			default:
				s.sendError(conn, protocol.ErrProtoBadRequest, "unexpected message type "+base.Type)
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}

	env, err := stages.New(s.cfg.SelectorConfig())
	if err != nil {
		s.log.Printf("build env: %v", err)
		s.sendError(conn, protocol.ErrInternal, "env construction failed")
		return nil
	}

	sess := &session{
		agentID:    "A" + strconv.FormatInt(s.nextAgent.Add(1), 10),
		wantFrames: hello.Capabilities != nil && hello.Capabilities.WantFrames,
		env:        env,
	}

	meanings, err := env.GetActionMeanings()
	if err != nil {
		_ = env.Close()
		return nil
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         sess.agentID,
		EnvParams: protocol.EnvParams{
			RomMode:        s.cfg.RomMode,
			Stages:         s.cfg.Stages,
			UnlockStages:   s.cfg.UnlockStages,
			BalanceSteps:   s.cfg.BalanceStepsPerStage,
			ScreenWidth:    level.ScreenWidth,
			ScreenHeight:   level.ScreenHeight,
			ActionMeanings: meanings,
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		_ = env.Close()
		return nil
	}
	return sess
}

func (s *Server) handleReset(conn *websocket.Conn, sess *session, reset *protocol.ResetMsg) {
	if sess.inFlight {
		s.finishEpisode(sess)
	}
	obs, err := sess.env.Reset(&stages.ResetOptions{Seed: reset.Seed, Stages: reset.Stages})
	if err != nil {
		s.sendError(conn, protocol.ErrBadStage, err.Error())
		return
	}
	sess.seed = reset.Seed
	sess.steps = 0
	sess.reward = 0
	sess.flagged = false
	sess.inFlight = true

	stage, _ := sess.env.ActiveStage()
	s.sendObs(conn, sess, stage, obs.X, obs.Y, obs.TimeLeft, obs.Score, 0, false, false)
}

func (s *Server) handleAct(conn *websocket.Conn, sess *session, act *protocol.ActMsg) {
	if !sess.inFlight {
		s.sendError(conn, protocol.ErrNoEpisode, "RESET required before ACT")
		return
	}
	res, err := sess.env.Step(act.Action)
	if err != nil {
		s.sendError(conn, protocol.ErrBadAction, err.Error())
		return
	}
	sess.steps++
	sess.reward += res.Reward
	if res.Info.FlagGet {
		sess.flagged = true
	}

	stage, _ := sess.env.ActiveStage()
	s.sendObs(conn, sess, stage, res.Obs.X, res.Obs.Y, res.Obs.TimeLeft, res.Obs.Score, res.Reward, res.Done, res.Info.FlagGet)

	if res.Done {
		s.finishEpisode(sess)
	}
}

func (s *Server) finishEpisode(sess *session) {
	if !sess.inFlight {
		return
	}
	sess.inFlight = false
	stage, _ := sess.env.ActiveStage()
	rec := episodelog.Record{
		Episode:     sess.env.Episode(),
		Stage:       stage,
		Steps:       sess.steps,
		TotalReward: sess.reward,
		FlagGet:     sess.flagged,
		MaxUnlocked: sess.env.Curriculum().MaxUnlocked,
		Seed:        sess.seed,
		RecordedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if s.episodes != nil {
		if err := s.episodes.Write(rec); err != nil {
			s.log.Printf("episode log: %v", err)
		}
	}
	if s.index != nil {
		s.index.RecordEpisode(rec)
	}
}

func (s *Server) sendObs(conn *websocket.Conn, sess *session, stage string, x, y, timeLeft, score int, reward float64, done, flag bool) {
	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		AgentID:         sess.agentID,
		Episode:         sess.env.Episode(),
		Step:            sess.steps,
		Stage:           stage,
		Player: protocol.PlayerObs{
			X:        x,
			Y:        y,
			TimeLeft: timeLeft,
			Score:    score,
		},
		Reward: reward,
		Done:   done,
		Flag:   flag,
	}
	if sess.wantFrames {
		if frame, err := sess.env.Screen(); err == nil && frame != nil {
			var buf bytes.Buffer
			if err := png.Encode(&buf, frame); err == nil {
				obs.FramePNG = base64.StdEncoding.EncodeToString(buf.Bytes())
			}
		}
	}
	if err := writeJSON(conn, obs); err != nil {
		s.log.Printf("send OBS to %s: %v", sess.agentID, err)
	}
}

func (s *Server) sendError(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         msg,
	})
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
