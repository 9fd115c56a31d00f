// Package server exposes a single reactor episode over HTTP so an external
// agent can drive it with reset and step calls.
package server

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/san-kum/cstrsim/internal/automation"
	"github.com/san-kum/cstrsim/internal/reactor"
)

type Server struct {
	mu  sync.Mutex
	ep  *reactor.Episode
	app *fiber.App
	log *zap.Logger

	subsMu sync.Mutex
	subs   map[*websocket.Conn]struct{}
}

type StepResponse struct {
	State      reactor.Observation `json:"state"`
	Halted     bool                `json:"halted"`
	HaltReason string              `json:"halt_reason,omitempty"`
}

type ResetResponse struct {
	Episode string                `json:"episode"`
	Config  reactor.EpisodeConfig `json:"config"`
	State   reactor.Observation   `json:"state"`
}

type HaltedResponse struct {
	Halted bool   `json:"halted"`
	Reason string `json:"reason"`
}

type EpisodeInfo struct {
	ID      string                `json:"id"`
	Phase   string                `json:"phase"`
	Steps   int                   `json:"steps"`
	Elapsed float64               `json:"elapsed"`
	Config  reactor.EpisodeConfig `json:"config"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type stepRequest struct {
	TcAdjust *float64 `json:"Tc_adjust"`
}

func New(ep *reactor.Episode, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		ep:   ep,
		log:  log,
		subs: make(map[*websocket.Conn]struct{}),
	}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	v1 := s.app.Group("/v1")
	v1.Post("/reset", s.reset)
	v1.Post("/step", s.step)
	v1.Get("/state", s.state)
	v1.Get("/halted", s.halted)
	v1.Get("/episode", s.episode)

	v1.Use("/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	v1.Get("/stream", websocket.New(s.stream))
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.log.Info("serving episode", zap.String("addr", addr), zap.String("episode", s.ep.ID()))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) reset(c *fiber.Ctx) error {
	var spec automation.EpisodeSpec
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &spec); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid episode config: "+err.Error())
		}
	}

	s.mu.Lock()
	obs, err := s.ep.Reset(spec.Config())
	resp := ResetResponse{Episode: s.ep.ID(), Config: s.ep.Config(), State: obs}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.log.Info("episode started",
		zap.String("episode", resp.Episode),
		zap.Stringer("mode", resp.Config.Mode),
	)
	s.broadcast(StepResponse{State: obs})
	return c.JSON(resp)
}

func (s *Server) step(c *fiber.Ctx) error {
	var req stepRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid action: "+err.Error())
	}
	if req.TcAdjust == nil {
		return fiber.NewError(fiber.StatusBadRequest, "action requires Tc_adjust")
	}

	s.mu.Lock()
	obs, err := s.ep.Step(reactor.Action{CoolantDelta: *req.TcAdjust})
	resp := s.stepResponse(obs)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.broadcast(resp)
	return c.JSON(resp)
}

func (s *Server) stepResponse(obs reactor.Observation) StepResponse {
	resp := StepResponse{State: obs, Halted: s.ep.Halted()}
	if resp.Halted {
		resp.HaltReason = s.ep.HaltReason().String()
	}
	return resp
}

func (s *Server) state(c *fiber.Ctx) error {
	s.mu.Lock()
	obs := s.ep.State()
	s.mu.Unlock()
	return c.JSON(obs)
}

func (s *Server) halted(c *fiber.Ctx) error {
	s.mu.Lock()
	resp := HaltedResponse{Halted: s.ep.Halted(), Reason: s.ep.HaltReason().String()}
	s.mu.Unlock()
	return c.JSON(resp)
}

func (s *Server) episode(c *fiber.Ctx) error {
	s.mu.Lock()
	info := EpisodeInfo{
		ID:      s.ep.ID(),
		Phase:   s.ep.Phase().String(),
		Steps:   s.ep.Steps(),
		Elapsed: s.ep.Elapsed(),
		Config:  s.ep.Config(),
	}
	s.mu.Unlock()
	return c.JSON(info)
}

// stream pushes the current state on connect and every step afterwards.
func (s *Server) stream(conn *websocket.Conn) {
	s.mu.Lock()
	initial := s.stepResponse(s.ep.State())
	s.mu.Unlock()

	s.subsMu.Lock()
	s.subs[conn] = struct{}{}
	err := conn.WriteJSON(initial)
	s.subsMu.Unlock()

	defer func() {
		s.subsMu.Lock()
		delete(s.subs, conn)
		s.subsMu.Unlock()
		conn.Close()
	}()
	if err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.log.Debug("stream closed", zap.Error(err))
			return
		}
	}
}

func (s *Server) broadcast(v StepResponse) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for conn := range s.subs {
		if err := conn.WriteJSON(v); err != nil {
			s.log.Debug("dropping stream subscriber", zap.Error(err))
			delete(s.subs, conn)
		}
	}
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, reactor.ErrHalted):
		return fiber.StatusConflict
	case errors.Is(err, reactor.ErrActuatorLimitExceeded):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, reactor.ErrInvalidConfig):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	} else {
		s.log.Debug("request rejected", zap.String("path", c.Path()), zap.Int("status", code), zap.Error(err))
	}
	return c.Status(code).JSON(errorResponse{Error: err.Error()})
}
