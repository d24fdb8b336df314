package web

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-cubism/pkg/expression"
	"github.com/teslashibe/go-cubism/pkg/hub"
	"github.com/teslashibe/go-cubism/pkg/live2d"
	"github.com/teslashibe/go-cubism/pkg/motion"
)

var errNoModel = fiber.NewError(fiber.StatusServiceUnavailable, "no model loaded")

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) controller() (Controller, error) {
	if s.ctl == nil {
		return nil, errNoModel
	}
	return s.ctl, nil
}

// handleModel returns the parsed model settings
func (s *Server) handleModel(c *fiber.Ctx) error {
	ctl, err := s.controller()
	if err != nil {
		return err
	}
	return c.JSON(ctl.Settings())
}

// handleState returns the live model status
func (s *Server) handleState(c *fiber.Ctx) error {
	ctl, err := s.controller()
	if err != nil {
		return err
	}
	st, err := ctl.Status()
	if errors.Is(err, live2d.ErrDestroyed) {
		return fiber.NewError(fiber.StatusGone, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(st)
}

// handleEvents returns recent events
func (s *Server) handleEvents(c *fiber.Ctx) error {
	s.recentMu.RLock()
	defer s.recentMu.RUnlock()
	return c.JSON(s.recent)
}

// MotionRequest is the optional body of POST /api/motions/:group[/:index].
type MotionRequest struct {
	Priority   string  `json:"priority"`
	Expression string  `json:"expression"`
	Volume     float64 `json:"volume"`
}

// handleMotion starts a motion; without an index a random one is picked
func (s *Server) handleMotion(c *fiber.Ctx) error {
	ctl, err := s.controller()
	if err != nil {
		return err
	}
	group := c.Params("group")
	index := -1
	if raw := c.Params("index"); raw != "" {
		index, err = strconv.Atoi(raw)
		if err != nil || index < 0 {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid motion index %q", raw))
		}
	}

	defs, ok := ctl.Settings().Motions[group]
	if !ok || index >= len(defs) {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("%v: %s[%d]", motion.ErrDefinitionNotFound, group, index))
	}

	var req MotionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	priority := motion.PriorityNormal
	if req.Priority != "" {
		if priority, err = motion.ParsePriority(req.Priority); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	var opts []motion.StartOption
	if req.Expression != "" {
		opts = append(opts, motion.WithExpression(expression.ParseRef(req.Expression)))
	}
	if req.Volume > 0 {
		opts = append(opts, motion.WithVolume(req.Volume))
	}

	started := ctl.Motion(c.UserContext(), group, index, priority, opts...)
	return c.JSON(fiber.Map{"started": started, "group": group, "index": index, "priority": priority})
}

// handleExpression sets an expression by index or name, or a random one
func (s *Server) handleExpression(c *fiber.Ctx) error {
	ctl, err := s.controller()
	if err != nil {
		return err
	}
	ref := expression.ParseRef(c.Params("ref"))
	return c.JSON(fiber.Map{"applied": ctl.Expression(c.UserContext(), ref), "ref": ref.String()})
}

// handleResetExpression shows the default expression
func (s *Server) handleResetExpression(c *fiber.Ctx) error {
	ctl, err := s.controller()
	if err != nil {
		return err
	}
	ctl.ResetExpression()
	return c.SendStatus(fiber.StatusNoContent)
}

// SpeakRequest is the body of POST /api/speak.
type SpeakRequest struct {
	Asset           string  `json:"asset"`
	Volume          float64 `json:"volume"`
	Expression      string  `json:"expression"`
	ResetExpression bool    `json:"reset_expression"`
}

// handleSpeak plays a sound asset with lip sync in the background
func (s *Server) handleSpeak(c *fiber.Ctx) error {
	ctl, err := s.controller()
	if err != nil {
		return err
	}
	var req SpeakRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if req.Asset == "" {
		return fiber.NewError(fiber.StatusBadRequest, "asset is required")
	}

	opts := motion.SpeakOptions{
		Volume:          req.Volume,
		Expression:      expression.ParseRef(req.Expression),
		ResetExpression: req.ResetExpression,
	}
	go func() {
		ok, err := ctl.SpeakAsset(s.ctx, req.Asset, opts)
		if err != nil {
			s.logger.Warn("speak failed", "asset", req.Asset, "error", err)
			return
		}
		s.Publish("speak_end", fiber.Map{"asset": req.Asset, "spoken": ok})
	}()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"asset": req.Asset})
}

// FocusRequest is the body of POST /api/focus.
type FocusRequest struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Instant bool    `json:"instant"`
}

// handleFocus points the gaze at a world point
func (s *Server) handleFocus(c *fiber.Ctx) error {
	ctl, err := s.controller()
	if err != nil {
		return err
	}
	var req FocusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	ctl.Focus(req.X, req.Y, req.Instant)
	return c.SendStatus(fiber.StatusNoContent)
}

// handleTap hit-tests a world point
func (s *Server) handleTap(c *fiber.Ctx) error {
	ctl, err := s.controller()
	if err != nil {
		return err
	}
	var req FocusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	areas := ctl.Tap(req.X, req.Y)
	if areas == nil {
		areas = []string{}
	}
	return c.JSON(fiber.Map{"areas": areas})
}

// handleStop stops every motion
func (s *Server) handleStop(c *fiber.Ctx) error {
	ctl, err := s.controller()
	if err != nil {
		return err
	}
	ctl.StopMotions()
	return c.SendStatus(fiber.StatusNoContent)
}

// handleEventsWS streams events, starting with the current status
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	if s.ctl != nil {
		if st, err := s.ctl.Status(); err == nil {
			conn.WriteJSON(hub.NewEvent("status", st))
		}
	}
	var opts []hub.ClientOption
	if types := conn.Query("types"); types != "" {
		opts = append(opts, hub.WithTopics(strings.Split(types, ",")...))
	}
	client := hub.NewClient(s.events, conn, opts...)
	if client == nil {
		return
	}
	client.Run()
}
