package server

import (
	"bytes"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/output"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// turnView is a turn as shown to the user: which bot wrote it stays hidden.
type turnView struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func hideBots(turns []clinic.Turn) []turnView {
	out := make([]turnView, len(turns))
	for i, t := range turns {
		out[i] = turnView{Role: t.Role, Text: t.Text}
	}
	return out
}

func (s *Server) listBots(c *fiber.Ctx) error {
	return c.JSON(s.session.Bots())
}

func (s *Server) getBot(c *fiber.Ctx) error {
	b, err := s.session.Bot(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(b)
}

func (s *Server) createBot(c *fiber.Ctx) error {
	// New bots take part in rounds unless the body says otherwise.
	b := clinic.Bot{Enabled: true}
	if err := c.BodyParser(&b); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid bot: "+err.Error())
	}
	if b.Context == "" {
		b.Context = clinic.DefaultContext
	}
	if err := s.presets.Apply(&b); err != nil {
		return err
	}
	added, err := s.session.AddBot(c.UserContext(), b)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(added)
}

func (s *Server) updateBot(c *fiber.Ctx) error {
	var u clinic.BotUpdate
	if err := c.BodyParser(&u); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid update: "+err.Error())
	}
	// Switching preset without explicit parameters reseeds them from the preset.
	if u.Preset != nil && *u.Preset != "" && u.Parameters == nil {
		p, err := s.presets.Get(*u.Preset)
		if err != nil {
			return &clinic.ValidationError{Field: "preset", Reason: err.Error()}
		}
		u.Parameters = &p.Parameters
	}
	updated, err := s.session.UpdateBot(c.UserContext(), c.Params("id"), u)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}

func (s *Server) deleteBot(c *fiber.Ctx) error {
	if err := s.session.RemoveBot(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) listPresets(c *fiber.Ctx) error {
	var out []fiber.Map
	for _, name := range s.presets.Names() {
		p, err := s.presets.Get(name)
		if err != nil {
			continue
		}
		out = append(out, fiber.Map{"name": p.Name, "parameters": p.Parameters})
	}
	return c.JSON(out)
}

func (s *Server) getSettings(c *fiber.Ctx) error {
	return c.JSON(s.session.Settings())
}

func (s *Server) putSettings(c *fiber.Ctx) error {
	var set clinic.Settings
	if err := c.BodyParser(&set); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid settings: "+err.Error())
	}
	if err := s.session.SetSettings(c.UserContext(), set); err != nil {
		return err
	}
	return c.JSON(s.session.Settings())
}

func (s *Server) getChat(c *fiber.Ctx) error {
	body := fiber.Map{
		"running": s.session.Running(),
		"state":   s.session.State(),
		"turns":   hideBots(s.session.Conversation()),
	}
	if view, ok := s.session.CurrentRound(); ok {
		body["round"] = view
	}
	return c.JSON(body)
}

func (s *Server) startChat(c *fiber.Ctx) error {
	s.session.Start()
	return s.getChat(c)
}

func (s *Server) stopChat(c *fiber.Ctx) error {
	s.session.Stop()
	return s.getChat(c)
}

type roundRequest struct {
	Message string `json:"message"`
}

func (s *Server) createRound(c *fiber.Ctx) error {
	var req roundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid round request: "+err.Error())
	}
	view, err := s.session.Send(c.UserContext(), req.Message)
	return s.roundResponse(c, view, err)
}

func (s *Server) retry(c *fiber.Ctx) error {
	view, err := s.session.Retry(c.UserContext(), c.Params("id"))
	return s.roundResponse(c, view, err)
}

func (s *Server) roundResponse(c *fiber.Ctx, view clinic.RoundView, err error) error {
	var dre *clinic.DegradedRoundError
	if err != nil && !errors.As(err, &dre) {
		return err
	}
	if s.opts.OnRound != nil && view.ID != "" {
		s.opts.OnRound(view)
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

type voteRequest struct {
	Position *int `json:"position"`
}

func (s *Server) vote(c *fiber.Ctx) error {
	var req voteRequest
	if err := c.BodyParser(&req); err != nil || req.Position == nil {
		return fiber.NewError(fiber.StatusBadRequest, "position is required")
	}
	turn, err := s.session.Vote(c.UserContext(), c.Params("id"), *req.Position)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"turn": turnView{Role: turn.Role, Text: turn.Text}})
}

func (s *Server) discard(c *fiber.Ctx) error {
	if err := s.session.Discard(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) getStats(c *fiber.Ctx) error {
	return c.JSON(s.session.Stats())
}

func (s *Server) resetStats(c *fiber.Ctx) error {
	if err := s.session.ResetVotes(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(s.session.Stats())
}

func (s *Server) statsPage(c *fiber.Ctx) error {
	md := "# Chatbot Clinic statistics\n\n" + output.StatsMarkdown(s.session.Stats())
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Chatbot Clinic</title></head><body>\n")
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return err
	}
	buf.WriteString("</body></html>\n")
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}
