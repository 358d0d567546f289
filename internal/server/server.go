// Package server exposes a clinic session over HTTP.
package server

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/presets"
)

// Options configure a Server.
type Options struct {
	// RequestLog enables fiber's request logger.
	RequestLog bool
	// OnRound is called after each round opens, e.g. to write a session log.
	OnRound func(clinic.RoundView)
}

// Server serves the clinic JSON API and the statistics page.
type Server struct {
	app     *fiber.App
	session *clinic.Session
	presets *presets.Registry
	opts    Options
}

// New wires routes for session. presets may be nil.
func New(session *clinic.Session, reg *presets.Registry, opts Options) *Server {
	if reg == nil {
		reg = presets.NewRegistry()
	}
	s := &Server{session: session, presets: reg, opts: opts}
	s.app = fiber.New(fiber.Config{
		AppName:               "Chatbot Clinic",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.app.Use(recover.New())
	if opts.RequestLog {
		s.app.Use(logger.New())
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")

	api.Get("/bots", s.listBots)
	api.Post("/bots", s.createBot)
	api.Get("/bots/:id", s.getBot)
	api.Patch("/bots/:id", s.updateBot)
	api.Delete("/bots/:id", s.deleteBot)

	api.Get("/presets", s.listPresets)

	api.Get("/settings", s.getSettings)
	api.Put("/settings", s.putSettings)

	api.Get("/chat", s.getChat)
	api.Post("/chat/start", s.startChat)
	api.Post("/chat/stop", s.stopChat)

	api.Post("/rounds", s.createRound)
	api.Post("/rounds/:id/vote", s.vote)
	api.Post("/rounds/:id/retry", s.retry)
	api.Post("/rounds/:id/discard", s.discard)

	api.Get("/stats", s.getStats)
	api.Post("/stats/reset", s.resetStats)

	s.app.Get("/stats", s.statsPage)
}

// App returns the underlying fiber app, mostly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	log.Printf("[server] listening on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

type errorBody struct {
	Error  string   `json:"error"`
	Failed []string `json:"failed,omitempty"`
	Total  int      `json:"total,omitempty"`
}

// StatusFor maps clinic errors to HTTP status codes.
func StatusFor(err error) int {
	var (
		fe  *fiber.Error
		ve  *clinic.ValidationError
		ise *clinic.InvalidSelectionError
		be  *clinic.BackendError
		dre *clinic.DegradedRoundError
	)
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve):
		return fiber.StatusBadRequest
	case errors.Is(err, clinic.ErrBotNotFound), errors.Is(err, presets.ErrUnknownPreset):
		return fiber.StatusNotFound
	case errors.As(err, &ise), errors.Is(err, clinic.ErrRoundInProgress), errors.Is(err, clinic.ErrNoChat):
		return fiber.StatusConflict
	case errors.As(err, &be), errors.As(err, &dre):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	body := errorBody{Error: err.Error()}
	var dre *clinic.DegradedRoundError
	if errors.As(err, &dre) {
		body.Failed = dre.Failed
		body.Total = dre.Total
	}
	if code >= fiber.StatusInternalServerError {
		log.Printf("[server] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(body)
}
