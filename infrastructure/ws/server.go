package ws

import (
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"chat-relay/auth"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/projection"
	"chat-relay/services"
)

// Server assembles the HTTP/websocket surface of the engine.
type Server struct {
	log            *slog.Logger
	chatService    services.IChatService
	accountService services.IAccountService
	timeline       *projection.Timeline
	tokens         *auth.TokenManager
	chatHandler    *ChatHandler
	searchLimit    int
}

func NewServer(log *slog.Logger, chatService services.IChatService,
	accountService services.IAccountService, timeline *projection.Timeline,
	tokens *auth.TokenManager, chatHandler *ChatHandler, searchLimit int) *Server {
	return &Server{
		log:            log,
		chatService:    chatService,
		accountService: accountService,
		timeline:       timeline,
		tokens:         tokens,
		chatHandler:    chatHandler,
		searchLimit:    searchLimit,
	}
}

func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Post("/api/auth/register", s.handleRegister)
	app.Post("/api/auth/login", s.handleLogin)

	api := app.Group("/api", auth.Middleware(s.tokens))
	api.Get("/users", s.handleSearch)
	api.Get("/feed/recent", s.handleRecentFeed)
	api.Get("/history/public", s.handlePublicHistory)
	api.Get("/history/:peer", s.handleHistory)

	app.Use("/ws", auth.Middleware(s.tokens), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.chatHandler.Handle))

	return app
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body")
	}
	token, err := s.accountService.Register(req.Username, req.Password)
	if err != nil {
		return fiber.NewError(errors.MapToHTTPStatus(err), err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(tokenResponse{Token: string(token)})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body")
	}
	token, err := s.accountService.Login(req.Username, req.Password)
	if err != nil {
		return fiber.NewError(errors.MapToHTTPStatus(err), err.Error())
	}
	return c.JSON(tokenResponse{Token: string(token)})
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing query")
	}
	names, err := s.accountService.Search(c.Context(), query, s.searchLimit)
	if err != nil {
		return fiber.NewError(errors.MapToHTTPStatus(err), err.Error())
	}
	return c.JSON(names)
}

type historyResponse struct {
	Messages []chat.Message `json:"messages"`
	Cursor   *string        `json:"cursor,omitempty"`
}

// handleHistory serves the caller's private conversation with one peer.
// Default is the newest page with a resume cursor; order=asc returns the
// complete conversation in delivery order.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	identity := c.Locals(auth.UsernameKey).(string)
	peer := c.Params("peer")

	if c.Query("order") == "asc" {
		messages, err := s.chatService.History(identity, peer)
		if err != nil {
			return fiber.NewError(errors.MapToHTTPStatus(err), err.Error())
		}
		return c.JSON(historyResponse{Messages: messages})
	}

	var cursor *string
	if v := c.Query("cursor"); v != "" {
		cursor = &v
	}
	messages, next, err := s.chatService.HistoryPage(chat.HistoryQuery{
		A: identity, B: peer, Cursor: cursor,
	})
	if err != nil {
		return fiber.NewError(errors.MapToHTTPStatus(err), err.Error())
	}
	return c.JSON(historyResponse{Messages: messages, Cursor: next})
}

func (s *Server) handlePublicHistory(c *fiber.Ctx) error {
	var cursor *string
	if v := c.Query("cursor"); v != "" {
		cursor = &v
	}
	messages, next, err := s.chatService.HistoryPage(chat.HistoryQuery{
		A: chat.PublicReceiver, B: chat.PublicReceiver, Cursor: cursor,
	})
	if err != nil {
		return fiber.NewError(errors.MapToHTTPStatus(err), err.Error())
	}
	return c.JSON(historyResponse{Messages: messages, Cursor: next})
}

func (s *Server) handleRecentFeed(c *fiber.Ctx) error {
	return c.JSON(historyResponse{Messages: s.timeline.Recent()})
}
