package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/gookit/color"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"

	"chat-relay/auth"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/ws"
	"chat-relay/moderation"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
)

// BaseAPISuite boots the whole engine in-process and exposes its HTTP
// surface through fiber's test transport, so scenarios run against the
// exact request path of a deployed server without binding a port.
type BaseAPISuite struct {
	suite.Suite
	Config Config

	App      *fiber.App
	Router   *runtime.Router
	Timeline *projection.Timeline

	cancel context.CancelFunc
	done   chan struct{}
	closes []func() error
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseAPISuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	s.Require().NoError(err)
	s.closes = append(s.closes, db.Close)

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(s.T().TempDir()))
	s.Require().NoError(err)
	s.closes = append(s.closes, writer.Close)

	messageRepository, err := repositories.NewMessageRepository(db, log, lo.ToPtr(100))
	s.Require().NoError(err)
	s.closes = append(s.closes, messageRepository.Close)

	moderator, err := moderation.NewModerator([]string{"badger"}, '*')
	s.Require().NoError(err)

	registry := runtime.NewRegistry()
	events := make(chan event.Event, 64)
	router := runtime.NewRouter(log, messageRepository, registry, &moderator, events, 500)
	timeline := projection.NewTimeline(10)

	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewEventFanout(log, events, timeline))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(s.done)
	}()

	tokens := auth.NewTokenManager("e2e-secret", time.Hour)
	accountService := services.NewAccountService(log,
		repositories.NewUserRepository(db),
		repositories.NewUserIndex(writer, log), tokens)
	chatService := services.NewChatService(router)

	chatHandler := ws.NewChatHandler(log, ctx, chatService, registry, sup,
		events, 64, time.Second)
	s.App = ws.NewServer(log, chatService, accountService, timeline,
		tokens, chatHandler, 20).App()
	s.Router = router
	s.Timeline = timeline
}

func (s *BaseAPISuite) TearDownSuite() {
	s.cancel()
	<-s.done
	for i := len(s.closes) - 1; i >= 0; i-- {
		s.Require().NoError(s.closes[i]())
	}
}

// Header prints a colorized banner for a scenario step in logs
func (s *BaseAPISuite) Header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// DoJSON sends one request through the in-process transport and decodes
// the JSON response into out (when non-nil). The session token is attached
// as a Bearer header when provided.
func (s *BaseAPISuite) DoJSON(method, target, token string, body, out any) int {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
		s.debug("request", payload)
	}

	req, err := http.NewRequest(method, target, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.App.Test(req, -1)
	s.Require().NoError(err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.debug("response", data)

	if out != nil && resp.StatusCode < 300 {
		s.Require().NoError(json.Unmarshal(data, out))
	}
	return resp.StatusCode
}

func (s *BaseAPISuite) debug(kind string, payload []byte) {
	if !s.Config.DebugJSON {
		return
	}
	line := fmt.Sprintf("%s: %s", kind, payload)
	if s.Config.Colours {
		line = color.New(color.FgCyan).Render(line)
	}
	s.T().Log(line)
}
