package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-relay/auth"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/sink"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database cleanup included)
// executes before the process exits.
func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) && config.DebugPort != 0 {
		logger.Info("Debug store inspector available",
			"url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
		internal.StartDebugServer(db, config.DebugPort, "/inspect")
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	messageRepository, err := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = messageRepository.Close() }()

	userRepository := repositories.NewUserRepository(db)
	userIndex := repositories.NewUserIndex(blugeWriter, logger)

	// 3. Moderation
	censored, err := moderation.LoadCensoredWords()
	if err != nil {
		return exitRuntime, err
	}
	logger.Info(fmt.Sprintf("%d censored words loaded (%d languages)",
		len(censored.Words), len(censored.Languages)))

	moderator, err := moderation.NewModerator(censored.Words, charReplacement)
	if err != nil {
		return exitRuntime, err
	}

	// 4. Engine: registry, router, supervised workers
	registry := runtime.NewRegistry()
	events := make(chan event.Event, config.BufferSize)
	router := runtime.NewRouter(logger, messageRepository, registry,
		&moderator, events, config.MaxContentLength)

	timeline := projection.NewTimeline(config.RecentFeedSize)
	telemetry := sink.NewTelemetry(logger, config.LatencyThreshold)

	sup := workers.NewSupervisor(logger)
	sup.Add(workers.NewEventFanout(logger, events, timeline, telemetry))
	sup.Add(workers.NewHealthWorker(logger, registry, config.MetricInterval))

	// 5. Services & transport surface
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	chatService := services.NewChatService(router)
	accountService := services.NewAccountService(logger, userRepository, userIndex, tokens)

	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	chatHandler := ws.NewChatHandler(logger, ctx, chatService, registry, sup,
		events, config.ConnectionBufferSize, config.SendTimeout)
	server := ws.NewServer(logger, chatService, accountService, timeline,
		tokens, chatHandler, config.SearchLimit)
	app := server.App()

	// 6. Start workers and the listener
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		logger.Info("Starting supervised workers")
		sup.Run(ctx)
	}()

	errChan := make(chan error, 1)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	go func() {
		logger.Info("Listening", "address", address)
		errChan <- app.Listen(address)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		if err != nil {
			sup.Stop()
			<-supDone
			return exitRuntime, fmt.Errorf("listener error: %w", err)
		}
	}

	// 7. Graceful shutdown: close the listener first so no new sessions
	// appear, then stop workers and wait for every drain loop to finish.
	if err := app.Shutdown(); err != nil {
		logger.Error("Listener shutdown failed", "error", err)
	}
	sup.Stop()
	<-supDone

	logger.Info("Server stopped")
	return exitOK, nil
}
