package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/fasthttp/websocket"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/valyala/fasthttp"

	"chat-relay/infrastructure/ws"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	Username      string `env:"CHAT_USERNAME,required=true"`
	Password      string `env:"CHAT_PASSWORD,required=true"`
	LogLevel      string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v", err)
	}
	os.Exit(code)
}

// run handles the client lifecycle: configuration, authentication, the
// websocket stream, and the stdin send loop.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Authenticate over the HTTP API. A fresh username is registered
	// transparently on the first connection.
	token, err := authenticate(config)
	if err != nil {
		return exitRuntime, err
	}

	// 4. Open the websocket stream using the session token.
	wsURL := fmt.Sprintf("ws://%s/ws?token=%s", config.ServerAddress, token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	log.Info(fmt.Sprintf(">>> Connected to %s as %s (Ctrl+C to quit, @name for private messages)...",
		config.ServerAddress, config.Username))

	// 5. Reception loop in a goroutine; the main goroutine owns stdin.
	recvDone := make(chan error, 1)
	go func() { recvDone <- receive(conn) }()

	sendDone := make(chan error, 1)
	go func() { sendDone <- send(conn) }()

	select {
	case <-ctx.Done():
		log.Info("Stopping client...")
		return exitOK, nil
	case err := <-recvDone:
		if err != nil && ctx.Err() == nil {
			return exitRuntime, fmt.Errorf("stream error: %w", err)
		}
		return exitOK, nil
	case err := <-sendDone:
		if err != nil {
			return exitRuntime, err
		}
		return exitOK, nil
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// authenticate logs in, falling back to registration when the account does
// not exist yet.
func authenticate(config Config) (string, error) {
	token, status, err := postCredentials(config, "/api/auth/login")
	if err != nil {
		return "", err
	}
	if status == fasthttp.StatusOK {
		return token, nil
	}

	token, status, err = postCredentials(config, "/api/auth/register")
	if err != nil {
		return "", err
	}
	if status != fasthttp.StatusCreated {
		return "", fmt.Errorf("authentication refused (status %d)", status)
	}
	return token, nil
}

func postCredentials(config Config, path string) (string, int, error) {
	body, err := json.Marshal(credentials{Username: config.Username, Password: config.Password})
	if err != nil {
		return "", 0, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://" + config.ServerAddress + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := fasthttp.DoTimeout(req, resp, 5*time.Second); err != nil {
		return "", 0, fmt.Errorf("could not reach server at %s: %w", config.ServerAddress, err)
	}

	var tr tokenResponse
	if resp.StatusCode() < 300 {
		if err := json.Unmarshal(resp.Body(), &tr); err != nil {
			return "", 0, err
		}
	}
	return tr.Token, resp.StatusCode(), nil
}

// receive prints every frame pushed by the server until the stream ends.
func receive(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame ws.OutboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		switch frame.Kind {
		case ws.KindMessage:
			m := frame.Message
			if m == nil {
				continue
			}
			line := fmt.Sprintf("[%s] %s: %s", m.At.Format(time.TimeOnly), m.Sender, m.Body)
			if m.Public() {
				fmt.Println(line)
			} else {
				color.Magenta.Println(line + " (private)")
			}
		case ws.KindError:
			color.Red.Println("rejected: " + frame.Error)
		}
	}
}

// send reads stdin lines and turns them into frames. A line starting with
// "@name " goes private to that name; anything else goes to the feed.
func send(conn *websocket.Conn) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		frame := ws.InboundFrame{Kind: ws.KindPublic, Body: line}
		if strings.HasPrefix(line, "@") {
			to, body, found := strings.Cut(line[1:], " ")
			if !found || to == "" {
				color.Red.Println("usage: @name message")
				continue
			}
			frame = ws.InboundFrame{Kind: ws.KindPrivate, To: to, Body: body}
		}

		if err := conn.WriteJSON(frame); err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
	}
	return scanner.Err()
}
