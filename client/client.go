package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/mama165/sdk-go/logs"

	"cinematch/projection"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `env:"CINEMATCH_SERVER_URL,default=http://localhost:8080"`
	UserID    string `env:"CINEMATCH_USER_ID,required=true"`
	Username  string `env:"CINEMATCH_USERNAME,required=true"`
	AvatarURL string `env:"CINEMATCH_AVATAR_URL"`
	LogLevel  string `env:"LOG_LEVEL,default=ERROR"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the client lifecycle: configuration, authentication, the
// websocket feed and the interactive loop.
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

	// 3. Authenticate and open the event feed.
	client := newAPI(config.ServerURL)
	if err := client.Authenticate(config.UserID, config.Username, config.AvatarURL); err != nil {
		return exitRuntime, fmt.Errorf("could not authenticate against %s: %w", config.ServerURL, err)
	}

	conn, err := client.Dial(ctx)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	session := &app{
		log:      log,
		api:      client,
		conn:     conn,
		selfID:   config.UserID,
		timeline: projection.NewTimeline(),
	}

	// 4. Pump server frames and stdin lines into channels the loop can select on.
	events := make(chan wsEvent, 16)
	go func() {
		defer close(events)
		for {
			var evt wsEvent
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			events <- evt
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	notice("Connected to %s as %s. /help lists commands, Ctrl+C quits.",
		config.ServerURL, config.Username)

	// 5. Main loop. Runs until the user quits, a signal arrives or the
	// server drops the feed.
	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping client...")
			return exitOK, nil
		case evt, ok := <-events:
			if !ok {
				return exitRuntime, fmt.Errorf("event feed closed by server")
			}
			session.handleEvent(evt)
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if quit := session.handleLine(strings.TrimSpace(line)); quit {
				return exitOK, nil
			}
		}
	}
}
