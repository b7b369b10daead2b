package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"

	"cinematch/auth"
	"cinematch/bus"
	"cinematch/infrastructure/http/server"
	"cinematch/internal"
	"cinematch/moderation"
	"cinematch/observability"
	"cinematch/repositories"
	"cinematch/runtime"
	"cinematch/runtime/workers"
	"cinematch/search"
	"cinematch/services"
	"cinematch/session"
	"cinematch/sink"
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

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
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

	// 2. Database (BadgerDB)
	options := buildBadgerOpts(config, logger, ctx)

	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint)
		logger.Info("Debug Badger inspector available", "url", url)
		database.StartDebugServer(db, config.DebugPort, endpoint, StoreMapper)
	}

	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.Open(config.BlugeFilepath, logger, 50, 50)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge index: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = index.Close()
	}()

	// 2.bis Embedded Message Broker
	// The NATS server runs inside the process, so a single binary carries
	// the whole data path. Connecting through the client URL keeps the
	// option of pointing the bus at an external cluster later.
	broker, err := bus.StartEmbeddedServer(config.NatsHost, config.NatsPort)
	if err != nil {
		return exitRuntime, fmt.Errorf("broker startup failed: %w", err)
	}
	defer broker.Shutdown()

	eventBus, err := bus.Connect(broker.ClientURL(), logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("bus connection failed: %w", err)
	}
	defer eventBus.Close()

	// 3. Setup Supervision & Engine
	sup := workers.NewSupervisor(logger)
	registry := runtime.NewRegistry()
	roomRepository := repositories.NewRoomRepository(db, logger)
	messageRepository := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	matchRepository := repositories.NewMatchRepository(db, logger)
	revealRepository := repositories.NewRevealRepository(db, logger)

	metrics := observability.NewMetrics()

	wordlists, err := moderation.LoadBuiltin()
	if err != nil {
		return exitRuntime, fmt.Errorf("wordlist loading failed: %w", err)
	}
	logger.Info("Loaded moderation wordlists",
		"languages", wordlists.Languages, "words", len(wordlists.Words))
	moderator, err := moderation.NewModerator(wordlists.Words, charReplacement, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("moderator init failed: %w", err)
	}

	chatService := services.NewChatService(logger, roomRepository, messageRepository,
		&moderator, index, eventBus, metrics, config.MaxContentLength)
	matchService := services.NewMatchService(logger, matchRepository, eventBus, metrics)
	roomService := services.NewRoomService(logger, roomRepository)
	revealService := services.NewRevealService(logger, roomRepository, messageRepository,
		revealRepository, eventBus, metrics, config.RevealThreshold)

	if err := roomService.Provision(internal.SplitList(config.BroadcastRooms)); err != nil {
		return exitRuntime, fmt.Errorf("room provisioning failed: %w", err)
	}

	engine := runtime.NewEngine(logger, sup, registry, eventBus, metrics, matchRepository,
		config.BufferSize, config.SinkTimeout, config.QueueTTL,
		config.JanitorInterval, config.StatsInterval)
	engine.Add(sink.NewMetrics(metrics.BusEvents), search.NewIndexer(index, logger))

	// 4. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Error (HTTP & Engine)
	errChan := make(chan error, 2)

	// 5. Start the Engine (Workers and Fanout)
	go func() {
		logger.Info("Starting engine...")
		if err := engine.Start(ctx); err != nil {
			errChan <- fmt.Errorf("engine error: %w", err)
		}
	}()

	// 6. HTTP Server Setup
	sessions := session.NewManager(logger, chatService, matchService, roomService,
		revealService, engine.Registry(), config.ConnectionBufferSize)
	tokens := auth.NewManager(config.JWTSecret, config.AuthTokenDuration)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	srv := server.NewServer(logger, address, tokens, matchService, roomService,
		chatService, revealService, sessions, metrics,
		internal.SplitList(config.AllowedOrigins),
		config.RequestsPerMinute, config.TokenRequestsPerMinute)

	// Use an error channel to capture ListenAndServe() issues asynchronously.
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	// The execution blocks here until either a signal is received or the server crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	// We let in-flight requests finish and workers drain their channels.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	engine.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// StoreMapper renders store rows for the debug inspector, decoding each
// record by its key prefix.
func StoreMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, "msg:"):
		row.Type = "MESSAGE"
		var m repositories.DiskMessage
		if err := json.Unmarshal(val, &m); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		author := m.Author
		if m.Anonymous {
			author = m.Alias
		}
		row.Detail = fmt.Sprintf("%s: %s", author, m.Content)

	case strings.HasPrefix(key, "room:"):
		row.Type = "ROOM"
		var r repositories.DiskRoom
		if err := json.Unmarshal(val, &r); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Detail = fmt.Sprintf("%s %s (%d members)", r.Kind, r.Name, len(r.Members))

	case strings.HasPrefix(key, "queue:e:"):
		row.Type = "QUEUE"
		var q repositories.DiskQueueEntry
		if err := json.Unmarshal(val, &q); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Detail = fmt.Sprintf("%s waiting since %s", q.UserID, q.EnqueuedAt.Format(time.RFC3339))

	case strings.HasPrefix(key, "reveal:"):
		row.Type = "REVEAL"
		var d repositories.DiskDisclosure
		if err := json.Unmarshal(val, &d); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Detail = fmt.Sprintf("%s revealed as %s", d.UserID, d.Username)

	case strings.HasPrefix(key, "msgcount:"):
		row.Type = "COUNTER"
		row.Detail = fmt.Sprintf("%s messages", val)

	default:
		// Index keys carry no payload, la présence suffit.
		row.Type = "INDEX"
	}

	return row
}
