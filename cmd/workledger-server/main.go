package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	server "github.com/workledger/workledger/internal"
	"github.com/workledger/workledger/internal/attachment"
	attachmentrepo "github.com/workledger/workledger/internal/attachment/repositoryimpl"
	"github.com/workledger/workledger/internal/config"
	"github.com/workledger/workledger/internal/eventbus"
	"github.com/workledger/workledger/internal/overdue"
	"github.com/workledger/workledger/internal/task"
	taskrepo "github.com/workledger/workledger/internal/task/repositoryimpl"
	"github.com/workledger/workledger/pkg/clog"
	"github.com/workledger/workledger/pkg/storage"
)

var (
	app         = kingpin.New("workledger-server", "Task lifecycle and progress audit engine")
	serveCmd    = app.Command("serve", "Run the API server").Default()
	sentinelCmd = app.Command("sentinel", "Run the server under the sentinel supervisor")
)

func main() {
	switch kingpin.MustParse(app.Parse(os.Args[1:])) {
	case sentinelCmd.FullCommand():
		runSentinel()
	case serveCmd.FullCommand():
		runServe()
	}
}

func runServe() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	bus := eventbus.New()

	taskRepo := taskrepo.NewYAMLRepository(store, env.StorageEnv.Timeout)
	attachmentRepo := attachmentrepo.NewYAMLRepository(store, env.StorageEnv.Timeout)

	taskService := task.NewService(taskRepo, bus, attachmentRepo, nil)
	attachmentService := attachment.NewService(attachmentRepo, taskRepo, nil)

	srv := server.NewServer(env, task.NewServer(taskService), attachment.NewServer(attachmentService))

	checker := overdue.NewChecker(taskRepo, bus, env.OverdueEnv)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	go func() {
		if err := checker.Run(ctx); err != nil {
			slog.Error("overdue checker stopped", "error", err)
		}
	}()
	go logEvents(ctx, bus)

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// logEvents drains the bus into the log so every emitted event is visible
// even without external subscribers.
func logEvents(ctx context.Context, bus *eventbus.Bus) {
	id, ch := bus.Subscribe(64)
	defer bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			slog.Info("event",
				"type", ev.Type,
				"task_id", ev.TaskID,
				"metadata", ev.Metadata,
			)
		}
	}
}
