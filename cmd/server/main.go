package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/ganot/stepwise/internal/config"
	"github.com/ganot/stepwise/internal/domain/activity"
	"github.com/ganot/stepwise/internal/domain/progress"
	"github.com/ganot/stepwise/internal/domain/quota"
	"github.com/ganot/stepwise/internal/domain/submission"
	"github.com/ganot/stepwise/internal/domain/suggestion"
	"github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/ganot/stepwise/internal/mcp"
	"github.com/ganot/stepwise/internal/sqlite"
	"github.com/ganot/stepwise/internal/transport"
	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		fileWriter, file, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		logger.Error("failed to prepare database path", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	keys := sqlite.NewAPIKeyRepository(db)

	// create-api-key <tenant> prints a new key and exits.
	if len(os.Args) == 3 && os.Args[1] == "create-api-key" {
		token := "sw_" + uuid.NewString()
		if err := keys.Create(context.Background(), os.Args[2], token, "created by create-api-key"); err != nil {
			logger.Error("failed to create api key", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(ctx, cfg.Suggestions)
	if err != nil {
		logger.Error("failed to create suggestion provider", "error", err)
		os.Exit(1)
	}

	catalog := wizard.DefaultCatalog()
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), logger)
	quotaSvc := quota.NewService(sqlite.NewQuotaRepository(db), quota.Limits{
		Default:     cfg.Quota.DefaultLimit,
		Plans:       cfg.Quota.Plans,
		TenantPlans: cfg.Quota.TenantPlans,
	}, logger)

	services := transport.Services{
		Catalog:     catalog,
		Progress:    progress.NewService(catalog, sqlite.NewProgressRepository(db), activitySvc, logger),
		Suggestions: suggestion.NewService(catalog, quotaSvc, provider, activitySvc, logger),
		Quotas:      quotaSvc,
		Submissions: submission.NewService(catalog, sqlite.NewSubmissionRepository(db), activitySvc, logger),
		Activity:    activitySvc,
	}

	rollover, err := quota.NewRolloverJob(quotaSvc, cfg.Quota.RolloverCron, logger)
	if err != nil {
		logger.Error("failed to schedule quota rollover", "error", err)
		os.Exit(1)
	}
	rollover.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		rollover.Stop(stopCtx)
	}()

	resolver := newResolver(cfg.Auth, keys)
	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Catalog:     services.Catalog,
			Progress:    services.Progress,
			Suggestions: services.Suggestions,
			Quotas:      services.Quotas,
			Submissions: services.Submissions,
			Activity:    services.Activity,
		},
		Resolver:      resolver,
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		DefaultTenant: cfg.Transport.DefaultTenant,
		Logger:        logger,
	})

	if cfg.Transport.Mode == "stdio" {
		err = runStdioMode(ctx, logger, mcpServer)
	} else {
		opts := transport.Options{
			MCP:               mcp.NewHTTPHandler(mcpServer),
			SuggestionLimiter: transport.NewTenantLimiter(cfg.Suggestions.RatePerSec, cfg.Suggestions.Burst),
			Logger:            logger,
		}
		if cfg.Auth.Enabled {
			opts.Auth = transport.AuthMiddleware(resolver)
		}
		err = runHTTPMode(ctx, logger, cfg.Server, transport.NewServer(services, opts))
	}
	if err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newResolver(cfg config.AuthConfig, keys *sqlite.APIKeyRepository) transport.TenantResolver {
	if cfg.Mode == "jwt" {
		return transport.NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer)
	}
	return transport.NewAPIKeyResolver(keys)
}

func newProvider(ctx context.Context, cfg config.SuggestionsConfig) (suggestion.Provider, error) {
	if cfg.Provider == "genai" {
		p, err := suggestion.NewGenAIProvider(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return suggestion.NewRuleProvider(), nil
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	// Run blocks until stdin closes or context is canceled
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, cfg config.ServerConfig, handler http.Handler) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const (
	maxLogSizeBytes  = 6 * 1024 * 1024
	keepLogSizeBytes = 5 * 1024 * 1024
)

// logFileWriter appends to a file and trims it to its newest bytes once it
// grows past maxLogSizeBytes.
type logFileWriter struct {
	file *os.File
	mu   sync.Mutex
}

func newLogFileWriter(path string) (*logFileWriter, *os.File, error) {
	if err := ensureDBDir(path); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	writer := &logFileWriter{file: file}
	if err := writer.trim(); err != nil {
		return nil, nil, err
	}
	return writer, file, nil
}

func (w *logFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}
	return n, w.trim()
}

func (w *logFileWriter) trim() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= maxLogSizeBytes {
		return nil
	}

	buf := make([]byte, keepLogSizeBytes)
	n, err := w.file.ReadAt(buf, size-keepLogSizeBytes)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if err := w.file.Truncate(0); err != nil {
		return err
	}
	// O_APPEND writes always land at the end, so the kept tail goes first.
	_, err = w.file.Write(buf[:n])
	return err
}
