package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/tastetwin/internal/api"
	"github.com/kalambet/tastetwin/internal/config"
	"github.com/kalambet/tastetwin/internal/embedding"
	"github.com/kalambet/tastetwin/internal/storage"
	"github.com/kalambet/tastetwin/internal/taste"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tastetwin server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running tastetwin server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tastetwin system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tool surface over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "tastetwin.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func newProvider(cfg config.Config) embedding.Provider {
	if cfg.Embedding.Provider == config.ProviderOllama {
		return embedding.NewOllama(cfg.Embedding.BaseURL, cfg.Embedding.Model)
	}
	return embedding.NewOpenAI(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model)
}

func setupLogging(cfg config.Config) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "tastetwin version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	// Refuse a second instance. The health endpoint is the source of truth,
	// the PID file only names the culprit.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("tastetwin is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("tastetwin is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	svc := taste.NewService(store, newProvider(cfg), cfg.RecognizedSources())
	handler := api.NewAppHandler(api.AppDeps{
		Service:        svc,
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxK:           cfg.Matching.MaxK,
		RateLimit:      cfg.Server.RateLimit,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("tastetwin listening", "addr", addr, "provider", cfg.Embedding.Provider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runMCP serves the read-only MCP tools on stdio. It runs as a separate
// process from the HTTP server because stdio carries the protocol stream.
func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	svc := taste.NewService(store, newProvider(cfg), cfg.RecognizedSources())
	mcpSrv := api.NewMCPServer(svc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("MCP server started (stdio transport)")
	stdioSrv := server.NewStdioServer(mcpSrv)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("tastetwin is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop tastetwin (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to tastetwin (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Provider", "%s", cfg.Embedding.Provider)
	if cfg.Embedding.Provider == config.ProviderOllama {
		base := cfg.Embedding.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		if vResp, err := client.Get(base + "/api/version"); err != nil {
			printStatus("Ollama", "not running")
		} else {
			vResp.Body.Close()
			printStatus("Ollama", "running at %s", base)
		}
	}

	printStatus("Sources", "%s + %s", cfg.Sources.Primary, cfg.Sources.Secondary)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
