// ABOUTME: Entry point for the wagate connection orchestrator.
// ABOUTME: Subcommands: serve, init, cleanup, sessions.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/wagate/internal/config"
	"github.com/2389/wagate/internal/notify"
	"github.com/2389/wagate/internal/queue"
	"github.com/2389/wagate/internal/registry"
	"github.com/2389/wagate/internal/session"
	"github.com/2389/wagate/internal/store"
	"github.com/2389/wagate/internal/supervisor"
	"github.com/2389/wagate/internal/wa"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                            _
__      ____ _  __ _  __ _| |_ ___
\ \ /\ / / _' |/ _' |/ _' | __/ _ \
 \ V  V / (_| | (_| | (_| | ||  __/
  \_/\_/ \__,_|\__, |\__,_|\__\___|
               |___/
`

// getConfigPath returns the path to the config file.
// Priority: WAGATE_CONFIG env var > XDG_CONFIG_HOME/wagate/wagate.yaml > ~/.config/wagate/wagate.yaml
func getConfigPath() string {
	if envPath := os.Getenv("WAGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "wagate.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "wagate", "wagate.yaml")
}

// getDataPath returns the path to the wagate data directory.
// Priority: XDG_DATA_HOME/wagate > ~/.local/share/wagate
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "wagate")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: wagate <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve      Start the connection orchestrator")
		fmt.Println("  init       Create a new config file interactively")
		fmt.Println("  cleanup    Remove session directories past the retention threshold")
		fmt.Println("  sessions   Show stored sessions and storage stats")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "cleanup":
		err = runCleanup()
	case "sessions":
		err = runSessions()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:      %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Environment: %s\n", cfg.Environment)
	green.Print("    ▶ ")
	fmt.Printf("Database:    %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Queue:       %s\n", cfg.Queue.Path)
	fmt.Println()

	adapter, err := wa.RegisteredAdapter()
	if err != nil {
		return fmt.Errorf("messaging SDK: %w", err)
	}

	candidates := session.Candidates(cfg.Storage.SessionRoot, cfg.Storage.PersistentMount, cfg.Production())
	root, err := session.ResolveStorageRoot(logger, candidates, cfg.Production())
	if err != nil {
		return fmt.Errorf("resolving session storage: %w", err)
	}

	var backup session.Backup
	if cfg.Storage.BackupDir != "" {
		backup = session.NewDirBackup(cfg.Storage.BackupDir, logger)
	}

	sessions, err := session.NewStore(session.Config{
		Root:        root,
		Loader:      adapter.Loader,
		Backup:      backup,
		MetadataTTL: cfg.Sessions.MetadataTTL,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}
	defer sessions.Close()

	tenants, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening tenant database: %w", err)
	}
	defer tenants.Close()

	jobs, err := queue.NewSQLiteQueue(cfg.Queue.Path)
	if err != nil {
		return fmt.Errorf("opening job queue: %w", err)
	}
	defer jobs.Close()

	svc, err := supervisor.New(supervisor.Deps{
		Registry: registry.New(logger),
		Sessions: sessions,
		Tenants:  tenants,
		Queue:    jobs,
		Notify:   notify.NewBroadcaster(logger),
		Dialer:   adapter.Dialer,
		Retry: supervisor.RetryPolicy{
			MaxAttempts: cfg.Reconnect.MaxAttempts,
			BaseDelay:   cfg.Reconnect.BaseDelay,
			Multiplier:  cfg.Reconnect.BackoffMultiplier,
			MaxDelay:    cfg.Reconnect.MaxDelay,
		},
		QRTimeout:     cfg.Auth.QRTimeout,
		RetentionDays: cfg.Sessions.RetentionDays,
		SweepInterval: cfg.Sessions.SweepInterval,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("creating supervisor: %w", err)
	}

	logger.Info("starting wagate",
		"config", configPath,
		"environment", cfg.Environment,
		"session_root", root,
	)

	svc.Start(ctx)
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return svc.Shutdown(shutdownCtx)
}

func runCleanup() error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	candidates := session.Candidates(cfg.Storage.SessionRoot, cfg.Storage.PersistentMount, cfg.Production())
	root, err := session.ResolveStorageRoot(logger, candidates, cfg.Production())
	if err != nil {
		return fmt.Errorf("resolving session storage: %w", err)
	}

	sessions, err := session.NewStore(session.Config{Root: root, Logger: logger})
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}
	defer sessions.Close()

	removed, err := sessions.CleanupOldSessions(cfg.Sessions.RetentionDays)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	fmt.Printf("Removed %d session(s) older than %d days\n", removed, cfg.Sessions.RetentionDays)
	return nil
}

func runSessions() error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	candidates := session.Candidates(cfg.Storage.SessionRoot, cfg.Storage.PersistentMount, cfg.Production())
	root, err := session.ResolveStorageRoot(logger, candidates, cfg.Production())
	if err != nil {
		return fmt.Errorf("resolving session storage: %w", err)
	}

	sessions, err := session.NewStore(session.Config{Root: root, Logger: logger})
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}
	defer sessions.Close()

	stats, err := sessions.GetStats()
	if err != nil {
		return fmt.Errorf("reading session stats: %w", err)
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	cyan.Println("Sessions")
	fmt.Printf("  root:  %s\n", root)
	fmt.Printf("  total: %d\n", stats.TotalSessions)
	if stats.OldestCreated != nil {
		gray.Printf("  oldest created: %s\n", stats.OldestCreated.Format(time.RFC3339))
	}
	if stats.NewestCreated != nil {
		gray.Printf("  newest created: %s\n", stats.NewestCreated.Format(time.RFC3339))
	}

	if len(stats.ByTenant) > 0 {
		fmt.Println()
		cyan.Println("By tenant")
		for tenant, count := range stats.ByTenant {
			fmt.Printf("  %-24s %d\n", tenant, count)
		}
	}
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("wagate configuration setup")
	fmt.Println("==========================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Environment ---")
	environment := prompt(reader, "Environment (production/development)", "development")

	fmt.Println("\n--- Storage ---")
	sessionRoot := prompt(reader, "Session storage root", filepath.Join(defaultDataPath, "sessions"))
	persistentMount := prompt(reader, "Persistent mount (empty to skip)", "")
	backupDir := prompt(reader, "Backup directory (empty to disable)", "")
	dbPath := prompt(reader, "SQLite database path", filepath.Join(defaultDataPath, "wagate.db"))
	queuePath := prompt(reader, "Job queue database path", filepath.Join(defaultDataPath, "queue.db"))

	fmt.Println("\n--- Authentication ---")
	qrTimeout := prompt(reader, "QR wait timeout", "30s")

	fmt.Println("\n--- Reconnection ---")
	maxAttempts := prompt(reader, "Max reconnection attempts", "10")
	baseDelay := prompt(reader, "Base backoff delay", "5s")
	maxDelay := prompt(reader, "Max backoff delay", "60s")

	fmt.Println("\n--- Sessions ---")
	retentionDays := prompt(reader, "Session retention (days)", "30")

	fmt.Println("\n--- Logging ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# wagate configuration\n")
	cfg.WriteString("# Generated by wagate init\n\n")

	cfg.WriteString(fmt.Sprintf("environment: %q\n\n", environment))

	cfg.WriteString("storage:\n")
	cfg.WriteString(fmt.Sprintf("  session_root: %q\n", sessionRoot))
	if persistentMount != "" {
		cfg.WriteString(fmt.Sprintf("  persistent_mount: %q\n", persistentMount))
	}
	if backupDir != "" {
		cfg.WriteString(fmt.Sprintf("  backup_dir: %q\n", backupDir))
	}
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", dbPath))

	cfg.WriteString("queue:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", queuePath))

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  qr_timeout: %q\n\n", qrTimeout))

	cfg.WriteString("reconnect:\n")
	cfg.WriteString(fmt.Sprintf("  max_attempts: %s\n", maxAttempts))
	cfg.WriteString(fmt.Sprintf("  base_delay: %q\n", baseDelay))
	cfg.WriteString(fmt.Sprintf("  max_delay: %q\n\n", maxDelay))

	cfg.WriteString("sessions:\n")
	cfg.WriteString(fmt.Sprintf("  retention_days: %s\n\n", retentionDays))

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("\nConfig written to %s\n", outputFile)
	return nil
}

func prompt(reader *bufio.Reader, question, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", question, defaultValue)
	} else {
		fmt.Printf("%s: ", question)
	}

	answer, err := reader.ReadString('\n')
	if err != nil {
		return defaultValue
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return defaultValue
	}
	return answer
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}
