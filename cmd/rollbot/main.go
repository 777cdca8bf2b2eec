package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mattjoyce/rollbot/internal/config"
	"github.com/mattjoyce/rollbot/internal/log"
	"github.com/mattjoyce/rollbot/internal/rollback"
	"github.com/mattjoyce/rollbot/internal/server"
	"github.com/mattjoyce/rollbot/internal/signature"
	"github.com/mattjoyce/rollbot/internal/slashcmd"
	"github.com/mattjoyce/rollbot/internal/storage"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	// --- NOUNS ---
	case "system":
		os.Exit(runSystemNoun(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "request":
		os.Exit(runRequestNoun(args))

	// --- ROOT ALIASES ---
	case "start":
		os.Exit(runStart(args))
	case "version":
		fmt.Printf("rollbot version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`rollbot - signed /rollback slash command gateway

Usage:
  rollbot <noun> <action> [flags]

Core Resources (Nouns):
  system    Gateway lifecycle
  config    Configuration and integrity
  request   Signed requests and recorded rollbacks

System Commands:
  system start        Start the command server in foreground

Config Commands:
  config check        Validate configuration and signing secret
  config lock         Write the BLAKE3 checksum manifest

Request Commands:
  request sign        Print signature headers for a request body
  request list        Show recorded rollback requests
  request show <id>   Show one recorded rollback request

General:
  version             Show version information
  help                Show this help message
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: rollbot system start [--config PATH]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "start":
		return runStart(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", args[0])
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: rollbot config <check|lock> [--config PATH]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "lock":
		return runConfigLock(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

func runRequestNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: rollbot request <sign|list|show> [flags]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "sign":
		return runRequestSign(args[1:])
	case "list":
		return runRequestList(args[1:])
	case "show":
		return runRequestShow(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown request action: %s\n", args[0])
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

// loadConfig resolves --config (or discovers a config file) and loads it.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = discovered
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", configPath)
	}
	return config.Load(configPath)
}

// --- ACTIONS ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("rollbot starting", "version", version, "config", cfg.SourcePath)

	if err := cfg.CheckSecret(); err != nil {
		logger.Error("refusing to start without a signing secret", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rb slashcmd.Rollbacker = rollback.Noop{}
	if cfg.Rollback.Mode == config.RollbackModeRecord {
		db, err := storage.OpenSQLite(ctx, cfg.State.Path)
		if err != nil {
			logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
			return 1
		}
		defer db.Close()
		logger.Info("database opened", "path", cfg.State.Path)
		rb = rollback.New(db)
	}

	handler := slashcmd.New(slashcmd.Config{
		Verifier: signature.Verifier{
			Secret: signature.Secret(cfg.SigningSecret()),
			Window: cfg.Signing.ReplayWindow,
		},
		MaxBodySize: cfg.MaxBodyBytes(),
	}, rb, log.WithComponent("commands"))

	srv := server.New(server.Config{
		Listen:       cfg.Server.Listen,
		CommandsPath: cfg.Server.CommandsPath,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handler, log.WithComponent("server"))

	logger.Info("rollbot running (press Ctrl+C to stop)", "rollback_mode", cfg.Rollback.Mode)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server failed", "error", err)
		return 1
	}

	logger.Info("rollbot stopped")
	return 0
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		return 1
	}
	if err := cfg.CheckSecret(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		return 1
	}

	fmt.Printf("Configuration OK: %s\n", cfg.SourcePath)
	fmt.Printf("  listen:         %s\n", cfg.Server.Listen)
	fmt.Printf("  commands_path:  %s\n", cfg.Server.CommandsPath)
	fmt.Printf("  replay_window:  %s\n", cfg.Signing.ReplayWindow)
	fmt.Printf("  rollback.mode:  %s\n", cfg.Rollback.Mode)
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path := *configPath
	if path == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		path = discovered
	}

	checksumPath, err := config.Lock(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}
	fmt.Printf("Wrote %s\n", checksumPath)
	return 0
}

func runRequestSign(args []string) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("ROLLBOT_SIGNING_SECRET"), "Signing secret (default $ROLLBOT_SIGNING_SECRET)")
	timestamp := fs.String("timestamp", "", "Unix timestamp to sign with (default now)")
	body := fs.String("body", "", "Request body")
	bodyFile := fs.String("body-file", "", "Read the request body from a file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "A signing secret is required (--secret or $ROLLBOT_SIGNING_SECRET)")
		return 1
	}

	ts := *timestamp
	if ts == "" {
		ts = strconv.FormatInt(time.Now().Unix(), 10)
	} else if _, err := strconv.ParseInt(ts, 10, 64); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --timestamp %q: must be Unix seconds\n", ts)
		return 1
	}

	payload := []byte(*body)
	if *bodyFile != "" {
		data, err := os.ReadFile(*bodyFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read body file: %v\n", err)
			return 1
		}
		payload = data
	}

	fmt.Printf("%s: %s\n", signature.TimestampHeader, ts)
	fmt.Printf("%s: %s\n", signature.SignatureHeader, signature.Sign(signature.Secret(*secret), ts, payload))
	return 0
}

func runRequestList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	limit := fs.Int("limit", 20, "Maximum number of requests to show")
	asJSON := fs.Bool("json", false, "Output JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	recs, err := rollback.New(db).List(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list requests: %v\n", err)
		return 1
	}

	if *asJSON {
		out := make([]requestRow, 0, len(recs))
		for _, r := range recs {
			out = append(out, toRequestRow(r))
		}
		return printJSON(out)
	}

	if len(recs) == 0 {
		fmt.Println("No rollback requests recorded.")
		return 0
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROJECT\tUSER\tCHANNEL\tSTATUS\tCREATED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Project, r.UserID, r.ChannelID, r.Status, r.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
	return 0
}

func runRequestShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	asJSON := fs.Bool("json", false, "Output JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: rollbot request show [--config PATH] [--json] <id>")
		return 2
	}
	id := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	rec, err := rollback.New(db).Get(ctx, id)
	if errors.Is(err, rollback.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Rollback request not found: %s\n", id)
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get request: %v\n", err)
		return 1
	}

	if *asJSON {
		return printJSON(toRequestRow(rec))
	}
	fmt.Printf("ID:       %s\n", rec.ID)
	fmt.Printf("Project:  %s\n", rec.Project)
	fmt.Printf("User:     %s\n", rec.UserID)
	fmt.Printf("Channel:  %s\n", rec.ChannelID)
	fmt.Printf("Status:   %s\n", rec.Status)
	fmt.Printf("Created:  %s\n", rec.CreatedAt.Format(time.RFC3339))
	return 0
}

type requestRow struct {
	ID        string    `json:"id"`
	Project   string    `json:"project"`
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toRequestRow(r *rollback.Record) requestRow {
	return requestRow{r.ID, r.Project, r.UserID, r.ChannelID, string(r.Status), r.CreatedAt}
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}
