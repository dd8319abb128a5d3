package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hpungsan/readlater/internal/ai"
	"github.com/hpungsan/readlater/internal/config"
	"github.com/hpungsan/readlater/internal/db"
	"github.com/hpungsan/readlater/internal/logging"
	"github.com/hpungsan/readlater/internal/mcp"
	"github.com/hpungsan/readlater/internal/metrics"
	"github.com/hpungsan/readlater/internal/ops"
	"github.com/hpungsan/readlater/internal/scrape"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "mcp": true, "register": true,
	"import": true, "bulk": true, "map": true,
	"list": true, "get": true, "summarize": true,
	"purge-sessions": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	// Global flags such as --user come before the subcommand.
	if len(arg) > 1 && arg[0] == '-' {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
  readlater

  Save web pages as markdown, summarize and tag them.

  Usage: readlater <command> [options]
         readlater serve
         readlater --help

  MCP server mode requires piped input.`)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		app := newCLIApp(&ops.Env{}, config.DefaultConfig())
		if err := app.Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	baseDir, err := config.BaseDir()
	if err != nil {
		fail("could not determine data directory: %v", err)
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		fail("failed to load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	database, err := db.Init(baseDir)
	if err != nil {
		fail("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	env := &ops.Env{
		DB:         database,
		Scraper:    scrape.New(cfg),
		Summarizer: ai.NewOpenRouterClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, ai.WithLogger(logger)),
		Metrics:    metrics.New(),
		Logger:     logger,
		MapLimit:   cfg.MapLimit,
	}
	logger.Debug("configured", "scrape_provider", cfg.Provider(), "ai_model", cfg.AIModel, "data_dir", baseDir)

	if isCLIMode(os.Args) {
		app := newCLIApp(env, cfg)
		if err := app.Run(os.Args); err != nil {
			database.Close()
			fail("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		database.Close()
		fail("unknown command %q\nRun 'readlater --help' for usage.", os.Args[1])
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", "tools", unknown, "valid", mcp.AllToolNames())
	}
	if err := mcp.Run(env, cfg, Version); err != nil {
		database.Close()
		fail("%v", err)
	}
}
