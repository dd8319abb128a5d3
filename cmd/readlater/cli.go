package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/readlater/internal/auth"
	"github.com/hpungsan/readlater/internal/config"
	"github.com/hpungsan/readlater/internal/errors"
	"github.com/hpungsan/readlater/internal/mcp"
	"github.com/hpungsan/readlater/internal/ops"
	"github.com/hpungsan/readlater/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *ops.Env, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "readlater",
		Usage:   "Save web pages as markdown, summarize and tag them",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				EnvVars: []string{"READLATER_USER"},
				Usage:   "Account email to act as (defaults to mcp_user_email)",
			},
		},
		Commands: []*cli.Command{
			serveCmd(env, cfg),
			mcpCmd(env, cfg),
			registerCmd(env, cfg),
			importCmd(env, cfg),
			bulkCmd(env, cfg),
			mapCmd(env, cfg),
			listCmd(env, cfg),
			getCmd(env, cfg),
			summarizeCmd(env, cfg),
			purgeSessionsCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(env *ops.Env, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI and JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (overrides config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			if bind := c.String("bind"); bind != "" {
				cfg.Bind = bind
			}
			if port := c.Int("port"); port > 0 {
				cfg.Port = port
			}

			if n, err := auth.PurgeExpired(c.Context, env.DB); err != nil {
				env.Logger.Warn("purge expired sessions", "error", err)
			} else if n > 0 {
				env.Logger.Info("purged expired sessions", "count", n)
			}

			srv := web.NewServer(env, cfg, Version)
			return web.Run(srv, env.Logger)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(env *ops.Env, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
				env.Logger.Warn("unknown tools in disabled_tools", "tools", unknown, "valid", mcp.AllToolNames())
			}
			return mcp.Run(env, cfg, Version)
		},
	}
}

// registerCmd creates the register command.
func registerCmd(env *ops.Env, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account (password from --password or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Display name"},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "Account email"},
			&cli.StringFlag{Name: "password", Usage: "Password (prefer piping via stdin)"},
		},
		Action: func(c *cli.Context) error {
			password := c.String("password")
			if password == "" {
				text, err := readInput(c)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				password = text
			}

			session, err := auth.Register(c.Context, env.DB, cfg.SessionTTL(), auth.RegisterInput{
				Name:     c.String("name"),
				Email:    c.String("email"),
				Password: password,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, session.Identity)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *ops.Env, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Save one page",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidField("url", "is required"))
			}
			id, err := identity(c, env, cfg)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Import(c.Context, env, id, ops.ImportInput{URL: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// bulkCmd creates the bulk command.
func bulkCmd(env *ops.Env, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "bulk",
		Usage:     "Save several pages (URLs as arguments or one per line on stdin)",
		ArgsUsage: "[url...]",
		Action: func(c *cli.Context) error {
			urls := c.Args().Slice()
			if len(urls) == 0 {
				text, err := readInput(c)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				urls = parseLines(text)
			}
			id, err := identity(c, env, cfg)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.BulkImport(c.Context, env, id, ops.BulkImportInput{URLs: urls})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// mapCmd creates the map command.
func mapCmd(env *ops.Env, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "map",
		Usage:     "Discover links on a site without saving them",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Filter links by phrase"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidField("url", "is required"))
			}
			id, err := identity(c, env, cfg)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.MapLinks(c.Context, env, id, ops.MapInput{
				URL:    c.Args().First(),
				Search: c.String("search"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// listCmd creates the list command.
func listCmd(env *ops.Env, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List saved items, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Match title or tags"},
			&cli.StringFlag{Name: "status", Value: "all", Usage: "Status filter: all|PROCESSING|COMPLETED|FAILED"},
		},
		Action: func(c *cli.Context) error {
			id, err := identity(c, env, cfg)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.List(c.Context, env, id, ops.ListInput{
				Query:  c.String("query"),
				Status: c.String("status"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// getCmd creates the get command.
func getCmd(env *ops.Env, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one item with its content",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := identity(c, env, cfg)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Get(c.Context, env, id, ops.GetInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// summarizeCmd creates the summarize command.
func summarizeCmd(env *ops.Env, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "summarize",
		Usage:     "Stream a summary of an item to stdout",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "save", Usage: "Store the summary and derived tags, then print the item"},
		},
		Action: func(c *cli.Context) error {
			id, err := identity(c, env, cfg)
			if err != nil {
				return outputError(err)
			}
			itemID := c.Args().First()

			var buf strings.Builder
			w := io.MultiWriter(c.App.Writer, &buf)
			if err := ops.StreamSummary(c.Context, env, id, ops.StreamSummaryInput{ID: itemID}, w); err != nil {
				return outputError(err)
			}
			fmt.Fprintln(c.App.Writer)

			if !c.Bool("save") {
				return nil
			}

			// Tag extraction runs to completion even if the caller goes away.
			saved, err := ops.SaveSummary(context.WithoutCancel(c.Context), env, id, ops.SaveSummaryInput{
				ID:      itemID,
				Summary: buf.String(),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, saved)
		},
	}
}

// purgeSessionsCmd creates the purge-sessions command.
func purgeSessionsCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "purge-sessions",
		Usage: "Delete expired login sessions",
		Action: func(c *cli.Context) error {
			n, err := auth.PurgeExpired(c.Context, env.DB)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(c, map[string]int64{"purged": n})
		},
	}
}

// Helper functions

// identity resolves the account the command acts as.
func identity(c *cli.Context, env *ops.Env, cfg *config.Config) (auth.Identity, error) {
	email := c.String("user")
	if email == "" {
		email = cfg.MCPUserEmail
	}
	if strings.TrimSpace(email) == "" {
		return auth.Identity{}, errors.NewUnauthorized("no user selected; pass --user or set READLATER_USER")
	}
	return auth.IdentityForEmail(c.Context, env.DB, email)
}

// outputJSON marshals result to the app writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if appErr, ok := err.(*errors.AppError); ok {
		if appErr.Code == errors.ErrInternal {
			return cli.Exit(fmt.Sprintf("[%s] an internal error occurred", appErr.Code), 1)
		}
		return cli.Exit(fmt.Sprintf("[%s] %s", appErr.Code, appErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readInput reads all of the app's input. A terminal stdin yields "".
func readInput(c *cli.Context) (string, error) {
	r := c.App.Reader
	if r == nil || (r == os.Stdin && !stdinHasData()) {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// parseLines splits text into trimmed, non-empty lines.
func parseLines(s string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
