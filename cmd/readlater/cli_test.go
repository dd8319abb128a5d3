package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hpungsan/readlater/internal/auth"
	"github.com/hpungsan/readlater/internal/config"
	"github.com/hpungsan/readlater/internal/db"
	"github.com/hpungsan/readlater/internal/errors"
	"github.com/hpungsan/readlater/internal/item"
	"github.com/hpungsan/readlater/internal/logging"
	"github.com/hpungsan/readlater/internal/ops"
	"github.com/hpungsan/readlater/internal/scrape"
)

type fakeScraper struct{}

func (fakeScraper) Scrape(_ context.Context, u string, _ scrape.Options) (*scrape.Result, error) {
	if strings.Contains(u, "broken") {
		return nil, fmt.Errorf("scrape %s: 503 Service Unavailable", u)
	}
	return &scrape.Result{
		Markdown: "# Page\n\nBody of " + u,
		Metadata: scrape.Metadata{Title: "Page " + strings.TrimPrefix(u, "https://example.com/")},
	}, nil
}

func (fakeScraper) Map(_ context.Context, u string, opts scrape.MapOptions) ([]scrape.Link, error) {
	links := []scrape.Link{{URL: u + "/a"}, {URL: u + "/b"}, {URL: u + "/c"}}
	if len(links) > opts.Limit {
		links = links[:opts.Limit]
	}
	return links, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) StreamSummary(_ context.Context, _ string, w io.Writer) error {
	_, _ = io.WriteString(w, "A short ")
	_, _ = io.WriteString(w, "summary.")
	return nil
}

func (fakeSummarizer) ExtractTags(_ context.Context, _ string) (string, error) {
	return "Reading, Go", nil
}

const testEmail = "reader@example.com"

// setupTestEnv creates a temporary database with one registered account.
func setupTestEnv(t *testing.T) (*ops.Env, *config.Config) {
	t.Helper()
	auth.BcryptCost = bcrypt.MinCost

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.MapLimit = 2

	env := &ops.Env{
		DB:         database,
		Scraper:    fakeScraper{},
		Summarizer: fakeSummarizer{},
		Logger:     logging.NewWithWriter(io.Discard, "error"),
		MapLimit:   cfg.MapLimit,
	}

	_, err = auth.Register(context.Background(), database, cfg.SessionTTL(), auth.RegisterInput{
		Name: "Reader", Email: testEmail, Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return env, cfg
}

// run executes the CLI with args and stdin, returning stdout.
func run(t *testing.T, env *ops.Env, cfg *config.Config, stdin string, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(env, cfg)
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"readlater", "--user", testEmail}, args...))
	return out.String(), err
}

func decodeOutput(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
}

func TestParseLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "https://a.example", []string{"https://a.example"}},
		{"blank lines skipped", "https://a.example\n\n  \nhttps://b.example\n", []string{"https://a.example", "https://b.example"}},
		{"trims", "  https://a.example  \r\n", []string{"https://a.example"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLines(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("parseLines(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseLines(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"readlater"}, false},
		{[]string{"readlater", "serve"}, true},
		{[]string{"readlater", "list"}, true},
		{[]string{"readlater", "--user", "a@b.c", "list"}, true},
		{[]string{"readlater", "bogus"}, false},
	}

	for _, tt := range tests {
		if got := isCLIMode(tt.args); got != tt.want {
			t.Errorf("isCLIMode(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestOutputError(t *testing.T) {
	err := outputError(errors.NewInvalidField("url", "is required"))
	if err.Error() != "[INVALID_REQUEST] url: is required" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	err = outputError(errors.NewInternal(fmt.Errorf("disk on fire")))
	if strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("internal detail leaked: %q", err.Error())
	}
}

func TestCLIRegister(t *testing.T) {
	env, cfg := setupTestEnv(t)

	out, err := run(t, env, cfg, "another password\n", "register", "--name", "Second", "--email", "Second@Example.com")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	var identity auth.Identity
	decodeOutput(t, out, &identity)
	if identity.Email != "second@example.com" || identity.UserID == "" {
		t.Errorf("unexpected identity: %+v", identity)
	}

	_, err = run(t, env, cfg, "another password", "register", "--name", "Dup", "--email", "second@example.com")
	if err == nil || !strings.Contains(err.Error(), "EMAIL_TAKEN") {
		t.Errorf("expected EMAIL_TAKEN, got %v", err)
	}
}

func TestCLIImport(t *testing.T) {
	env, cfg := setupTestEnv(t)

	t.Run("completed", func(t *testing.T) {
		out, err := run(t, env, cfg, "", "import", "https://example.com/post")
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		var output ops.ImportOutput
		decodeOutput(t, out, &output)
		if output.Status != item.StatusCompleted {
			t.Fatalf("status = %s, want COMPLETED", output.Status)
		}
		if output.Item == nil || output.Item.Title == nil || *output.Item.Title != "Page post" {
			t.Errorf("unexpected item: %+v", output.Item)
		}
	})

	t.Run("failed scrape", func(t *testing.T) {
		out, err := run(t, env, cfg, "", "import", "https://example.com/broken")
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		var output ops.ImportOutput
		decodeOutput(t, out, &output)
		if output.Status != item.StatusFailed {
			t.Errorf("status = %s, want FAILED", output.Status)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		_, err := run(t, env, cfg, "", "import")
		if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		app := newCLIApp(env, cfg)
		app.Writer = io.Discard
		err := app.Run([]string{"readlater", "--user", "nobody@example.com", "import", "https://example.com/x"})
		if err == nil || !strings.Contains(err.Error(), "UNAUTHORIZED") {
			t.Errorf("expected UNAUTHORIZED, got %v", err)
		}
	})
}

func TestCLIBulkFromStdin(t *testing.T) {
	env, cfg := setupTestEnv(t)

	stdin := "https://example.com/one\n\nhttps://example.com/broken\n"
	out, err := run(t, env, cfg, stdin, "bulk")
	if err != nil {
		t.Fatalf("bulk failed: %v", err)
	}

	var output ops.BulkImportOutput
	decodeOutput(t, out, &output)
	if len(output.Results) != 2 || output.Completed != 1 || output.Failed != 1 {
		t.Errorf("unexpected bulk output: %+v", output)
	}
}

func TestCLIMap(t *testing.T) {
	env, cfg := setupTestEnv(t)

	out, err := run(t, env, cfg, "", "map", "--search", "docs", "https://example.com")
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}

	var output ops.MapOutput
	decodeOutput(t, out, &output)
	if len(output.Links) != 2 {
		t.Errorf("expected links capped at 2, got %d", len(output.Links))
	}

	list, err := run(t, env, cfg, "", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var listed ops.ListOutput
	decodeOutput(t, list, &listed)
	if listed.Total != 0 {
		t.Errorf("map must not persist items, got %d", listed.Total)
	}
}

func TestCLIListAndGet(t *testing.T) {
	env, cfg := setupTestEnv(t)

	out, err := run(t, env, cfg, "", "import", "https://example.com/guide")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	var imported ops.ImportOutput
	decodeOutput(t, out, &imported)
	if _, err := run(t, env, cfg, "", "import", "https://example.com/broken"); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	out, err = run(t, env, cfg, "", "list", "--status", "COMPLETED", "-q", "GUIDE")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var listed ops.ListOutput
	decodeOutput(t, out, &listed)
	if listed.Total != 1 || listed.Items[0].ID != imported.ID {
		t.Errorf("unexpected list: %+v", listed)
	}

	_, err = run(t, env, cfg, "", "list", "--status", "DONE")
	if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
		t.Errorf("expected INVALID_REQUEST for bad status, got %v", err)
	}

	out, err = run(t, env, cfg, "", "get", imported.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	var got item.Item
	decodeOutput(t, out, &got)
	if got.Content == nil || !strings.Contains(*got.Content, "Body of https://example.com/guide") {
		t.Errorf("expected content, got %+v", got.Content)
	}

	_, err = run(t, env, cfg, "", "get", "01NOTANITEM")
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestCLISummarize(t *testing.T) {
	env, cfg := setupTestEnv(t)

	out, err := run(t, env, cfg, "", "import", "https://example.com/essay")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	var imported ops.ImportOutput
	decodeOutput(t, out, &imported)

	t.Run("stream only", func(t *testing.T) {
		out, err := run(t, env, cfg, "", "summarize", imported.ID)
		if err != nil {
			t.Fatalf("summarize failed: %v", err)
		}
		if strings.TrimSpace(out) != "A short summary." {
			t.Errorf("unexpected stream output: %q", out)
		}

		got, err := ops.Get(context.Background(), env, mustIdentity(t, env), ops.GetInput{ID: imported.ID})
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Summary != nil {
			t.Errorf("streaming must not persist a summary")
		}
	})

	t.Run("save", func(t *testing.T) {
		out, err := run(t, env, cfg, "", "summarize", "--save", imported.ID)
		if err != nil {
			t.Fatalf("summarize --save failed: %v", err)
		}
		jsonStart := strings.Index(out, "{")
		if jsonStart < 0 {
			t.Fatalf("no item in output: %q", out)
		}
		var saved item.Item
		decodeOutput(t, out[jsonStart:], &saved)
		if saved.Summary == nil || *saved.Summary != "A short summary." {
			t.Errorf("unexpected summary: %v", saved.Summary)
		}
		if len(saved.Tags) != 2 || saved.Tags[0] != "reading" || saved.Tags[1] != "go" {
			t.Errorf("unexpected tags: %v", saved.Tags)
		}
	})
}

func TestCLIPurgeSessions(t *testing.T) {
	env, cfg := setupTestEnv(t)

	out, err := run(t, env, cfg, "", "purge-sessions")
	if err != nil {
		t.Fatalf("purge-sessions failed: %v", err)
	}
	var output map[string]int64
	decodeOutput(t, out, &output)
	if output["purged"] != 0 {
		t.Errorf("expected nothing to purge, got %d", output["purged"])
	}
}

func mustIdentity(t *testing.T, env *ops.Env) auth.Identity {
	t.Helper()
	id, err := auth.IdentityForEmail(context.Background(), env.DB, testEmail)
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	return id
}
