package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/bookshelf/internal/config"
	"github.com/hyperjump/bookshelf/internal/models"
	"github.com/hyperjump/bookshelf/internal/scoring"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"jane austen", "-limit", "5"},
			expected: []string{"-limit", "5", "jane austen"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-limit", "5", "jane austen"},
			expected: []string{"-limit", "5", "jane austen"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"jane austen"},
			expected: []string{"jane austen"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "user then flags",
			args:     []string{"alice", "-page", "2", "-output", "json"},
			expected: []string{"-page", "2", "-output", "json", "alice"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"dune"}, "dune"},
		{"multiple words", []string{"jane", "austen"}, "jane austen"},
		{"single quoted phrase", []string{"jane austen"}, "jane austen"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
recommend:
  default_limit: 12
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 || cfg.Recommend.DefaultLimit != 12 {
		t.Errorf("unexpected config: %+v %+v", cfg.Server, cfg.Recommend)
	}
}

func TestNewScorer_FallsBackToMock(t *testing.T) {
	for _, modelPath := range []string{"", filepath.Join(t.TempDir(), "missing.onnx")} {
		cfg := config.Config{}
		cfg.Model.ModelPath = modelPath
		config.ApplyDefaults(&cfg)

		scorer, err := newScorer(cfg.Model, zap.NewNop())
		if err != nil {
			t.Fatalf("model %q: %v", modelPath, err)
		}
		guarded, ok := scorer.(*scoring.GuardedScorer)
		if !ok {
			t.Fatalf("model %q: got %T, want *scoring.GuardedScorer", modelPath, scorer)
		}
		if guarded.InputWidth() != cfg.Model.InputWidth {
			t.Errorf("model %q: input width = %d", modelPath, guarded.InputWidth())
		}
		ids, err := scorer.Score(context.Background(), make([]float32, cfg.Model.InputWidth), 3)
		if err != nil || len(ids) != 3 {
			t.Errorf("model %q: Score = %v, %v", modelPath, ids, err)
		}
		_ = scorer.Close()
	}
}

func TestNewScorer_InvalidDuration(t *testing.T) {
	cfg := config.Config{}
	config.ApplyDefaults(&cfg)
	cfg.Model.ScorerTimeout = "soon"
	if _, err := newScorer(cfg.Model, zap.NewNop()); err == nil {
		t.Error("expected error for invalid scorer timeout")
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	catalogDir := filepath.Join(dir, "catalog")
	if err := os.MkdirAll(catalogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(dir, "books.db")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")
	cfg.Catalog.Directories = []string{catalogDir}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestInitializeComponents_ImportAndRecommend(t *testing.T) {
	cfg := testConfig(t)
	components, err := initializeComponents(cfg, zap.NewNop(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()
	ctx := context.Background()

	catalogFile := filepath.Join(cfg.Catalog.Directories[0], "books.csv")
	data := "title,authors,categories\n" +
		"Dune,Frank Herbert,Fiction\n" +
		"Emma,Jane Austen,Fiction\n" +
		"Salt Fat Acid Heat,Samin Nosrat,Cooking\n"
	if err := os.WriteFile(catalogFile, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	w := newCatalogWatcher(cfg, components.Importer, zap.NewNop(), false)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExistingFiles()
	if st := w.Stats(); st.Imported != 1 {
		t.Fatalf("watcher stats = %+v, want 1 import", st)
	}

	assigned, err := components.Indexer.AssignDenseIndexes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(assigned) != 3 {
		t.Fatalf("assigned %d dense indices, want 3", len(assigned))
	}

	page, err := components.Engine.Search(ctx, &models.BookQuery{Query: "austen"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Books[0].Title != "Emma" {
		t.Errorf("search page: %+v", page)
	}

	if err := components.Storage.CreateUser(ctx, &models.User{ID: "u1", Name: "Ada"}); err != nil {
		t.Fatal(err)
	}
	if _, err := components.Storage.SaveBook(ctx, "u1", page.Books[0].ID); err != nil {
		t.Fatal(err)
	}
	rec, err := components.Recommender.Recommend(ctx, "u1", 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Total != 2 || len(rec.Books) != 2 {
		t.Errorf("recommendation: total=%d books=%d", rec.Total, len(rec.Books))
	}
	for _, b := range rec.Books {
		if b.ID == page.Books[0].ID {
			t.Error("saved book recommended")
		}
	}
	if rec.Provenance.IsRandom() {
		t.Errorf("provenance = %s, want a personalized or mixed page", rec.Provenance)
	}
}
