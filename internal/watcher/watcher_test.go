package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *recorder) importFile(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return r.err
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func (r *recorder) has(suffix string) bool {
	for _, p := range r.seen() {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func startWatcher(t *testing.T, roots []string, rec *recorder, opts ...WatcherOption) *Watcher {
	t.Helper()
	opts = append([]WatcherOption{WithDebounce(50 * time.Millisecond)}, opts...)
	w := NewWatcher(roots, []string{".json", ".csv"}, true, rec.importFile, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, nil, &recorder{})

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || filepath.Clean(dirs[0]) != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}

	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := startWatcher(t, []string{dir}, rec)

	if err := writeFile(filepath.Join(sub, "books.json"), "[]"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(sub, "notes.txt"), "skip"); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return rec.has("books.json") }) {
		t.Fatalf("books.json not imported, got %v", rec.seen())
	}
	if rec.has("notes.txt") {
		t.Error("notes.txt should be filtered out")
	}
	if w.Stats().Imported < 1 {
		t.Errorf("stats = %+v", w.Stats())
	}
}

func TestWatcher_ImportFailureCounted(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{err: errors.New("bad row")}
	w := startWatcher(t, []string{dir}, rec)

	if err := writeFile(filepath.Join(dir, "broken.csv"), "title\n"); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return w.Stats().Failed >= 1 }) {
		t.Errorf("expected failed import, stats = %+v", w.Stats())
	}
}

func TestWatcher_RemoveHandler(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.json")
	if err := writeFile(path, "[]"); err != nil {
		t.Fatal(err)
	}
	var mu sync.Mutex
	var removed []string
	w := startWatcher(t, []string{dir}, &recorder{}, WithRemoveHandler(func(p string) {
		mu.Lock()
		removed = append(removed, p)
		mu.Unlock()
	}))

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	ok := waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(removed) == 1
	})
	if !ok {
		t.Errorf("remove handler not called")
	}
	if w.Stats().Removed != 1 {
		t.Errorf("stats = %+v", w.Stats())
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.json", []string{".json"}, true},
		{"/a/b.CSV", []string{".csv"}, true},
		{"/a/b.xlsx", []string{"xlsx"}, true},
		{"/a/b.md", []string{".json"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.json", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.json"), "[]"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := startWatcher(t, []string{dir}, rec)
	w.SyncExistingFiles()

	got := rec.seen()
	if len(got) != 1 || !strings.HasSuffix(got[0], "a.json") {
		t.Errorf("expected one imported file a.json, got %v", got)
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	startWatcher(t, []string{root}, &recorder{})
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_NewDirectoryImportsNestedFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, []string{dir}, rec)

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.csv"), "title\nDune\n"); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return rec.has("deep.csv") }) {
		t.Errorf("expected deep.csv to be imported, got %v", rec.seen())
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
