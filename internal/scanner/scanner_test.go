package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"drift/internal/cancel"
	"drift/internal/config"
	"drift/internal/logging"
	"drift/internal/storage"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.ErrorLevel})
}

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(storage.DefaultOptions(filepath.Join(t.TempDir(), "drift.db")), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func scanCfg() *config.ScanConfig {
	cfg := config.Default().Scan
	cfg.Workers = 2
	cfg.IncludeTests = true
	return &cfg
}

func TestScanClassifiesChanges(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.ts":        "function a() {}\n",
		"b.ts":        "function b() {}\n",
		"ignored.txt": "not source\n",
	})
	store := testStore(t)
	sc := New(root, scanCfg(), testLogger())
	tok := &cancel.Token{}

	diff, err := sc.Scan(store, tok)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(diff.Added) != 2 || len(diff.Modified) != 0 || len(diff.Deleted) != 0 {
		t.Fatalf("first scan diff = +%d ~%d -%d, want +2", len(diff.Added), len(diff.Modified), len(diff.Deleted))
	}

	// Persist what the first scan saw, then rescan untouched: all
	// unchanged, nothing added.
	for _, f := range diff.Added {
		store.UpsertFile(storage.FileRecord{
			Path: f.Path, ContentHash: f.ContentHash, Size: f.Size, Mtime: f.Mtime, Language: f.Language,
		})
	}
	if err := store.Batcher().Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	diff2, err := sc.Scan(store, tok)
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if len(diff2.Unchanged) != 2 || diff2.ChangedCount() != 0 {
		t.Fatalf("rescan diff = %+v, want all unchanged", diff2)
	}
	for _, f := range diff2.Unchanged {
		if f.Content != nil {
			t.Error("unchanged file kept its content buffer")
		}
	}

	// Touch one file and delete another.
	if err := os.WriteFile(filepath.Join(root, "a.ts"), []byte("function a2() {}\n"), 0644); err != nil {
		t.Fatalf("modify: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "b.ts")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	diff3, err := sc.Scan(store, tok)
	if err != nil {
		t.Fatalf("third scan: %v", err)
	}
	if len(diff3.Modified) != 1 || diff3.Modified[0].Path != "a.ts" {
		t.Errorf("modified = %+v, want a.ts", diff3.Modified)
	}
	if len(diff3.Deleted) != 1 || diff3.Deleted[0] != "b.ts" {
		t.Errorf("deleted = %v, want [b.ts]", diff3.Deleted)
	}
}

func TestGitignoreSemantics(t *testing.T) {
	root := writeTree(t, map[string]string{
		".gitignore":      "generated/\n*.min.js\n!keep.min.js\n",
		"app.ts":          "function a() {}\n",
		"generated/g.ts":  "function g() {}\n",
		"bundle.min.js":   "function b(){}\n",
		"keep.min.js":     "function k(){}\n",
		"sub/.gitignore":  "local.ts\n",
		"sub/local.ts":    "function l() {}\n",
		"sub/visible.ts":  "function v() {}\n",
	})
	store := testStore(t)
	sc := New(root, scanCfg(), testLogger())

	diff, err := sc.Scan(store, &cancel.Token{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	got := map[string]bool{}
	for _, f := range diff.Added {
		got[f.Path] = true
	}
	for _, want := range []string{"app.ts", "keep.min.js", "sub/visible.ts"} {
		if !got[want] {
			t.Errorf("%s missing from scan", want)
		}
	}
	for _, banned := range []string{"generated/g.ts", "bundle.min.js", "sub/local.ts"} {
		if got[banned] {
			t.Errorf("%s should be ignored", banned)
		}
	}
}

func TestDriftignoreFile(t *testing.T) {
	root := writeTree(t, map[string]string{
		".driftignore": "vendor_code/\n",
		"app.ts":       "function a() {}\n",
		"vendor_code/v.ts": "function v() {}\n",
	})
	store := testStore(t)
	sc := New(root, scanCfg(), testLogger())

	diff, err := sc.Scan(store, &cancel.Token{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for _, f := range diff.Added {
		if f.Path == "vendor_code/v.ts" {
			t.Error("driftignore not honored")
		}
	}
}

func TestOversizeFileRejected(t *testing.T) {
	big := make([]byte, 2048)
	for i := range big {
		big[i] = 'x'
	}
	root := writeTree(t, map[string]string{
		"ok.ts":  "function f() {}\n",
		"big.ts": string(big),
	})
	cfg := scanCfg()
	cfg.MaxFileSize = 1024
	store := testStore(t)
	sc := New(root, cfg, testLogger())

	diff, err := sc.Scan(store, &cancel.Token{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(diff.Added) != 1 || diff.Added[0].Path != "ok.ts" {
		t.Errorf("added = %+v, want ok.ts only", diff.Added)
	}
	if len(diff.Errors) != 1 {
		t.Errorf("errors = %d, want the oversize file flagged", len(diff.Errors))
	}
}

func TestCancelledScanReportsPartial(t *testing.T) {
	root := writeTree(t, map[string]string{"a.ts": "function a() {}\n"})
	store := testStore(t)
	sc := New(root, scanCfg(), testLogger())

	tok := &cancel.Token{}
	tok.Cancel()
	diff, err := sc.Scan(store, tok)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !diff.Cancelled {
		t.Error("cancelled scan not tagged")
	}
	if len(diff.Deleted) != 0 {
		t.Error("cancelled scan must not infer deletions")
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path    string
		content string
		want    string
	}{
		{"a.ts", "", LangTypeScript},
		{"a.tsx", "", LangTSX},
		{"b.py", "", LangPython},
		{"c.go", "", LangGo},
		{"d.rs", "", LangRust},
		{"e.cs", "", LangCSharp},
		{"f.rb", "", LangRuby},
		{"g.php", "", LangPHP},
		{"h.cpp", "", LangCPP},
		{"i.java", "", LangJava},
		{"noext", "#!/usr/bin/env python\nprint(1)\n", LangPython},
		{"readme.md", "", ""},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.path, []byte(tt.content)); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIsTestPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"foo_test.go", true},
		{"src/__tests__/app.ts", true},
		{"app.spec.ts", true},
		{"test_util.py", true},
		{"src/app.ts", false},
	}
	for _, tt := range tests {
		if got := IsTestPath(tt.path); got != tt.want {
			t.Errorf("IsTestPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
