package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"drift/internal/config"
	"drift/internal/logging"
)

func writeProject(t *testing.T, files map[string]string) string {
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

func testEngine(t *testing.T, root string) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.ProjectRoot = root
	cfg.Scan.Workers = 2
	cfg.Scan.IncludeTests = true

	logger := logging.NewLogger(logging.Config{Level: logging.ErrorLevel})
	eng, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestIncrementalSkip(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.ts": "function alpha() { return 1 }\n",
		"b.ts": "function beta() { return 2 }\n",
		"c.ts": "function gamma() { return 3 }\n",
	})
	eng := testEngine(t, root)
	ctx := context.Background()

	first, err := eng.Scan(ctx)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if first.Status != ScanCompleted {
		t.Fatalf("status = %s", first.Status)
	}
	if first.FilesScanned != 3 || first.FilesChanged != 3 {
		t.Fatalf("first scan = %d files, %d changed", first.FilesScanned, first.FilesChanged)
	}

	functionsBefore, _ := eng.store.CountRows("functions")
	locationsBefore, _ := eng.store.CountRows("pattern_locations")
	if functionsBefore != 3 {
		t.Errorf("functions = %d, want 3", functionsBefore)
	}

	second, err := eng.Scan(ctx)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if second.FilesChanged != 0 {
		t.Errorf("rescan saw %d changes, want 0", second.FilesChanged)
	}

	functionsAfter, _ := eng.store.CountRows("functions")
	locationsAfter, _ := eng.store.CountRows("pattern_locations")
	if functionsAfter != functionsBefore {
		t.Errorf("functions churned on no-change scan: %d -> %d", functionsBefore, functionsAfter)
	}
	if locationsAfter != locationsBefore {
		t.Errorf("pattern_locations churned on no-change scan: %d -> %d", locationsBefore, locationsAfter)
	}

	status, err := eng.Status()
	if err != nil || status == nil {
		t.Fatalf("Status: %v (%v)", status, err)
	}
	if status.FileCount != 3 {
		t.Errorf("materialized file_count = %d, want 3", status.FileCount)
	}
}

func TestModifiedFileReDerives(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.ts": "function alpha() { return 1 }\n",
		"b.ts": "function beta() { return 2 }\n",
	})
	eng := testEngine(t, root)
	ctx := context.Background()

	if _, err := eng.Scan(ctx); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "a.ts"),
		[]byte("function alphaRenamed() { return 10 }\n"), 0644); err != nil {
		t.Fatalf("modify: %v", err)
	}

	report, err := eng.Scan(ctx)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if report.FilesChanged != 1 {
		t.Errorf("changed = %d, want 1", report.FilesChanged)
	}

	// The old function is gone; the renamed one exists.
	functions, err := eng.store.LoadFunctions()
	if err != nil {
		t.Fatalf("LoadFunctions: %v", err)
	}
	names := map[string]bool{}
	for _, f := range functions {
		names[f.Name] = true
	}
	if names["alpha"] {
		t.Error("stale function row survived modification")
	}
	if !names["alphaRenamed"] {
		t.Error("renamed function missing")
	}
	if !names["beta"] {
		t.Error("untouched file's function lost")
	}
}

func TestDeletedFileCascades(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.ts": "function alpha() { return 1 }\n",
		"b.ts": "function beta() { return 2 }\n",
	})
	eng := testEngine(t, root)
	ctx := context.Background()

	if _, err := eng.Scan(ctx); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "b.ts")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := eng.Scan(ctx); err != nil {
		t.Fatalf("second scan: %v", err)
	}

	meta, err := eng.store.LoadFileMetadata()
	if err != nil {
		t.Fatalf("LoadFileMetadata: %v", err)
	}
	if _, ok := meta["b.ts"]; ok {
		t.Error("deleted file row survived")
	}
	functions, _ := eng.store.LoadFunctions()
	for _, f := range functions {
		if f.File == "b.ts" {
			t.Error("deleted file's function survived")
		}
	}

	status, _ := eng.Status()
	if status == nil || status.FileCount != 1 {
		t.Errorf("file_count = %+v, want 1", status)
	}
}

func TestFingerprintStability(t *testing.T) {
	a := fingerprint("p1", "a.ts", "getUser")
	b := fingerprint("p1", "a.ts", "getUser")
	c := fingerprint("p1", "a.ts", "get_user")
	if a != b {
		t.Error("fingerprint not deterministic")
	}
	if a == c {
		t.Error("different content shares a fingerprint")
	}
	if len(a) != 32 {
		t.Errorf("fingerprint length = %d, want 32", len(a))
	}
}
