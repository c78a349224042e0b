package storage

import (
	"database/sql"
	"path/filepath"
	"strconv"
	"testing"

	"drift/internal/logging"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := logging.NewLogger(logging.Config{Level: logging.ErrorLevel})
	opts := DefaultOptions(filepath.Join(t.TempDir(), "drift.db"))
	opts.ReaderPoolSize = 2
	s, err := Open(opts, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrateFreshDatabase(t *testing.T) {
	s := testStore(t)

	var version int
	if err := s.writer.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("user_version: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("user_version = %d, want %d", version, SchemaVersion)
	}

	for _, table := range []string{"file_metadata", "functions", "call_edges", "patterns",
		"confidence_scores", "outliers", "conventions", "violations", "boundaries",
		"sensitive_fields", "taint_flows", "parse_cache", "materialized_status",
		"materialized_security", "scan_history", "health_trends", "detector_feedback"} {
		if _, err := s.CountRows(table); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestRefusesNewerSchema(t *testing.T) {
	logger := logging.NewLogger(logging.Config{Level: logging.ErrorLevel})
	path := filepath.Join(t.TempDir(), "drift.db")

	s, err := Open(DefaultOptions(path), logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.writer.Exec("PRAGMA user_version = 9999"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = s.Close()

	if _, err := Open(DefaultOptions(path), logger); err == nil {
		t.Fatal("opened a database from the future")
	}
}

func TestFileMetadataRoundTrip(t *testing.T) {
	s := testStore(t)

	rec := FileRecord{
		Path:        "src/a.ts",
		ContentHash: 0xdeadbeefcafe,
		Size:        120,
		Mtime:       1700000000,
		Language:    "typescript",
	}
	s.UpsertFile(rec)
	if err := s.Batcher().Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, err := s.LoadFileMetadata()
	if err != nil {
		t.Fatalf("LoadFileMetadata: %v", err)
	}
	loaded, ok := got["src/a.ts"]
	if !ok {
		t.Fatal("row missing")
	}
	if loaded.ContentHash != rec.ContentHash || loaded.Language != rec.Language {
		t.Errorf("loaded = %+v, want %+v", loaded, rec)
	}
}

// seedGraph inserts two files with functions and a cross-file edge.
func seedGraph(t *testing.T, s *Store) {
	t.Helper()
	s.UpsertFile(FileRecord{Path: "a.ts", ContentHash: 1, Language: "typescript"})
	s.UpsertFile(FileRecord{Path: "b.ts", ContentHash: 2, Language: "typescript"})
	if err := s.Batcher().Flush(); err != nil {
		t.Fatalf("Flush files: %v", err)
	}

	s.InsertFunction(FunctionRow{ID: 1, File: "a.ts", Name: "caller", QualifiedName: "caller", BodyHash: 11, StartLine: 1, EndLine: 5})
	s.InsertFunction(FunctionRow{ID: 2, File: "b.ts", Name: "callee", QualifiedName: "callee", BodyHash: 22, StartLine: 1, EndLine: 5})
	s.InsertCallEdge(EdgeRow{CallerID: 1, CalleeID: sql.NullInt64{Int64: 2, Valid: true}, Strategy: "import", Confidence: 0.7})
	if err := s.Batcher().Flush(); err != nil {
		t.Fatalf("Flush graph: %v", err)
	}
}

func TestDeleteFileCascades(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)

	s.Batcher().Enqueue(`
		INSERT INTO pattern_matches (scan_id, detector_id, pattern_id, category, file, line, snippet, confidence)
		VALUES ('s1', 'd', 'p', 'structural', 'b.ts', 3, '', 0.9)`)
	s.Batcher().Enqueue(`
		INSERT INTO boundaries (file, line, table_name, framework, operation, fields, confidence)
		VALUES ('b.ts', 4, 'users', 'raw-sql', 'read', '[]', 0.8)`)
	if err := s.Batcher().Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if err := s.DeleteFileCascade("b.ts"); err != nil {
		t.Fatalf("DeleteFileCascade: %v", err)
	}

	// Everything owned by b.ts is gone...
	for table, want := range map[string]int{
		"functions":       1, // only a.ts's function remains
		"pattern_matches": 0,
		"boundaries":      0,
	} {
		n, err := s.CountRows(table)
		if err != nil {
			t.Fatalf("CountRows(%s): %v", table, err)
		}
		if n != want {
			t.Errorf("%s rows = %d, want %d", table, n, want)
		}
	}

	// ...and the inbound edge from a.ts survives with a NULL callee
	// marked stale.
	var strategy string
	var callee sql.NullInt64
	err := s.Reader().QueryRow(`SELECT strategy, callee_id FROM call_edges WHERE caller_id = 1`).
		Scan(&strategy, &callee)
	if err != nil {
		t.Fatalf("edge query: %v", err)
	}
	if strategy != "stale" || callee.Valid {
		t.Errorf("edge = (%s, %v), want (stale, NULL)", strategy, callee)
	}
}

func TestDeleteDerivedKeepsFileRow(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)

	if err := s.DeleteDerivedForFile("b.ts"); err != nil {
		t.Fatalf("DeleteDerivedForFile: %v", err)
	}

	meta, err := s.LoadFileMetadata()
	if err != nil {
		t.Fatalf("LoadFileMetadata: %v", err)
	}
	if _, ok := meta["b.ts"]; !ok {
		t.Error("file row removed; only derived rows should go")
	}
	n, _ := s.CountRows("functions")
	if n != 1 {
		t.Errorf("functions = %d, want 1", n)
	}
}

func TestBatcherFlushIsDeterministic(t *testing.T) {
	s := testStore(t)

	for i := 0; i < 1200; i++ {
		s.UpsertFile(FileRecord{Path: "f" + strconv.Itoa(i) + ".ts", ContentHash: uint64(i), Language: "typescript"})
	}
	if err := s.Batcher().Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	n, err := s.CountRows("file_metadata")
	if err != nil {
		t.Fatalf("CountRows: %v", err)
	}
	if n != 1200 {
		t.Errorf("rows = %d, want 1200", n)
	}
}

func TestMaterializedRefreshOrdering(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)

	// A sensitive boundary with no auth handler anywhere forces the
	// security summary to critical before the status row is computed.
	s.Batcher().Enqueue(`
		INSERT INTO boundaries (file, line, table_name, framework, operation, fields, confidence)
		VALUES ('a.ts', 2, 'users', 'raw-sql', 'read', '["password","email"]', 0.9)`)
	for i := 0; i < 5; i++ {
		s.Batcher().Enqueue(`
			INSERT INTO boundaries (file, line, table_name, framework, operation, fields, confidence)
			VALUES ('a.ts', ?, 'users', 'raw-sql', 'write', '[]', 0.9)`, 10+i)
	}
	s.Batcher().Enqueue(`
		INSERT INTO sensitive_fields (field, table_name, class, confidence)
		VALUES ('password', 'users', 'credentials', 0.99)`)
	if err := s.Batcher().Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if err := s.RefreshGold(nil); err != nil {
		t.Fatalf("RefreshGold: %v", err)
	}

	sec, err := s.Security()
	if err != nil || sec == nil {
		t.Fatalf("Security: %v (%v)", sec, err)
	}
	if sec.RiskLevel != "critical" {
		t.Errorf("security risk = %s, want critical", sec.RiskLevel)
	}

	status, err := s.Status()
	if err != nil || status == nil {
		t.Fatalf("Status: %v (%v)", status, err)
	}
	// Status read what security wrote in the same transaction.
	if status.SecurityRiskLevel != sec.RiskLevel {
		t.Errorf("status.security = %s, security = %s; ordering broken",
			status.SecurityRiskLevel, sec.RiskLevel)
	}
	if status.FileCount != 2 {
		t.Errorf("file_count = %d, want 2", status.FileCount)
	}

	// The refresh appended exactly one trend row.
	trends, _ := s.CountRows("health_trends")
	if trends != 1 {
		t.Errorf("health_trends = %d, want 1", trends)
	}
}

func TestKeysetPagination(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)

	for i := 0; i < 5; i++ {
		s.UpsertViolation(ViolationListItem{
			Fingerprint: "fp" + strconv.Itoa(i),
			File:        "a.ts",
			Line:        i + 1,
			PatternID:   "p",
			Severity:    "warning",
			Message:     "m",
		})
	}
	if err := s.Batcher().Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	page1, err := s.ListViolations("", 2)
	if err != nil {
		t.Fatalf("ListViolations: %v", err)
	}
	if len(page1.Items) != 2 || !page1.HasMore {
		t.Fatalf("page1 = %d items, hasMore=%v", len(page1.Items), page1.HasMore)
	}

	page2, err := s.ListViolations(page1.NextCursor, 2)
	if err != nil {
		t.Fatalf("ListViolations page2: %v", err)
	}
	if len(page2.Items) != 2 {
		t.Fatalf("page2 = %d items", len(page2.Items))
	}
	if page2.Items[0].ViolationID <= page1.Items[1].ViolationID {
		t.Error("cursor did not advance past page1")
	}

	page3, err := s.ListViolations(page2.NextCursor, 2)
	if err != nil {
		t.Fatalf("ListViolations page3: %v", err)
	}
	if len(page3.Items) != 1 || page3.HasMore {
		t.Errorf("page3 = %d items, hasMore=%v; want final single item", len(page3.Items), page3.HasMore)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{SortKey: "src/file.ts", ID: 42}
	decoded, err := DecodeCursor(c.Encode())
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if decoded != c {
		t.Errorf("round trip = %+v, want %+v", decoded, c)
	}

	if _, err := DecodeCursor("not base64!!"); err == nil {
		t.Error("malformed cursor accepted")
	}
	empty, err := DecodeCursor("")
	if err != nil || empty != (Cursor{}) {
		t.Errorf("empty token should decode to zero cursor")
	}
}

func TestParseCacheRoundTrip(t *testing.T) {
	s := testStore(t)

	blob := []byte(`{"path":"a.ts","functions":[{"name":"f"}]}`)
	s.PutParseBlob("typescript", 12345, blob)
	if err := s.Batcher().Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, ok, err := s.GetParseBlob("typescript", 12345)
	if err != nil || !ok {
		t.Fatalf("GetParseBlob: ok=%v err=%v", ok, err)
	}
	if string(got) != string(blob) {
		t.Errorf("blob round trip mismatch")
	}

	if _, ok, _ := s.GetParseBlob("typescript", 99999); ok {
		t.Error("missing key reported as hit")
	}
}

func TestViolationFingerprintsSurviveRescan(t *testing.T) {
	s := testStore(t)
	seedGraph(t, s)

	v := ViolationListItem{
		Fingerprint: "stable-fp",
		File:        "a.ts",
		Line:        10,
		PatternID:   "p",
		Severity:    "warning",
		Message:     "m",
	}
	s.UpsertViolation(v)
	if err := s.Batcher().Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Same fingerprint at a shifted line: the row moves but is_new drops.
	v.Line = 14
	s.UpsertViolation(v)
	if err := s.Batcher().Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	page, err := s.ListViolations("", 10)
	if err != nil {
		t.Fatalf("ListViolations: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("rows = %d, want 1", len(page.Items))
	}
	if page.Items[0].IsNew {
		t.Error("re-observed violation still flagged new")
	}
	if page.Items[0].Line != 14 {
		t.Errorf("line = %d, want 14", page.Items[0].Line)
	}
}

func TestRetentionTrims(t *testing.T) {
	s := testStore(t)

	err := s.WithWriteTx(func(tx *sql.Tx) error {
		for i := 0; i < 20; i++ {
			if _, err := tx.Exec(`
				INSERT INTO health_trends (created_at, health_score, pattern_count, violation_count, risk_level)
				VALUES (?, 90, 1, 0, 'low')`, 1000+i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	policy := RetentionPolicy{MaxAge: 1 << 62, MaxRows: 5} // ~146 years: only the row cap trims
	if err := s.EnforceRetention(policy); err != nil {
		t.Fatalf("EnforceRetention: %v", err)
	}

	n, _ := s.CountRows("health_trends")
	if n != 5 {
		t.Errorf("health_trends = %d after retention, want 5", n)
	}
}
