package storage

import (
	"database/sql"
	"encoding/json"
	"time"
)

// FunctionRow mirrors one functions row.
type FunctionRow struct {
	ID            int64
	File          string
	Name          string
	QualifiedName string
	Signature     string
	BodyHash      uint64
	StartLine     int
	EndLine       int
	IsEntryPoint  bool
	IsExported    bool
	IsInjectable  bool
	IsAuthHandler bool
	IsTestCase    bool
	IsDataAccess  bool
}

// EdgeRow mirrors one call_edges row.
type EdgeRow struct {
	CallerID   int64
	CalleeID   sql.NullInt64
	Strategy   string
	Confidence float64
	CallLine   int
}

// InsertFunction queues a functions row with an explicit id so in-memory
// graph handles and persisted rows agree.
func (s *Store) InsertFunction(f FunctionRow) {
	s.batcher.Enqueue(`
		INSERT INTO functions (id, file, name, qualified_name, signature, body_hash,
			start_line, end_line, is_entry_point, is_exported, is_injectable,
			is_auth_handler, is_test_case, is_data_accessor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file, qualified_name, body_hash) DO NOTHING`,
		f.ID, f.File, f.Name, f.QualifiedName, f.Signature, int64(f.BodyHash),
		f.StartLine, f.EndLine, boolInt(f.IsEntryPoint), boolInt(f.IsExported),
		boolInt(f.IsInjectable), boolInt(f.IsAuthHandler), boolInt(f.IsTestCase),
		boolInt(f.IsDataAccess))
}

// InsertCallEdge queues a call_edges row.
func (s *Store) InsertCallEdge(e EdgeRow) {
	var callee interface{}
	if e.CalleeID.Valid {
		callee = e.CalleeID.Int64
	}
	s.batcher.Enqueue(`
		INSERT INTO call_edges (caller_id, callee_id, strategy, confidence, call_line)
		VALUES (?, ?, ?, ?, ?)`,
		e.CallerID, callee, e.Strategy, e.Confidence, e.CallLine)
}

// LoadFunctions reads every functions row, for graph rebuilds.
func (s *Store) LoadFunctions() ([]FunctionRow, error) {
	rows, err := s.Reader().Query(`
		SELECT id, file, name, qualified_name, signature, body_hash, start_line, end_line,
			is_entry_point, is_exported, is_injectable, is_auth_handler, is_test_case,
			is_data_accessor
		FROM functions`)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	var out []FunctionRow
	for rows.Next() {
		var f FunctionRow
		var hash int64
		var entry, exported, inject, auth, test, data int
		if err := rows.Scan(&f.ID, &f.File, &f.Name, &f.QualifiedName, &f.Signature, &hash,
			&f.StartLine, &f.EndLine, &entry, &exported, &inject, &auth, &test, &data); err != nil {
			return nil, err
		}
		f.BodyHash = uint64(hash)
		f.IsEntryPoint = entry == 1
		f.IsExported = exported == 1
		f.IsInjectable = inject == 1
		f.IsAuthHandler = auth == 1
		f.IsTestCase = test == 1
		f.IsDataAccess = data == 1
		out = append(out, f)
	}
	return out, rows.Err()
}

// LoadCallEdges reads every call_edges row, for graph rebuilds.
func (s *Store) LoadCallEdges() ([]EdgeRow, error) {
	rows, err := s.Reader().Query(`
		SELECT caller_id, callee_id, strategy, confidence, call_line FROM call_edges`)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	var out []EdgeRow
	for rows.Next() {
		var e EdgeRow
		if err := rows.Scan(&e.CallerID, &e.CalleeID, &e.Strategy, &e.Confidence, &e.CallLine); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MaxFunctionID returns the highest persisted function id, so fresh
// allocations never collide.
func (s *Store) MaxFunctionID() (int64, error) {
	var max sql.NullInt64
	if err := s.Reader().QueryRow(`SELECT MAX(id) FROM functions`).Scan(&max); err != nil {
		return 0, mapSQLiteErr(err)
	}
	return max.Int64, nil
}

// PatternListItem is one row of the stable patterns output.
type PatternListItem struct {
	PatternID    string  `json:"pattern_id"`
	Category     string  `json:"category"`
	Confidence   float64 `json:"confidence"`
	Tier         string  `json:"tier"`
	Spread       int     `json:"spread"`
	OutlierCount int     `json:"outlier_count"`
	LastSeen     int64   `json:"last_seen"`
	Status       string  `json:"status"`
}

// ListPatterns pages through aggregated patterns ordered by pattern_id.
func (s *Store) ListPatterns(cursorToken string, limit int) (*Page[PatternListItem], error) {
	cursor, err := DecodeCursor(cursorToken)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	rows, err := s.Reader().Query(`
		SELECT p.pattern_id, p.category, COALESCE(cs.posterior, 0.5),
			COALESCE(cs.tier, 'uncertain'), p.file_spread, p.outlier_count, p.last_seen,
			COALESCE((SELECT c.status FROM conventions c WHERE c.pattern_id = p.pattern_id LIMIT 1), 'none')
		FROM patterns p
		LEFT JOIN confidence_scores cs ON cs.pattern_id = p.pattern_id
		WHERE p.pattern_id > ?
		ORDER BY p.pattern_id
		LIMIT ?`,
		cursor.SortKey, limit+1)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	page := &Page[PatternListItem]{}
	for rows.Next() {
		var it PatternListItem
		if err := rows.Scan(&it.PatternID, &it.Category, &it.Confidence, &it.Tier,
			&it.Spread, &it.OutlierCount, &it.LastSeen, &it.Status); err != nil {
			return nil, err
		}
		page.Items = append(page.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		page.HasMore = true
		last := page.Items[len(page.Items)-1]
		page.NextCursor = Cursor{SortKey: last.PatternID}.Encode()
	}
	return page, nil
}

// ViolationListItem is one row of the stable violations output.
type ViolationListItem struct {
	ViolationID int64  `json:"violation_id"`
	File        string `json:"file"`
	Line        int    `json:"line"`
	Column      int    `json:"column"`
	PatternID   string `json:"pattern_id"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	Fingerprint string `json:"fingerprint"`
	IsNew       bool   `json:"is_new"`
}

// ListViolations pages through violations ordered by (file, id).
func (s *Store) ListViolations(cursorToken string, limit int) (*Page[ViolationListItem], error) {
	cursor, err := DecodeCursor(cursorToken)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	rows, err := s.Reader().Query(`
		SELECT id, file, line, col, pattern_id, severity, message, fingerprint, is_new
		FROM violations
		WHERE (file, id) > (?, ?)
		ORDER BY file, id
		LIMIT ?`,
		cursor.SortKey, cursor.ID, limit+1)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	page := &Page[ViolationListItem]{}
	for rows.Next() {
		var it ViolationListItem
		var isNew int
		if err := rows.Scan(&it.ViolationID, &it.File, &it.Line, &it.Column,
			&it.PatternID, &it.Severity, &it.Message, &it.Fingerprint, &isNew); err != nil {
			return nil, err
		}
		it.IsNew = isNew == 1
		page.Items = append(page.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		page.HasMore = true
		last := page.Items[len(page.Items)-1]
		page.NextCursor = Cursor{SortKey: last.File, ID: last.ViolationID}.Encode()
	}
	return page, nil
}

// UpsertViolation inserts a violation, preserving is_new=0 for
// fingerprints seen in earlier scans.
func (s *Store) UpsertViolation(v ViolationListItem) {
	s.batcher.Enqueue(`
		INSERT INTO violations (fingerprint, file, line, col, pattern_id, severity, message, is_new)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(fingerprint) DO UPDATE SET
			file = excluded.file,
			line = excluded.line,
			col = excluded.col,
			is_new = 0`,
		v.Fingerprint, v.File, v.Line, v.Column, v.PatternID, v.Severity, v.Message)
}

// StartScan records a scan_history row in the running state.
func (s *Store) StartScan(scanID string) error {
	return s.WithWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO scan_history (scan_id, started_at, status) VALUES (?, ?, 'running')`,
			scanID, time.Now().Unix())
		return mapSQLiteErr(err)
	})
}

// FinishScan closes out a scan_history row.
func (s *Store) FinishScan(scanID, status string, filesScanned, filesChanged int) error {
	return s.WithWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE scan_history
			SET finished_at = ?, status = ?, files_scanned = ?, files_changed = ?
			WHERE scan_id = ?`,
			time.Now().Unix(), status, filesScanned, filesChanged, scanID)
		return mapSQLiteErr(err)
	})
}

// RecordDetectorFeedback accumulates per-scan false-positive counts.
func (s *Store) RecordDetectorFeedback(detectorID, scanID string, falsePositives, total int) {
	s.batcher.Enqueue(`
		INSERT INTO detector_feedback (detector_id, scan_id, false_positives, total, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(detector_id, scan_id) DO UPDATE SET
			false_positives = false_positives + excluded.false_positives,
			total = total + excluded.total`,
		detectorID, scanID, falsePositives, total, time.Now().Unix())
}

// DisabledDetectors returns detector ids whose project-wide false-positive
// rate crossed 20% over more than thirty days of feedback.
func (s *Store) DisabledDetectors() (map[string]bool, error) {
	cutoff := time.Now().Add(-30 * 24 * time.Hour).Unix()
	rows, err := s.Reader().Query(`
		SELECT detector_id
		FROM detector_feedback
		GROUP BY detector_id
		HAVING SUM(total) > 0
			AND CAST(SUM(false_positives) AS REAL) / SUM(total) > 0.20
			AND MIN(recorded_at) < ?`, cutoff)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// CountRows is a reconciliation helper for tests and diagnostics.
func (s *Store) CountRows(table string) (int, error) {
	allowed := map[string]bool{
		"file_metadata": true, "functions": true, "call_edges": true,
		"pattern_matches": true, "patterns": true, "pattern_locations": true,
		"confidence_scores": true, "outliers": true, "conventions": true,
		"violations": true, "boundaries": true, "sensitive_fields": true,
		"taint_flows": true, "parse_cache": true, "scan_history": true,
		"health_trends": true, "detector_feedback": true,
		"materialized_status": true, "materialized_security": true,
	}
	if !allowed[table] {
		return 0, sql.ErrNoRows
	}
	var n int
	if err := s.Reader().QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		return 0, mapSQLiteErr(err)
	}
	return n, nil
}

// InsertTaintFlow queues a taint_flows row; steps arrive pre-marshalled.
func (s *Store) InsertTaintFlow(scanID, cwe, severity, entryFile string, steps interface{}) error {
	blob, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	s.batcher.Enqueue(`
		INSERT INTO taint_flows (scan_id, cwe, severity, entry_file, steps)
		VALUES (?, ?, ?, ?, ?)`,
		scanID, cwe, severity, entryFile, string(blob))
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
