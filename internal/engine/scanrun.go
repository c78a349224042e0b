package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"drift/internal/boundaries"
	"drift/internal/detect"
	"drift/internal/events"
	"drift/internal/parser"
	"drift/internal/scanner"
	"drift/internal/storage"
)

// ScanStatus reports how a scan ended.
type ScanStatus string

const (
	ScanCompleted ScanStatus = "completed"
	ScanCancelled ScanStatus = "cancelled"
	ScanFailed    ScanStatus = "failed"
)

// ScanReport summarizes one pipeline run.
type ScanReport struct {
	ScanID       string
	Status       ScanStatus
	FilesScanned int
	FilesChanged int
	Patterns     int
	Violations   int
	TaintFlows   int
	Duration     time.Duration
	FileErrors   int
}

// Scan runs the full pipeline. Incremental by construction: files whose
// content hash is unchanged contribute cached parse results and zero
// writes; a scan with no changes performs no derivation at all.
func (e *Engine) Scan(ctx context.Context) (*ScanReport, error) {
	start := time.Now()
	scanID := uuid.NewString()
	e.token.Reset()

	if err := e.store.StartScan(scanID); err != nil {
		return nil, err
	}
	if !e.cfg.Storage.InMemory {
		lockPath := filepath.Join(e.cfg.ProjectRoot, "drift.lock")
		if err := e.store.AcquireProjectLock(lockPath); err != nil {
			_ = e.store.FinishScan(scanID, string(ScanFailed), 0, 0)
			return nil, err
		}
		defer e.store.ReleaseProjectLock()
	}

	// Detector feedback rule: disable detectors past the false-positive
	// threshold before the pass starts.
	if disabled, err := e.store.DisabledDetectors(); err == nil {
		for id := range disabled {
			e.registry.Disable(id)
		}
	}

	report := &ScanReport{ScanID: scanID, Status: ScanCompleted}

	diff, err := e.scanner.Scan(e.store, e.token)
	if err != nil {
		_ = e.store.FinishScan(scanID, string(ScanFailed), 0, 0)
		return nil, err
	}
	report.FilesScanned = diff.TotalVisible()
	report.FilesChanged = diff.ChangedCount()
	report.FileErrors = len(diff.Errors)

	if diff.Cancelled {
		report.Status = ScanCancelled
		_ = e.store.FinishScan(scanID, string(ScanCancelled), report.FilesScanned, report.FilesChanged)
		report.Duration = time.Since(start)
		return report, nil
	}

	// A no-change scan writes nothing new: base tables untouched,
	// derived tables untouched, and the previous gold layer stands.
	if diff.ChangedCount() == 0 {
		_ = e.store.FinishScan(scanID, string(ScanCompleted), report.FilesScanned, 0)
		e.publishScanDone(scanID, report, false)
		report.Duration = time.Since(start)
		return report, nil
	}

	if err := e.applyDiff(ctx, scanID, diff, report); err != nil {
		_ = e.store.FinishScan(scanID, string(report.Status), report.FilesScanned, report.FilesChanged)
		return report, err
	}

	_ = e.store.FinishScan(scanID, string(report.Status), report.FilesScanned, report.FilesChanged)
	e.publishScanDone(scanID, report, report.Status == ScanCancelled)
	report.Duration = time.Since(start)

	e.logger.Info("scan finished", map[string]interface{}{
		"scan_id":   scanID,
		"status":    report.Status,
		"files":     report.FilesScanned,
		"changed":   report.FilesChanged,
		"patterns":  report.Patterns,
		"duration":  report.Duration.String(),
	})
	return report, nil
}

func (e *Engine) publishScanDone(scanID string, report *ScanReport, cancelled bool) {
	e.bus.PublishScanCompleted(events.ScanCompleted{
		ScanID:       scanID,
		FilesScanned: report.FilesScanned,
		FilesChanged: report.FilesChanged,
		Cancelled:    cancelled,
	})
}

// applyDiff is the ordered pipeline body for a scan that saw changes.
func (e *Engine) applyDiff(ctx context.Context, scanID string, diff *scanner.ScanDiff, report *ScanReport) error {
	// Deletions cascade first so nothing derives from gone files.
	for _, path := range diff.Deleted {
		if err := e.store.DeleteFileCascade(path); err != nil {
			return err
		}
		e.graph.RemoveFile(path)
		e.detector.NotifyFileChange(path)
	}

	// Modified files clear their derived rows ahead of re-insertion.
	for _, f := range diff.Modified {
		if err := e.store.DeleteDerivedForFile(f.Path); err != nil {
			return err
		}
		e.graph.RemoveFile(f.Path)
		e.detector.NotifyFileChange(f.Path)
	}
	e.reach.Invalidate()

	// Parse changed files in parallel; unchanged files come from the
	// content-addressed cache.
	changed := append(append([]scanner.ScannedFile(nil), diff.Added...), diff.Modified...)
	parsed, parseErrs := e.parseAll(ctx, changed)

	for i, f := range changed {
		rec := storage.FileRecord{
			Path:        f.Path,
			ContentHash: f.ContentHash,
			Size:        f.Size,
			Mtime:       f.Mtime,
			Language:    f.Language,
		}
		if parseErrs[i] != nil {
			rec.ParseError = parseErrs[i].Error()
		}
		e.store.UpsertFile(rec)
	}

	// Assemble the whole-project view: fresh results plus cached parses
	// of unchanged files.
	project := make([]*parser.ParseResult, 0, len(parsed)+len(diff.Unchanged))
	changedResults := make([]*parser.ParseResult, 0, len(parsed))
	for _, res := range parsed {
		if res != nil {
			project = append(project, res)
			changedResults = append(changedResults, res)
		}
	}
	for _, f := range diff.Unchanged {
		if res := e.cachedParse(ctx, f); res != nil {
			project = append(project, res)
		}
	}

	if e.token.Cancelled() {
		report.Status = ScanCancelled
		return nil
	}

	// Detection: learn over the project, then a parallel per-file pass
	// over changed files only.
	e.detector.Learn(&detect.ProjectContext{Files: project})
	matches := e.detectAll(changedResults)
	for _, m := range matches {
		e.store.Batcher().Enqueue(`
			INSERT INTO pattern_matches (scan_id, detector_id, pattern_id, category, file, line, snippet, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			scanID, m.DetectorID, m.PatternID, string(m.Category), m.File, m.Line, m.Snippet, m.Confidence)
	}

	// Boundary analysis: learn over the project, detect over changed
	// files, reclassify sensitivity globally.
	learner := boundaries.NewLearner()
	knowledge := learner.Learn(project)
	boundaryDetector := boundaries.NewDetector(knowledge)

	var accessPoints []boundaries.Boundary
	for _, res := range changedResults {
		accessPoints = append(accessPoints, boundaryDetector.DetectFile(res)...)
	}
	for _, b := range accessPoints {
		fieldsJSON := jsonStrings(b.Fields)
		e.store.Batcher().Enqueue(`
			INSERT INTO boundaries (file, line, table_name, framework, operation, fields, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.File, b.Line, b.Table, b.Framework, string(b.Operation), fieldsJSON, b.Confidence)
	}

	// Sensitive fields derive from all known access points, so pull the
	// persisted set for unchanged files too once the batch lands.
	if err := e.store.Batcher().Flush(); err != nil {
		return err
	}
	allAccessPoints, err := e.loadBoundaries()
	if err != nil {
		return err
	}
	sensitiveFields := boundaries.ClassifyBoundaries(allAccessPoints)
	if err := e.replaceSensitiveFields(sensitiveFields); err != nil {
		return err
	}

	// Call graph: insert functions and resolved edges for changed files.
	if err := e.rebuildGraphFor(changedResults, project, knowledge); err != nil {
		return err
	}
	e.reach.Invalidate()
	e.sensitivityFor(allAccessPoints, sensitiveFields)

	if e.token.Cancelled() {
		report.Status = ScanCancelled
		return nil
	}

	// Statistical layer: aggregation, confidence, outliers and
	// conventions, then violations.
	if err := e.deriveIntelligence(scanID, report, diff); err != nil {
		return err
	}

	// Graph intelligence: taint flows over changed entry files.
	flowCount, err := e.runTaint(scanID, changedResults)
	if err != nil {
		return err
	}
	report.TaintFlows = flowCount

	if err := e.store.Batcher().Flush(); err != nil {
		return err
	}

	// The gold refresh is the last transaction of the scan.
	domains := map[storage.RefreshDomain]bool{
		storage.DomainFiles:    true,
		storage.DomainPatterns: true,
	}
	if len(accessPoints) > 0 || len(sensitiveFields) > 0 || flowCount > 0 {
		domains[storage.DomainSecurity] = true
	}
	if err := e.store.RefreshGold(domains); err != nil {
		return err
	}

	retention := storage.DefaultRetention()
	retention.MaxAge = time.Duration(e.cfg.Storage.RetainDays) * 24 * time.Hour
	retention.MaxRows = e.cfg.Storage.RetainRows
	if err := e.store.EnforceRetention(retention); err != nil {
		e.logger.Warn("retention pass failed", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

// parseAll fans file parsing across the worker pool.
func (e *Engine) parseAll(ctx context.Context, files []scanner.ScannedFile) ([]*parser.ParseResult, []error) {
	results := make([]*parser.ParseResult, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if e.token.Cancelled() {
				return nil
			}
			res, err := e.parsers.Parse(ctx, f)
			results[i], errs[i] = res, err
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}

// cachedParse loads an unchanged file's parse result. The cache is keyed
// by (language, content hash), so a hit needs no file content; a cold
// cache re-reads the file once.
func (e *Engine) cachedParse(ctx context.Context, f scanner.ScannedFile) *parser.ParseResult {
	if f.Content == nil {
		if res, err := e.parsers.Parse(ctx, f); err == nil && res != nil {
			return res
		}
		reloaded, err := e.scanner.Reload(f)
		if err != nil {
			return nil
		}
		f = reloaded
	}
	res, err := e.parsers.Parse(ctx, f)
	if err != nil {
		return nil
	}
	return res
}

// detectAll runs detection over changed files in parallel.
func (e *Engine) detectAll(results []*parser.ParseResult) []detect.PatternMatch {
	var mu sync.Mutex
	var all []detect.PatternMatch

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, res := range results {
		res := res
		g.Go(func() error {
			if e.token.Cancelled() {
				return nil
			}
			fc := detect.NewFileContext(res)
			matches := e.detector.Detect(fc)
			mu.Lock()
			all = append(all, matches...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return all
}

func jsonStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func parseJSONStrings(data string) []string {
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil
	}
	return out
}

// loadBoundaries reads every persisted boundary row back as structs.
func (e *Engine) loadBoundaries() ([]boundaries.Boundary, error) {
	rows, err := e.store.Reader().Query(`
		SELECT file, line, table_name, framework, operation, fields, confidence FROM boundaries`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []boundaries.Boundary
	for rows.Next() {
		var b boundaries.Boundary
		var op, fieldsJSON string
		if err := rows.Scan(&b.File, &b.Line, &b.Table, &b.Framework, &op, &fieldsJSON, &b.Confidence); err != nil {
			return nil, err
		}
		b.Operation = boundaries.Operation(op)
		b.Fields = parseJSONStrings(fieldsJSON)
		out = append(out, b)
	}
	return out, rows.Err()
}

// replaceSensitiveFields rebuilds the classified-field table; it is a
// pure function of the boundary rows.
func (e *Engine) replaceSensitiveFields(fields []boundaries.SensitiveField) error {
	return e.store.WithWriteTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM sensitive_fields`); err != nil {
			return err
		}
		for _, f := range fields {
			var table interface{}
			if f.Table != "" {
				table = f.Table
			}
			if _, err := tx.Exec(`
				INSERT INTO sensitive_fields (field, table_name, class, confidence)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(field, table_name) DO UPDATE SET
					class = excluded.class,
					confidence = excluded.confidence`,
				f.Field, table, string(f.Class), f.Confidence); err != nil {
				return err
			}
		}
		return nil
	})
}
