package storage

import (
	"database/sql"
	"strconv"

	"drift/internal/errors"
)

// Migrations are a linear, numbered sequence of pure SQL steps. Each step
// is irreversible; user_version records the current position. The store
// refuses to open a database whose version is ahead of this build.
var migrations = []string{
	// v1: base tables.
	`
	CREATE TABLE file_metadata (
		path TEXT PRIMARY KEY,
		content_hash INTEGER NOT NULL,
		size INTEGER NOT NULL,
		mtime INTEGER NOT NULL,
		language TEXT NOT NULL,
		parse_error TEXT
	) STRICT;

	CREATE TABLE functions (
		id INTEGER PRIMARY KEY,
		file TEXT NOT NULL REFERENCES file_metadata(path) ON DELETE CASCADE,
		name TEXT NOT NULL,
		qualified_name TEXT NOT NULL,
		signature TEXT NOT NULL DEFAULT '',
		body_hash INTEGER NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		is_entry_point INTEGER NOT NULL DEFAULT 0,
		is_exported INTEGER NOT NULL DEFAULT 0,
		is_injectable INTEGER NOT NULL DEFAULT 0,
		is_auth_handler INTEGER NOT NULL DEFAULT 0,
		is_test_case INTEGER NOT NULL DEFAULT 0,
		is_data_accessor INTEGER NOT NULL DEFAULT 0,
		UNIQUE(file, qualified_name, body_hash)
	) STRICT;
	CREATE INDEX idx_functions_file ON functions(file);
	CREATE INDEX idx_functions_qualified ON functions(qualified_name);

	CREATE TABLE call_edges (
		id INTEGER PRIMARY KEY,
		caller_id INTEGER NOT NULL REFERENCES functions(id) ON DELETE CASCADE,
		callee_id INTEGER REFERENCES functions(id) ON DELETE SET NULL,
		strategy TEXT NOT NULL,
		confidence REAL NOT NULL CHECK(confidence >= 0.0 AND confidence <= 1.0),
		call_line INTEGER NOT NULL DEFAULT 0
	) STRICT;
	CREATE INDEX idx_call_edges_caller ON call_edges(caller_id);
	CREATE INDEX idx_call_edges_callee ON call_edges(callee_id);
	`,

	// v2: detection and pattern tables.
	`
	CREATE TABLE pattern_matches (
		id INTEGER PRIMARY KEY,
		scan_id TEXT NOT NULL,
		detector_id TEXT NOT NULL,
		pattern_id TEXT NOT NULL,
		category TEXT NOT NULL,
		file TEXT NOT NULL REFERENCES file_metadata(path) ON DELETE CASCADE,
		line INTEGER NOT NULL,
		snippet TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL CHECK(confidence >= 0.0 AND confidence <= 1.0)
	) STRICT;
	CREATE INDEX idx_pattern_matches_pattern ON pattern_matches(pattern_id);
	CREATE INDEX idx_pattern_matches_file ON pattern_matches(file);
	CREATE INDEX idx_pattern_matches_scan ON pattern_matches(scan_id);

	CREATE TABLE patterns (
		pattern_id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		occurrences INTEGER NOT NULL DEFAULT 0 CHECK(occurrences >= 0),
		file_spread INTEGER NOT NULL DEFAULT 0 CHECK(file_spread >= 0),
		outlier_count INTEGER NOT NULL DEFAULT 0 CHECK(outlier_count >= 0),
		parent_id TEXT,
		aliases TEXT NOT NULL DEFAULT '[]' CHECK(json_valid(aliases)),
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL
	) STRICT;

	CREATE TABLE pattern_locations (
		pattern_id TEXT NOT NULL REFERENCES patterns(pattern_id) ON DELETE CASCADE,
		file TEXT NOT NULL REFERENCES file_metadata(path) ON DELETE CASCADE,
		line INTEGER NOT NULL,
		PRIMARY KEY(pattern_id, file, line)
	) STRICT, WITHOUT ROWID;
	CREATE INDEX idx_pattern_locations_file ON pattern_locations(file);

	CREATE TABLE confidence_scores (
		pattern_id TEXT PRIMARY KEY REFERENCES patterns(pattern_id) ON DELETE CASCADE,
		alpha REAL NOT NULL CHECK(alpha >= 1.0),
		beta REAL NOT NULL CHECK(beta >= 1.0),
		posterior REAL NOT NULL CHECK(posterior >= 0.0 AND posterior <= 1.0),
		ci_low REAL NOT NULL,
		ci_high REAL NOT NULL,
		tier TEXT NOT NULL,
		momentum TEXT NOT NULL,
		last_scan_id TEXT NOT NULL,
		prev_frequency INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	) STRICT;

	CREATE TABLE outliers (
		id INTEGER PRIMARY KEY,
		pattern_id TEXT NOT NULL REFERENCES patterns(pattern_id) ON DELETE CASCADE,
		file TEXT NOT NULL REFERENCES file_metadata(path) ON DELETE CASCADE,
		line INTEGER NOT NULL,
		method TEXT NOT NULL,
		score REAL NOT NULL CHECK(score >= 0.0 AND score <= 1.0),
		significance TEXT NOT NULL
	) STRICT;
	CREATE INDEX idx_outliers_pattern ON outliers(pattern_id);

	CREATE TABLE conventions (
		id TEXT PRIMARY KEY,
		pattern_id TEXT NOT NULL REFERENCES patterns(pattern_id) ON DELETE CASCADE,
		category TEXT NOT NULL,
		scope_kind TEXT NOT NULL,
		scope_value TEXT NOT NULL DEFAULT '',
		dominance REAL NOT NULL CHECK(dominance >= 0.0 AND dominance <= 1.0),
		status TEXT NOT NULL,
		discovered_at INTEGER NOT NULL,
		last_seen INTEGER NOT NULL
	) STRICT;

	CREATE TABLE violations (
		id INTEGER PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		file TEXT NOT NULL REFERENCES file_metadata(path) ON DELETE CASCADE,
		line INTEGER NOT NULL,
		col INTEGER NOT NULL DEFAULT 0,
		pattern_id TEXT NOT NULL,
		severity TEXT NOT NULL CHECK(severity IN ('error','warning','info','hint')),
		message TEXT NOT NULL,
		is_new INTEGER NOT NULL DEFAULT 1,
		UNIQUE(fingerprint)
	) STRICT;
	CREATE INDEX idx_violations_file ON violations(file);
	`,

	// v3: boundaries and flows.
	`
	CREATE TABLE boundaries (
		id INTEGER PRIMARY KEY,
		file TEXT NOT NULL REFERENCES file_metadata(path) ON DELETE CASCADE,
		line INTEGER NOT NULL,
		table_name TEXT NOT NULL,
		framework TEXT NOT NULL,
		operation TEXT NOT NULL CHECK(operation IN ('read','write','delete','unknown')),
		fields TEXT NOT NULL DEFAULT '[]' CHECK(json_valid(fields)),
		confidence REAL NOT NULL CHECK(confidence >= 0.0 AND confidence <= 1.0)
	) STRICT;
	CREATE INDEX idx_boundaries_file ON boundaries(file);
	CREATE INDEX idx_boundaries_table ON boundaries(table_name);

	CREATE TABLE sensitive_fields (
		id INTEGER PRIMARY KEY,
		field TEXT NOT NULL,
		table_name TEXT,
		class TEXT NOT NULL CHECK(class IN ('pii','credentials','financial','health')),
		confidence REAL NOT NULL CHECK(confidence >= 0.0 AND confidence <= 1.0),
		UNIQUE(field, table_name)
	) STRICT;

	CREATE TABLE taint_flows (
		id INTEGER PRIMARY KEY,
		scan_id TEXT NOT NULL,
		cwe TEXT NOT NULL,
		severity TEXT NOT NULL,
		entry_file TEXT NOT NULL REFERENCES file_metadata(path) ON DELETE CASCADE,
		steps TEXT NOT NULL CHECK(json_valid(steps))
	) STRICT;
	CREATE INDEX idx_taint_flows_cwe ON taint_flows(cwe);
	`,

	// v4: caches, history, and materialized summaries.
	`
	CREATE TABLE parse_cache (
		language TEXT NOT NULL,
		content_hash INTEGER NOT NULL,
		result BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY(language, content_hash)
	) STRICT;

	CREATE TABLE scan_history (
		scan_id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		files_scanned INTEGER NOT NULL DEFAULT 0,
		files_changed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL
	) STRICT;

	CREATE TABLE health_trends (
		id INTEGER PRIMARY KEY,
		created_at INTEGER NOT NULL,
		health_score REAL NOT NULL,
		pattern_count INTEGER NOT NULL,
		violation_count INTEGER NOT NULL,
		risk_level TEXT NOT NULL
	) STRICT;

	CREATE TABLE materialized_status (
		id INTEGER PRIMARY KEY CHECK(id = 1),
		health_score REAL NOT NULL,
		trend TEXT NOT NULL,
		last_scan_at INTEGER NOT NULL,
		file_count INTEGER NOT NULL,
		pattern_count INTEGER NOT NULL,
		approved_count INTEGER NOT NULL,
		critical_violations INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		security_risk_level TEXT NOT NULL
	) STRICT;

	CREATE TABLE materialized_security (
		id INTEGER PRIMARY KEY CHECK(id = 1),
		risk_level TEXT NOT NULL,
		sensitive_field_count INTEGER NOT NULL,
		unprotected_access_points INTEGER NOT NULL,
		top_risk_tables TEXT NOT NULL DEFAULT '[]' CHECK(json_valid(top_risk_tables))
	) STRICT;

	CREATE TABLE detector_feedback (
		detector_id TEXT NOT NULL,
		scan_id TEXT NOT NULL,
		false_positives INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0,
		recorded_at INTEGER NOT NULL,
		PRIMARY KEY(detector_id, scan_id)
	) STRICT;
	`,
}

// SchemaVersion is the version this build writes and requires.
var SchemaVersion = len(migrations)

// migrate brings the database to SchemaVersion, refusing databases that
// are ahead of this build.
func (s *Store) migrate() error {
	var version int
	if err := s.writer.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.New(errors.StorageCorrupt, "cannot read schema version", err)
	}

	if version > SchemaVersion {
		return errors.Newf(errors.VersionTooNew,
			"database schema v%d is newer than supported v%d", version, SchemaVersion)
	}
	if version == SchemaVersion {
		return nil
	}

	for step := version; step < SchemaVersion; step++ {
		sqlText := migrations[step]
		err := s.WithWriteTx(func(tx *sql.Tx) error {
			if _, err := tx.Exec(sqlText); err != nil {
				return err
			}
			return nil
		})
		if err != nil {
			return errors.New(errors.MigrationFailed,
				"migration step failed", err).WithDetails(map[string]int{"step": step + 1})
		}
		// user_version cannot be set from within a database/sql transaction
		// parameterized statement; it is a pragma write on the same connection.
		if _, err := s.writer.Exec(pragmaUserVersion(step + 1)); err != nil {
			return errors.New(errors.MigrationFailed, "cannot record schema version", err)
		}
	}

	s.logger.Info("database schema migrated", map[string]interface{}{
		"from_version": version,
		"to_version":   SchemaVersion,
	})
	return nil
}

func pragmaUserVersion(v int) string {
	// PRAGMA does not accept bind parameters.
	return "PRAGMA user_version = " + strconv.Itoa(v)
}
