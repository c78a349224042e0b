package storage

import (
	"database/sql"
	"encoding/json"
	"time"
)

// RefreshDomain names a slice of derived state whose change requires a
// gold-layer rebuild.
type RefreshDomain string

const (
	// DomainSecurity covers boundaries, sensitive fields, and taint flows.
	DomainSecurity RefreshDomain = "security"
	// DomainPatterns covers patterns, confidence, outliers, conventions.
	DomainPatterns RefreshDomain = "patterns"
	// DomainFiles covers the base file and function tables.
	DomainFiles RefreshDomain = "files"
)

// StatusSummary mirrors the materialized_status singleton.
type StatusSummary struct {
	HealthScore        float64 `json:"health_score"`
	Trend              string  `json:"trend"`
	LastScanAt         int64   `json:"last_scan_at"`
	FileCount          int     `json:"file_count"`
	PatternCount       int     `json:"pattern_count"`
	ApprovedCount      int     `json:"approved_count"`
	CriticalViolations int     `json:"critical_violations"`
	Warnings           int     `json:"warnings"`
	SecurityRiskLevel  string  `json:"security_risk_level"`
}

// SecuritySummary mirrors the materialized_security singleton.
type SecuritySummary struct {
	RiskLevel               string   `json:"risk_level"`
	SensitiveFieldCount     int      `json:"sensitive_field_count"`
	UnprotectedAccessPoints int      `json:"unprotected_access_points"`
	TopRiskTables           []string `json:"top_risk_tables"`
}

// RefreshGold rebuilds the materialized summaries inside one transaction.
// Order matters: security first, because status reads its risk level; a
// health-trend row is appended last. The domains set narrows work when a
// scan delta names what changed; nil or unknown domains force a full
// refresh.
func (s *Store) RefreshGold(domains map[RefreshDomain]bool) error {
	full := len(domains) == 0
	for d := range domains {
		if d != DomainSecurity && d != DomainPatterns && d != DomainFiles {
			full = true
		}
	}
	return s.WithWriteTx(func(tx *sql.Tx) error {
		if full || domains[DomainSecurity] || !securityRowExists(tx) {
			if err := refreshSecurity(tx); err != nil {
				return err
			}
		}
		if err := refreshStatus(tx); err != nil {
			return err
		}
		return appendHealthTrend(tx)
	})
}

// securityRowExists reports whether the singleton has ever been built;
// status and the trend row both read it, so a missing row forces the
// security refresh regardless of the delta domains.
func securityRowExists(tx *sql.Tx) bool {
	var id int
	err := tx.QueryRow(`SELECT id FROM materialized_security WHERE id = 1`).Scan(&id)
	return err == nil
}

func refreshSecurity(tx *sql.Tx) error {
	var sensitiveCount int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM sensitive_fields`).Scan(&sensitiveCount); err != nil {
		return mapSQLiteErr(err)
	}

	// Access points on tables holding sensitive fields, with no auth
	// handler anywhere among transitive callers, count as unprotected.
	// The graph walk happens upstream; here the boundary row's function
	// context is approximated by file-level auth presence.
	var unprotected int
	if err := tx.QueryRow(`
		SELECT COUNT(*) FROM boundaries b
		WHERE b.table_name IN (SELECT COALESCE(table_name, '') FROM sensitive_fields)
		AND NOT EXISTS (
			SELECT 1 FROM functions f
			WHERE f.file = b.file AND f.is_auth_handler = 1
		)`).Scan(&unprotected); err != nil {
		return mapSQLiteErr(err)
	}

	rows, err := tx.Query(`
		SELECT b.table_name, COUNT(*) AS hits
		FROM boundaries b
		JOIN sensitive_fields sf ON sf.table_name = b.table_name
		GROUP BY b.table_name
		ORDER BY hits DESC, b.table_name
		LIMIT 5`)
	if err != nil {
		return mapSQLiteErr(err)
	}
	var topTables []string
	for rows.Next() {
		var name string
		var hits int
		if err := rows.Scan(&name, &hits); err != nil {
			rows.Close()
			return err
		}
		topTables = append(topTables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var criticalFlows int
	if err := tx.QueryRow(`
		SELECT COUNT(*) FROM taint_flows WHERE severity IN ('high', 'critical')`).Scan(&criticalFlows); err != nil {
		return mapSQLiteErr(err)
	}

	risk := "low"
	switch {
	case criticalFlows > 0 || unprotected >= 5:
		risk = "critical"
	case unprotected > 0:
		risk = "high"
	case sensitiveCount > 0:
		risk = "medium"
	}

	topJSON, err := json.Marshal(topTables)
	if err != nil {
		return err
	}
	if topTables == nil {
		topJSON = []byte("[]")
	}

	_, err = tx.Exec(`
		INSERT INTO materialized_security (id, risk_level, sensitive_field_count, unprotected_access_points, top_risk_tables)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			risk_level = excluded.risk_level,
			sensitive_field_count = excluded.sensitive_field_count,
			unprotected_access_points = excluded.unprotected_access_points,
			top_risk_tables = excluded.top_risk_tables`,
		risk, sensitiveCount, unprotected, string(topJSON))
	return mapSQLiteErr(err)
}

func refreshStatus(tx *sql.Tx) error {
	var fileCount, patternCount, approvedCount, critical, warnings int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM file_metadata`).Scan(&fileCount); err != nil {
		return mapSQLiteErr(err)
	}
	if err := tx.QueryRow(`SELECT COUNT(*) FROM patterns`).Scan(&patternCount); err != nil {
		return mapSQLiteErr(err)
	}
	if err := tx.QueryRow(`
		SELECT COUNT(*) FROM conventions WHERE status = 'approved'`).Scan(&approvedCount); err != nil {
		return mapSQLiteErr(err)
	}
	if err := tx.QueryRow(`
		SELECT COUNT(*) FROM violations WHERE severity = 'error'`).Scan(&critical); err != nil {
		return mapSQLiteErr(err)
	}
	if err := tx.QueryRow(`
		SELECT COUNT(*) FROM violations WHERE severity = 'warning'`).Scan(&warnings); err != nil {
		return mapSQLiteErr(err)
	}

	// Status reads the risk level security just wrote; the shared
	// transaction makes the ordering visible to reconciliation tests.
	var risk string
	if err := tx.QueryRow(`
		SELECT risk_level FROM materialized_security WHERE id = 1`).Scan(&risk); err != nil {
		if err == sql.ErrNoRows {
			risk = "low"
		} else {
			return mapSQLiteErr(err)
		}
	}

	health := healthScore(fileCount, critical, warnings, risk)
	trend, err := healthTrendDirection(tx, health)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO materialized_status (id, health_score, trend, last_scan_at, file_count,
			pattern_count, approved_count, critical_violations, warnings, security_risk_level)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			health_score = excluded.health_score,
			trend = excluded.trend,
			last_scan_at = excluded.last_scan_at,
			file_count = excluded.file_count,
			pattern_count = excluded.pattern_count,
			approved_count = excluded.approved_count,
			critical_violations = excluded.critical_violations,
			warnings = excluded.warnings,
			security_risk_level = excluded.security_risk_level`,
		health, trend, time.Now().Unix(), fileCount,
		patternCount, approvedCount, critical, warnings, risk)
	return mapSQLiteErr(err)
}

// healthScore folds violation pressure and security posture into [0,100].
func healthScore(fileCount, critical, warnings int, risk string) float64 {
	score := 100.0
	if fileCount > 0 {
		score -= float64(critical*10+warnings*2) / float64(fileCount)
	}
	switch risk {
	case "critical":
		score -= 30
	case "high":
		score -= 15
	case "medium":
		score -= 5
	}
	if score < 0 {
		score = 0
	}
	return score
}

func healthTrendDirection(tx *sql.Tx, current float64) (string, error) {
	var prev float64
	err := tx.QueryRow(`
		SELECT health_score FROM health_trends
		ORDER BY id DESC LIMIT 1`).Scan(&prev)
	if err == sql.ErrNoRows {
		return "stable", nil
	}
	if err != nil {
		return "", mapSQLiteErr(err)
	}
	switch {
	case current > prev+1.0:
		return "improving", nil
	case current < prev-1.0:
		return "declining", nil
	default:
		return "stable", nil
	}
}

func appendHealthTrend(tx *sql.Tx) error {
	_, err := tx.Exec(`
		INSERT INTO health_trends (created_at, health_score, pattern_count, violation_count, risk_level)
		SELECT ?, ms.health_score, ms.pattern_count,
			(SELECT COUNT(*) FROM violations),
			msec.risk_level
		FROM materialized_status ms, materialized_security msec
		WHERE ms.id = 1 AND msec.id = 1`,
		time.Now().Unix())
	return mapSQLiteErr(err)
}

// Status reads the materialized_status singleton.
func (s *Store) Status() (*StatusSummary, error) {
	var st StatusSummary
	err := s.Reader().QueryRow(`
		SELECT health_score, trend, last_scan_at, file_count, pattern_count,
			approved_count, critical_violations, warnings, security_risk_level
		FROM materialized_status WHERE id = 1`).Scan(
		&st.HealthScore, &st.Trend, &st.LastScanAt, &st.FileCount, &st.PatternCount,
		&st.ApprovedCount, &st.CriticalViolations, &st.Warnings, &st.SecurityRiskLevel)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	return &st, nil
}

// Security reads the materialized_security singleton.
func (s *Store) Security() (*SecuritySummary, error) {
	var sec SecuritySummary
	var topJSON string
	err := s.Reader().QueryRow(`
		SELECT risk_level, sensitive_field_count, unprotected_access_points, top_risk_tables
		FROM materialized_security WHERE id = 1`).Scan(
		&sec.RiskLevel, &sec.SensitiveFieldCount, &sec.UnprotectedAccessPoints, &topJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	if err := json.Unmarshal([]byte(topJSON), &sec.TopRiskTables); err != nil {
		return nil, err
	}
	return &sec, nil
}
