package storage

import (
	"database/sql"
	"time"
)

// RetentionPolicy bounds the append-only tables by both age and count.
type RetentionPolicy struct {
	MaxAge  time.Duration
	MaxRows int
}

// DefaultRetention keeps ninety days or ten thousand rows, whichever
// trims more.
func DefaultRetention() RetentionPolicy {
	return RetentionPolicy{MaxAge: 90 * 24 * time.Hour, MaxRows: 10000}
}

// EnforceRetention trims append-only tables, checkpoints the WAL, and
// reclaims freelist pages when they exceed a fifth of the database.
// Runs after the gold refresh, never during a scan.
func (s *Store) EnforceRetention(policy RetentionPolicy) error {
	cutoff := time.Now().Add(-policy.MaxAge).Unix()

	err := s.WithWriteTx(func(tx *sql.Tx) error {
		appendOnly := []struct {
			table   string
			timeCol string
		}{
			{"health_trends", "created_at"},
			{"scan_history", "started_at"},
			{"detector_feedback", "recorded_at"},
		}
		for _, t := range appendOnly {
			if _, err := tx.Exec(
				`DELETE FROM `+t.table+` WHERE `+t.timeCol+` < ?`, cutoff); err != nil {
				return mapSQLiteErr(err)
			}
			if _, err := tx.Exec(`
				DELETE FROM `+t.table+` WHERE rowid NOT IN (
					SELECT rowid FROM `+t.table+` ORDER BY `+t.timeCol+` DESC LIMIT ?
				)`, policy.MaxRows); err != nil {
				return mapSQLiteErr(err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	if _, err := s.writer.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return mapSQLiteErr(err)
	}

	var freelist, pageCount int64
	if err := s.writer.QueryRow("PRAGMA freelist_count").Scan(&freelist); err != nil {
		return mapSQLiteErr(err)
	}
	if err := s.writer.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return mapSQLiteErr(err)
	}
	if pageCount > 0 && freelist*5 > pageCount {
		if _, err := s.writer.Exec("PRAGMA incremental_vacuum"); err != nil {
			return mapSQLiteErr(err)
		}
		s.logger.Debug("incremental vacuum reclaimed freelist", map[string]interface{}{
			"freelist_pages": freelist,
			"total_pages":    pageCount,
		})
	}
	return nil
}
