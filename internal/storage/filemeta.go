package storage

import (
	"database/sql"
)

// FileRecord mirrors one file_metadata row.
type FileRecord struct {
	Path        string
	ContentHash uint64
	Size        int64
	Mtime       int64
	Language    string
	ParseError  string
}

// ChangeKind classifies a file against the persisted metadata table.
type ChangeKind int

const (
	// Unchanged means the content hash matches the stored row.
	Unchanged ChangeKind = iota
	// Added means the file has no stored row.
	Added
	// Modified means the content hash differs from the stored row.
	Modified
	// Deleted means a stored row has no file on disk anymore.
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// FileChange pairs a path with its classification and fresh hash.
type FileChange struct {
	Path        string
	Kind        ChangeKind
	ContentHash uint64
}

// LoadFileMetadata reads the full file table into a map keyed by path.
func (s *Store) LoadFileMetadata() (map[string]FileRecord, error) {
	rows, err := s.Reader().Query(`
		SELECT path, content_hash, size, mtime, language, COALESCE(parse_error, '')
		FROM file_metadata`)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	out := make(map[string]FileRecord)
	for rows.Next() {
		var r FileRecord
		var hash int64
		if err := rows.Scan(&r.Path, &hash, &r.Size, &r.Mtime, &r.Language, &r.ParseError); err != nil {
			return nil, err
		}
		r.ContentHash = uint64(hash)
		out[r.Path] = r
	}
	return out, rows.Err()
}

// UpsertFile queues a file_metadata upsert through the batch writer.
// SQLite stores the 64-bit hash as a signed integer; readers flip it back.
func (s *Store) UpsertFile(r FileRecord) {
	s.batcher.Enqueue(`
		INSERT INTO file_metadata (path, content_hash, size, mtime, language, parse_error)
		VALUES (?, ?, ?, ?, ?, NULLIF(?, ''))
		ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			size = excluded.size,
			mtime = excluded.mtime,
			language = excluded.language,
			parse_error = excluded.parse_error`,
		r.Path, int64(r.ContentHash), r.Size, r.Mtime, r.Language, r.ParseError)
}

// DeleteFileCascade removes a file row and everything owned by it. Owned
// rows cascade through foreign keys; this is the single deletion path for
// the "deleting a FileId deletes all derived facts it owns" invariant.
func (s *Store) DeleteFileCascade(path string) error {
	return s.WithWriteTx(func(tx *sql.Tx) error {
		// Inbound edges from other files must not dangle: the callee slot
		// goes NULL via ON DELETE SET NULL, and the strategy is marked stale.
		if _, err := tx.Exec(`
			UPDATE call_edges SET strategy = 'stale'
			WHERE callee_id IN (SELECT id FROM functions WHERE file = ?)
			AND caller_id NOT IN (SELECT id FROM functions WHERE file = ?)`,
			path, path); err != nil {
			return mapSQLiteErr(err)
		}
		if _, err := tx.Exec(`DELETE FROM file_metadata WHERE path = ?`, path); err != nil {
			return mapSQLiteErr(err)
		}
		return nil
	})
}

// DeleteDerivedForFile clears rows owned by a modified file ahead of
// re-insertion, leaving the file row itself in place for the upsert.
func (s *Store) DeleteDerivedForFile(path string) error {
	return s.WithWriteTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			UPDATE call_edges SET strategy = 'stale'
			WHERE callee_id IN (SELECT id FROM functions WHERE file = ?)
			AND caller_id NOT IN (SELECT id FROM functions WHERE file = ?)`,
			path, path); err != nil {
			return mapSQLiteErr(err)
		}
		stmts := []string{
			`DELETE FROM functions WHERE file = ?`,
			`DELETE FROM pattern_matches WHERE file = ?`,
			`DELETE FROM pattern_locations WHERE file = ?`,
			`DELETE FROM boundaries WHERE file = ?`,
			`DELETE FROM outliers WHERE file = ?`,
			`DELETE FROM violations WHERE file = ?`,
			`DELETE FROM taint_flows WHERE entry_file = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt, path); err != nil {
				return mapSQLiteErr(err)
			}
		}
		return nil
	})
}

// AcquireProjectLock takes the cross-process advisory lock for the
// duration of a write-heavy scan.
func (s *Store) AcquireProjectLock(lockPath string) error {
	if s.inMemory {
		return nil
	}
	lock, err := AcquireLock(lockPath)
	if err != nil {
		return err
	}
	s.lock = lock
	return nil
}

// ReleaseProjectLock drops the advisory lock after a scan.
func (s *Store) ReleaseProjectLock() {
	if s.lock != nil {
		_ = s.lock.Release()
		s.lock = nil
	}
}
