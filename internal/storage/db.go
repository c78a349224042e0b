package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"drift/internal/errors"
	"drift/internal/logging"
)

// Options controls how the store is opened.
type Options struct {
	// Path is the database file, or ":memory:" for an in-memory store.
	Path           string
	ReaderPoolSize int
	BusyTimeoutMs  int
	// BatchSize and ChannelCapacity shape the ingest path.
	BatchSize       int
	ChannelCapacity int
}

// DefaultOptions returns the production defaults.
func DefaultOptions(path string) Options {
	return Options{
		Path:            path,
		ReaderPoolSize:  4,
		BusyTimeoutMs:   5000,
		BatchSize:       500,
		ChannelCapacity: 1024,
	}
}

// Store is the single embedded relational store for a project. Exactly one
// writer connection exists, protected by a mutex; readers come from a
// fixed-size pool with a round-robin dispatcher. In-memory stores route
// readers through the writer: separate in-memory connections would be
// independent databases.
type Store struct {
	opts     Options
	writer   *sql.DB
	writerMu sync.Mutex
	readers  []*sql.DB
	nextRead atomic.Uint64
	inMemory bool
	logger   *logging.Logger
	batcher  *Batcher
	lock     *FileLock
}

// Open opens or creates the store, applies pragmas, and runs migrations.
func Open(opts Options, logger *logging.Logger) (*Store, error) {
	inMemory := opts.Path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, errors.New(errors.StorageFull, "cannot create database directory", err)
		}
	}

	writer, err := openConn(opts, false)
	if err != nil {
		return nil, err
	}

	s := &Store{
		opts:     opts,
		writer:   writer,
		inMemory: inMemory,
		logger:   logger.Module("storage"),
	}

	if err := s.migrate(); err != nil {
		writer.Close()
		return nil, err
	}

	if !inMemory {
		for i := 0; i < opts.ReaderPoolSize; i++ {
			r, err := openConn(opts, true)
			if err != nil {
				s.Close()
				return nil, err
			}
			s.readers = append(s.readers, r)
		}
	}

	s.batcher = newBatcher(s, opts.ChannelCapacity, opts.BatchSize)
	return s, nil
}

func openConn(opts Options, readOnly bool) (*sql.DB, error) {
	dsn := opts.Path
	if dsn != ":memory:" && !readOnly {
		// Writer transactions take the write lock up front.
		dsn = "file:" + dsn + "?_txlock=immediate"
	} else if dsn != ":memory:" {
		dsn = "file:" + dsn
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.New(errors.StorageCorrupt, "failed to open database", err)
	}
	// database/sql pools connections; pin each handle to one underlying
	// connection so pragmas and query_only stick.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", opts.BusyTimeoutMs),
		"PRAGMA cache_size=-65536", // 64 MiB page cache
		"PRAGMA mmap_size=268435456",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA auto_vacuum=INCREMENTAL",
	}
	if readOnly {
		pragmas = append(pragmas, "PRAGMA query_only=ON")
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, errors.New(errors.StorageCorrupt, "failed to set pragma", err)
		}
	}

	return conn, nil
}

// Close drains the ingest channel, releases the advisory lock, and closes
// every connection.
func (s *Store) Close() error {
	if s.batcher != nil {
		s.batcher.Close()
	}
	if s.lock != nil {
		_ = s.lock.Release()
	}
	for _, r := range s.readers {
		_ = r.Close()
	}
	if s.writer != nil {
		return s.writer.Close()
	}
	return nil
}

// Batcher returns the batch ingest channel.
func (s *Store) Batcher() *Batcher {
	return s.batcher
}

// Reader returns a pooled read connection. Readers carry query_only=ON;
// mutation through a reader fails at the SQLite layer.
func (s *Store) Reader() *sql.DB {
	if s.inMemory || len(s.readers) == 0 {
		return s.writer
	}
	n := s.nextRead.Add(1)
	return s.readers[n%uint64(len(s.readers))]
}

// WithWriteTx runs fn inside a transaction on the writer connection.
// The writer DSN carries _txlock=immediate, so the write lock is taken
// at BEGIN rather than at the first mutating statement.
func (s *Store) WithWriteTx(fn func(*sql.Tx) error) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()
	return s.writeTxLocked(fn)
}

func (s *Store) writeTxLocked(fn func(*sql.Tx) error) error {
	tx, err := s.writer.Begin()
	if err != nil {
		return mapSQLiteErr(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to rollback transaction", map[string]interface{}{
				"error":          err.Error(),
				"rollback_error": rbErr.Error(),
			})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

// mapSQLiteErr folds driver errors into the stable taxonomy.
func mapSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "SQLITE_BUSY"):
		return errors.New(errors.StorageBusy, "database busy", err)
	case strings.Contains(msg, "disk is full"), strings.Contains(msg, "SQLITE_FULL"):
		return errors.New(errors.StorageFull, "disk full", err)
	case strings.Contains(msg, "malformed"), strings.Contains(msg, "SQLITE_CORRUPT"):
		return errors.New(errors.StorageCorrupt, "database corrupt", err)
	default:
		return err
	}
}
