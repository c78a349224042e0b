package storage

import (
	"database/sql"
	"time"

	"github.com/klauspost/compress/zstd"
)

// The durable parse cache stores zstd-compressed ParseResult blobs keyed
// by (language, content_hash). The in-memory admission layer lives in the
// parser package; this is the backing tier.

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// GetParseBlob fetches and decompresses a cached parse result.
func (s *Store) GetParseBlob(language string, contentHash uint64) ([]byte, bool, error) {
	var blob []byte
	err := s.Reader().QueryRow(`
		SELECT result FROM parse_cache WHERE language = ? AND content_hash = ?`,
		language, int64(contentHash)).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, mapSQLiteErr(err)
	}
	raw, err := zstdDecoder.DecodeAll(blob, nil)
	if err != nil {
		// A corrupt blob is a cache miss, not a failure; the entry gets
		// overwritten by the fresh parse.
		return nil, false, nil
	}
	return raw, true, nil
}

// PutParseBlob compresses and queues a parse result for the durable cache.
func (s *Store) PutParseBlob(language string, contentHash uint64, raw []byte) {
	blob := zstdEncoder.EncodeAll(raw, nil)
	s.batcher.Enqueue(`
		INSERT INTO parse_cache (language, content_hash, result, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(language, content_hash) DO UPDATE SET
			result = excluded.result,
			created_at = excluded.created_at`,
		language, int64(contentHash), blob, time.Now().Unix())
}

// PruneParseCache drops cache entries for hashes no longer referenced by
// any file, bounding growth across rescans.
func (s *Store) PruneParseCache() error {
	return s.WithWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			DELETE FROM parse_cache
			WHERE content_hash NOT IN (SELECT content_hash FROM file_metadata)`)
		return mapSQLiteErr(err)
	})
}
