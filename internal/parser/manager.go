// Package parser turns source files into uniform ParseResults through a
// pool of tree-sitter parsers and a content-addressed two-tier cache.
package parser

import (
	"context"
	"encoding/json"

	"drift/internal/errors"
	"drift/internal/gast"
	"drift/internal/logging"
	"drift/internal/scanner"
	"drift/internal/storage"
)

// Manager owns the parser pool and the parse cache.
type Manager struct {
	pool   *parserPool
	store  *storage.Store
	mem    *memCache
	logger *logging.Logger
}

// NewManager creates a parser manager. store may be nil in tests, which
// disables the durable cache tier.
func NewManager(poolSize int, store *storage.Store, logger *logging.Logger) *Manager {
	return &Manager{
		pool:   newParserPool(poolSize),
		store:  store,
		mem:    newMemCache(0),
		logger: logger.Module("parser"),
	}
}

// Parse returns the ParseResult for a scanned file, consulting the
// in-memory cache, then the durable cache, then parsing. A cache hit is
// bit-identical to the original parse by construction.
func (m *Manager) Parse(ctx context.Context, file scanner.ScannedFile) (*ParseResult, error) {
	if !Supported(file.Language) {
		return nil, errors.Newf(errors.ParseFailed, "unsupported language tag: %s", file.Language)
	}

	key := cacheKey{language: file.Language, contentHash: file.ContentHash}
	if cached, ok := m.mem.get(key); ok {
		return cached, nil
	}

	if m.store != nil {
		if blob, ok, err := m.store.GetParseBlob(file.Language, file.ContentHash); err == nil && ok {
			var res ParseResult
			if jsonErr := json.Unmarshal(blob, &res); jsonErr == nil {
				m.mem.put(key, &res)
				return &res, nil
			}
		}
	}

	res, err := m.parse(ctx, file)
	if err != nil {
		return nil, err
	}

	m.mem.put(key, res)
	if m.store != nil {
		if blob, jsonErr := json.Marshal(res); jsonErr == nil {
			m.store.PutParseBlob(file.Language, file.ContentHash, blob)
		}
	}
	return res, nil
}

func (m *Manager) parse(ctx context.Context, file scanner.ScannedFile) (*ParseResult, error) {
	if file.Content == nil {
		// Cache probes for unchanged files carry no content; a miss
		// means the caller must reload the file first.
		return nil, errors.Newf(errors.ParseFailed, "no content for %s", file.Path)
	}
	parser := m.pool.checkout()
	defer m.pool.giveBack(parser)

	grammar := grammarFor(file.Language)
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, file.Content)
	if err != nil {
		return nil, errors.New(errors.ParseFailed, "parse failed: "+file.Path, err)
	}
	defer tree.Close()

	res := &ParseResult{
		Path:        file.Path,
		Language:    file.Language,
		ContentHash: file.ContentHash,
	}

	root := gast.Normalize(tree.RootNode(), file.Content, file.Language)
	extract(res, root, file.Content)

	if len(res.Errors) > 0 {
		m.logger.Debug("partial parse", map[string]interface{}{
			"path":   file.Path,
			"errors": len(res.Errors),
		})
	}
	return res, nil
}
