// Package scanner walks a source tree in parallel, hashes content, and
// diffs the result against the persisted file table so unchanged files
// cost nothing downstream.
package scanner

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"drift/internal/cancel"
	"drift/internal/config"
	"drift/internal/errors"
	"drift/internal/ids"
	"drift/internal/logging"
	"drift/internal/storage"
)

// ScannedFile is one observed file with its content held for parsing.
type ScannedFile struct {
	Path        string // slash-normalized, relative to the scan root
	AbsPath     string
	ContentHash uint64
	Size        int64
	Mtime       int64
	Language    string
	Content     []byte
	Err         error // per-file error; the scan continues
}

// ScanDiff classifies the scanned tree against persisted metadata.
type ScanDiff struct {
	Added     []ScannedFile
	Modified  []ScannedFile
	Unchanged []ScannedFile
	Deleted   []string
	Cancelled bool
	Errors    []ScannedFile
}

// ChangedCount returns how many files need re-derivation.
func (d *ScanDiff) ChangedCount() int {
	return len(d.Added) + len(d.Modified) + len(d.Deleted)
}

// TotalVisible returns how many files the scan observed.
func (d *ScanDiff) TotalVisible() int {
	return len(d.Added) + len(d.Modified) + len(d.Unchanged)
}

// Scanner walks the project tree.
type Scanner struct {
	cfg    *config.ScanConfig
	root   string
	logger *logging.Logger
}

// New creates a scanner rooted at projectRoot.
func New(projectRoot string, cfg *config.ScanConfig, logger *logging.Logger) *Scanner {
	return &Scanner{
		cfg:    cfg,
		root:   projectRoot,
		logger: logger.Module("scanner"),
	}
}

// Scan walks the tree, hashes every candidate file, and diffs against the
// store's file table. Cancellation is polled between files; a cancelled
// scan returns the prefix observed so far with Cancelled set.
func (s *Scanner) Scan(store *storage.Store, tok *cancel.Token) (*ScanDiff, error) {
	previous, err := store.LoadFileMetadata()
	if err != nil {
		return nil, err
	}

	files, cancelled := s.walk(tok)

	diff := &ScanDiff{Cancelled: cancelled}
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if f.Err != nil {
			diff.Errors = append(diff.Errors, f)
			continue
		}
		seen[f.Path] = true
		prev, existed := previous[f.Path]
		switch {
		case !existed:
			diff.Added = append(diff.Added, f)
		case prev.ContentHash != f.ContentHash:
			diff.Modified = append(diff.Modified, f)
		default:
			f.Content = nil // unchanged files contribute zero downstream work
			diff.Unchanged = append(diff.Unchanged, f)
		}
	}

	// A cancelled walk observed only a prefix of the tree; absent paths
	// cannot be distinguished from unvisited ones, so deletions are only
	// derived from complete walks.
	if !cancelled {
		for path := range previous {
			if !seen[path] {
				diff.Deleted = append(diff.Deleted, path)
			}
		}
		sort.Strings(diff.Deleted)
	}

	s.logger.Debug("scan diff computed", map[string]interface{}{
		"added":     len(diff.Added),
		"modified":  len(diff.Modified),
		"unchanged": len(diff.Unchanged),
		"deleted":   len(diff.Deleted),
		"errors":    len(diff.Errors),
	})
	return diff, nil
}

// walk runs the parallel directory traversal. Directory discovery is
// sequential (the ignore stack is inherently ordered); file hashing and
// reading fan out across workers.
func (s *Scanner) walk(tok *cancel.Token) ([]ScannedFile, bool) {
	type task struct {
		absPath string
		relPath string
		size    int64
		mtime   int64
	}

	var tasks []task
	stack := &ignoreStack{}
	cancelled := false

	var visit func(absDir, relDir string)
	visit = func(absDir, relDir string) {
		if tok.Cancelled() {
			cancelled = true
			return
		}
		stack.push(absDir, relDir, s.cfg.IgnoreFile)
		defer stack.pop()

		entries, err := os.ReadDir(absDir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			if cancelled {
				return
			}
			name := entry.Name()
			rel := name
			if relDir != "" {
				rel = relDir + "/" + name
			}
			if entry.IsDir() {
				if alwaysSkipDirs[name] || strings.HasPrefix(name, ".") {
					continue
				}
				if stack.match(rel, true) {
					continue
				}
				visit(filepath.Join(absDir, name), rel)
				continue
			}
			if stack.match(rel, false) {
				continue
			}
			if s.excluded(rel) {
				continue
			}
			if !s.cfg.IncludeTests && IsTestPath(rel) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			tasks = append(tasks, task{
				absPath: filepath.Join(absDir, name),
				relPath: rel,
				size:    info.Size(),
				mtime:   info.ModTime().Unix(),
			})
		}
	}
	visit(s.root, "")

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]ScannedFile, len(tasks))
	var g errgroup.Group
	g.SetLimit(workers)
	var cancelMu sync.Mutex

	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			if tok.Cancelled() {
				cancelMu.Lock()
				cancelled = true
				cancelMu.Unlock()
				return nil
			}
			results[i] = s.scanOne(t.absPath, t.relPath, t.size, t.mtime)
			return nil
		})
	}
	_ = g.Wait()

	out := results[:0]
	for _, r := range results {
		if r.Path != "" {
			out = append(out, r)
		}
	}
	return out, cancelled
}

func (s *Scanner) scanOne(absPath, relPath string, size, mtime int64) ScannedFile {
	f := ScannedFile{
		Path:    ids.NormalizePath(relPath),
		AbsPath: absPath,
		Size:    size,
		Mtime:   mtime,
	}

	if size > s.cfg.MaxFileSize {
		f.Err = errors.Newf(errors.ScanIO, "file exceeds size cap: %s (%d bytes)", relPath, size)
		return f
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		f.Err = errors.New(errors.ScanIO, "read failed: "+relPath, err)
		return f
	}

	f.Language = DetectLanguage(relPath, content)
	if f.Language == "" {
		f.Path = "" // not a source file; drop from results
		return f
	}

	// Permissive UTF-8: invalid sequences are replaced, never fatal.
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}

	f.Content = content
	f.ContentHash = ids.HashBytes(content)
	return f
}

// Reload re-reads a previously scanned file whose content was dropped
// after hashing (parse-cache cold path).
func (s *Scanner) Reload(f ScannedFile) (ScannedFile, error) {
	reloaded := s.scanOne(f.AbsPath, f.Path, f.Size, f.Mtime)
	if reloaded.Err != nil {
		return ScannedFile{}, reloaded.Err
	}
	return reloaded, nil
}

func (s *Scanner) excluded(rel string) bool {
	for _, pattern := range s.cfg.ExcludePatterns {
		if ok := matchGitignorePattern(ignorePattern{glob: pattern}, rel); ok {
			return true
		}
	}
	return false
}
