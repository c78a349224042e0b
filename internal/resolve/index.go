// Package resolve builds the per-scan symbol index and resolves call
// sites to definitions through six ranked strategies.
package resolve

import (
	"sort"
	"strings"
	"sync"

	"drift/internal/ids"
	"drift/internal/parser"
)

// FunctionRef names one resolvable function definition.
type FunctionRef struct {
	File          string
	QualifiedName string
}

// fileEntry is everything the index knows about one file.
type fileEntry struct {
	path     string
	language string
	// defined maps both plain and qualified names to definitions.
	defined map[string][]FunctionRef
	// imported maps a local name to the module it came from.
	imported map[string]string
	// importedModules lists modules pulled in without explicit names.
	importedModules []string
	// exported names this file makes visible.
	exported map[string]bool
	// receiverTypes maps variable names to type hints from parameters
	// and annotations: userRepo → UserRepo.
	receiverTypes map[string]string
}

const indexShards = 16

// Index is the concurrent build phase: per-file appends land in
// shard-locked maps; Seal freezes everything into a Snapshot.
type Index struct {
	shards [indexShards]struct {
		mu    sync.Mutex
		files map[string]*fileEntry
	}
	sealed bool
}

// NewIndex creates an empty resolution index.
func NewIndex() *Index {
	idx := &Index{}
	for i := range idx.shards {
		idx.shards[i].files = map[string]*fileEntry{}
	}
	return idx
}

// AddFile ingests one parse result. Safe for concurrent use before Seal.
func (idx *Index) AddFile(res *parser.ParseResult) {
	entry := buildFileEntry(res)
	shard := &idx.shards[ids.HashString(res.Path)%indexShards]
	shard.mu.Lock()
	shard.files[res.Path] = entry
	shard.mu.Unlock()
}

func buildFileEntry(res *parser.ParseResult) *fileEntry {
	entry := &fileEntry{
		path:          res.Path,
		language:      res.Language,
		defined:       map[string][]FunctionRef{},
		imported:      map[string]string{},
		exported:      map[string]bool{},
		receiverTypes: map[string]string{},
	}

	for _, fn := range res.Functions {
		ref := FunctionRef{File: res.Path, QualifiedName: fn.QualifiedName}
		entry.defined[fn.Name] = append(entry.defined[fn.Name], ref)
		if fn.QualifiedName != fn.Name {
			entry.defined[fn.QualifiedName] = append(entry.defined[fn.QualifiedName], ref)
		}
		// Parameter names that read as injected collaborators become
		// receiver-type hints: "userService" → "UserService".
		for _, param := range fn.Parameters {
			if hint := injectableTypeHint(param); hint != "" {
				entry.receiverTypes[param] = hint
			}
		}
	}

	for _, imp := range res.Imports {
		if len(imp.Names) == 0 {
			entry.importedModules = append(entry.importedModules, imp.Module)
			continue
		}
		for _, name := range imp.Names {
			entry.imported[name] = imp.Module
		}
	}

	for _, exp := range res.Exports {
		entry.exported[exp.Name] = true
	}
	for _, fn := range res.Functions {
		if fn.IsExported {
			entry.exported[fn.Name] = true
		}
	}

	return entry
}

// injectableTypeHint converts an injected-looking parameter name into a
// PascalCase type guess, or returns empty.
var injectableSuffixes = []string{"Service", "Repo", "Repository", "Client", "Store", "Manager", "Provider", "Dao", "Gateway"}

func injectableTypeHint(param string) string {
	if param == "" {
		return ""
	}
	pascal := strings.ToUpper(param[:1]) + param[1:]
	for _, suffix := range injectableSuffixes {
		if strings.HasSuffix(pascal, suffix) {
			return pascal
		}
	}
	return ""
}

// Seal freezes the index into an immutable snapshot; no mutations after.
func (idx *Index) Seal() *Snapshot {
	idx.sealed = true

	snap := &Snapshot{
		files:      map[string]*fileEntry{},
		byExport:   map[string][]FunctionRef{},
		byName:     map[string][]FunctionRef{},
		allNames:   nil,
		byModule:   map[string][]*fileEntry{},
	}

	for i := range idx.shards {
		shard := &idx.shards[i]
		shard.mu.Lock()
		for path, entry := range shard.files {
			snap.files[path] = entry
		}
		shard.mu.Unlock()
	}

	seen := map[string]bool{}
	for _, entry := range snap.files {
		module := moduleNameFor(entry.path)
		snap.byModule[module] = append(snap.byModule[module], entry)
		for name, refs := range entry.defined {
			snap.byName[name] = append(snap.byName[name], refs...)
			if entry.exported[refName(name)] {
				snap.byExport[name] = append(snap.byExport[name], refs...)
			}
			if !seen[name] {
				seen[name] = true
				snap.allNames = append(snap.allNames, name)
			}
		}
	}
	sort.Strings(snap.allNames)
	return snap
}

// refName strips a container qualifier for export lookups.
func refName(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// moduleNameFor derives the import-module key for a file path:
// "src/services/user.ts" answers to "./user", "user", and the path stem.
func moduleNameFor(path string) string {
	stem := path
	if idx := strings.LastIndex(stem, "/"); idx >= 0 {
		stem = stem[idx+1:]
	}
	if idx := strings.Index(stem, "."); idx >= 0 {
		stem = stem[:idx]
	}
	return stem
}

// Snapshot is the sealed, read-only resolution index.
type Snapshot struct {
	files    map[string]*fileEntry
	byExport map[string][]FunctionRef
	byName   map[string][]FunctionRef
	byModule map[string][]*fileEntry
	allNames []string
}

// FileCount reports how many files the snapshot indexes.
func (s *Snapshot) FileCount() int {
	return len(s.files)
}
