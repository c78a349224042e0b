// Package ids provides interned string handles for paths and symbols.
// Handles are stable within a process run; persisted rows store the string
// bodies, never the handles.
package ids

import (
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Handle is a small stable identifier for an interned string.
type Handle uint32

// FileID identifies a scanned file by its normalized path.
type FileID Handle

// SymbolID identifies a qualified symbol name.
type SymbolID Handle

const shardCount = 16

// Interner interns strings concurrently during scan. Seal produces a
// read-only snapshot for the query phase; the snapshot has no Intern
// method, and the Interner itself still accepts new strings after Seal.
type Interner struct {
	shards [shardCount]shard
	seq    sync.Mutex
	next   Handle
	bodies []string
	sealed bool
}

type shard struct {
	mu sync.RWMutex
	m  map[string]Handle
}

// NewInterner creates an empty interner.
func NewInterner() *Interner {
	in := &Interner{}
	for i := range in.shards {
		in.shards[i].m = make(map[string]Handle)
	}
	return in
}

func shardFor(s string) int {
	return int(xxhash.Sum64String(s) % shardCount)
}

// Intern returns the handle for s, creating one if needed.
func (in *Interner) Intern(s string) Handle {
	sh := &in.shards[shardFor(s)]

	sh.mu.RLock()
	h, ok := sh.m[s]
	sh.mu.RUnlock()
	if ok {
		return h
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if h, ok = sh.m[s]; ok {
		return h
	}

	in.seq.Lock()
	h = in.next
	in.next++
	in.bodies = append(in.bodies, s)
	in.seq.Unlock()

	sh.m[s] = h
	return h
}

// Lookup returns the handle for s without creating one.
func (in *Interner) Lookup(s string) (Handle, bool) {
	sh := &in.shards[shardFor(s)]
	sh.mu.RLock()
	h, ok := sh.m[s]
	sh.mu.RUnlock()
	return h, ok
}

// Resolve returns the string body for h.
func (in *Interner) Resolve(h Handle) string {
	in.seq.Lock()
	defer in.seq.Unlock()
	if int(h) >= len(in.bodies) {
		return ""
	}
	return in.bodies[h]
}

// Len returns the number of interned strings.
func (in *Interner) Len() int {
	in.seq.Lock()
	defer in.seq.Unlock()
	return len(in.bodies)
}

// Seal freezes the interner into an immutable snapshot.
func (in *Interner) Seal() *Snapshot {
	in.seq.Lock()
	defer in.seq.Unlock()
	in.sealed = true

	bodies := make([]string, len(in.bodies))
	copy(bodies, in.bodies)

	byBody := make(map[string]Handle, len(bodies))
	for i, s := range bodies {
		byBody[s] = Handle(i)
	}

	return &Snapshot{bodies: bodies, byBody: byBody}
}

// Snapshot is a sealed, read-only view of an interner. Safe for
// concurrent use without locking.
type Snapshot struct {
	bodies []string
	byBody map[string]Handle
}

// Lookup returns the handle for s if it was interned before sealing.
func (s *Snapshot) Lookup(body string) (Handle, bool) {
	h, ok := s.byBody[body]
	return h, ok
}

// Resolve returns the string body for h.
func (s *Snapshot) Resolve(h Handle) string {
	if int(h) >= len(s.bodies) {
		return ""
	}
	return s.bodies[h]
}

// Len returns the number of interned strings.
func (s *Snapshot) Len() int {
	return len(s.bodies)
}

// Paths interns filesystem paths with separators normalized to forward
// slashes so handles compare equal across platforms.
type Paths struct {
	in *Interner
}

// NewPaths creates a path interner over in.
func NewPaths(in *Interner) *Paths {
	return &Paths{in: in}
}

// Intern normalizes and interns path.
func (p *Paths) Intern(path string) FileID {
	return FileID(p.in.Intern(NormalizePath(path)))
}

// Resolve returns the normalized path for id.
func (p *Paths) Resolve(id FileID) string {
	return p.in.Resolve(Handle(id))
}

// NormalizePath converts separators to forward slashes and strips any
// trailing slash.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// Symbols interns qualified symbol names, with an intern-by-concat fast
// path so callers avoid building "recv.name" strings twice.
type Symbols struct {
	in *Interner
}

// NewSymbols creates a symbol interner over in.
func NewSymbols(in *Interner) *Symbols {
	return &Symbols{in: in}
}

// Intern interns a symbol name.
func (s *Symbols) Intern(name string) SymbolID {
	return SymbolID(s.in.Intern(name))
}

// InternQualified interns "qualifier.name" (or just name when the
// qualifier is empty).
func (s *Symbols) InternQualified(qualifier, name string) SymbolID {
	if qualifier == "" {
		return s.Intern(name)
	}
	var b strings.Builder
	b.Grow(len(qualifier) + 1 + len(name))
	b.WriteString(qualifier)
	b.WriteByte('.')
	b.WriteString(name)
	return SymbolID(s.in.Intern(b.String()))
}

// Resolve returns the symbol body for id.
func (s *Symbols) Resolve(id SymbolID) string {
	return s.in.Resolve(Handle(id))
}

// HashString returns the engine-wide 64-bit non-cryptographic hash of s.
func HashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// HashBytes returns the engine-wide 64-bit non-cryptographic hash of b.
func HashBytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}
