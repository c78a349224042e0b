package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ignoreStack layers .gitignore-style pattern sets by directory depth.
// The dedicated ignore file (.driftignore by default) shares the grammar.
type ignoreStack struct {
	frames []ignoreFrame
}

type ignoreFrame struct {
	dir      string // slash-normalized, relative to scan root
	patterns []ignorePattern
}

type ignorePattern struct {
	glob    string
	negate  bool
	dirOnly bool
	rooted  bool
}

// alwaysSkipDirs never participate in analysis regardless of ignore files.
var alwaysSkipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".drift":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

func parseIgnoreFile(path string) []ignorePattern {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var patterns []ignorePattern
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p := ignorePattern{}
		if strings.HasPrefix(line, "!") {
			p.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			p.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		if strings.HasPrefix(line, "/") {
			p.rooted = true
			line = line[1:]
		}
		p.glob = line
		patterns = append(patterns, p)
	}
	return patterns
}

// push loads ignore files found in dir (relative to root) onto the stack.
func (s *ignoreStack) push(absDir, relDir, extraIgnoreFile string) {
	frame := ignoreFrame{dir: relDir}
	frame.patterns = append(frame.patterns, parseIgnoreFile(filepath.Join(absDir, ".gitignore"))...)
	if extraIgnoreFile != "" {
		frame.patterns = append(frame.patterns, parseIgnoreFile(filepath.Join(absDir, extraIgnoreFile))...)
	}
	s.frames = append(s.frames, frame)
}

func (s *ignoreStack) pop() {
	if len(s.frames) > 0 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// match reports whether relPath is ignored. Later frames and later
// patterns win, matching gitignore precedence; negations re-include.
func (s *ignoreStack) match(relPath string, isDir bool) bool {
	ignored := false
	for _, frame := range s.frames {
		local := relPath
		if frame.dir != "" && frame.dir != "." {
			if !strings.HasPrefix(relPath, frame.dir+"/") {
				continue
			}
			local = strings.TrimPrefix(relPath, frame.dir+"/")
		}
		for _, p := range frame.patterns {
			if p.dirOnly && !isDir {
				continue
			}
			if matchGitignorePattern(p, local) {
				ignored = !p.negate
			}
		}
	}
	return ignored
}

func matchGitignorePattern(p ignorePattern, local string) bool {
	if p.rooted || strings.Contains(p.glob, "/") {
		if ok, _ := doublestar.Match(p.glob, local); ok {
			return true
		}
		// A directory pattern ignores everything beneath it.
		if ok, _ := doublestar.Match(p.glob+"/**", local); ok {
			return true
		}
		return false
	}
	// Unanchored patterns match any path segment.
	base := filepath.Base(local)
	if ok, _ := doublestar.Match(p.glob, base); ok {
		return true
	}
	if ok, _ := doublestar.Match("**/"+p.glob+"/**", local); ok {
		return true
	}
	ok, _ := doublestar.Match("**/"+p.glob, local)
	return ok
}
