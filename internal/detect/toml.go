package detect

import (
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"drift/internal/errors"
	"drift/internal/gast"
	"drift/internal/parser"
)

// patternsFile is the on-disk shape of a project-local pattern file.
type patternsFile struct {
	Patterns []patternEntry `toml:"patterns"`
}

type patternEntry struct {
	ID         string  `toml:"id"`
	Language   string  `toml:"language"`
	Category   string  `toml:"category"`
	Confidence float64 `toml:"confidence"`
	Query      string  `toml:"query"`
	Regex      string  `toml:"regex"`
}

// LoadTOMLPatterns parses a project pattern file and registers one
// detector per entry. A missing file is not an error; a malformed one
// fails the load with a ConfigInvalid error.
func LoadTOMLPatterns(path string, registry *Registry) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.New(errors.ConfigInvalid, "cannot read pattern file", err)
	}

	var file patternsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return errors.New(errors.ConfigInvalid, "malformed pattern file", err)
	}

	for _, entry := range file.Patterns {
		d, err := newCustomDetector(entry)
		if err != nil {
			return err
		}
		registry.Register(d)
	}
	return nil
}

func newCustomDetector(entry patternEntry) (Detector, error) {
	if entry.ID == "" {
		return nil, errors.Newf(errors.ConfigInvalid, "pattern entry missing id")
	}
	if !ValidCategory(Category(entry.Category)) {
		return nil, errors.Newf(errors.ConfigInvalid, "pattern %q has unknown category %q", entry.ID, entry.Category)
	}
	if (entry.Query == "") == (entry.Regex == "") {
		return nil, errors.Newf(errors.ConfigInvalid, "pattern %q needs exactly one of query or regex", entry.ID)
	}
	if entry.Confidence <= 0 || entry.Confidence > 1 {
		entry.Confidence = 0.7
	}

	base := BaseDetector{
		DetectorID:       "custom:" + entry.ID,
		DetectorCategory: Category(entry.Category),
	}
	if entry.Language != "" && entry.Language != "all" {
		base.DetectorLangs = []string{entry.Language}
	}

	if entry.Regex != "" {
		re, err := regexp.Compile(entry.Regex)
		if err != nil {
			return nil, errors.New(errors.ConfigInvalid, "pattern "+entry.ID+" has invalid regex", err)
		}
		return &regexDetector{BaseDetector: base, re: re, confidence: entry.Confidence}, nil
	}

	kind, glob, ok := strings.Cut(entry.Query, ":")
	if !ok {
		return nil, errors.Newf(errors.ConfigInvalid, "pattern %q query must be kind:name-glob", entry.ID)
	}
	return &queryDetector{
		BaseDetector: base,
		kind:         gast.Kind(kind),
		glob:         glob,
		confidence:   entry.Confidence,
	}, nil
}

// regexDetector runs a user regex over the string-literal lane.
type regexDetector struct {
	BaseDetector
	re         *regexp.Regexp
	confidence float64
}

func (d *regexDetector) VisitString(fc *FileContext, lit parser.StringLiteral) {
	if !d.re.MatchString(lit.Value) {
		return
	}
	snippet := lit.Value
	if len(snippet) > 80 {
		snippet = snippet[:80]
	}
	fc.Emit(PatternMatch{
		PatternID:  PatternID(d.ID(), d.re.String()),
		Category:   d.Category(),
		Line:       lit.Line,
		Snippet:    snippet,
		Confidence: d.confidence,
	})
}

// queryDetector matches GAST nodes by kind and a glob on the bound name.
type queryDetector struct {
	BaseDetector
	kind       gast.Kind
	glob       string
	confidence float64
}

func (d *queryDetector) Kinds() []gast.Kind {
	return []gast.Kind{d.kind}
}

func (d *queryDetector) VisitNode(fc *FileContext, n *gast.Node) {
	if !globMatch(d.glob, n.Name) {
		return
	}
	fc.Emit(PatternMatch{
		PatternID:  PatternID(d.ID(), string(d.kind)+":"+d.glob),
		Category:   d.Category(),
		Line:       n.StartLine,
		Snippet:    n.Name,
		Confidence: d.confidence,
	})
}

// globMatch supports "*" wildcards without touching the filesystem glob
// rules; "db.*" matches "db.query".
func globMatch(pattern, name string) bool {
	if pattern == "*" || pattern == name {
		return true
	}
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == name
	}
	rest := name
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	if last := parts[len(parts)-1]; last != "" && !strings.HasSuffix(name, last) {
		return false
	}
	return true
}
