package detect

import (
	"fmt"

	"drift/internal/ids"
	"drift/internal/parser"
)

// Category classifies what a pattern is about.
type Category string

const (
	CategoryAPI           Category = "api"
	CategoryAuth          Category = "auth"
	CategoryData          Category = "data"
	CategoryError         Category = "error"
	CategoryTest          Category = "test"
	CategorySecurity      Category = "security"
	CategoryStructural    Category = "structural"
	CategoryPerformance   Category = "performance"
	CategoryLogging       Category = "logging"
	CategoryValidation    Category = "validation"
	CategoryTypes         Category = "types"
	CategoryComponents    Category = "components"
	CategoryConfig        Category = "config"
	CategoryStyling       Category = "styling"
	CategoryDocumentation Category = "documentation"
	CategoryAccessibility Category = "accessibility"
)

// ValidCategory reports whether c is a known category tag.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryAPI, CategoryAuth, CategoryData, CategoryError, CategoryTest,
		CategorySecurity, CategoryStructural, CategoryPerformance, CategoryLogging,
		CategoryValidation, CategoryTypes, CategoryComponents, CategoryConfig,
		CategoryStyling, CategoryDocumentation, CategoryAccessibility:
		return true
	}
	return false
}

// PatternMatch is a single detector observation.
type PatternMatch struct {
	DetectorID string   `json:"detector_id"`
	PatternID  string   `json:"pattern_id"`
	Category   Category `json:"category"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Snippet    string   `json:"snippet,omitempty"`
	Confidence float64  `json:"confidence"`
}

// PatternID derives the stable id for a detector's pattern body.
func PatternID(detectorID, body string) string {
	return fmt.Sprintf("%s:%016x", detectorID, ids.HashString(detectorID+"\x00"+body))
}

// FileContext carries one file through a detection pass. A fresh context
// is built per file, so detectors stay stateless across files and the
// pass parallelizes cleanly.
type FileContext struct {
	Path     string
	Language string
	Result   *parser.ParseResult

	matches   []PatternMatch
	byDetector map[string][]int
	current    string
}

// NewFileContext wraps a parse result for detection.
func NewFileContext(res *parser.ParseResult) *FileContext {
	return &FileContext{
		Path:       res.Path,
		Language:   res.Language,
		Result:     res,
		byDetector: map[string][]int{},
	}
}

// Emit records a match attributed to the active detector.
func (fc *FileContext) Emit(m PatternMatch) {
	m.DetectorID = fc.current
	m.File = fc.Path
	if m.Confidence <= 0 || m.Confidence > 1 {
		m.Confidence = 0.8
	}
	fc.byDetector[fc.current] = append(fc.byDetector[fc.current], len(fc.matches))
	fc.matches = append(fc.matches, m)
}

// discard drops every match the named detector emitted for this file.
func (fc *FileContext) discard(detectorID string) {
	indices := fc.byDetector[detectorID]
	if len(indices) == 0 {
		return
	}
	drop := map[int]bool{}
	for _, i := range indices {
		drop[i] = true
	}
	kept := fc.matches[:0]
	for i, m := range fc.matches {
		if !drop[i] {
			kept = append(kept, m)
		}
	}
	fc.matches = kept
	delete(fc.byDetector, detectorID)
	// Compaction shifted every surviving index; re-derive them.
	rebuilt := map[string][]int{}
	for i, m := range fc.matches {
		rebuilt[m.DetectorID] = append(rebuilt[m.DetectorID], i)
	}
	fc.byDetector = rebuilt
}

// Matches returns everything emitted for this file.
func (fc *FileContext) Matches() []PatternMatch {
	return fc.matches
}

// ProjectContext is the read-only project view handed to Learn.
type ProjectContext struct {
	Files []*parser.ParseResult
}
