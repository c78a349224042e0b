package detect

import (
	"drift/internal/gast"
	"drift/internal/parser"
)

// Detector is the contract every pattern detector satisfies. The engine
// walks each file's generic AST exactly once and dispatches nodes to the
// detectors registered for their kind, so per-file cost stays O(nodes)
// instead of O(detectors × nodes).
type Detector interface {
	// ID is the stable detector identifier.
	ID() string
	// Category tags every pattern this detector emits.
	Category() Category
	// Languages restricts the detector; nil means all languages.
	Languages() []string
	// Learn runs in the first pass over the whole project. Base
	// detectors no-op; learning detectors record the dominant
	// alternative here.
	Learn(pc *ProjectContext) error
	// Kinds lists the node kinds this detector wants to visit.
	Kinds() []gast.Kind
	// VisitNode observes one node during the single-pass walk.
	VisitNode(fc *FileContext, n *gast.Node)
	// Finish runs after the walk so the detector can emit matches that
	// need whole-file context.
	Finish(fc *FileContext)
}

// StringDetector is the optional lane for string-literal patterns; these
// run over pre-extracted literals, never raw source.
type StringDetector interface {
	VisitString(fc *FileContext, lit parser.StringLiteral)
}

// FileChangeObserver is the optional incremental hook.
type FileChangeObserver interface {
	OnFileChange(path string)
}

// BaseDetector provides no-op defaults so concrete detectors implement
// only what they use.
type BaseDetector struct {
	DetectorID       string
	DetectorCategory Category
	DetectorLangs    []string
}

func (b *BaseDetector) ID() string                              { return b.DetectorID }
func (b *BaseDetector) Category() Category                      { return b.DetectorCategory }
func (b *BaseDetector) Languages() []string                     { return b.DetectorLangs }
func (b *BaseDetector) Learn(pc *ProjectContext) error          { return nil }
func (b *BaseDetector) Kinds() []gast.Kind                      { return nil }
func (b *BaseDetector) VisitNode(fc *FileContext, n *gast.Node) {}
func (b *BaseDetector) Finish(fc *FileContext)                  {}
