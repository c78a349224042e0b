package detect

import (
	"fmt"

	"drift/internal/gast"
	"drift/internal/logging"
)

// Engine runs the registered detectors over files in a single pass.
type Engine struct {
	registry *Registry
	logger   *logging.Logger
}

// NewEngine creates a detection engine over a registry.
func NewEngine(registry *Registry, logger *logging.Logger) *Engine {
	return &Engine{
		registry: registry,
		logger:   logger.Module("detect"),
	}
}

// Learn runs every detector's learn pass over the project snapshot.
func (e *Engine) Learn(pc *ProjectContext) {
	for _, d := range e.registry.All() {
		if err := e.learnOne(d, pc); err != nil {
			e.logger.Warn("detector learn failed", map[string]interface{}{
				"detector": d.ID(),
				"error":    err.Error(),
			})
		}
	}
}

func (e *Engine) learnOne(d Detector, pc *ProjectContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panicked: %v", r)
		}
	}()
	return d.Learn(pc)
}

// Detect walks one file's generic AST once, dispatching nodes to the
// detectors registered for each kind, then runs the string lane and the
// finish hooks. A detector that panics has its output for this file
// discarded; the others are unaffected.
func (e *Engine) Detect(fc *FileContext) []PatternMatch {
	detectors := e.registry.ForLanguage(fc.Language)
	if len(detectors) == 0 {
		return nil
	}

	byKind := map[gast.Kind][]Detector{}
	var stringLane []Detector
	for _, d := range detectors {
		for _, k := range d.Kinds() {
			byKind[k] = append(byKind[k], d)
		}
		if _, ok := d.(StringDetector); ok {
			stringLane = append(stringLane, d)
		}
	}

	failed := map[string]bool{}
	dispatch := func(d Detector, fn func()) {
		if failed[d.ID()] {
			return
		}
		fc.current = d.ID()
		defer func() {
			if r := recover(); r != nil {
				failed[d.ID()] = true
				fc.discard(d.ID())
				e.logger.Warn("detector failed on file", map[string]interface{}{
					"detector": d.ID(),
					"file":     fc.Path,
					"panic":    fmt.Sprint(r),
				})
			}
		}()
		fn()
	}

	if fc.Result.Root != nil {
		gast.Walk(fc.Result.Root, func(n *gast.Node) bool {
			for _, d := range byKind[n.Kind] {
				dispatch(d, func() { d.VisitNode(fc, n) })
			}
			return true
		})
	}

	for _, d := range stringLane {
		sd := d.(StringDetector)
		for _, lit := range fc.Result.StringLits {
			dispatch(d, func() { sd.VisitString(fc, lit) })
		}
	}

	for _, d := range detectors {
		dispatch(d, func() { d.Finish(fc) })
	}

	return fc.Matches()
}

// NotifyFileChange forwards incremental invalidation to detectors that
// track per-file learned state.
func (e *Engine) NotifyFileChange(path string) {
	for _, d := range e.registry.All() {
		if obs, ok := d.(FileChangeObserver); ok {
			obs.OnFileChange(path)
		}
	}
}
