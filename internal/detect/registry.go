package detect

import (
	"sort"
)

// Registry holds the active detector set: compiled-in defaults plus any
// project-local TOML patterns, minus detectors disabled by feedback.
type Registry struct {
	detectors []Detector
	disabled  map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{disabled: map[string]bool{}}
}

// DefaultRegistry returns the compiled-in detector set.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewNamingConventionDetector())
	r.Register(NewErrorHandlingDetector())
	r.Register(NewRouteDetector())
	r.Register(NewAuthDetector())
	r.Register(NewTestCaseDetector())
	r.Register(NewRawSQLDetector())
	r.Register(NewLoggingDetector())
	r.Register(NewConfigAccessDetector())
	r.Register(NewHardcodedSecretDetector())
	r.Register(NewDocCoverageDetector())
	return r
}

// Register adds a detector. Later registrations with a duplicate id win.
func (r *Registry) Register(d Detector) {
	for i, existing := range r.detectors {
		if existing.ID() == d.ID() {
			r.detectors[i] = d
			return
		}
	}
	r.detectors = append(r.detectors, d)
}

// Disable removes a detector from dispatch without unregistering it,
// driven by the false-positive feedback rule.
func (r *Registry) Disable(id string) {
	r.disabled[id] = true
}

// All returns every enabled detector, ordered by id for deterministic
// learn passes.
func (r *Registry) All() []Detector {
	out := make([]Detector, 0, len(r.detectors))
	for _, d := range r.detectors {
		if !r.disabled[d.ID()] {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ForLanguage returns enabled detectors applicable to lang.
func (r *Registry) ForLanguage(lang string) []Detector {
	var out []Detector
	for _, d := range r.All() {
		langs := d.Languages()
		if len(langs) == 0 {
			out = append(out, d)
			continue
		}
		for _, l := range langs {
			if l == lang {
				out = append(out, d)
				break
			}
		}
	}
	return out
}
