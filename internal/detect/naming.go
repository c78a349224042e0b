package detect

import (
	"strings"
	"sync"
	"unicode"
)

// NamingStyle is one function-naming alternative.
type NamingStyle string

const (
	StyleCamel  NamingStyle = "camelCase"
	StyleSnake  NamingStyle = "snake_case"
	StylePascal NamingStyle = "PascalCase"
	StyleMixed  NamingStyle = "mixed"
)

// ClassifyNaming buckets an identifier into a naming style.
func ClassifyNaming(name string) NamingStyle {
	if name == "" || name == "<anonymous>" {
		return StyleMixed
	}
	hasUnderscore := strings.Contains(name, "_")
	first := rune(name[0])
	hasUpper := strings.IndexFunc(name, unicode.IsUpper) >= 0

	switch {
	case hasUnderscore && !hasUpper:
		return StyleSnake
	case !hasUnderscore && unicode.IsUpper(first):
		return StylePascal
	case !hasUnderscore && unicode.IsLower(first):
		return StyleCamel
	default:
		return StyleMixed
	}
}

// NamingConventionDetector is a learning detector: the first pass counts
// naming styles per language, the second emits a match per function for
// the style it uses. Dominance, contested splits, and deviations are the
// convention learner's call, not this detector's.
type NamingConventionDetector struct {
	BaseDetector

	mu       sync.RWMutex
	dominant map[string]NamingStyle // language → dominant style
	counts   map[string]map[NamingStyle]int
}

// NewNamingConventionDetector creates the naming detector.
func NewNamingConventionDetector() *NamingConventionDetector {
	return &NamingConventionDetector{
		BaseDetector: BaseDetector{
			DetectorID:       "naming-convention",
			DetectorCategory: CategoryStructural,
		},
		dominant: map[string]NamingStyle{},
		counts:   map[string]map[NamingStyle]int{},
	}
}

// Learn tallies styles across the project and records the dominant
// alternative per language.
func (d *NamingConventionDetector) Learn(pc *ProjectContext) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.counts = map[string]map[NamingStyle]int{}
	for _, res := range pc.Files {
		for _, fn := range res.Functions {
			if fn.Name == "<anonymous>" {
				continue
			}
			style := ClassifyNaming(fn.Name)
			if d.counts[res.Language] == nil {
				d.counts[res.Language] = map[NamingStyle]int{}
			}
			d.counts[res.Language][style]++
		}
	}

	d.dominant = map[string]NamingStyle{}
	for lang, styles := range d.counts {
		best, bestCount := StyleMixed, 0
		for style, count := range styles {
			if count > bestCount {
				best, bestCount = style, count
			}
		}
		d.dominant[lang] = best
	}
	return nil
}

// Finish emits one match per named function, keyed by the style pattern
// it exhibits.
func (d *NamingConventionDetector) Finish(fc *FileContext) {
	d.mu.RLock()
	dominant := d.dominant[fc.Language]
	d.mu.RUnlock()

	for _, fn := range fc.Result.Functions {
		if fn.Name == "<anonymous>" {
			continue
		}
		style := ClassifyNaming(fn.Name)
		confidence := 0.9
		if dominant != "" && style != dominant {
			confidence = 0.7
		}
		fc.Emit(PatternMatch{
			PatternID:  PatternID(d.ID(), string(style)),
			Category:   d.Category(),
			Line:       fn.StartLine,
			Snippet:    fn.Name,
			Confidence: confidence,
		})
	}
}

// StyleCounts exposes the learned per-language tallies for diagnostics.
func (d *NamingConventionDetector) StyleCounts(lang string) map[NamingStyle]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := map[NamingStyle]int{}
	for k, v := range d.counts[lang] {
		out[k] = v
	}
	return out
}
