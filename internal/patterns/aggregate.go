// Package patterns holds the statistical intelligence layer:
// aggregation, Beta-posterior confidence scoring, outlier detection, and
// convention learning over detector output.
package patterns

import (
	"sort"

	"drift/internal/detect"
	"drift/internal/errors"
)

// Location is one pattern occurrence.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// AggregatedPattern is a pattern merged across files.
type AggregatedPattern struct {
	PatternID    string
	Category     detect.Category
	Occurrences  int
	FileSpread   int
	OutlierCount int
	ParentID     string
	Children     []string
	Aliases      []string
	// LocationsByFile preserves per-file occurrence lists; the counter
	// invariant Occurrences == Σ len(locations) holds after every phase.
	LocationsByFile map[string][]int
}

// Locations flattens the per-file map in deterministic order.
func (p *AggregatedPattern) Locations() []Location {
	files := make([]string, 0, len(p.LocationsByFile))
	for f := range p.LocationsByFile {
		files = append(files, f)
	}
	sort.Strings(files)
	var out []Location
	for _, f := range files {
		for _, line := range p.LocationsByFile[f] {
			out = append(out, Location{File: f, Line: line})
		}
	}
	return out
}

// Aggregation is the cross-file result set plus the refresh domains the
// gold layer needs.
type Aggregation struct {
	Patterns map[string]*AggregatedPattern
	Domains  map[string]bool
}

// thresholds from the aggregation pipeline contract.
const (
	jaccardFlagThreshold  = 0.85
	jaccardMergeThreshold = 0.95
	hierarchyCoverage     = 0.90
	minhashPopulation     = 50000
)

// Aggregate runs the seven-phase pipeline over raw matches. The pipeline
// is idempotent: duplicate matches collapse in phase one, so re-running
// with the same input reproduces the same state.
func Aggregate(matches []detect.PatternMatch) (*Aggregation, error) {
	// Phase 1+2: group by pattern id and merge cross-file occurrences,
	// deduplicating identical (pattern, file, line) observations.
	patterns := map[string]*AggregatedPattern{}
	seen := map[string]map[Location]bool{}
	for _, m := range matches {
		p := patterns[m.PatternID]
		if p == nil {
			p = &AggregatedPattern{
				PatternID:       m.PatternID,
				Category:        m.Category,
				LocationsByFile: map[string][]int{},
			}
			patterns[m.PatternID] = p
			seen[m.PatternID] = map[Location]bool{}
		}
		loc := Location{File: m.File, Line: m.Line}
		if seen[m.PatternID][loc] {
			continue
		}
		seen[m.PatternID][loc] = true
		p.LocationsByFile[m.File] = append(p.LocationsByFile[m.File], m.Line)
	}

	// Phase 3+4: similarity merging; exact pairwise up to the MinHash
	// population bound, LSH beyond it.
	mergeSimilar(patterns)

	// Phase 5: hierarchy by location containment within a category.
	buildHierarchy(patterns)

	// Phase 6: reconcile counters from the location sets.
	for _, p := range patterns {
		occurrences := 0
		spread := 0
		for _, lines := range p.LocationsByFile {
			sort.Ints(lines)
			occurrences += len(lines)
			if len(lines) > 0 {
				spread++
			}
		}
		if occurrences < 0 {
			return nil, errors.Newf(errors.PipelineInconsistent,
				"negative occurrence counter for pattern %s", p.PatternID)
		}
		p.Occurrences = occurrences
		p.FileSpread = spread
	}

	// Phase 7: name the refresh domains this aggregation touched.
	domains := map[string]bool{"patterns": true}
	for _, p := range patterns {
		if p.Category == detect.CategorySecurity || p.Category == detect.CategoryAuth ||
			p.Category == detect.CategoryData {
			domains["security"] = true
			break
		}
	}

	return &Aggregation{Patterns: patterns, Domains: domains}, nil
}

// mergeSimilar folds near-duplicate patterns. At or above the merge
// threshold the smaller pattern collapses into the larger with its name
// preserved as an alias. Pairs below the merge threshold are left as they
// are; pairs between the flag and merge thresholds are not recorded
// anywhere as merge candidates.
func mergeSimilar(patterns map[string]*AggregatedPattern) {
	ids := make([]string, 0, len(patterns))
	for id := range patterns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var pairs [][2]string
	if len(ids) > minhashPopulation {
		pairs = minhashCandidatePairs(ids, patterns)
	} else {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				pairs = append(pairs, [2]string{ids[i], ids[j]})
			}
		}
	}

	merged := map[string]string{} // alias → canonical
	for _, pair := range pairs {
		a, b := resolveMerged(merged, pair[0]), resolveMerged(merged, pair[1])
		if a == b {
			continue
		}
		pa, pb := patterns[a], patterns[b]
		if pa == nil || pb == nil || pa.Category != pb.Category {
			continue
		}
		sim := jaccard(locationSet(pa), locationSet(pb))
		if sim < jaccardMergeThreshold {
			continue
		}
		// The larger pattern absorbs the smaller.
		if locationCount(pa) < locationCount(pb) {
			pa, pb = pb, pa
			a, b = b, a
		}
		for file, lines := range pb.LocationsByFile {
			existing := map[int]bool{}
			for _, l := range pa.LocationsByFile[file] {
				existing[l] = true
			}
			for _, l := range lines {
				if !existing[l] {
					pa.LocationsByFile[file] = append(pa.LocationsByFile[file], l)
				}
			}
		}
		pa.Aliases = append(pa.Aliases, b)
		pa.Aliases = append(pa.Aliases, pb.Aliases...)
		merged[b] = a
		delete(patterns, b)
	}
}

func resolveMerged(merged map[string]string, id string) string {
	for {
		next, ok := merged[id]
		if !ok {
			return id
		}
		id = next
	}
}

// buildHierarchy links a pattern under another when its locations are
// covered at ≥90% by the parent's and it is strictly the smaller (more
// specialized) pattern in the same category.
func buildHierarchy(patterns map[string]*AggregatedPattern) {
	ids := make([]string, 0, len(patterns))
	for id := range patterns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, aID := range ids {
		a := patterns[aID]
		bestParent := ""
		bestSize := 0
		for _, bID := range ids {
			if aID == bID {
				continue
			}
			b := patterns[bID]
			if a.Category != b.Category {
				continue
			}
			sizeA, sizeB := locationCount(a), locationCount(b)
			if sizeA == 0 || sizeA >= sizeB {
				continue
			}
			if coverage(locationSet(a), locationSet(b)) >= hierarchyCoverage {
				if bestParent == "" || sizeB < bestSize {
					bestParent = bID
					bestSize = sizeB
				}
			}
		}
		if bestParent != "" {
			a.ParentID = bestParent
			parent := patterns[bestParent]
			parent.Children = append(parent.Children, aID)
		}
	}
	for _, p := range patterns {
		sort.Strings(p.Children)
	}
}

func locationSet(p *AggregatedPattern) map[Location]bool {
	set := map[Location]bool{}
	for file, lines := range p.LocationsByFile {
		for _, line := range lines {
			set[Location{File: file, Line: line}] = true
		}
	}
	return set
}

func locationCount(p *AggregatedPattern) int {
	n := 0
	for _, lines := range p.LocationsByFile {
		n += len(lines)
	}
	return n
}

// jaccard is |A∩B| / |A∪B|.
func jaccard(a, b map[Location]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for loc := range a {
		if b[loc] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// coverage is |A∩B| / |A|: how much of A the candidate parent B covers.
func coverage(a, b map[Location]bool) float64 {
	if len(a) == 0 {
		return 0
	}
	inter := 0
	for loc := range a {
		if b[loc] {
			inter++
		}
	}
	return float64(inter) / float64(len(a))
}
