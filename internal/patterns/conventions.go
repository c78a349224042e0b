package patterns

import (
	"sort"
	"strings"
	"time"
)

// ConventionCategory classifies how a convention holds across the project.
type ConventionCategory string

const (
	ConventionUniversal       ConventionCategory = "universal"
	ConventionProjectSpecific ConventionCategory = "project_specific"
	ConventionEmerging        ConventionCategory = "emerging"
	ConventionLegacy          ConventionCategory = "legacy"
	ConventionContested       ConventionCategory = "contested"
)

// ConventionStatus is the lifecycle state.
type ConventionStatus string

const (
	StatusDiscovered ConventionStatus = "discovered"
	StatusApproved   ConventionStatus = "approved"
	StatusRejected   ConventionStatus = "rejected"
	StatusExpired    ConventionStatus = "expired"
)

// Scope bounds where a convention applies.
type Scope struct {
	Kind  string `json:"kind"` // "project", "directory", "package"
	Value string `json:"value,omitempty"`
}

// Convention is a pattern elevated to a team-level rule by statistical
// dominance.
type Convention struct {
	ID           string             `json:"id"`
	PatternID    string             `json:"pattern_id"`
	Category     ConventionCategory `json:"category"`
	Scope        Scope              `json:"scope"`
	Dominance    float64            `json:"dominance"`
	Status       ConventionStatus   `json:"status"`
	DiscoveredAt int64              `json:"discovered_at"`
	LastSeen     int64              `json:"last_seen"`
}

// LearnerConfig carries the discovery thresholds.
type LearnerConfig struct {
	MinOccurrences   int
	MinFileSpread    int
	DominanceRatio   float64
	ContestedGap     float64
	ExpiryDays       int
	RelearnThreshold float64
}

// DefaultLearnerConfig mirrors the engine defaults.
func DefaultLearnerConfig() LearnerConfig {
	return LearnerConfig{
		MinOccurrences:   3,
		MinFileSpread:    2,
		DominanceRatio:   0.60,
		ContestedGap:     0.20,
		ExpiryDays:       90,
		RelearnThreshold: 0.10,
	}
}

// Learner runs Bayesian convention discovery over aggregated and scored
// patterns.
type Learner struct {
	cfg LearnerConfig
}

// NewLearner creates a convention learner.
func NewLearner(cfg LearnerConfig) *Learner {
	return &Learner{cfg: cfg}
}

// LearnResult is the discovery outcome plus the contested pattern set
// that downstream outlier conversion must respect.
type LearnResult struct {
	Conventions []Convention
	// Contested holds every pattern id in a contested gene: neither
	// alternative's followers are deviants.
	Contested map[string]bool
}

// Learn discovers conventions. Genes (competing alternatives emitted by
// one detector) get a Dirichlet-Multinomial treatment; the dominant
// allele becomes the convention, categorized contested when the top-two
// gap marks the gene contested.
func (l *Learner) Learn(agg *Aggregation, scores map[string]*ConfidenceScore,
	totalFiles int, previous []Convention, now time.Time) *LearnResult {

	res := &LearnResult{Contested: map[string]bool{}}
	prevByPattern := map[string]Convention{}
	for _, c := range previous {
		prevByPattern[c.PatternID] = c
	}

	for _, gene := range groupGenes(agg) {
		l.learnGene(gene, agg, scores, totalFiles, prevByPattern, now, res)
	}

	// Expiry: previous conventions whose pattern vanished are marked
	// expired after the absence window, never deleted.
	covered := map[string]bool{}
	for _, c := range res.Conventions {
		covered[c.PatternID] = true
	}
	expiryWindow := time.Duration(l.cfg.ExpiryDays) * 24 * time.Hour
	for _, prev := range previous {
		if covered[prev.PatternID] {
			continue
		}
		if now.Sub(time.Unix(prev.LastSeen, 0)) > expiryWindow {
			prev.Status = StatusExpired
		}
		res.Conventions = append(res.Conventions, prev)
	}

	sort.Slice(res.Conventions, func(i, j int) bool {
		return res.Conventions[i].ID < res.Conventions[j].ID
	})
	return res
}

// gene is one detector's set of competing patterns.
type gene struct {
	detector string
	alleles  []string
}

func groupGenes(agg *Aggregation) []gene {
	byDetector := map[string][]string{}
	for id := range agg.Patterns {
		detector := id
		if idx := strings.Index(id, ":"); idx >= 0 {
			detector = id[:idx]
		}
		byDetector[detector] = append(byDetector[detector], id)
	}

	detectors := make([]string, 0, len(byDetector))
	for d := range byDetector {
		detectors = append(detectors, d)
	}
	sort.Strings(detectors)

	out := make([]gene, 0, len(detectors))
	for _, d := range detectors {
		alleles := byDetector[d]
		sort.Strings(alleles)
		out = append(out, gene{detector: d, alleles: alleles})
	}
	return out
}

func (l *Learner) learnGene(g gene, agg *Aggregation, scores map[string]*ConfidenceScore,
	totalFiles int, prevByPattern map[string]Convention, now time.Time, res *LearnResult) {

	total := 0
	counts := make([]int, len(g.alleles))
	for i, id := range g.alleles {
		counts[i] = agg.Patterns[id].Occurrences
		total += counts[i]
	}
	if total == 0 {
		return
	}

	// Dirichlet-Multinomial posterior mean per allele with a uniform
	// prior: (count + 1) / (total + K).
	k := float64(len(g.alleles))
	posterior := make([]float64, len(g.alleles))
	for i, c := range counts {
		posterior[i] = (float64(c) + 1) / (float64(total) + k)
	}

	// Rank alleles by posterior mean.
	order := make([]int, len(g.alleles))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return posterior[order[a]] > posterior[order[b]] })

	dominantIdx := order[0]
	dominant := agg.Patterns[g.alleles[dominantIdx]]
	dominance := float64(counts[dominantIdx]) / float64(total)

	// Contested rule: the raw share gap between the top two alternatives
	// under the contested threshold means neither side's followers are
	// deviants.
	contested := false
	if len(order) > 1 && counts[order[1]] > 0 {
		// Subtract the counts before dividing: 0.6-0.4 in floating point
		// falls just under 0.2 and would mark a 60/40 split contested.
		gap := float64(counts[order[0]]-counts[order[1]]) / float64(total)
		if gap < l.cfg.ContestedGap {
			contested = true
		}
	}
	if contested {
		for _, id := range g.alleles {
			if agg.Patterns[id].Occurrences > 0 {
				res.Contested[id] = true
			}
		}
	}

	// Discovery triggers.
	if dominant.Occurrences < l.cfg.MinOccurrences || dominant.FileSpread < l.cfg.MinFileSpread {
		return
	}
	if !contested && dominance < l.cfg.DominanceRatio {
		return
	}

	score := scores[dominant.PatternID]
	category := l.categorize(dominant, score, totalFiles, contested, now)

	conv := Convention{
		ID:           "conv:" + dominant.PatternID,
		PatternID:    dominant.PatternID,
		Category:     category,
		Scope:        Scope{Kind: "project"},
		Dominance:    dominance,
		Status:       StatusDiscovered,
		DiscoveredAt: now.Unix(),
		LastSeen:     now.Unix(),
	}

	if prev, ok := prevByPattern[dominant.PatternID]; ok {
		conv.DiscoveredAt = prev.DiscoveredAt
		conv.Status = prev.Status
		if conv.Status == StatusExpired {
			conv.Status = StatusDiscovered
		}
	}

	// Promotion: operator decisions stick; only undecided conventions
	// auto-promote.
	if conv.Status == StatusDiscovered && score != nil &&
		score.Tier == TierEstablished && dominant.FileSpread >= 5 {
		conv.Status = StatusApproved
	}

	res.Conventions = append(res.Conventions, conv)
}

func (l *Learner) categorize(p *AggregatedPattern, score *ConfidenceScore,
	totalFiles int, contested bool, now time.Time) ConventionCategory {

	if contested {
		return ConventionContested
	}
	if score != nil {
		if score.Momentum == MomentumFalling {
			return ConventionLegacy
		}
		if totalFiles > 0 && float64(p.FileSpread) >= 0.80*float64(totalFiles) &&
			score.Tier == TierEstablished {
			return ConventionUniversal
		}
		if score.Momentum == MomentumRising && tierRank[score.Tier] >= tierRank[TierEmerging] {
			return ConventionEmerging
		}
	}
	return ConventionProjectSpecific
}

// ShouldRelearn applies the L3 invalidation rule: a full re-learn when
// more than the threshold share of files changed since the last learn.
func (l *Learner) ShouldRelearn(changedFiles, totalFiles int) bool {
	if totalFiles == 0 {
		return true
	}
	return float64(changedFiles)/float64(totalFiles) > l.cfg.RelearnThreshold
}
