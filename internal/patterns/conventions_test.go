package patterns

import (
	"testing"
	"time"

	"drift/internal/detect"
)

// geneAggregation builds an aggregation where one detector emitted
// several competing alternatives with the given per-allele occurrence
// counts, spread across that many files.
func geneAggregation(detector string, alleleCounts map[string]int) *Aggregation {
	agg := &Aggregation{Patterns: map[string]*AggregatedPattern{}}
	for allele, count := range alleleCounts {
		id := detector + ":" + allele
		p := &AggregatedPattern{
			PatternID:       id,
			Category:        detect.CategoryStructural,
			LocationsByFile: map[string][]int{},
		}
		for i := 0; i < count; i++ {
			file := allele + "_" + string(rune('a'+i%26)) + ".ts"
			p.LocationsByFile[file] = append(p.LocationsByFile[file], i+1)
		}
		occurrences := 0
		spread := 0
		for _, lines := range p.LocationsByFile {
			occurrences += len(lines)
			spread++
		}
		p.Occurrences = occurrences
		p.FileSpread = spread
		agg.Patterns[id] = p
	}
	return agg
}

func TestContestedNamingSplit(t *testing.T) {
	// 12 camelCase vs 11 snake_case: a 52/48 split is contested; no
	// alternative's followers are deviants.
	agg := geneAggregation("naming", map[string]int{"camelCase": 12, "snake_case": 11})
	learner := NewLearner(DefaultLearnerConfig())
	res := learner.Learn(agg, map[string]*ConfidenceScore{}, 23, nil, time.Now())

	if !res.Contested["naming:camelCase"] || !res.Contested["naming:snake_case"] {
		t.Fatal("both alternatives should be contested")
	}

	var conv *Convention
	for i := range res.Conventions {
		if res.Conventions[i].PatternID == "naming:camelCase" {
			conv = &res.Conventions[i]
		}
	}
	if conv == nil {
		t.Fatal("dominant allele produced no convention")
	}
	if conv.Category != ConventionContested {
		t.Errorf("category = %s, want contested", conv.Category)
	}
}

func TestContestedBoundaryCases(t *testing.T) {
	tests := []struct {
		name      string
		a, b      int
		contested bool
	}{
		{"45/55 split is contested", 45, 55, true},
		{"20/80 split is not", 20, 80, false},
		{"40/60 split is not", 40, 60, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := geneAggregation("g", map[string]int{"x": tt.a, "y": tt.b})
			learner := NewLearner(DefaultLearnerConfig())
			res := learner.Learn(agg, map[string]*ConfidenceScore{}, 100, nil, time.Now())
			got := res.Contested["g:x"] || res.Contested["g:y"]
			if got != tt.contested {
				t.Errorf("contested = %v, want %v", got, tt.contested)
			}
		})
	}
}

func TestDiscoveryTriggers(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		discovered bool
	}{
		{"two occurrences below minimum", 2, false},
		{"three occurrences in three files", 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := geneAggregation("solo", map[string]int{"only": tt.count})
			learner := NewLearner(DefaultLearnerConfig())
			res := learner.Learn(agg, map[string]*ConfidenceScore{}, 10, nil, time.Now())
			found := false
			for _, c := range res.Conventions {
				if c.PatternID == "solo:only" {
					found = true
				}
			}
			if found != tt.discovered {
				t.Errorf("discovered = %v, want %v", found, tt.discovered)
			}
		})
	}
}

func TestPromotionRequiresEstablishedAndSpread(t *testing.T) {
	agg := geneAggregation("promo", map[string]int{"style": 20})
	scores := map[string]*ConfidenceScore{
		"promo:style": {
			PatternID: "promo:style",
			Tier:      TierEstablished,
			Momentum:  MomentumStable,
		},
	}
	learner := NewLearner(DefaultLearnerConfig())
	res := learner.Learn(agg, scores, 20, nil, time.Now())

	for _, c := range res.Conventions {
		if c.PatternID == "promo:style" && c.Status != StatusApproved {
			t.Errorf("status = %s, want approved", c.Status)
		}
	}
}

func TestOperatorDecisionSticks(t *testing.T) {
	agg := geneAggregation("op", map[string]int{"style": 20})
	scores := map[string]*ConfidenceScore{
		"op:style": {PatternID: "op:style", Tier: TierEstablished},
	}
	previous := []Convention{{
		ID:        "conv:op:style",
		PatternID: "op:style",
		Status:    StatusRejected,
		LastSeen:  time.Now().Unix(),
	}}
	learner := NewLearner(DefaultLearnerConfig())
	res := learner.Learn(agg, scores, 20, previous, time.Now())

	for _, c := range res.Conventions {
		if c.PatternID == "op:style" && c.Status != StatusRejected {
			t.Errorf("operator rejection overridden: status = %s", c.Status)
		}
	}
}

func TestExpiryMarksNotDeletes(t *testing.T) {
	now := time.Now()
	previous := []Convention{{
		ID:        "conv:gone:style",
		PatternID: "gone:style",
		Status:    StatusDiscovered,
		LastSeen:  now.Add(-100 * 24 * time.Hour).Unix(),
	}}
	learner := NewLearner(DefaultLearnerConfig())
	res := learner.Learn(&Aggregation{Patterns: map[string]*AggregatedPattern{}},
		map[string]*ConfidenceScore{}, 10, previous, now)

	if len(res.Conventions) != 1 {
		t.Fatalf("expired convention deleted: %d remain", len(res.Conventions))
	}
	if res.Conventions[0].Status != StatusExpired {
		t.Errorf("status = %s, want expired", res.Conventions[0].Status)
	}
}

func TestShouldRelearn(t *testing.T) {
	learner := NewLearner(DefaultLearnerConfig())
	tests := []struct {
		changed, total int
		want           bool
	}{
		{5, 100, false},
		{10, 100, false},
		{11, 100, true},
		{1, 0, true},
	}
	for _, tt := range tests {
		if got := learner.ShouldRelearn(tt.changed, tt.total); got != tt.want {
			t.Errorf("ShouldRelearn(%d, %d) = %v, want %v", tt.changed, tt.total, got, tt.want)
		}
	}
}
