package patterns

import (
	"testing"
	"time"

	"drift/internal/detect"
)

func scoredPattern(occurrences, spread int) *AggregatedPattern {
	p := &AggregatedPattern{
		PatternID:       "p",
		Category:        detect.CategoryStructural,
		LocationsByFile: map[string][]int{},
	}
	perFile := occurrences / spread
	if perFile == 0 {
		perFile = 1
	}
	left := occurrences
	for i := 0; i < spread && left > 0; i++ {
		file := "f" + string(rune('a'+i)) + ".ts"
		n := perFile
		if i == spread-1 {
			n = left
		}
		for line := 1; line <= n; line++ {
			p.LocationsByFile[file] = append(p.LocationsByFile[file], line)
		}
		left -= n
	}
	p.Occurrences = occurrences
	p.FileSpread = spread
	return p
}

func TestScoreZeroObservations(t *testing.T) {
	p := &AggregatedPattern{PatternID: "p", LocationsByFile: map[string][]int{}}
	score, err := Score(p, nil, "scan1", time.Now())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score.Tier != TierUncertain {
		t.Errorf("tier = %s, want uncertain", score.Tier)
	}
	if score.Posterior.Alpha < 1 || score.Posterior.Beta < 1 {
		t.Errorf("parameters below floor: Beta(%v, %v)",
			score.Posterior.Alpha, score.Posterior.Beta)
	}
}

func TestScoreSameScanIsIdempotent(t *testing.T) {
	p := scoredPattern(20, 5)
	now := time.Now()

	first, err := Score(p, nil, "scan1", now)
	if err != nil {
		t.Fatalf("first Score: %v", err)
	}
	second, err := Score(p, first, "scan1", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second Score: %v", err)
	}

	if second != first {
		t.Error("re-scoring the same scan must return the previous state untouched")
	}
	if second.Posterior.Alpha != first.Posterior.Alpha || second.Posterior.Beta != first.Posterior.Beta {
		t.Error("same-scan update changed the posterior")
	}
}

func TestScoreNewScanAccumulates(t *testing.T) {
	p := scoredPattern(20, 5)
	now := time.Now()

	first, err := Score(p, nil, "scan1", now)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	second, err := Score(p, first, "scan2", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if second.Posterior.Alpha <= first.Posterior.Alpha {
		t.Errorf("age factor lost prior evidence: alpha %v -> %v",
			first.Posterior.Alpha, second.Posterior.Alpha)
	}
	hw1 := first.CIHigh - first.CILow
	hw2 := second.CIHigh - second.CILow
	if hw2 >= hw1 {
		t.Errorf("interval did not narrow across scans: %v -> %v", hw1, hw2)
	}
}

func TestMomentumDirections(t *testing.T) {
	now := time.Now()
	base := scoredPattern(100, 10)
	prev, err := Score(base, nil, "scan1", now)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	tests := []struct {
		name        string
		occurrences int
		want        Momentum
	}{
		{"rising", 150, MomentumRising},
		{"falling", 50, MomentumFalling},
		{"stable", 102, MomentumStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := scoredPattern(tt.occurrences, 10)
			score, err := Score(p, prev, "scan2", now.Add(time.Hour))
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if score.Momentum != tt.want {
				t.Errorf("momentum = %s, want %s", score.Momentum, tt.want)
			}
		})
	}
}

func TestTierMonotonicInScore(t *testing.T) {
	// For a fixed narrow interval, a higher composite never yields a
	// lower tier.
	prevRank := -1
	for _, score := range []float64{0.40, 0.55, 0.72, 0.90} {
		tier := assignTier(score, 0.05)
		rank := tierRank[tier]
		if rank < prevRank {
			t.Errorf("tier rank regressed at score %v", score)
		}
		prevRank = rank
	}
}

func TestTierGatedByIntervalWidth(t *testing.T) {
	if tier := assignTier(0.90, 0.20); tier == TierEstablished {
		t.Error("wide interval must block the established tier")
	}
	if tier := assignTier(0.90, 0.05); tier != TierEstablished {
		t.Errorf("tier = %s, want established", tier)
	}
}

func TestTemporalDecayDowngrades(t *testing.T) {
	now := time.Now()
	p := scoredPattern(50, 8)
	prev, err := Score(p, nil, "scan1", now.Add(-40*24*time.Hour))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	vanished := &AggregatedPattern{PatternID: "p", LocationsByFile: map[string][]int{}}
	score, err := Score(vanished, prev, "scan2", now)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if tierRank[score.Tier] >= tierRank[prev.Tier] && prev.Tier != TierUncertain {
		t.Errorf("no decay: %s -> %s", prev.Tier, score.Tier)
	}
}
