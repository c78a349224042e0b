package engine

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"drift/internal/detect"
	"drift/internal/events"
	"drift/internal/patterns"
	"drift/internal/scanner"
	"drift/internal/storage"
)

// deriveIntelligence runs the statistical layer: aggregation over all
// persisted matches, Beta confidence, then outliers and convention
// learning in parallel, and finally outlier-to-violation conversion.
func (e *Engine) deriveIntelligence(scanID string, report *ScanReport, diff *scanner.ScanDiff) error {
	matches, err := e.loadAllMatches()
	if err != nil {
		return err
	}

	agg, err := patterns.Aggregate(matches)
	if err != nil {
		return err
	}
	report.Patterns = len(agg.Patterns)

	prevScores, err := e.loadScores()
	if err != nil {
		return err
	}

	now := time.Now()
	scores := map[string]*patterns.ConfidenceScore{}
	for id, p := range agg.Patterns {
		score, err := patterns.Score(p, prevScores[id], scanID, now)
		if err != nil {
			return err
		}
		scores[id] = score
	}

	// Outlier detection and convention learning run in parallel; the
	// learner's contested verdicts gate outlier conversion afterwards.
	var outliers []patterns.Outlier
	var learned *patterns.LearnResult

	var g errgroup.Group
	g.Go(func() error {
		for _, id := range sortedPatternIDs(agg) {
			outliers = append(outliers, patterns.DetectOutliers(agg.Patterns[id], nil)...)
		}
		return nil
	})
	g.Go(func() error {
		previous, err := e.loadConventions()
		if err != nil {
			return err
		}
		cfg := patterns.LearnerConfig{
			MinOccurrences:   e.cfg.Learning.MinOccurrences,
			MinFileSpread:    e.cfg.Learning.MinFileSpread,
			DominanceRatio:   e.cfg.Learning.DominanceRatio,
			ContestedGap:     e.cfg.Learning.ContestedGap,
			ExpiryDays:       e.cfg.Learning.ExpiryDays,
			RelearnThreshold: e.cfg.Learning.RelearnThreshold,
		}
		learner := patterns.NewLearner(cfg)
		learned = learner.Learn(agg, scores, diff.TotalVisible(), previous, now)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	// Contested genes emit no outliers for either alternative.
	kept := outliers[:0]
	for _, o := range outliers {
		if !learned.Contested[o.PatternID] {
			kept = append(kept, o)
		}
	}
	outliers = kept

	// An outlier increments its pattern's counter exactly once.
	outliersByPattern := map[string]int{}
	for _, o := range outliers {
		outliersByPattern[o.PatternID]++
	}
	for id, p := range agg.Patterns {
		p.OutlierCount = outliersByPattern[id]
	}

	if err := e.persistDerived(agg, scores, outliers, learned, now); err != nil {
		return err
	}

	// Outliers become at most one violation each, fingerprinted by
	// content so reformatting does not churn identities.
	snippets := snippetIndex(matches)
	for _, o := range outliers {
		v := storage.ViolationListItem{
			File:      o.File,
			Line:      o.Line,
			PatternID: o.PatternID,
			Severity:  severityFor(o.Significance),
			Message:   fmt.Sprintf("deviates from pattern %s (%s, score %.2f)", o.PatternID, o.Method, o.Score),
		}
		v.Fingerprint = fingerprint(o.PatternID, o.File, snippets[locKey(o.PatternID, o.File, o.Line)])
		e.store.UpsertViolation(v)
		e.bus.PublishConstraintViolated(events.ConstraintViolated{
			Fingerprint: v.Fingerprint,
			File:        v.File,
			Line:        v.Line,
			Severity:    v.Severity,
		})
		report.Violations++
	}

	for _, c := range learned.Conventions {
		if c.Status == patterns.StatusApproved {
			e.bus.PublishPatternApproved(events.PatternApproved{
				ConventionID: c.ID,
				PatternID:    c.PatternID,
			})
		}
	}
	return nil
}

func sortedPatternIDs(agg *patterns.Aggregation) []string {
	ids := make([]string, 0, len(agg.Patterns))
	for id := range agg.Patterns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// persistDerived rewrites the derived pattern tables inside one
// transaction; they are a pure function of the base tables.
func (e *Engine) persistDerived(agg *patterns.Aggregation, scores map[string]*patterns.ConfidenceScore,
	outliers []patterns.Outlier, learned *patterns.LearnResult, now time.Time) error {

	return e.store.WithWriteTx(func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM outliers`,
			`DELETE FROM confidence_scores`,
			`DELETE FROM conventions`,
			`DELETE FROM pattern_locations`,
			`DELETE FROM patterns`,
		} {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}

		for _, id := range sortedPatternIDs(agg) {
			p := agg.Patterns[id]
			var parent interface{}
			if p.ParentID != "" {
				parent = p.ParentID
			}
			if _, err := tx.Exec(`
				INSERT INTO patterns (pattern_id, category, occurrences, file_spread, outlier_count,
					parent_id, aliases, first_seen, last_seen)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.PatternID, string(p.Category), p.Occurrences, p.FileSpread, p.OutlierCount,
				parent, jsonStrings(p.Aliases), now.Unix(), now.Unix()); err != nil {
				return err
			}
			for _, loc := range p.Locations() {
				if _, err := tx.Exec(`
					INSERT OR IGNORE INTO pattern_locations (pattern_id, file, line) VALUES (?, ?, ?)`,
					p.PatternID, loc.File, loc.Line); err != nil {
					return err
				}
			}
			if score := scores[id]; score != nil {
				if _, err := tx.Exec(`
					INSERT INTO confidence_scores (pattern_id, alpha, beta, posterior, ci_low, ci_high,
						tier, momentum, last_scan_id, prev_frequency, updated_at)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					id, score.Posterior.Alpha, score.Posterior.Beta, score.Mean, score.CILow, score.CIHigh,
					string(score.Tier), string(score.Momentum), score.LastScanID,
					score.PrevFrequency, score.UpdatedAt); err != nil {
					return err
				}
			}
		}

		for _, o := range outliers {
			if _, err := tx.Exec(`
				INSERT INTO outliers (pattern_id, file, line, method, score, significance)
				VALUES (?, ?, ?, ?, ?, ?)`,
				o.PatternID, o.File, o.Line, string(o.Method), o.Score, string(o.Significance)); err != nil {
				return err
			}
		}

		for _, c := range learned.Conventions {
			if _, err := tx.Exec(`
				INSERT INTO conventions (id, pattern_id, category, scope_kind, scope_value,
					dominance, status, discovered_at, last_seen)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					category = excluded.category,
					dominance = excluded.dominance,
					status = excluded.status,
					last_seen = excluded.last_seen`,
				c.ID, c.PatternID, string(c.Category), c.Scope.Kind, c.Scope.Value,
				c.Dominance, string(c.Status), c.DiscoveredAt, c.LastSeen); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) loadAllMatches() ([]detect.PatternMatch, error) {
	rows, err := e.store.Reader().Query(`
		SELECT detector_id, pattern_id, category, file, line, snippet, confidence
		FROM pattern_matches`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []detect.PatternMatch
	for rows.Next() {
		var m detect.PatternMatch
		var category string
		if err := rows.Scan(&m.DetectorID, &m.PatternID, &category, &m.File, &m.Line, &m.Snippet, &m.Confidence); err != nil {
			return nil, err
		}
		m.Category = detect.Category(category)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (e *Engine) loadScores() (map[string]*patterns.ConfidenceScore, error) {
	rows, err := e.store.Reader().Query(`
		SELECT pattern_id, alpha, beta, posterior, ci_low, ci_high, tier, momentum,
			last_scan_id, prev_frequency, updated_at
		FROM confidence_scores`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]*patterns.ConfidenceScore{}
	for rows.Next() {
		var s patterns.ConfidenceScore
		var tier, momentum string
		if err := rows.Scan(&s.PatternID, &s.Posterior.Alpha, &s.Posterior.Beta, &s.Mean,
			&s.CILow, &s.CIHigh, &tier, &momentum, &s.LastScanID, &s.PrevFrequency, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Tier = patterns.Tier(tier)
		s.Momentum = patterns.Momentum(momentum)
		out[s.PatternID] = &s
	}
	return out, rows.Err()
}

func (e *Engine) loadConventions() ([]patterns.Convention, error) {
	rows, err := e.store.Reader().Query(`
		SELECT id, pattern_id, category, scope_kind, scope_value, dominance, status,
			discovered_at, last_seen
		FROM conventions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []patterns.Convention
	for rows.Next() {
		var c patterns.Convention
		var category, status string
		if err := rows.Scan(&c.ID, &c.PatternID, &category, &c.Scope.Kind, &c.Scope.Value,
			&c.Dominance, &status, &c.DiscoveredAt, &c.LastSeen); err != nil {
			return nil, err
		}
		c.Category = patterns.ConventionCategory(category)
		c.Status = patterns.ConventionStatus(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

// fingerprint is content-based: pattern, file, and the matched snippet,
// never the line number, so pure reformatting keeps identities stable.
func fingerprint(patternID, file, snippet string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(patternID))
	h.Write([]byte{0})
	h.Write([]byte(file))
	h.Write([]byte{0})
	h.Write([]byte(snippet))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func locKey(patternID, file string, line int) string {
	return fmt.Sprintf("%s\x00%s\x00%d", patternID, file, line)
}

func snippetIndex(matches []detect.PatternMatch) map[string]string {
	out := map[string]string{}
	for _, m := range matches {
		out[locKey(m.PatternID, m.File, m.Line)] = m.Snippet
	}
	return out
}

func severityFor(sig patterns.Significance) string {
	switch sig {
	case patterns.SignificanceCritical:
		return "error"
	case patterns.SignificanceHigh:
		return "warning"
	case patterns.SignificanceModerate:
		return "info"
	default:
		return "hint"
	}
}

