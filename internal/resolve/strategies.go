package resolve

import (
	"strings"

	"drift/internal/parser"
)

// Strategy names which resolution rule produced an edge. Order here is
// the ranked resolution order; the first match wins and is recorded.
type Strategy string

const (
	StrategySameFile  Strategy = "same_file"
	StrategyReceiver  Strategy = "receiver_type"
	StrategyInjection Strategy = "injection"
	StrategyImport    Strategy = "import"
	StrategyExport    Strategy = "export"
	StrategyFuzzy     Strategy = "fuzzy"
)

// strategyConfidence fixes the confidence each rule may claim. Fuzzy is
// capped strictly below everything ranked above it.
var strategyConfidence = map[Strategy]float64{
	StrategySameFile:  0.95,
	StrategyReceiver:  0.90,
	StrategyInjection: 0.80,
	StrategyImport:    0.70,
	StrategyExport:    0.60,
	StrategyFuzzy:     0.50,
}

// Resolution is the outcome for one call site.
type Resolution struct {
	Callee     *FunctionRef
	Strategy   Strategy
	Confidence float64
}

// FuzzyThreshold is the minimum name similarity the fuzzy strategy
// accepts.
const FuzzyThreshold = 0.85

// Resolve runs the ranked strategies for a call site observed in
// fromFile. A nil Callee with empty Strategy means unresolved; such
// sites are retained for diagnostics but produce no edge.
func (s *Snapshot) Resolve(fromFile string, call parser.CallSite) Resolution {
	entry := s.files[fromFile]

	// 1. Same-file direct definition.
	if entry != nil {
		if refs := entry.defined[call.Name]; len(refs) > 0 {
			return resolved(refs[0], StrategySameFile)
		}
	}

	// 2. Method call through a receiver type hint.
	if entry != nil && call.Receiver != "" {
		if typeName, ok := entry.receiverTypes[call.Receiver]; ok {
			if ref, ok := s.lookupMethod(typeName, call.Name); ok {
				return resolved(ref, StrategyReceiver)
			}
		}
		// A receiver that is itself a known type resolves statically.
		if ref, ok := s.lookupMethod(call.Receiver, call.Name); ok {
			return resolved(ref, StrategyReceiver)
		}
	}

	// 3. Dependency-injection hint from the receiver's naming shape.
	if call.Receiver != "" {
		if typeName := injectableTypeHint(call.Receiver); typeName != "" {
			if ref, ok := s.lookupMethod(typeName, call.Name); ok {
				return resolved(ref, StrategyInjection)
			}
		}
	}

	// 4. Import chain through the exporting module.
	if entry != nil {
		if module, ok := entry.imported[call.Name]; ok {
			if ref, ok := s.lookupInModule(module, call.Name); ok {
				return resolved(ref, StrategyImport)
			}
		}
		for _, module := range entry.importedModules {
			if ref, ok := s.lookupInModule(module, call.Name); ok {
				return resolved(ref, StrategyImport)
			}
		}
	}

	// 5. Exported-name match anywhere in the project.
	if refs := s.byExport[call.Name]; len(refs) > 0 {
		return resolved(refs[0], StrategyExport)
	}

	// 6. Fuzzy name match above the similarity floor.
	if ref, score, ok := s.fuzzyLookup(call.Name); ok && score >= FuzzyThreshold {
		res := resolved(ref, StrategyFuzzy)
		// Similarity scales the capped confidence, never exceeding it.
		res.Confidence = strategyConfidence[StrategyFuzzy] * score
		return res
	}

	return Resolution{}
}

func resolved(ref FunctionRef, strategy Strategy) Resolution {
	return Resolution{
		Callee:     &ref,
		Strategy:   strategy,
		Confidence: strategyConfidence[strategy],
	}
}

func (s *Snapshot) lookupMethod(typeName, method string) (FunctionRef, bool) {
	qualified := typeName + "." + method
	if refs := s.byName[qualified]; len(refs) > 0 {
		return refs[0], true
	}
	return FunctionRef{}, false
}

func (s *Snapshot) lookupInModule(module, name string) (FunctionRef, bool) {
	key := module
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		key = key[idx+1:]
	}
	key = strings.TrimPrefix(key, "./")
	for _, entry := range s.byModule[key] {
		if refs := entry.defined[name]; len(refs) > 0 && entry.exported[name] {
			return refs[0], true
		}
		if refs := entry.defined[name]; len(refs) > 0 {
			return refs[0], true
		}
	}
	return FunctionRef{}, false
}

func (s *Snapshot) fuzzyLookup(name string) (FunctionRef, float64, bool) {
	bestScore := 0.0
	bestName := ""
	for _, candidate := range s.allNames {
		if strings.Contains(candidate, ".") {
			continue
		}
		score := nameSimilarity(name, candidate)
		if score > bestScore {
			bestScore = score
			bestName = candidate
		}
	}
	if bestName == "" || bestScore < FuzzyThreshold {
		return FunctionRef{}, 0, false
	}
	return s.byName[bestName][0], bestScore, true
}

// nameSimilarity is a normalized Levenshtein similarity in [0,1].
func nameSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	// Cheap upper bound: a length gap alone can rule the pair out.
	max := la
	if lb > max {
		max = lb
	}
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	if 1.0-float64(diff)/float64(max) < FuzzyThreshold {
		return 0
	}

	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return 1.0 - float64(prev[lb])/float64(max)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
