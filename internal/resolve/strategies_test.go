package resolve

import (
	"testing"

	"drift/internal/parser"
)

func indexedSnapshot(files ...*parser.ParseResult) *Snapshot {
	idx := NewIndex()
	for _, f := range files {
		idx.AddFile(f)
	}
	return idx.Seal()
}

func TestSameFileBeatsImport(t *testing.T) {
	// foo is defined locally AND imported from module m: the same-file
	// definition wins with the same_file strategy.
	caller := &parser.ParseResult{
		Path:     "src/app.ts",
		Language: "typescript",
		Functions: []parser.FunctionInfo{
			{Name: "foo", QualifiedName: "foo", StartLine: 10, EndLine: 20},
		},
		Imports: []parser.ImportInfo{
			{Raw: `import { foo } from "./m"`, Module: "./m", Names: []string{"foo"}},
		},
	}
	other := &parser.ParseResult{
		Path:     "src/m.ts",
		Language: "typescript",
		Functions: []parser.FunctionInfo{
			{Name: "foo", QualifiedName: "foo", StartLine: 1, EndLine: 5, IsExported: true},
		},
		Exports: []parser.ExportInfo{{Name: "foo"}},
	}

	snap := indexedSnapshot(caller, other)
	res := snap.Resolve("src/app.ts", parser.CallSite{Name: "foo", Line: 15})

	if res.Callee == nil {
		t.Fatal("unresolved")
	}
	if res.Strategy != StrategySameFile {
		t.Errorf("strategy = %s, want same_file", res.Strategy)
	}
	if res.Callee.File != "src/app.ts" {
		t.Errorf("resolved to %s, want the local definition", res.Callee.File)
	}
	if res.Confidence < 0.95 {
		t.Errorf("confidence = %v, want >= 0.95", res.Confidence)
	}
}

func TestImportChainResolution(t *testing.T) {
	caller := &parser.ParseResult{
		Path:     "src/app.ts",
		Language: "typescript",
		Imports: []parser.ImportInfo{
			{Raw: `import { helper } from "./util"`, Module: "./util", Names: []string{"helper"}},
		},
	}
	util := &parser.ParseResult{
		Path:     "src/util.ts",
		Language: "typescript",
		Functions: []parser.FunctionInfo{
			{Name: "helper", QualifiedName: "helper", IsExported: true},
		},
		Exports: []parser.ExportInfo{{Name: "helper"}},
	}

	snap := indexedSnapshot(caller, util)
	res := snap.Resolve("src/app.ts", parser.CallSite{Name: "helper"})

	if res.Callee == nil || res.Strategy != StrategyImport {
		t.Fatalf("resolution = %+v, want import strategy", res)
	}
	if res.Callee.File != "src/util.ts" {
		t.Errorf("resolved to %s, want src/util.ts", res.Callee.File)
	}
}

func TestReceiverTypeResolution(t *testing.T) {
	service := &parser.ParseResult{
		Path:     "src/user_service.ts",
		Language: "typescript",
		Functions: []parser.FunctionInfo{
			{Name: "find", QualifiedName: "UserService.find", Container: "UserService"},
		},
		Classes: []parser.ClassInfo{{Name: "UserService", Kind: "class"}},
	}
	caller := &parser.ParseResult{
		Path:     "src/handler.ts",
		Language: "typescript",
		Functions: []parser.FunctionInfo{
			{Name: "handle", QualifiedName: "handle", Parameters: []string{"userService"}},
		},
	}

	snap := indexedSnapshot(service, caller)
	res := snap.Resolve("src/handler.ts", parser.CallSite{Name: "find", Receiver: "userService"})

	if res.Callee == nil {
		t.Fatal("unresolved")
	}
	if res.Strategy != StrategyReceiver {
		t.Errorf("strategy = %s, want receiver_type", res.Strategy)
	}
}

func TestExportFallback(t *testing.T) {
	lib := &parser.ParseResult{
		Path:     "src/lib.ts",
		Language: "typescript",
		Functions: []parser.FunctionInfo{
			{Name: "globalHelper", QualifiedName: "globalHelper", IsExported: true},
		},
		Exports: []parser.ExportInfo{{Name: "globalHelper"}},
	}
	caller := &parser.ParseResult{Path: "src/app.ts", Language: "typescript"}

	snap := indexedSnapshot(lib, caller)
	res := snap.Resolve("src/app.ts", parser.CallSite{Name: "globalHelper"})

	if res.Callee == nil || res.Strategy != StrategyExport {
		t.Fatalf("resolution = %+v, want export strategy", res)
	}
}

func TestFuzzyAboveThresholdOnly(t *testing.T) {
	lib := &parser.ParseResult{
		Path:     "src/lib.ts",
		Language: "typescript",
		Functions: []parser.FunctionInfo{
			{Name: "calculateTotals", QualifiedName: "calculateTotals"},
		},
	}
	caller := &parser.ParseResult{Path: "src/app.ts", Language: "typescript"}
	snap := indexedSnapshot(lib, caller)

	// One character short: similarity above the floor.
	res := snap.Resolve("src/app.ts", parser.CallSite{Name: "calculateTotal"})
	if res.Callee == nil || res.Strategy != StrategyFuzzy {
		t.Fatalf("resolution = %+v, want fuzzy", res)
	}
	// Fuzzy confidence stays below every ranked strategy.
	if res.Confidence >= strategyConfidence[StrategyExport] {
		t.Errorf("fuzzy confidence %v must stay below export's %v",
			res.Confidence, strategyConfidence[StrategyExport])
	}

	// Far-off names do not resolve.
	res = snap.Resolve("src/app.ts", parser.CallSite{Name: "zzz"})
	if res.Callee != nil {
		t.Errorf("nonsense name resolved via %s", res.Strategy)
	}
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"foo", "foo", 1.0, 1.0},
		{"calculateTotal", "calculateTotals", 0.90, 1.0},
		{"foo", "barbazqux", 0.0, 0.3},
	}
	for _, tt := range tests {
		got := nameSimilarity(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("similarity(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}
