package detect

import (
	"testing"

	"drift/internal/parser"
)

func TestClassifyNaming(t *testing.T) {
	tests := []struct {
		name string
		want NamingStyle
	}{
		{"getUser", StyleCamel},
		{"get_user", StyleSnake},
		{"GetUser", StylePascal},
		{"Get_User", StyleMixed},
		{"x", StyleCamel},
		{"<anonymous>", StyleMixed},
	}
	for _, tt := range tests {
		if got := ClassifyNaming(tt.name); got != tt.want {
			t.Errorf("ClassifyNaming(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func resultWithFunctions(path, lang string, names ...string) *parser.ParseResult {
	res := &parser.ParseResult{Path: path, Language: lang}
	for i, name := range names {
		res.Functions = append(res.Functions, parser.FunctionInfo{
			Name:          name,
			QualifiedName: name,
			StartLine:     i*10 + 1,
			EndLine:       i*10 + 5,
		})
	}
	return res
}

func TestNamingDetectorLearnsDominant(t *testing.T) {
	d := NewNamingConventionDetector()
	pc := &ProjectContext{Files: []*parser.ParseResult{
		resultWithFunctions("a.ts", "typescript", "getUser", "setUser", "findUser"),
		resultWithFunctions("b.ts", "typescript", "makeThing", "do_thing"),
	}}
	if err := d.Learn(pc); err != nil {
		t.Fatalf("Learn: %v", err)
	}

	counts := d.StyleCounts("typescript")
	if counts[StyleCamel] != 4 || counts[StyleSnake] != 1 {
		t.Errorf("counts = %v, want camel=4 snake=1", counts)
	}
}

func TestNamingDetectorEmitsPerStylePatterns(t *testing.T) {
	d := NewNamingConventionDetector()
	pc := &ProjectContext{Files: []*parser.ParseResult{
		resultWithFunctions("a.ts", "typescript", "getUser", "do_thing"),
	}}
	_ = d.Learn(pc)

	fc := NewFileContext(pc.Files[0])
	fc.current = d.ID()
	d.Finish(fc)

	matches := fc.Matches()
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].PatternID == matches[1].PatternID {
		t.Error("different styles must map to different pattern ids")
	}
}

func TestEngineSinglePassDiscardsPanickingDetector(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&panicDetector{})
	registry.Register(NewNamingConventionDetector())

	engine := NewEngine(registry, testLogger())
	res := resultWithFunctions("a.ts", "typescript", "getUser")
	fc := NewFileContext(res)
	matches := engine.Detect(fc)

	// The panicking detector's output is discarded; naming's survives.
	for _, m := range matches {
		if m.DetectorID == "panicky" {
			t.Errorf("panicking detector's match survived: %+v", m)
		}
	}
	found := false
	for _, m := range matches {
		if m.DetectorID == "naming-convention" {
			found = true
		}
	}
	if !found {
		t.Error("healthy detector lost its output")
	}
}

type panicDetector struct {
	BaseDetector
}

func (p *panicDetector) ID() string { return "panicky" }
func (p *panicDetector) Finish(fc *FileContext) {
	fc.Emit(PatternMatch{PatternID: "panicky:x", Category: CategoryStructural, Line: 1})
	panic("detector bug")
}
