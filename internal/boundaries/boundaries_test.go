package boundaries

import (
	"testing"

	"drift/internal/parser"
)

func TestPluralizeSnake(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"User", "users"},
		{"UserProfile", "user_profiles"},
		{"Company", "companies"},
		{"Address", "addresses"},
		{"apiKey", "api_keys"},
	}
	for _, tt := range tests {
		if got := pluralizeSnake(tt.in); got != tt.want {
			t.Errorf("pluralizeSnake(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTableFromVarName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"userRepo", "users"},
		{"orderRepository", "orders"},
		{"userModel", "users"},
		{"plainVariable", ""},
	}
	for _, tt := range tests {
		if got := tableFromVarName(tt.in); got != tt.want {
			t.Errorf("tableFromVarName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLearnInfersFrameworkAndTables(t *testing.T) {
	files := []*parser.ParseResult{
		{
			Path:     "src/models/user.ts",
			Language: "typescript",
			Imports: []parser.ImportInfo{
				{Raw: `import { Entity, Column } from "typeorm"`, Module: "typeorm", Names: []string{"Entity", "Column"}},
			},
			Decorators: []parser.DecoratorInfo{
				{Name: "Entity", Target: "User", Args: []string{`"users"`}, Line: 3},
			},
			Classes: []parser.ClassInfo{{Name: "User", Kind: "class", StartLine: 4, EndLine: 20}},
		},
	}

	k := NewLearner().Learn(files)
	if !k.Frameworks["typeorm"] {
		t.Error("typeorm not learned")
	}
	if !k.KnownTables["users"] {
		t.Errorf("tables = %v, want users known", k.KnownTables)
	}
	if k.Naming != NamingSnake {
		t.Errorf("naming = %s, want snake", k.Naming)
	}
}

func TestDetectSQLLiteralBoundary(t *testing.T) {
	k := &Knowledge{
		Frameworks:  map[string]bool{"raw-sql": true},
		KnownTables: map[string]bool{"users": true},
		VarToTable:  map[string]string{},
		Naming:      NamingSnake,
	}
	d := NewDetector(k)

	res := &parser.ParseResult{
		Path:     "src/dao.ts",
		Language: "typescript",
		StringLits: []parser.StringLiteral{
			{Value: "SELECT email, password FROM users WHERE id = ?", Line: 12},
		},
	}

	points := d.DetectFile(res)
	if len(points) != 1 {
		t.Fatalf("got %d boundaries, want 1", len(points))
	}
	b := points[0]
	if b.Table != "users" || b.Operation != OpRead {
		t.Errorf("boundary = %+v", b)
	}
	if len(b.Fields) != 2 || b.Fields[0] != "email" || b.Fields[1] != "password" {
		t.Errorf("fields = %v, want [email password]", b.Fields)
	}
	// Recognized table (0.3) + fields (0.2) + operation (0.2) +
	// framework (0.2) + literal (0.1).
	if b.Confidence < 0.99 {
		t.Errorf("confidence = %v, want 1.0", b.Confidence)
	}
}

func TestDetectSkipsTestFiles(t *testing.T) {
	k := &Knowledge{Frameworks: map[string]bool{"raw-sql": true}, KnownTables: map[string]bool{}, VarToTable: map[string]string{}}
	d := NewDetector(k)

	res := &parser.ParseResult{
		Path: "src/__tests__/dao.test.ts",
		StringLits: []parser.StringLiteral{
			{Value: "SELECT * FROM users", Line: 1},
		},
	}
	if points := d.DetectFile(res); len(points) != 0 {
		t.Errorf("test file produced %d boundaries", len(points))
	}
}

func TestQueryBuilderBoundary(t *testing.T) {
	k := &Knowledge{
		Frameworks:  map[string]bool{"prisma": true, "raw-sql": true},
		KnownTables: map[string]bool{"users": true},
		VarToTable:  map[string]string{"userRepo": "users"},
		Naming:      NamingSnake,
	}
	d := NewDetector(k)

	res := &parser.ParseResult{
		Path:     "src/service.ts",
		Language: "typescript",
		CallSites: []parser.CallSite{
			{Name: "findMany", Receiver: "userRepo", Line: 8},
			{Name: "delete", Receiver: "userRepo", Line: 9},
			{Name: "unrelated", Receiver: "widget", Line: 10},
		},
	}

	points := d.DetectFile(res)
	if len(points) != 2 {
		t.Fatalf("got %d boundaries, want 2", len(points))
	}
	if points[0].Operation != OpRead || points[1].Operation != OpDelete {
		t.Errorf("operations = %s, %s", points[0].Operation, points[1].Operation)
	}
	for _, b := range points {
		if b.Table != "users" {
			t.Errorf("table = %s, want users", b.Table)
		}
	}
}

func TestClassifyFieldSingleClassHighestPrior(t *testing.T) {
	tests := []struct {
		field string
		want  SensitivityClass
	}{
		{"password", ClassCredentials},
		{"passwordHash", ClassCredentials},
		{"email", ClassPII},
		{"credit_card_number", ClassFinancial},
		{"diagnosis_code", ClassHealth},
		{"ssn", ClassPII},
	}
	for _, tt := range tests {
		got := ClassifyField(tt.field, "t")
		if got == nil {
			t.Errorf("ClassifyField(%q) = nil", tt.field)
			continue
		}
		if got.Class != tt.want {
			t.Errorf("ClassifyField(%q) = %s, want %s", tt.field, got.Class, tt.want)
		}
	}

	if got := ClassifyField("widget_count", "t"); got != nil {
		t.Errorf("non-sensitive field classified as %s", got.Class)
	}
}

func TestClassifyBoundariesDeduplicates(t *testing.T) {
	points := []Boundary{
		{Table: "users", Fields: []string{"password", "email"}},
		{Table: "users", Fields: []string{"password"}},
	}
	fields := ClassifyBoundaries(points)
	if len(fields) != 2 {
		t.Fatalf("got %d sensitive fields, want 2 (deduplicated)", len(fields))
	}
}

func TestMaxClass(t *testing.T) {
	if MaxClass(ClassPII, ClassCredentials) != ClassCredentials {
		t.Error("credentials must outrank pii")
	}
	if MaxClass(ClassHealth, ClassFinancial) != ClassHealth {
		t.Error("health must outrank financial")
	}
}
