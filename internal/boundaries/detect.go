package boundaries

import (
	"regexp"
	"strings"

	"drift/internal/parser"
)

// Detector is phase two: applying per-framework extractors with the
// learned knowledge.
type Detector struct {
	knowledge *Knowledge
}

// NewDetector creates the detect phase over learned knowledge.
func NewDetector(knowledge *Knowledge) *Detector {
	return &Detector{knowledge: knowledge}
}

var readMethods = map[string]bool{
	"find": true, "findone": true, "findall": true, "findmany": true,
	"findunique": true, "findfirst": true, "get": true, "select": true,
	"where": true, "query": true, "fetch": true, "all": true, "first": true,
	"count": true, "aggregate": true, "filter": true, "objects": true,
}

var writeMethods = map[string]bool{
	"create": true, "insert": true, "save": true, "update": true,
	"updateone": true, "updatemany": true, "upsert": true, "bulkcreate": true,
	"add": true, "persist": true, "merge": true,
}

var deleteMethods = map[string]bool{
	"delete": true, "deleteone": true, "deletemany": true, "destroy": true,
	"remove": true, "truncate": true, "drop": true,
}

var sqlTableRe = regexp.MustCompile(`(?i)\b(?:FROM|INTO|UPDATE|JOIN|DELETE\s+FROM)\s+[\x60"']?([A-Za-z_][A-Za-z0-9_]*)`)
var sqlFieldsRe = regexp.MustCompile(`(?i)SELECT\s+(.+?)\s+FROM`)

// DetectFile extracts access points from one parse result. Test and
// mock files are filtered here, matching the false-positive policy.
func (d *Detector) DetectFile(res *parser.ParseResult) []Boundary {
	if isMockOrTestFile(res.Path) {
		return nil
	}

	var out []Boundary
	out = append(out, d.fromCallSites(res)...)
	out = append(out, d.fromSQLLiterals(res)...)
	return out
}

// fromCallSites handles the query-builder family: receiver.method calls
// whose receiver maps to a table.
func (d *Detector) fromCallSites(res *parser.ParseResult) []Boundary {
	var out []Boundary
	for _, cs := range res.CallSites {
		op := classifyOperation(cs.Name)
		if op == OpUnknown && !readMethods[strings.ToLower(cs.Name)] {
			continue
		}
		table, fromLiteral := d.tableForReceiver(cs.Receiver)
		if table == "" {
			continue
		}

		b := Boundary{
			Table:     table,
			Framework: d.dominantFramework(),
			Operation: op,
			File:      res.Path,
			Line:      cs.Line,
		}
		b.Confidence = d.score(b, true, fromLiteral)
		out = append(out, b)
	}
	return out
}

// fromSQLLiterals handles raw SQL strings regardless of framework.
func (d *Detector) fromSQLLiterals(res *parser.ParseResult) []Boundary {
	var out []Boundary
	for _, lit := range res.StringLits {
		m := sqlTableRe.FindStringSubmatch(lit.Value)
		if m == nil {
			continue
		}
		b := Boundary{
			Table:     m[1],
			Framework: "raw-sql",
			Operation: sqlOperation(lit.Value),
			Fields:    sqlFields(lit.Value),
			File:      res.Path,
			Line:      lit.Line,
		}
		b.Confidence = d.score(b, len(b.Fields) > 0, true)
		out = append(out, b)
	}
	return out
}

// tableForReceiver resolves a receiver expression to a table using the
// learned hints. The second result reports whether the mapping came from
// a literal-enough source (a known table or learned hint) rather than an
// opaque variable.
func (d *Detector) tableForReceiver(receiver string) (string, bool) {
	if receiver == "" {
		return "", false
	}
	// Strip chains: "db.users" → "users", "this.userRepo" → "userRepo".
	if idx := strings.LastIndex(receiver, "."); idx >= 0 {
		receiver = receiver[idx+1:]
	}
	if d.knowledge.KnownTables[receiver] {
		return receiver, true
	}
	if table, ok := d.knowledge.VarToTable[receiver]; ok {
		return table, true
	}
	if table := tableFromVarName(receiver); table != "" {
		return table, false
	}
	// Prisma-style: the model accessor is the singular camel name.
	if d.knowledge.Frameworks["prisma"] {
		guess := pluralizeSnake(receiver)
		if d.knowledge.KnownTables[guess] {
			return guess, true
		}
	}
	return "", false
}

func (d *Detector) dominantFramework() string {
	for _, sig := range frameworkSignatures {
		if sig.name != "raw-sql" && d.knowledge.Frameworks[sig.name] {
			return sig.name
		}
	}
	return "raw-sql"
}

// score is the weighted confidence: table recognized 0.3, fields parsed
// 0.2, operation determinable 0.2, framework matched 0.2, literal source
// 0.1.
func (d *Detector) score(b Boundary, opKnown, literal bool) float64 {
	score := 0.0
	if d.knowledge.KnownTables[b.Table] || namingMatches(d.knowledge.Naming, b.Table) {
		score += 0.3
	}
	if len(b.Fields) > 0 {
		score += 0.2
	}
	if opKnown && b.Operation != OpUnknown {
		score += 0.2
	}
	if b.Framework != "raw-sql" || d.knowledge.Frameworks["raw-sql"] {
		score += 0.2
	}
	if literal {
		score += 0.1
	}
	return score
}

func namingMatches(naming TableNaming, table string) bool {
	if naming == NamingMixed {
		return true
	}
	return classifyTableNaming(table) == naming
}

func classifyOperation(method string) Operation {
	lower := strings.ToLower(method)
	switch {
	case deleteMethods[lower]:
		return OpDelete
	case writeMethods[lower]:
		return OpWrite
	case readMethods[lower]:
		return OpRead
	default:
		return OpUnknown
	}
}

func sqlOperation(query string) Operation {
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "SELECT"):
		return OpRead
	case strings.HasPrefix(upper, "INSERT"), strings.HasPrefix(upper, "UPDATE"):
		return OpWrite
	case strings.HasPrefix(upper, "DELETE"), strings.HasPrefix(upper, "DROP"),
		strings.HasPrefix(upper, "TRUNCATE"):
		return OpDelete
	default:
		return OpUnknown
	}
}

func sqlFields(query string) []string {
	m := sqlFieldsRe.FindStringSubmatch(query)
	if m == nil || strings.TrimSpace(m[1]) == "*" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(m[1], ",") {
		f = strings.TrimSpace(f)
		if idx := strings.LastIndex(f, "."); idx >= 0 {
			f = f[idx+1:]
		}
		if f != "" && f != "*" {
			fields = append(fields, f)
		}
	}
	return fields
}

var mockTestSegments = []string{"test", "spec", "mock", "fixture", "__tests__", "testdata"}

func isMockOrTestFile(path string) bool {
	lower := strings.ToLower(path)
	for _, segment := range mockTestSegments {
		if strings.Contains(lower, segment) {
			return true
		}
	}
	return false
}
