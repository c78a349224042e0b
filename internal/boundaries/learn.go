package boundaries

import (
	"strings"
	"unicode"

	"drift/internal/parser"
)

// frameworkSignature describes how one ORM shows up in imports and
// decorators.
type frameworkSignature struct {
	name          string
	importHints   []string
	decoratorHints []string
}

var frameworkSignatures = []frameworkSignature{
	{"prisma", []string{"@prisma/client", "prisma"}, nil},
	{"typeorm", []string{"typeorm"}, []string{"Entity", "Column", "PrimaryGeneratedColumn"}},
	{"sequelize", []string{"sequelize"}, nil},
	{"mongoose", []string{"mongoose"}, nil},
	{"django", []string{"django.db", "django.db.models"}, nil},
	{"sqlalchemy", []string{"sqlalchemy"}, nil},
	{"activerecord", []string{"active_record", "rails"}, nil},
	{"gorm", []string{"gorm.io/gorm", "gorm"}, nil},
	{"hibernate", []string{"javax.persistence", "jakarta.persistence"}, []string{"Entity", "Table", "Column"}},
	{"eloquent", []string{"Illuminate\\Database"}, nil},
	{"efcore", []string{"Microsoft.EntityFrameworkCore"}, nil},
	{"diesel", []string{"diesel"}, nil},
	{"raw-sql", nil, nil}, // always-on fallback for SQL string literals
}

// Knowledge is what the learn phase produced: the detect phase consumes
// it read-only.
type Knowledge struct {
	Frameworks  map[string]bool
	Naming      TableNaming
	KnownTables map[string]bool
	// VarToTable maps repository-style variable names to table guesses:
	// userRepo → users.
	VarToTable map[string]string
}

// Learner drives phase one.
type Learner struct{}

// NewLearner creates the learn phase.
func NewLearner() *Learner {
	return &Learner{}
}

// likelyDataAccess filters files worth walking: ORM imports, entity
// decorators, or data-layer path segments.
func likelyDataAccess(res *parser.ParseResult) bool {
	for _, imp := range res.Imports {
		for _, sig := range frameworkSignatures {
			for _, hint := range sig.importHints {
				if strings.Contains(imp.Module, hint) {
					return true
				}
			}
		}
	}
	for _, dec := range res.Decorators {
		for _, sig := range frameworkSignatures {
			for _, hint := range sig.decoratorHints {
				if dec.Name == hint {
					return true
				}
			}
		}
	}
	lower := strings.ToLower(res.Path)
	for _, segment := range []string{"model", "repositor", "entit", "dao", "schema", "migration", "store"} {
		if strings.Contains(lower, segment) {
			return true
		}
	}
	return false
}

// Learn infers frameworks, table naming, known tables, and variable
// hints across the project.
func (l *Learner) Learn(files []*parser.ParseResult) *Knowledge {
	k := &Knowledge{
		Frameworks:  map[string]bool{"raw-sql": true},
		KnownTables: map[string]bool{},
		VarToTable:  map[string]string{},
	}

	namingVotes := map[TableNaming]int{}

	for _, res := range files {
		if !likelyDataAccess(res) {
			continue
		}

		for _, imp := range res.Imports {
			for _, sig := range frameworkSignatures {
				for _, hint := range sig.importHints {
					if strings.Contains(imp.Module, hint) {
						k.Frameworks[sig.name] = true
					}
				}
			}
		}

		// Entity classes name their tables, either via decorator args or
		// by convention from the class name.
		for _, dec := range res.Decorators {
			switch dec.Name {
			case "Entity", "Table", "table":
				table := tableFromArgs(dec.Args)
				if table == "" {
					table = pluralizeSnake(dec.Target)
				}
				if table != "" {
					k.KnownTables[table] = true
					namingVotes[classifyTableNaming(table)]++
				}
			}
		}
		for _, cls := range res.Classes {
			if looksLikeModel(cls.Name, res) {
				table := pluralizeSnake(cls.Name)
				k.KnownTables[table] = true
				namingVotes[classifyTableNaming(table)]++
			}
		}

		// Repository-style variables hint their tables: userRepo → users.
		for _, fn := range res.Functions {
			for _, param := range fn.Parameters {
				if table := tableFromVarName(param); table != "" {
					k.VarToTable[param] = table
				}
			}
		}
	}

	k.Naming = NamingSnake
	best := 0
	distinct := 0
	for naming, votes := range namingVotes {
		if votes > 0 {
			distinct++
		}
		if votes > best {
			best = votes
			k.Naming = naming
		}
	}
	if distinct > 1 && best*2 < totalVotes(namingVotes) {
		k.Naming = NamingMixed
	}
	return k
}

func totalVotes(votes map[TableNaming]int) int {
	n := 0
	for _, v := range votes {
		n += v
	}
	return n
}

func tableFromArgs(args []string) string {
	for _, arg := range args {
		arg = strings.Trim(arg, `"'`)
		if arg != "" && !strings.Contains(arg, "=") {
			return arg
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			name = strings.TrimSpace(name)
			if name == "name" || name == "tableName" {
				return strings.Trim(strings.TrimSpace(value), `"'`)
			}
		}
	}
	return ""
}

func looksLikeModel(className string, res *parser.ParseResult) bool {
	if className == "" {
		return false
	}
	lower := strings.ToLower(res.Path)
	return strings.Contains(lower, "model") || strings.Contains(lower, "entit")
}

var repoSuffixes = []string{"Repo", "Repository", "Model", "Dao", "Store", "Table", "Collection"}

// tableFromVarName turns "userRepo" into "users".
func tableFromVarName(name string) string {
	for _, suffix := range repoSuffixes {
		base, found := strings.CutSuffix(name, suffix)
		if !found {
			base, found = strings.CutSuffix(name, strings.ToLower(suffix))
		}
		if found && base != "" {
			return pluralizeSnake(base)
		}
	}
	return ""
}

// pluralizeSnake converts a PascalCase or camelCase entity name to a
// snake_case plural table guess.
func pluralizeSnake(name string) string {
	if name == "" {
		return ""
	}
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	table := b.String()
	switch {
	case strings.HasSuffix(table, "s"), strings.HasSuffix(table, "x"):
		table += "es"
	case strings.HasSuffix(table, "y") && len(table) > 1 &&
		!strings.ContainsRune("aeiou", rune(table[len(table)-2])):
		table = table[:len(table)-1] + "ies"
	default:
		table += "s"
	}
	return table
}

func classifyTableNaming(table string) TableNaming {
	hasUnderscore := strings.Contains(table, "_")
	hasUpper := strings.IndexFunc(table, unicode.IsUpper) >= 0
	switch {
	case hasUnderscore && !hasUpper:
		return NamingSnake
	case !hasUnderscore && hasUpper && unicode.IsUpper(rune(table[0])):
		return NamingPascal
	case !hasUnderscore && hasUpper:
		return NamingCamel
	case !hasUnderscore:
		return NamingSnake
	default:
		return NamingMixed
	}
}
