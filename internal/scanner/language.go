package scanner

import (
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// Language tags match the parser grammars; empty means unsupported.
const (
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangTSX        = "tsx"
	LangPython     = "python"
	LangGo         = "go"
	LangJava       = "java"
	LangCSharp     = "csharp"
	LangPHP        = "php"
	LangRuby       = "ruby"
	LangRust       = "rust"
	LangCPP        = "cpp"
)

// SupportedLanguages lists every language the engine analyzes.
var SupportedLanguages = []string{
	LangJavaScript, LangTypeScript, LangTSX, LangPython, LangGo, LangJava,
	LangCSharp, LangPHP, LangRuby, LangRust, LangCPP,
}

var extLanguages = map[string]string{
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".mjs":  LangJavaScript,
	".cjs":  LangJavaScript,
	".ts":   LangTypeScript,
	".mts":  LangTypeScript,
	".cts":  LangTypeScript,
	".tsx":  LangTSX,
	".py":   LangPython,
	".pyi":  LangPython,
	".go":   LangGo,
	".java": LangJava,
	".cs":   LangCSharp,
	".php":  LangPHP,
	".rb":   LangRuby,
	".rs":   LangRust,
	".cc":   LangCPP,
	".cpp":  LangCPP,
	".cxx":  LangCPP,
	".hpp":  LangCPP,
	".hh":   LangCPP,
}

var enryLanguages = map[string]string{
	"JavaScript": LangJavaScript,
	"TypeScript": LangTypeScript,
	"TSX":        LangTSX,
	"Python":     LangPython,
	"Go":         LangGo,
	"Java":       LangJava,
	"C#":         LangCSharp,
	"PHP":        LangPHP,
	"Ruby":       LangRuby,
	"Rust":       LangRust,
	"C++":        LangCPP,
}

// DetectLanguage resolves a file's language by extension first, then by
// enry's shebang/content heuristics. Empty content skips the heuristics.
func DetectLanguage(path string, content []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extLanguages[ext]; ok {
		return lang
	}
	if len(content) == 0 {
		return ""
	}
	name := enry.GetLanguage(filepath.Base(path), content)
	return enryLanguages[name]
}

// IsTestPath reports whether a path looks like test code across the
// supported language conventions.
func IsTestPath(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, "_test.go"),
		strings.HasSuffix(base, "_test.py"),
		strings.HasPrefix(base, "test_"),
		strings.Contains(base, ".test."),
		strings.Contains(base, ".spec."),
		strings.HasSuffix(base, "Test.java"),
		strings.HasSuffix(base, "Tests.cs"),
		strings.HasSuffix(base, "_spec.rb"):
		return true
	}
	norm := strings.ReplaceAll(path, "\\", "/")
	return strings.Contains(norm, "/test/") ||
		strings.Contains(norm, "/tests/") ||
		strings.Contains(norm, "/__tests__/") ||
		strings.Contains(norm, "/testdata/")
}
