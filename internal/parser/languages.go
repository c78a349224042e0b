package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"drift/internal/scanner"
)

// grammarFor maps a language tag to its grammar. Grammars load once at
// process start; parsers are pooled separately because they are not
// thread-safe.
func grammarFor(lang string) *sitter.Language {
	switch lang {
	case scanner.LangJavaScript:
		return javascript.GetLanguage()
	case scanner.LangTypeScript:
		return typescript.GetLanguage()
	case scanner.LangTSX:
		return tsx.GetLanguage()
	case scanner.LangPython:
		return python.GetLanguage()
	case scanner.LangGo:
		return golang.GetLanguage()
	case scanner.LangJava:
		return java.GetLanguage()
	case scanner.LangCSharp:
		return csharp.GetLanguage()
	case scanner.LangPHP:
		return php.GetLanguage()
	case scanner.LangRuby:
		return ruby.GetLanguage()
	case scanner.LangRust:
		return rust.GetLanguage()
	case scanner.LangCPP:
		return cpp.GetLanguage()
	default:
		return nil
	}
}

// Supported reports whether a grammar exists for lang.
func Supported(lang string) bool {
	return grammarFor(lang) != nil
}
