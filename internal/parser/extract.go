package parser

import (
	"regexp"
	"strings"

	"drift/internal/gast"
	"drift/internal/ids"
	"drift/internal/scanner"
)

// extract fills a ParseResult from the normalized tree. Extraction is
// language-agnostic over GAST kinds; the per-language residue (module
// strings, export conventions) lives in small helpers below.
func extract(res *ParseResult, root *gast.Node, source []byte) {
	res.Root = root
	if root == nil {
		return
	}

	var containers []string
	var enclosing []string // qualified names of enclosing functions

	var walk func(n *gast.Node)
	walk = func(n *gast.Node) {
		switch n.Kind {
		case gast.KindError:
			res.Errors = append(res.Errors, ParseErrorInfo{
				StartLine: n.StartLine,
				EndLine:   n.EndLine,
			})

		case gast.KindClass:
			name := n.Name
			if name == "" {
				name = nameFromSource(n, source)
			}
			if name != "" {
				res.Classes = append(res.Classes, ClassInfo{
					Name:      name,
					Kind:      classKind(n),
					StartLine: n.StartLine,
					EndLine:   n.EndLine,
				})
				containers = append(containers, name)
				defer func() { containers = containers[:len(containers)-1] }()
			}

		case gast.KindFunction, gast.KindMethod, gast.KindLambda:
			fn := extractFunction(n, source, containers, res.Language)
			if fn != nil {
				if len(res.Classes) > 0 && fn.Container != "" {
					cls := &res.Classes[len(res.Classes)-1]
					if cls.Name == fn.Container {
						cls.Methods = append(cls.Methods, fn.Name)
					}
				}
				res.Functions = append(res.Functions, *fn)
				enclosing = append(enclosing, fn.QualifiedName)
				defer func() { enclosing = enclosing[:len(enclosing)-1] }()
			}

		case gast.KindCall:
			receiver, name := splitCallee(n.Name)
			if name != "" {
				caller := ""
				if len(enclosing) > 0 {
					caller = enclosing[len(enclosing)-1]
				}
				res.CallSites = append(res.CallSites, CallSite{
					Name:     name,
					Receiver: receiver,
					Caller:   caller,
					Line:     n.StartLine,
					Column:   n.StartCol,
					ArgCount: countArgs(n),
				})
			}

		case gast.KindImport:
			raw := n.Value
			if raw == "" {
				raw = textOf(n, source)
			}
			if imp := parseImport(raw, res.Language, n.StartLine); imp != nil {
				res.Imports = append(res.Imports, *imp)
			}

		case gast.KindExport:
			for _, name := range exportedNames(n, source) {
				res.Exports = append(res.Exports, ExportInfo{
					Name: name,
					Line: n.StartLine,
				})
			}

		case gast.KindDecoratorApp:
			name, args := parseDecorator(textOf(n, source))
			if name != "" {
				target := ""
				if len(enclosing) > 0 {
					target = enclosing[len(enclosing)-1]
				} else if len(containers) > 0 {
					target = containers[len(containers)-1]
				}
				res.Decorators = append(res.Decorators, DecoratorInfo{
					Name:   name,
					Target: target,
					Args:   args,
					Line:   n.StartLine,
				})
			}

		case gast.KindComment:
			text := textOf(n, source)
			if isDocComment(text) {
				res.DocComments = append(res.DocComments, DocComment{
					Text: cleanDocComment(text),
					Line: n.StartLine,
				})
			}

		case gast.KindStringLiteral:
			value := strings.Trim(n.Value, "\"'`")
			if value != "" {
				res.StringLits = append(res.StringLits, StringLiteral{
					Value: value,
					Line:  n.StartLine,
				})
			}
		}

		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(root)

	attachDocTargets(res)
	markExportedFunctions(res)
}

func extractFunction(n *gast.Node, source []byte, containers []string, lang string) *FunctionInfo {
	name := n.Name
	if name == "" {
		name = nameFromSource(n, source)
	}
	if name == "" {
		if n.Kind != gast.KindLambda {
			return nil
		}
		name = "<anonymous>"
	}

	container := ""
	if len(containers) > 0 {
		container = containers[len(containers)-1]
	}

	qualified := name
	if container != "" {
		qualified = container + "." + name
	}

	body := source
	if int(n.EndByte) <= len(source) && n.StartByte < n.EndByte {
		body = source[n.StartByte:n.EndByte]
	}

	return &FunctionInfo{
		Name:          name,
		QualifiedName: qualified,
		Container:     container,
		Signature:     firstSignatureLine(body),
		BodyHash:      ids.HashBytes(body),
		StartLine:     n.StartLine,
		EndLine:       n.EndLine,
		Parameters:    parameterNames(n, source),
		IsExported:    lang == scanner.LangGo && isCapitalized(name),
	}
}

func classKind(n *gast.Node) string {
	switch n.Tag {
	case "interface_declaration", "trait_item", "trait_declaration":
		return "interface"
	case "struct_item", "struct_specifier", "struct_declaration":
		return "struct"
	case "enum_item", "enum_declaration", "enum_specifier":
		return "enum"
	default:
		return "class"
	}
}

// nameFromSource pulls the first identifier-looking token from a
// declaration whose grammar exposes no name field.
var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

func nameFromSource(n *gast.Node, source []byte) string {
	if int(n.EndByte) > len(source) || n.StartByte >= n.EndByte {
		return ""
	}
	head := source[n.StartByte:n.EndByte]
	if len(head) > 200 {
		head = head[:200]
	}
	tokens := identRe.FindAllString(string(head), 4)
	keywords := map[string]bool{
		"function": true, "func": true, "def": true, "fn": true, "class": true,
		"struct": true, "interface": true, "trait": true, "enum": true, "impl": true,
		"public": true, "private": true, "protected": true, "static": true,
		"async": true, "export": true, "abstract": true, "module": true, "pub": true,
		"final": true, "sealed": true, "partial": true, "void": true,
	}
	for _, tok := range tokens {
		if !keywords[tok] {
			return tok
		}
	}
	return ""
}

func firstSignatureLine(body []byte) string {
	for i, b := range body {
		if b == '\n' || b == '{' || b == ':' {
			return strings.TrimSpace(string(body[:i]))
		}
	}
	if len(body) > 200 {
		return strings.TrimSpace(string(body[:200]))
	}
	return strings.TrimSpace(string(body))
}

func parameterNames(n *gast.Node, source []byte) []string {
	var params *gast.Node
	for _, child := range n.Children {
		if child.Kind == gast.KindParameter {
			params = child
			break
		}
	}
	if params == nil {
		return nil
	}
	var names []string
	gast.Walk(params, func(p *gast.Node) bool {
		if p.Kind == gast.KindIdentifier && p.Name != "" {
			names = append(names, p.Name)
		}
		return true
	})
	return names
}

// splitCallee separates "db.query" into receiver "db" and name "query".
func splitCallee(callee string) (receiver, name string) {
	callee = strings.TrimSpace(callee)
	if callee == "" {
		return "", ""
	}
	// Normalize the separators the grammars emit.
	callee = strings.ReplaceAll(callee, "->", ".")
	callee = strings.ReplaceAll(callee, "::", ".")
	idx := strings.LastIndex(callee, ".")
	if idx < 0 {
		return "", callee
	}
	return callee[:idx], callee[idx+1:]
}

func countArgs(n *gast.Node) int {
	// The argument list is the call's last structural child.
	if len(n.Children) == 0 {
		return 0
	}
	last := n.Children[len(n.Children)-1]
	if last.Kind == gast.KindOther || last.Kind == gast.KindBlock {
		return len(last.Children)
	}
	return len(n.Children) - 1
}

func textOf(n *gast.Node, source []byte) string {
	if int(n.EndByte) > len(source) || n.StartByte >= n.EndByte {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

func isCapitalized(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

var decoratorRe = regexp.MustCompile(`^[@#\[]*\s*([A-Za-z_][A-Za-z0-9_.\\]*)\s*(?:\((.*)\))?`)

func parseDecorator(text string) (string, []string) {
	m := decoratorRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", nil
	}
	name := m[1]
	var args []string
	if m[2] != "" {
		for _, a := range strings.Split(m[2], ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}
	return name, args
}

func isDocComment(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "///") ||
		strings.HasPrefix(trimmed, "/**") ||
		strings.HasPrefix(trimmed, "\"\"\"") ||
		strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(trimmed, "//!")
}

func cleanDocComment(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "///")
		line = strings.TrimPrefix(line, "//!")
		line = strings.TrimPrefix(line, "/**")
		line = strings.TrimSuffix(line, "*/")
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimPrefix(line, "#")
		line = strings.Trim(line, " \t\"")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// attachDocTargets binds each doc comment to the declaration starting on
// the following line.
func attachDocTargets(res *ParseResult) {
	byStart := map[int]string{}
	for _, fn := range res.Functions {
		byStart[fn.StartLine] = fn.QualifiedName
	}
	for _, cls := range res.Classes {
		if _, taken := byStart[cls.StartLine]; !taken {
			byStart[cls.StartLine] = cls.Name
		}
	}
	for i := range res.DocComments {
		doc := &res.DocComments[i]
		// A doc block ends on the line before its target, possibly with
		// decorators between.
		for delta := 1; delta <= 3; delta++ {
			if target, ok := byStart[doc.Line+strings.Count(doc.Text, "\n")+delta]; ok {
				doc.Target = target
				break
			}
		}
	}
}

// markExportedFunctions applies export records to the function list for
// languages where export is a statement rather than a modifier.
func markExportedFunctions(res *ParseResult) {
	exported := map[string]bool{}
	for _, exp := range res.Exports {
		exported[exp.Name] = true
	}
	for i := range res.Functions {
		if exported[res.Functions[i].Name] {
			res.Functions[i].IsExported = true
		}
	}
}

var (
	jsImportRe     = regexp.MustCompile(`from\s+['"]([^'"]+)['"]|require\(\s*['"]([^'"]+)['"]\s*\)|import\s+['"]([^'"]+)['"]`)
	jsNamesRe      = regexp.MustCompile(`\{([^}]*)\}`)
	pyFromRe       = regexp.MustCompile(`^from\s+([\w.]+)\s+import\s+(.+)`)
	pyImportRe     = regexp.MustCompile(`^import\s+([\w.]+(?:\s*,\s*[\w.]+)*)`)
	goImportRe     = regexp.MustCompile(`"([^"]+)"`)
	javaImportRe   = regexp.MustCompile(`import\s+(?:static\s+)?([\w.]+(?:\.\*)?)`)
	csUsingRe      = regexp.MustCompile(`using\s+(?:static\s+)?([\w.]+)`)
	phpUseRe       = regexp.MustCompile(`use\s+([\w\\]+)`)
	rustUseRe      = regexp.MustCompile(`use\s+([\w:]+)`)
	cppIncludeRe   = regexp.MustCompile(`#include\s*[<"]([^>"]+)[>"]`)
	rubyRequireRe  = regexp.MustCompile(`require(?:_relative)?\s+['"]([^'"]+)['"]`)
	typeOnlyRe     = regexp.MustCompile(`import\s+type\b`)
)

// parseImport pulls the module and imported names out of a raw import
// statement, per language.
func parseImport(raw, lang string, line int) *ImportInfo {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	imp := &ImportInfo{Raw: raw, Line: line}

	switch lang {
	case scanner.LangJavaScript, scanner.LangTypeScript, scanner.LangTSX:
		m := jsImportRe.FindStringSubmatch(raw)
		if m == nil {
			return nil
		}
		for _, g := range m[1:] {
			if g != "" {
				imp.Module = g
				break
			}
		}
		imp.IsTypeOnly = typeOnlyRe.MatchString(raw)
		if names := jsNamesRe.FindStringSubmatch(raw); names != nil {
			for _, name := range strings.Split(names[1], ",") {
				name = strings.TrimSpace(name)
				name = strings.TrimPrefix(name, "type ")
				if idx := strings.Index(name, " as "); idx >= 0 {
					name = name[:idx]
				}
				if name != "" {
					imp.Names = append(imp.Names, strings.TrimSpace(name))
				}
			}
		}

	case scanner.LangPython:
		if m := pyFromRe.FindStringSubmatch(raw); m != nil {
			imp.Module = m[1]
			for _, name := range strings.Split(m[2], ",") {
				name = strings.TrimSpace(name)
				if idx := strings.Index(name, " as "); idx >= 0 {
					name = name[:idx]
				}
				if name != "" && name != "(" {
					imp.Names = append(imp.Names, strings.Trim(name, "() "))
				}
			}
		} else if m := pyImportRe.FindStringSubmatch(raw); m != nil {
			imp.Module = strings.TrimSpace(strings.Split(m[1], ",")[0])
		} else {
			return nil
		}

	case scanner.LangGo:
		m := goImportRe.FindStringSubmatch(raw)
		if m == nil {
			return nil
		}
		imp.Module = m[1]

	case scanner.LangJava:
		m := javaImportRe.FindStringSubmatch(raw)
		if m == nil {
			return nil
		}
		imp.Module = m[1]
		if idx := strings.LastIndex(m[1], "."); idx >= 0 && !strings.HasSuffix(m[1], ".*") {
			imp.Names = []string{m[1][idx+1:]}
		}

	case scanner.LangCSharp:
		m := csUsingRe.FindStringSubmatch(raw)
		if m == nil {
			return nil
		}
		imp.Module = m[1]

	case scanner.LangPHP:
		m := phpUseRe.FindStringSubmatch(raw)
		if m == nil {
			return nil
		}
		imp.Module = m[1]
		if idx := strings.LastIndex(m[1], "\\"); idx >= 0 {
			imp.Names = []string{m[1][idx+1:]}
		}

	case scanner.LangRuby:
		m := rubyRequireRe.FindStringSubmatch(raw)
		if m == nil {
			return nil
		}
		imp.Module = m[1]

	case scanner.LangRust:
		m := rustUseRe.FindStringSubmatch(raw)
		if m == nil {
			return nil
		}
		imp.Module = m[1]
		if idx := strings.LastIndex(m[1], "::"); idx >= 0 {
			imp.Names = []string{m[1][idx+2:]}
		}

	case scanner.LangCPP:
		m := cppIncludeRe.FindStringSubmatch(raw)
		if m == nil {
			return nil
		}
		imp.Module = m[1]

	default:
		return nil
	}

	if imp.Module == "" {
		return nil
	}
	return imp
}

// exportedNames extracts the names an export statement makes visible.
func exportedNames(n *gast.Node, source []byte) []string {
	var names []string
	seen := map[string]bool{}
	gast.Walk(n, func(child *gast.Node) bool {
		switch child.Kind {
		case gast.KindFunction, gast.KindMethod, gast.KindClass, gast.KindVarDecl:
			name := child.Name
			if name == "" {
				name = nameFromSource(child, source)
			}
			if name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			return false
		case gast.KindIdentifier:
			if child.Name != "" && !seen[child.Name] {
				seen[child.Name] = true
				names = append(names, child.Name)
			}
		}
		return true
	})
	return names
}
