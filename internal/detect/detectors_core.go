package detect

import (
	"strings"

	"drift/internal/gast"
	"drift/internal/parser"
	"drift/internal/scanner"
)

// ErrorHandlingDetector observes try/catch structure. Every guarded
// region emits a conforming match; sizeable functions without any guard
// in exception-based languages emit a lower-confidence gap match.
type ErrorHandlingDetector struct {
	BaseDetector
}

// NewErrorHandlingDetector creates the error-handling detector.
func NewErrorHandlingDetector() *ErrorHandlingDetector {
	return &ErrorHandlingDetector{
		BaseDetector: BaseDetector{
			DetectorID:       "error-handling",
			DetectorCategory: CategoryError,
		},
	}
}

func (d *ErrorHandlingDetector) Kinds() []gast.Kind {
	return []gast.Kind{gast.KindTryCatch, gast.KindThrow}
}

func (d *ErrorHandlingDetector) VisitNode(fc *FileContext, n *gast.Node) {
	body := "try-catch"
	if n.Kind == gast.KindThrow {
		body = "throw"
	}
	fc.Emit(PatternMatch{
		PatternID:  PatternID(d.ID(), body),
		Category:   d.Category(),
		Line:       n.StartLine,
		Confidence: 0.9,
	})
}

func (d *ErrorHandlingDetector) Finish(fc *FileContext) {
	if fc.Language == scanner.LangGo || fc.Language == scanner.LangRust {
		// Error returns, not exceptions; the guard heuristic does not apply.
		return
	}
	guarded := map[int]bool{}
	if fc.Result.Root != nil {
		for _, try := range gast.FindAll(fc.Result.Root, gast.KindTryCatch) {
			for line := try.StartLine; line <= try.EndLine; line++ {
				guarded[line] = true
			}
		}
	}
	for _, fn := range fc.Result.Functions {
		if fn.EndLine-fn.StartLine < 20 {
			continue
		}
		hasGuard := false
		for line := fn.StartLine; line <= fn.EndLine; line++ {
			if guarded[line] {
				hasGuard = true
				break
			}
		}
		if !hasGuard {
			fc.Emit(PatternMatch{
				PatternID:  PatternID(d.ID(), "unguarded-long-function"),
				Category:   d.Category(),
				Line:       fn.StartLine,
				Snippet:    fn.Name,
				Confidence: 0.6,
			})
		}
	}
}

var routeMethods = map[string]bool{
	"get": true, "post": true, "put": true, "delete": true, "patch": true,
	"head": true, "options": true, "all": true, "route": true,
}

var routeReceivers = map[string]bool{
	"app": true, "router": true, "server": true, "api": true, "r": true,
	"mux": true, "e": true, "fastify": true,
}

var routeDecorators = map[string]bool{
	"Get": true, "Post": true, "Put": true, "Delete": true, "Patch": true,
	"Route": true, "RequestMapping": true, "GetMapping": true, "PostMapping": true,
	"HttpGet": true, "HttpPost": true, "HttpPut": true, "HttpDelete": true,
	"app.route": true, "app.get": true, "app.post": true,
}

// RouteDetector finds HTTP route registrations through builder-style
// calls and framework annotations.
type RouteDetector struct {
	BaseDetector
}

// NewRouteDetector creates the route detector.
func NewRouteDetector() *RouteDetector {
	return &RouteDetector{
		BaseDetector: BaseDetector{
			DetectorID:       "api-route",
			DetectorCategory: CategoryAPI,
		},
	}
}

func (d *RouteDetector) Finish(fc *FileContext) {
	for _, cs := range fc.Result.CallSites {
		if routeMethods[strings.ToLower(cs.Name)] && routeReceivers[strings.ToLower(cs.Receiver)] {
			fc.Emit(PatternMatch{
				PatternID:  PatternID(d.ID(), "builder-route"),
				Category:   d.Category(),
				Line:       cs.Line,
				Snippet:    cs.Receiver + "." + cs.Name,
				Confidence: 0.9,
			})
		}
	}
	for _, dec := range fc.Result.Decorators {
		if routeDecorators[dec.Name] || routeDecorators[strings.TrimPrefix(dec.Name, "@")] {
			fc.Emit(PatternMatch{
				PatternID:  PatternID(d.ID(), "annotated-route"),
				Category:   d.Category(),
				Line:       dec.Line,
				Snippet:    dec.Name,
				Confidence: 0.95,
			})
		}
	}
}

var authHints = []string{
	"authenticate", "authorize", "requireauth", "verifytoken", "checkauth",
	"login", "logout", "jwt", "session", "passport", "oauth", "permission",
	"isauthenticated", "currentuser", "ensureloggedin",
}

// AuthDetector spots authentication and authorization touchpoints by
// call, decorator, and function naming.
type AuthDetector struct {
	BaseDetector
}

// NewAuthDetector creates the auth detector.
func NewAuthDetector() *AuthDetector {
	return &AuthDetector{
		BaseDetector: BaseDetector{
			DetectorID:       "auth-handler",
			DetectorCategory: CategoryAuth,
		},
	}
}

func (d *AuthDetector) Finish(fc *FileContext) {
	emit := func(body, snippet string, line int, confidence float64) {
		fc.Emit(PatternMatch{
			PatternID:  PatternID(d.ID(), body),
			Category:   d.Category(),
			Line:       line,
			Snippet:    snippet,
			Confidence: confidence,
		})
	}
	for _, cs := range fc.Result.CallSites {
		if matchesAnyHint(cs.Name, authHints) {
			emit("auth-call", cs.Name, cs.Line, 0.8)
		}
	}
	for _, dec := range fc.Result.Decorators {
		if matchesAnyHint(dec.Name, authHints) {
			emit("auth-annotation", dec.Name, dec.Line, 0.9)
		}
	}
	for _, fn := range fc.Result.Functions {
		if matchesAnyHint(fn.Name, authHints) {
			emit("auth-function", fn.Name, fn.StartLine, 0.75)
		}
	}
}

// IsAuthFunction reports whether a function reads as an auth handler;
// the pipeline uses this to flag function rows.
func IsAuthFunction(fn parser.FunctionInfo) bool {
	return matchesAnyHint(fn.Name, authHints)
}

func matchesAnyHint(name string, hints []string) bool {
	lower := strings.ToLower(name)
	for _, hint := range hints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

var testCallNames = map[string]bool{
	"describe": true, "it": true, "test": true, "expect": true, "beforeeach": true,
	"aftereach": true, "beforeall": true, "afterall": true, "assert": true,
}

var testDecorators = map[string]bool{
	"Test": true, "ParameterizedTest": true, "Fact": true, "Theory": true,
	"TestMethod": true, "pytest.fixture": true, "test": true,
}

// TestCaseDetector recognizes test cases across the supported
// frameworks: jest/vitest/mocha, pytest/unittest, go test, junit, xunit,
// phpunit, rspec, and rust's #[test].
type TestCaseDetector struct {
	BaseDetector
}

// NewTestCaseDetector creates the test detector.
func NewTestCaseDetector() *TestCaseDetector {
	return &TestCaseDetector{
		BaseDetector: BaseDetector{
			DetectorID:       "test-case",
			DetectorCategory: CategoryTest,
		},
	}
}

func (d *TestCaseDetector) Finish(fc *FileContext) {
	for _, cs := range fc.Result.CallSites {
		if testCallNames[strings.ToLower(cs.Name)] && cs.Receiver == "" {
			fc.Emit(PatternMatch{
				PatternID:  PatternID(d.ID(), "test-block"),
				Category:   d.Category(),
				Line:       cs.Line,
				Snippet:    cs.Name,
				Confidence: 0.9,
			})
		}
	}
	for _, fn := range fc.Result.Functions {
		if IsTestFunction(fc.Language, fn, fc.Result) {
			fc.Emit(PatternMatch{
				PatternID:  PatternID(d.ID(), "test-function"),
				Category:   d.Category(),
				Line:       fn.StartLine,
				Snippet:    fn.Name,
				Confidence: 0.95,
			})
		}
	}
}

// IsTestFunction reports whether fn is a test case under its language's
// conventions; the pipeline uses this to flag function rows for the test
// topology.
func IsTestFunction(lang string, fn parser.FunctionInfo, res *parser.ParseResult) bool {
	name := fn.Name
	switch lang {
	case scanner.LangGo:
		return strings.HasPrefix(name, "Test") || strings.HasPrefix(name, "Benchmark") ||
			strings.HasPrefix(name, "Fuzz")
	case scanner.LangPython:
		return strings.HasPrefix(name, "test_") || strings.HasPrefix(fn.Container, "Test")
	case scanner.LangRuby:
		return strings.HasPrefix(name, "test_")
	}
	for _, dec := range res.Decorators {
		if dec.Target == fn.QualifiedName && testDecorators[strings.TrimPrefix(dec.Name, "@")] {
			return true
		}
	}
	if lang == scanner.LangRust {
		// #[test] arrives as an attribute decorator.
		for _, dec := range res.Decorators {
			if dec.Target == fn.QualifiedName && dec.Name == "test" {
				return true
			}
		}
	}
	return false
}

var loggerReceivers = map[string]bool{
	"console": true, "logger": true, "log": true, "slog": true, "winston": true,
	"logging": true, "logrus": true, "zap": true,
}

// LoggingDetector observes logging-call style so outlier detection can
// flag files that log differently from the rest of the project.
type LoggingDetector struct {
	BaseDetector
}

// NewLoggingDetector creates the logging detector.
func NewLoggingDetector() *LoggingDetector {
	return &LoggingDetector{
		BaseDetector: BaseDetector{
			DetectorID:       "logging-call",
			DetectorCategory: CategoryLogging,
		},
	}
}

func (d *LoggingDetector) Finish(fc *FileContext) {
	for _, cs := range fc.Result.CallSites {
		recv := strings.ToLower(cs.Receiver)
		if idx := strings.LastIndex(recv, "."); idx >= 0 {
			recv = recv[idx+1:]
		}
		if loggerReceivers[recv] {
			fc.Emit(PatternMatch{
				PatternID:  PatternID(d.ID(), recv),
				Category:   d.Category(),
				Line:       cs.Line,
				Snippet:    cs.Receiver + "." + cs.Name,
				Confidence: 0.85,
			})
		}
	}
}

// ConfigAccessDetector observes how configuration is read: process.env,
// os.environ, getenv, ENV brackets.
type ConfigAccessDetector struct {
	BaseDetector
}

// NewConfigAccessDetector creates the config-access detector.
func NewConfigAccessDetector() *ConfigAccessDetector {
	return &ConfigAccessDetector{
		BaseDetector: BaseDetector{
			DetectorID:       "config-access",
			DetectorCategory: CategoryConfig,
		},
	}
}

func (d *ConfigAccessDetector) Kinds() []gast.Kind {
	return []gast.Kind{gast.KindMemberAccess}
}

func (d *ConfigAccessDetector) VisitNode(fc *FileContext, n *gast.Node) {
	name := strings.ToLower(n.Name)
	if strings.HasPrefix(name, "process.env") || strings.HasPrefix(name, "os.environ") {
		fc.Emit(PatternMatch{
			PatternID:  PatternID(d.ID(), "env-member"),
			Category:   d.Category(),
			Line:       n.StartLine,
			Snippet:    n.Name,
			Confidence: 0.9,
		})
	}
}

func (d *ConfigAccessDetector) Finish(fc *FileContext) {
	for _, cs := range fc.Result.CallSites {
		if strings.EqualFold(cs.Name, "getenv") || strings.EqualFold(cs.Name, "env") {
			fc.Emit(PatternMatch{
				PatternID:  PatternID(d.ID(), "env-call"),
				Category:   d.Category(),
				Line:       cs.Line,
				Snippet:    cs.Name,
				Confidence: 0.85,
			})
		}
	}
}

// DocCoverageDetector emits a match per documented public declaration
// and per undocumented one, so the documentation convention can surface
// either way.
type DocCoverageDetector struct {
	BaseDetector
}

// NewDocCoverageDetector creates the documentation detector.
func NewDocCoverageDetector() *DocCoverageDetector {
	return &DocCoverageDetector{
		BaseDetector: BaseDetector{
			DetectorID:       "doc-coverage",
			DetectorCategory: CategoryDocumentation,
		},
	}
}

func (d *DocCoverageDetector) Finish(fc *FileContext) {
	documented := map[string]bool{}
	for _, doc := range fc.Result.DocComments {
		if doc.Target != "" {
			documented[doc.Target] = true
		}
	}
	for _, fn := range fc.Result.Functions {
		if !fn.IsExported || fn.Name == "<anonymous>" {
			continue
		}
		body := "documented-public"
		confidence := 0.9
		if !documented[fn.QualifiedName] {
			body = "undocumented-public"
			confidence = 0.7
		}
		fc.Emit(PatternMatch{
			PatternID:  PatternID(d.ID(), body),
			Category:   d.Category(),
			Line:       fn.StartLine,
			Snippet:    fn.Name,
			Confidence: confidence,
		})
	}
}
