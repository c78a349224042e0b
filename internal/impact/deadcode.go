package impact

import (
	"path/filepath"
	"strings"

	"drift/internal/callgraph"
)

// DeadFunction is a function with no inbound edges that survived every
// exclusion class.
type DeadFunction struct {
	ID            int64  `json:"id"`
	File          string `json:"file"`
	QualifiedName string `json:"qualified_name"`
	Line          int    `json:"line"`
}

// ExclusionReason names which false-positive class saved a function from
// the dead list.
type ExclusionReason string

const (
	ExcludedEntryPoint     ExclusionReason = "entry_point"
	ExcludedFrameworkHook  ExclusionReason = "framework_hook"
	ExcludedExported       ExclusionReason = "exported_symbol"
	ExcludedDynamic        ExclusionReason = "dynamic_dispatch"
	ExcludedTestOnly       ExclusionReason = "test_only_callers"
	ExcludedTestCase       ExclusionReason = "test_case"
	ExcludedInterfaceImpl  ExclusionReason = "interface_implementation"
	ExcludedGenerated      ExclusionReason = "generated_file"
	ExcludedEventHandler   ExclusionReason = "event_handler"
	ExcludedUserPattern    ExclusionReason = "user_pattern"
)

// DeadCodeOptions carries the user-supplied exclusion patterns.
type DeadCodeOptions struct {
	ExcludePatterns []string
	// ExportedNames marks symbols visible outside the project.
	ExportedNames map[string]bool
	// DynamicNames holds names observed in string literals or reflective
	// call sites; anything dispatched dynamically is unprovable.
	DynamicNames map[string]bool
}

// DeadCode returns functions with no inbound edges after filtering the
// ten false-positive classes.
func (a *Analyzer) DeadCode(opts DeadCodeOptions) []DeadFunction {
	var out []DeadFunction
	for _, id := range a.graph.Nodes() {
		node, ok := a.graph.NodeByID(id)
		if !ok {
			continue
		}
		inbound := a.graph.InEdges(id)
		if len(inbound) > 0 && !onlyTestCallers(a.graph, inbound) {
			continue
		}
		if reason := a.excluded(node, inbound, opts); reason != "" {
			continue
		}
		out = append(out, DeadFunction{
			ID:            id,
			File:          node.File,
			QualifiedName: node.QualifiedName,
			Line:          node.StartLine,
		})
	}
	return out
}

func onlyTestCallers(g *callgraph.Graph, inbound []callgraph.Edge) bool {
	for _, e := range inbound {
		caller, ok := g.NodeByID(e.From)
		if !ok || !caller.IsTestCase {
			return false
		}
	}
	return len(inbound) > 0
}

// excluded applies the ten exclusion classes in order.
func (a *Analyzer) excluded(node callgraph.Node, inbound []callgraph.Edge, opts DeadCodeOptions) ExclusionReason {
	name := node.Name

	// 1. Entry points can have no callers by definition.
	if node.IsEntryPoint || name == "main" || name == "init" {
		return ExcludedEntryPoint
	}

	// 2. Framework lifecycle hooks are invoked by the framework.
	if frameworkHooks[name] {
		return ExcludedFrameworkHook
	}

	// 3. Exported symbols may be called by external consumers.
	if opts.ExportedNames[name] || opts.ExportedNames[node.QualifiedName] {
		return ExcludedExported
	}

	// 4. Dynamically-dispatched names cannot be proven unreachable.
	if opts.DynamicNames[name] {
		return ExcludedDynamic
	}

	// 5. Functions whose only callers are tests are test-scoped, not dead.
	if len(inbound) > 0 && onlyTestCallers(a.graph, inbound) {
		return ExcludedTestOnly
	}

	// 6. Test cases themselves are invoked by the runner.
	if node.IsTestCase {
		return ExcludedTestCase
	}

	// 7. Common interface implementations are dispatched structurally.
	if commonInterfaceMethods[name] {
		return ExcludedInterfaceImpl
	}

	// 8. Generated files churn independently of the call graph.
	if isGeneratedFile(node.File) {
		return ExcludedGenerated
	}

	// 9. Event-handler naming implies runtime registration.
	if strings.HasPrefix(name, "on") && len(name) > 2 && name[2] >= 'A' && name[2] <= 'Z' {
		return ExcludedEventHandler
	}
	if strings.HasPrefix(name, "handle") && len(name) > 6 {
		return ExcludedEventHandler
	}

	// 10. User-supplied exclusion patterns.
	for _, pattern := range opts.ExcludePatterns {
		if matched, _ := filepath.Match(pattern, node.File); matched {
			return ExcludedUserPattern
		}
		if matched, _ := filepath.Match(pattern, name); matched {
			return ExcludedUserPattern
		}
	}

	return ""
}

var frameworkHooks = map[string]bool{
	// React and frontend lifecycles.
	"componentDidMount": true, "componentWillUnmount": true, "componentDidUpdate": true,
	"getDerivedStateFromProps": true, "shouldComponentUpdate": true, "render": true,
	// Python dunders and Django/pytest hooks.
	"__init__": true, "__str__": true, "__repr__": true, "__enter__": true,
	"__exit__": true, "setUp": true, "tearDown": true, "setUpClass": true,
	// Java/Spring and JUnit hooks.
	"afterPropertiesSet": true, "destroy": true,
	// Rails and Rack callbacks.
	"before_action": true, "after_action": true,
	// Generic serialization hooks.
	"toJSON": true, "fromJSON": true,
}

var commonInterfaceMethods = map[string]bool{
	"String": true, "Error": true, "Read": true, "Write": true, "Close": true,
	"Len": true, "Less": true, "Swap": true, "MarshalJSON": true,
	"UnmarshalJSON": true, "Scan": true, "Value": true, "ServeHTTP": true,
	"toString": true, "equals": true, "hashCode": true, "compareTo": true,
	"Equals": true, "GetHashCode": true, "Dispose": true,
}

var generatedMarkers = []string{
	"_generated.", "_gen.", ".pb.", "generated/", "zz_generated",
	".min.js", "bindata.", "_pb2.py", ".g.cs", "migrations/",
}

func isGeneratedFile(path string) bool {
	lower := strings.ToLower(path)
	for _, marker := range generatedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
