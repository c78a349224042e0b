// Package gast defines the generic AST: a normalized, language-agnostic
// node kind set that cross-language detectors walk instead of raw
// grammar trees. Normalization is lossless at the source-range level;
// every node keeps its original byte and line range.
package gast

// Kind is a normalized node kind.
type Kind string

const (
	KindFile           Kind = "file"
	KindFunction       Kind = "function"
	KindClass          Kind = "class"
	KindMethod         Kind = "method"
	KindCall           Kind = "call"
	KindImport         Kind = "import"
	KindExport         Kind = "export"
	KindRoute          Kind = "route"
	KindDecoratorApp   Kind = "decorator_app"
	KindTryCatch       Kind = "try_catch"
	KindCatchClause    Kind = "catch_clause"
	KindFinallyClause  Kind = "finally_clause"
	KindAssignment     Kind = "assignment"
	KindVarDecl        Kind = "var_decl"
	KindIf             Kind = "if"
	KindLoop           Kind = "loop"
	KindSwitch         Kind = "switch"
	KindCase           Kind = "case"
	KindReturn         Kind = "return"
	KindThrow          Kind = "throw"
	KindLiteral        Kind = "literal"
	KindStringLiteral  Kind = "string_literal"
	KindNumberLiteral  Kind = "number_literal"
	KindIdentifier     Kind = "identifier"
	KindObjectExpr     Kind = "object_expr"
	KindArrayExpr      Kind = "array_expr"
	KindMemberAccess   Kind = "member_access"
	KindIndexAccess    Kind = "index_access"
	KindBinaryOp       Kind = "binary_op"
	KindUnaryOp        Kind = "unary_op"
	KindTernary        Kind = "ternary"
	KindLambda         Kind = "lambda"
	KindAwait          Kind = "await"
	KindYield          Kind = "yield"
	KindSpread         Kind = "spread"
	KindParameter      Kind = "parameter"
	KindTypeAnnotation Kind = "type_annotation"
	KindComment        Kind = "comment"
	KindBlock          Kind = "block"
	KindError          Kind = "error"
	// KindOther carries the language-specific tag for anything the
	// normalized set does not model.
	KindOther Kind = "other"
)

// Node is one normalized AST node. The tree is JSON-serializable for the
// durable parse cache.
type Node struct {
	Kind Kind `json:"kind"`
	// Tag holds the original grammar node type for KindOther, KindClass,
	// KindLoop and KindBinaryOp nodes; it is empty for other kinds.
	Tag string `json:"tag,omitempty"`
	// Name is the bound identifier where one exists: function name,
	// callee, assigned variable. Imports keep their text in Value.
	Name string `json:"name,omitempty"`
	// Value is the literal body for literal kinds.
	Value string `json:"value,omitempty"`

	StartLine int    `json:"sl"`
	StartCol  int    `json:"sc"`
	EndLine   int    `json:"el"`
	EndCol    int    `json:"ec"`
	StartByte uint32 `json:"sb"`
	EndByte   uint32 `json:"eb"`

	Children []*Node `json:"children,omitempty"`
}

// Walk calls fn for every node in depth-first order. Returning false
// prunes the subtree.
func Walk(root *Node, fn func(*Node) bool) {
	if root == nil {
		return
	}
	if !fn(root) {
		return
	}
	for _, child := range root.Children {
		Walk(child, fn)
	}
}

// FindAll returns every node of the given kind.
func FindAll(root *Node, kind Kind) []*Node {
	var out []*Node
	Walk(root, func(n *Node) bool {
		if n.Kind == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}

// CountKinds tallies node kinds in one pass.
func CountKinds(root *Node) map[Kind]int {
	counts := map[Kind]int{}
	Walk(root, func(n *Node) bool {
		counts[n.Kind]++
		return true
	})
	return counts
}
