package gast

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Normalize converts a parsed grammar tree into the generic AST for lang.
// Unknown node types map to KindOther with the grammar tag preserved, so
// no structure is dropped.
func Normalize(root *sitter.Node, source []byte, lang string) *Node {
	if root == nil {
		return nil
	}
	table := kindTableFor(lang)
	return normalizeNode(root, source, table)
}

func normalizeNode(n *sitter.Node, source []byte, table map[string]Kind) *Node {
	kind, ok := table[n.Type()]
	if !ok {
		if n.IsError() || n.IsMissing() {
			kind = KindError
		} else {
			kind = KindOther
		}
	}

	out := &Node{
		Kind:      kind,
		StartLine: int(n.StartPoint().Row) + 1,
		StartCol:  int(n.StartPoint().Column),
		EndLine:   int(n.EndPoint().Row) + 1,
		EndCol:    int(n.EndPoint().Column),
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
	}
	if kind == KindOther || kind == KindClass || kind == KindLoop || kind == KindBinaryOp {
		out.Tag = n.Type()
	}

	switch kind {
	case KindFunction, KindMethod, KindClass, KindLambda:
		if name := n.ChildByFieldName("name"); name != nil {
			out.Name = string(source[name.StartByte():name.EndByte()])
		}
	case KindCall:
		out.Name = calleeText(n, source)
	case KindIdentifier, KindMemberAccess:
		out.Name = string(source[n.StartByte():n.EndByte()])
	case KindStringLiteral, KindNumberLiteral, KindLiteral:
		out.Value = string(source[n.StartByte():n.EndByte()])
	case KindAssignment, KindVarDecl:
		if left := n.ChildByFieldName("left"); left != nil {
			out.Name = string(source[left.StartByte():left.EndByte()])
		} else if name := n.ChildByFieldName("name"); name != nil {
			out.Name = string(source[name.StartByte():name.EndByte()])
		}
	case KindImport:
		out.Value = string(source[n.StartByte():n.EndByte()])
	}

	// Leaf punctuation and keyword tokens add nothing to detector walks.
	childCount := int(n.NamedChildCount())
	for i := 0; i < childCount; i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		out.Children = append(out.Children, normalizeNode(child, source, table))
	}
	return out
}

// calleeText extracts the called expression's text: "foo", "obj.foo".
func calleeText(n *sitter.Node, source []byte) string {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		fn = n.ChildByFieldName("name")
	}
	if fn == nil && n.NamedChildCount() > 0 {
		fn = n.NamedChild(0)
	}
	if fn == nil {
		return ""
	}
	text := source[fn.StartByte():fn.EndByte()]
	if len(text) > 120 {
		text = text[:120]
	}
	return string(text)
}
