package parser

import (
	"drift/internal/gast"
)

// ParseResult is the uniform per-file output of the parser manager. It is
// JSON-serializable so the durable parse cache can round-trip it.
type ParseResult struct {
	Path        string           `json:"path"`
	Language    string           `json:"language"`
	ContentHash uint64           `json:"content_hash"`
	Functions   []FunctionInfo   `json:"functions,omitempty"`
	Classes     []ClassInfo      `json:"classes,omitempty"`
	Imports     []ImportInfo     `json:"imports,omitempty"`
	Exports     []ExportInfo     `json:"exports,omitempty"`
	CallSites   []CallSite       `json:"call_sites,omitempty"`
	Decorators  []DecoratorInfo  `json:"decorators,omitempty"`
	DocComments []DocComment     `json:"doc_comments,omitempty"`
	StringLits  []StringLiteral  `json:"string_lits,omitempty"`
	Root        *gast.Node       `json:"root,omitempty"`
	Errors      []ParseErrorInfo `json:"errors,omitempty"`
}

// FunctionInfo describes one extracted function or method.
type FunctionInfo struct {
	Name          string   `json:"name"`
	QualifiedName string   `json:"qualified_name"`
	Container     string   `json:"container,omitempty"`
	Signature     string   `json:"signature"`
	BodyHash      uint64   `json:"body_hash"`
	StartLine     int      `json:"start_line"`
	EndLine       int      `json:"end_line"`
	Parameters    []string `json:"parameters,omitempty"`
	TypeParams    []string `json:"type_params,omitempty"`
	Modifiers     []string `json:"modifiers,omitempty"`
	IsExported    bool     `json:"is_exported,omitempty"`
}

// ClassInfo describes a class, struct, or interface with its members.
type ClassInfo struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"` // "class", "struct", "interface" (traits included), "enum"
	StartLine  int      `json:"start_line"`
	EndLine    int      `json:"end_line"`
	Methods    []string `json:"methods,omitempty"`
	Properties []string `json:"properties,omitempty"`
	Modifiers  []string `json:"modifiers,omitempty"`
}

// ImportInfo is a structured import record.
type ImportInfo struct {
	Raw        string   `json:"raw"`
	Module     string   `json:"module"`
	Names      []string `json:"names,omitempty"`
	IsTypeOnly bool     `json:"is_type_only,omitempty"`
	Line       int      `json:"line"`
}

// ExportInfo is one exported name.
type ExportInfo struct {
	Name      string `json:"name"`
	Kind      string `json:"kind,omitempty"`
	IsDefault bool   `json:"is_default,omitempty"`
	Line      int    `json:"line"`
}

// CallSite records one call expression before resolution.
type CallSite struct {
	Name      string `json:"name"`
	Receiver  string `json:"receiver,omitempty"`
	Caller    string `json:"caller,omitempty"` // qualified name of enclosing function
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	ArgCount  int    `json:"arg_count"`
	IsDynamic bool   `json:"is_dynamic,omitempty"`
}

// DecoratorInfo is one decorator/annotation/attribute application.
type DecoratorInfo struct {
	Name   string   `json:"name"`
	Target string   `json:"target"` // qualified name of the decorated declaration
	Args   []string `json:"args,omitempty"`
	Line   int      `json:"line"`
}

// DocComment is a documentation block attached to a declaration.
type DocComment struct {
	Target string `json:"target,omitempty"`
	Text   string `json:"text"`
	Line   int    `json:"line"`
}

// StringLiteral is a pre-extracted string literal; string-pattern
// detectors run over these instead of raw source.
type StringLiteral struct {
	Value string `json:"value"`
	Line  int    `json:"line"`
}

// ParseErrorInfo preserves an error range from a tolerant parse.
type ParseErrorInfo struct {
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Message   string `json:"message,omitempty"`
}

// HasErrors reports whether the parse was partial.
func (r *ParseResult) HasErrors() bool {
	return len(r.Errors) > 0
}
