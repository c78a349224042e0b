package taint

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"drift/internal/errors"
)

// SourceSpec marks where untrusted data enters.
type SourceSpec struct {
	Framework  string `toml:"framework"`
	Match      string `toml:"match"`
	TaintLabel string `toml:"taint_label"`
}

// SinkSpec marks a dangerous consumer, tagged with its weakness class.
type SinkSpec struct {
	Framework string `toml:"framework"`
	Match     string `toml:"match"`
	CWE       string `toml:"cwe"`
}

// SanitizerSpec clears specific weakness classes; a SQL escape does not
// clear an XSS sink.
type SanitizerSpec struct {
	Framework  string   `toml:"framework"`
	Match      string   `toml:"match"`
	ClearsCWEs []string `toml:"clears_cwes"`
}

// PropagatorSpec describes functional dependence through a call:
// "args->return" or "arg0->arg1".
type PropagatorSpec struct {
	Framework string `toml:"framework"`
	Match     string `toml:"match"`
	ArgFlow   string `toml:"arg_flow"`
}

// Registry is the active source/sink/sanitizer/propagator set.
type Registry struct {
	Sources     []SourceSpec     `toml:"sources"`
	Sinks       []SinkSpec       `toml:"sinks"`
	Sanitizers  []SanitizerSpec  `toml:"sanitizers"`
	Propagators []PropagatorSpec `toml:"propagators"`
}

// DefaultRegistry covers the common web and data frameworks; a project
// TOML file extends it.
func DefaultRegistry() *Registry {
	return &Registry{
		Sources: []SourceSpec{
			{Framework: "express", Match: "req.query", TaintLabel: "HttpInput"},
			{Framework: "express", Match: "req.body", TaintLabel: "HttpInput"},
			{Framework: "express", Match: "req.params", TaintLabel: "HttpInput"},
			{Framework: "express", Match: "req.headers", TaintLabel: "HttpInput"},
			{Framework: "django", Match: "request.GET", TaintLabel: "HttpInput"},
			{Framework: "django", Match: "request.POST", TaintLabel: "HttpInput"},
			{Framework: "flask", Match: "request.args", TaintLabel: "HttpInput"},
			{Framework: "flask", Match: "request.form", TaintLabel: "HttpInput"},
			{Framework: "generic", Match: "os.environ", TaintLabel: "EnvInput"},
			{Framework: "generic", Match: "process.env", TaintLabel: "EnvInput"},
			{Framework: "generic", Match: "process.argv", TaintLabel: "CliInput"},
			{Framework: "generic", Match: "readFile", TaintLabel: "FileInput"},
		},
		Sinks: []SinkSpec{
			{Framework: "generic", Match: "db.query", CWE: "CWE-89"},
			{Framework: "generic", Match: "db.execute", CWE: "CWE-89"},
			{Framework: "generic", Match: "connection.query", CWE: "CWE-89"},
			{Framework: "generic", Match: "cursor.execute", CWE: "CWE-89"},
			{Framework: "generic", Match: "*.raw", CWE: "CWE-89"},
			{Framework: "generic", Match: "exec", CWE: "CWE-78"},
			{Framework: "generic", Match: "execSync", CWE: "CWE-78"},
			{Framework: "generic", Match: "spawn", CWE: "CWE-78"},
			{Framework: "generic", Match: "os.system", CWE: "CWE-78"},
			{Framework: "generic", Match: "subprocess.run", CWE: "CWE-78"},
			{Framework: "dom", Match: "innerHTML", CWE: "CWE-79"},
			{Framework: "dom", Match: "document.write", CWE: "CWE-79"},
			{Framework: "react", Match: "dangerouslySetInnerHTML", CWE: "CWE-79"},
			{Framework: "generic", Match: "res.send", CWE: "CWE-79"},
			{Framework: "generic", Match: "open", CWE: "CWE-22"},
			{Framework: "generic", Match: "readFile", CWE: "CWE-22"},
			{Framework: "generic", Match: "sendFile", CWE: "CWE-22"},
			{Framework: "generic", Match: "pickle.loads", CWE: "CWE-502"},
			{Framework: "generic", Match: "yaml.load", CWE: "CWE-502"},
		},
		Sanitizers: []SanitizerSpec{
			{Framework: "generic", Match: "parameterize", ClearsCWEs: []string{"CWE-89"}},
			{Framework: "generic", Match: "escapeSql", ClearsCWEs: []string{"CWE-89"}},
			{Framework: "generic", Match: "sqlEscape", ClearsCWEs: []string{"CWE-89"}},
			{Framework: "generic", Match: "prepare", ClearsCWEs: []string{"CWE-89"}},
			{Framework: "generic", Match: "escapeHtml", ClearsCWEs: []string{"CWE-79"}},
			{Framework: "generic", Match: "sanitizeHtml", ClearsCWEs: []string{"CWE-79"}},
			{Framework: "generic", Match: "encodeURIComponent", ClearsCWEs: []string{"CWE-79", "CWE-22"}},
			{Framework: "generic", Match: "shellEscape", ClearsCWEs: []string{"CWE-78"}},
			{Framework: "generic", Match: "shlex.quote", ClearsCWEs: []string{"CWE-78"}},
			{Framework: "generic", Match: "basename", ClearsCWEs: []string{"CWE-22"}},
			{Framework: "generic", Match: "parseInt", ClearsCWEs: []string{"CWE-89", "CWE-79", "CWE-78", "CWE-22"}},
		},
		Propagators: []PropagatorSpec{
			{Framework: "generic", Match: "concat", ArgFlow: "args->return"},
			{Framework: "generic", Match: "format", ArgFlow: "args->return"},
			{Framework: "generic", Match: "join", ArgFlow: "args->return"},
			{Framework: "generic", Match: "replace", ArgFlow: "args->return"},
			{Framework: "generic", Match: "trim", ArgFlow: "args->return"},
			{Framework: "generic", Match: "toString", ArgFlow: "args->return"},
			{Framework: "generic", Match: "slice", ArgFlow: "args->return"},
			{Framework: "generic", Match: "toLowerCase", ArgFlow: "args->return"},
		},
	}
}

// LoadTOML merges a project taint registry file into r. A missing file
// is fine; a malformed one is a configuration error.
func (r *Registry) LoadTOML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.New(errors.ConfigInvalid, "cannot read taint registry", err)
	}
	var extra Registry
	if err := toml.Unmarshal(data, &extra); err != nil {
		return errors.New(errors.ConfigInvalid, "malformed taint registry", err)
	}
	r.Sources = append(r.Sources, extra.Sources...)
	r.Sinks = append(r.Sinks, extra.Sinks...)
	r.Sanitizers = append(r.Sanitizers, extra.Sanitizers...)
	r.Propagators = append(r.Propagators, extra.Propagators...)
	return nil
}

// matchExpr tests a registry match string against an expression such as
// "req.query.id" or "db.query". A trailing segment match counts: the
// pattern "exec" matches "child_process.exec".
func matchExpr(pattern, expr string) bool {
	if pattern == "" || expr == "" {
		return false
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(expr, pattern[1:]) || expr == pattern[2:]
	}
	if expr == pattern || strings.HasPrefix(expr, pattern+".") || strings.HasPrefix(expr, pattern+"(") {
		return true
	}
	return strings.HasSuffix(expr, "."+pattern)
}

// MatchSource returns the first source spec matching expr.
func (r *Registry) MatchSource(expr string) *SourceSpec {
	for i := range r.Sources {
		if matchExpr(r.Sources[i].Match, expr) {
			return &r.Sources[i]
		}
	}
	return nil
}

// MatchSink returns the first sink spec matching expr.
func (r *Registry) MatchSink(expr string) *SinkSpec {
	for i := range r.Sinks {
		if matchExpr(r.Sinks[i].Match, expr) {
			return &r.Sinks[i]
		}
	}
	return nil
}

// MatchSanitizer returns the first sanitizer spec matching expr.
func (r *Registry) MatchSanitizer(expr string) *SanitizerSpec {
	for i := range r.Sanitizers {
		if matchExpr(r.Sanitizers[i].Match, expr) {
			return &r.Sanitizers[i]
		}
	}
	return nil
}

// MatchPropagator returns the first propagator spec matching expr.
func (r *Registry) MatchPropagator(expr string) *PropagatorSpec {
	for i := range r.Propagators {
		if matchExpr(r.Propagators[i].Match, expr) {
			return &r.Propagators[i]
		}
	}
	return nil
}

// Clears reports whether the sanitizer clears the given weakness class.
func (s *SanitizerSpec) Clears(cwe string) bool {
	for _, c := range s.ClearsCWEs {
		if c == cwe {
			return true
		}
	}
	return false
}
