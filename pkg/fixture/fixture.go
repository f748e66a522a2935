// Package fixture loads user-authored response overrides and matches them
// against requests. A fixture replaces the synthesizer's output when its
// method, path template and optional predicate all match.
//
// Fixture sets are immutable: the watcher rebuilds and republishes a whole
// Set on file change, and the serving path reads the current snapshot
// lock-free.
package fixture

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/ohler55/ojg/jp"
	"gopkg.in/yaml.v3"
)

// Response is the canned response a fixture serves.
type Response struct {
	Status  int               `json:"status" yaml:"status"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    any               `json:"body,omitempty" yaml:"body,omitempty"`
}

// Match selects the requests a fixture applies to.
type Match struct {
	// Method is the HTTP method, matched case-insensitively.
	Method string `json:"method" yaml:"method"`

	// Path is the path template the fixture binds to, e.g. /users/{id}.
	Path string `json:"path" yaml:"path"`

	// Predicate is an optional expression over the extracted parameters:
	// `path.id == "42" && query.expand == "full"`.
	Predicate string `json:"predicate,omitempty" yaml:"predicate,omitempty"`

	// BodyJSONPath maps JSONPath expressions over the request body to
	// expected values; every entry must match.
	BodyJSONPath map[string]any `json:"bodyJsonPath,omitempty" yaml:"bodyJsonPath,omitempty"`
}

// Fixture is one override record.
type Fixture struct {
	Match    Match    `json:"match" yaml:"match"`
	Response Response `json:"response" yaml:"response"`

	program *vm.Program
}

// Params is the matching environment handed to predicates. Expressions
// address values as path.id, query.limit, header["X-Trace-Id"], cookie.session.
type Params struct {
	Path   map[string]any
	Query  map[string]any
	Header map[string]any
	Cookie map[string]any
}

// env renders the params as the expression environment.
func (p *Params) env() map[string]any {
	orEmpty := func(m map[string]any) map[string]any {
		if m == nil {
			return map[string]any{}
		}
		return m
	}
	return map[string]any{
		"path":   orEmpty(p.Path),
		"query":  orEmpty(p.Query),
		"header": orEmpty(p.Header),
		"cookie": orEmpty(p.Cookie),
	}
}

// Set is an immutable collection of fixtures indexed by method and path
// template.
type Set struct {
	byKey map[string][]*Fixture
	count int
}

// EmptySet returns a set with no fixtures.
func EmptySet() *Set {
	return &Set{byKey: make(map[string][]*Fixture)}
}

// Len returns the number of fixtures in the set.
func (s *Set) Len() int {
	return s.count
}

// Match finds the first fixture for (method, pathTemplate) whose predicate
// accepts the extracted parameters and whose body conditions hold.
func (s *Set) Match(method, pathTemplate string, params *Params, body []byte) *Fixture {
	candidates := s.byKey[key(method, pathTemplate)]
	for _, f := range candidates {
		if f.program != nil {
			p := params
			if p == nil {
				p = &Params{}
			}
			out, err := expr.Run(f.program, p.env())
			if accepted, ok := out.(bool); err != nil || !ok || !accepted {
				continue
			}
		}
		if len(f.Match.BodyJSONPath) > 0 && !bodyMatches(f.Match.BodyJSONPath, body) {
			continue
		}
		return f
	}
	return nil
}

// bodyMatches evaluates every JSONPath condition against the request body.
func bodyMatches(conditions map[string]any, body []byte) bool {
	if len(body) == 0 {
		return false
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return false
	}
	for path, expected := range conditions {
		x, err := jp.ParseString(path)
		if err != nil {
			return false
		}
		results := x.Get(data)
		if len(results) == 0 {
			return false
		}
		if !looseEqual(results[0], expected) {
			return false
		}
	}
	return true
}

// looseEqual compares JSON values ignoring the int/float64 decoder split.
func looseEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Load parses fixture records from YAML or JSON and compiles their
// predicates. The data must be a list of {match, response} records.
func Load(data []byte) (*Set, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	var fixtures []*Fixture
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &fixtures); err != nil {
			return nil, fmt.Errorf("failed to parse fixture file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &fixtures); err != nil {
			return nil, fmt.Errorf("failed to parse fixture file: %w", err)
		}
	}

	set := EmptySet()
	for i, f := range fixtures {
		if err := compileFixture(f); err != nil {
			return nil, fmt.Errorf("fixture %d: %w", i, err)
		}
		k := key(f.Match.Method, f.Match.Path)
		set.byKey[k] = append(set.byKey[k], f)
		set.count++
	}
	return set, nil
}

// Merge combines sets; later sets take precedence by being consulted first.
func Merge(sets ...*Set) *Set {
	out := EmptySet()
	for i := len(sets) - 1; i >= 0; i-- {
		for k, fixtures := range sets[i].byKey {
			out.byKey[k] = append(out.byKey[k], fixtures...)
			out.count += len(fixtures)
		}
	}
	return out
}

func compileFixture(f *Fixture) error {
	if f.Match.Method == "" || f.Match.Path == "" {
		return fmt.Errorf("match requires method and path")
	}
	if f.Response.Status == 0 {
		return fmt.Errorf("response requires a status")
	}
	if f.Match.Predicate != "" {
		program, err := expr.Compile(f.Match.Predicate, expr.AsBool(), expr.AllowUndefinedVariables())
		if err != nil {
			return fmt.Errorf("invalid predicate %q: %w", f.Match.Predicate, err)
		}
		f.program = program
	}
	return nil
}

func key(method, path string) string {
	return strings.ToUpper(method) + " " + path
}
