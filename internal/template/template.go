// Package template implements bidirectional mapping between filesystem
// paths and named field values.
//
// A template is a root-relative path pattern containing {key} tokens, for
// example "scenes/{name}_v{version}.{ext}". Keys are typed (see KeySpec):
// string keys match any run of non-slash characters, int keys match digit
// runs and carry optional zero-padding, timestamp keys match the fixed
// YYYY-MM-DD-hh-mm-ss shape used in snapshot file names.
//
// The same template extracts fields from a path (Fields), builds a path
// from fields (Apply), and lists paths on disk whose fields match a partial
// field set (ListMatching).
package template

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrTemplateMismatch is returned when a path does not match the
	// template's structure.
	ErrTemplateMismatch = errors.New("path does not match template")

	// ErrMissingField is returned by Apply when a required key has no
	// value in the supplied fields.
	ErrMissingField = errors.New("missing template field")
)

// KeyType identifies how a template key is matched and formatted.
type KeyType string

const (
	KeyString    KeyType = "str"
	KeyInt       KeyType = "int"
	KeyTimestamp KeyType = "timestamp"
)

// KeySpec describes one template key.
type KeySpec struct {
	Type KeyType
	// Padding is the minimum digit count for int keys; values are
	// zero-padded to this width when a path is built. Ignored for other
	// key types.
	Padding int
}

// Fields maps key names to extracted or supplied values. Int keys carry int
// values, all other keys carry strings.
type Fields map[string]any

// Int returns the named field as an int. Numeric strings are converted.
func (f Fields) Int(name string) (int, bool) {
	v, ok := f[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

// String returns the named field formatted as a string.
func (f Fields) String(name string) (string, bool) {
	v, ok := f[name]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%v", v), true
}

// Clone returns a shallow copy of the fields.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// segment is one piece of a parsed definition: either a literal run or a
// single {key} token.
type segment struct {
	literal string
	key     string // empty for literals
}

// PathTemplate maps between paths under a project root and field values.
type PathTemplate struct {
	root       string
	definition string
	keys       map[string]KeySpec
	segments   []segment
	keyNames   []string // in definition order
	re         *regexp.Regexp
}

var keyNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

const timestampPattern = `\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}`

// New compiles a template definition against a project root. Keys absent
// from specs default to string keys. Duplicate keys in a definition are
// rejected.
func New(root, definition string, specs map[string]KeySpec) (*PathTemplate, error) {
	if root == "" {
		return nil, fmt.Errorf("template root must not be empty")
	}
	segments, err := parseDefinition(definition)
	if err != nil {
		return nil, fmt.Errorf("parsing template %q: %w", definition, err)
	}

	keys := make(map[string]KeySpec)
	for name, spec := range specs {
		if spec.Type == "" {
			spec.Type = KeyString
		}
		keys[name] = spec
	}

	t := &PathTemplate{
		root:       filepath.Clean(root),
		definition: definition,
		keys:       keys,
		segments:   segments,
	}

	var pattern strings.Builder
	pattern.WriteString("^")
	seen := make(map[string]bool)
	for _, seg := range segments {
		if seg.key == "" {
			pattern.WriteString(regexp.QuoteMeta(seg.literal))
			continue
		}
		if seen[seg.key] {
			return nil, fmt.Errorf("template %q: key %q appears more than once", definition, seg.key)
		}
		seen[seg.key] = true
		t.keyNames = append(t.keyNames, seg.key)
		pattern.WriteString("(?P<" + seg.key + ">" + t.keyPattern(seg.key) + ")")
	}
	pattern.WriteString("$")

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, fmt.Errorf("compiling template %q: %w", definition, err)
	}
	t.re = re
	return t, nil
}

func parseDefinition(def string) ([]segment, error) {
	if def == "" {
		return nil, fmt.Errorf("definition must not be empty")
	}
	var segments []segment
	rest := def
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return nil, fmt.Errorf("unmatched '}'")
			}
			segments = append(segments, segment{literal: rest})
			break
		}
		if open > 0 {
			segments = append(segments, segment{literal: rest[:open]})
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, fmt.Errorf("unmatched '{'")
		}
		name := rest[open+1 : open+end]
		if !keyNameRe.MatchString(name) {
			return nil, fmt.Errorf("invalid key name %q", name)
		}
		segments = append(segments, segment{key: name})
		rest = rest[open+end+1:]
	}
	return segments, nil
}

func (t *PathTemplate) keySpec(name string) KeySpec {
	if spec, ok := t.keys[name]; ok {
		return spec
	}
	return KeySpec{Type: KeyString}
}

func (t *PathTemplate) keyPattern(name string) string {
	spec := t.keySpec(name)
	switch spec.Type {
	case KeyInt:
		if spec.Padding > 0 {
			return fmt.Sprintf(`\d{%d,}`, spec.Padding)
		}
		return `\d+`
	case KeyTimestamp:
		return timestampPattern
	default:
		return `[^/]+?`
	}
}

// Definition returns the template's pattern string.
func (t *PathTemplate) Definition() string { return t.definition }

// Root returns the project root the template resolves against.
func (t *PathTemplate) Root() string { return t.root }

// HasKey reports whether the definition contains the named key.
func (t *PathTemplate) HasKey(name string) bool {
	for _, k := range t.keyNames {
		if k == name {
			return true
		}
	}
	return false
}

// Keys returns the key names in definition order.
func (t *PathTemplate) Keys() []string {
	out := make([]string, len(t.keyNames))
	copy(out, t.keyNames)
	return out
}

// Validate reports whether the path matches the template's structure.
func (t *PathTemplate) Validate(path string) bool {
	_, err := t.Fields(path)
	return err == nil
}

// Fields extracts every field encoded in the path. Returns
// ErrTemplateMismatch when the path does not belong to this template.
func (t *PathTemplate) Fields(path string) (Fields, error) {
	rel, err := t.relative(path)
	if err != nil {
		return nil, err
	}
	match := t.re.FindStringSubmatch(rel)
	if match == nil {
		return nil, fmt.Errorf("%w: %s (template %s)", ErrTemplateMismatch, path, t.definition)
	}

	fields := make(Fields, len(t.keyNames))
	for i, name := range t.re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		v, err := t.parseValue(name, match[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTemplateMismatch, path, err)
		}
		fields[name] = v
	}
	return fields, nil
}

// Apply builds the path for the supplied fields. Every key in the
// definition must be present; extra fields are ignored. The result is
// deterministic for a given field set.
func (t *PathTemplate) Apply(fields Fields) (string, error) {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.key == "" {
			b.WriteString(seg.literal)
			continue
		}
		v, ok := fields[seg.key]
		if !ok {
			return "", fmt.Errorf("%w: %q (template %s)", ErrMissingField, seg.key, t.definition)
		}
		s, err := t.formatValue(seg.key, v)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return filepath.Join(t.root, filepath.FromSlash(b.String())), nil
}

// ListMatching returns every path on disk matching the supplied fields,
// with the named ignored keys (and any keys absent from fields) free to
// take any value. Results come back in sorted filesystem-listing order.
func (t *PathTemplate) ListMatching(fields Fields, ignore []string) ([]string, error) {
	ignored := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		ignored[name] = true
	}

	var b strings.Builder
	for _, seg := range t.segments {
		if seg.key == "" {
			b.WriteString(seg.literal)
			continue
		}
		v, ok := fields[seg.key]
		if !ok || ignored[seg.key] {
			b.WriteString("*")
			continue
		}
		s, err := t.formatValue(seg.key, v)
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}

	pattern := filepath.Join(t.root, filepath.FromSlash(b.String()))
	candidates, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("listing paths for %s: %w", pattern, err)
	}

	var out []string
	for _, candidate := range candidates {
		got, err := t.Fields(candidate)
		if err != nil {
			// Glob overmatch: a neighbouring file that happens to fit
			// the wildcard but not the template.
			continue
		}
		if !t.fieldsMatch(fields, got, ignored) {
			continue
		}
		out = append(out, candidate)
	}
	return out, nil
}

// fieldsMatch compares the non-ignored keys of want against got, using the
// formatted string form so int values and their padded encodings compare
// equal.
func (t *PathTemplate) fieldsMatch(want, got Fields, ignored map[string]bool) bool {
	for _, name := range t.keyNames {
		if ignored[name] {
			continue
		}
		wv, ok := want[name]
		if !ok {
			continue // wildcarded
		}
		gv, ok := got[name]
		if !ok {
			return false
		}
		ws, err := t.formatValue(name, wv)
		if err != nil {
			return false
		}
		gs, err := t.formatValue(name, gv)
		if err != nil {
			return false
		}
		if ws != gs {
			return false
		}
	}
	return true
}

func (t *PathTemplate) parseValue(name, raw string) (any, error) {
	if t.keySpec(name).Type == KeyInt {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %v", name, err)
		}
		return n, nil
	}
	return raw, nil
}

func (t *PathTemplate) formatValue(name string, v any) (string, error) {
	spec := t.keySpec(name)
	if spec.Type == KeyInt {
		n, ok := Fields{name: v}.Int(name)
		if !ok {
			return "", fmt.Errorf("key %q: value %v is not an integer", name, v)
		}
		if spec.Padding > 0 {
			return fmt.Sprintf("%0*d", spec.Padding, n), nil
		}
		return strconv.Itoa(n), nil
	}
	return fmt.Sprintf("%v", v), nil
}

// relative converts path to the slash-separated form matched by the
// template's pattern. Paths outside the root never match.
func (t *PathTemplate) relative(path string) (string, error) {
	p := filepath.Clean(path)
	if !filepath.IsAbs(p) {
		p = filepath.Join(t.root, p)
	}
	rel, err := filepath.Rel(t.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside root %s", ErrTemplateMismatch, path, t.root)
	}
	return filepath.ToSlash(rel), nil
}
