// Package expr implements the interpolation grammar used inside document
// scalars. A reference names an entity and an optional path into its
// properties:
//
//	${entity}
//	${entity.field.subfield}
//	${entity.list[0].field}
//
// Identifiers match [A-Za-z_][A-Za-z0-9_]* and indexes are non-negative
// integers. A scalar may mix literal text with any number of references;
// parsing splits it into ordered parts so the original text can always be
// reassembled byte for byte.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a reference path. A segment with a non-empty Name
// descends into a mapping field; otherwise Index selects a sequence element.
type Segment struct {
	Name  string
	Index int
}

// IsIndex reports whether the segment selects a sequence element.
func (s Segment) IsIndex() bool {
	return s.Name == ""
}

func (s Segment) String() string {
	if s.IsIndex() {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Name
}

// Reference is a parsed occurrence of the ${...} form: the entity it targets
// and the path into that entity's value, possibly empty.
type Reference struct {
	Entity string
	Path   []Segment
}

// String renders the reference in canonical ${...} form.
func (r Reference) String() string {
	var b strings.Builder
	b.WriteString("${")
	b.WriteString(r.Entity)
	for _, s := range r.Path {
		if !s.IsIndex() {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	b.WriteByte('}')
	return b.String()
}

// FieldPath renders the path portion without the entity, such as
// "passwords[0].value". It is empty for a bare entity reference.
func (r Reference) FieldPath() string {
	var b strings.Builder
	for i, s := range r.Path {
		if !s.IsIndex() && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// Part is one piece of a parsed scalar: either literal text or a single
// reference. Raw always holds the exact source slice the part came from.
type Part struct {
	Raw     string
	Literal string
	Ref     *Reference
}

// IsRef reports whether the part is a reference.
func (p Part) IsRef() bool {
	return p.Ref != nil
}

// Template is a scalar parsed against the interpolation grammar.
type Template struct {
	raw   string
	parts []Part
}

// Raw returns the original scalar text.
func (t *Template) Raw() string {
	return t.raw
}

// Parts returns the ordered literal and reference parts.
func (t *Template) Parts() []Part {
	return t.parts
}

// IsLiteral reports whether the scalar contains no references at all.
func (t *Template) IsLiteral() bool {
	for _, p := range t.parts {
		if p.IsRef() {
			return false
		}
	}
	return true
}

// References returns every reference in the template, left to right.
func (t *Template) References() []Reference {
	var refs []Reference
	for _, p := range t.parts {
		if p.IsRef() {
			refs = append(refs, *p.Ref)
		}
	}
	return refs
}

// SingleReference reports whether the whole scalar is exactly one reference
// with no surrounding literal text, and returns it if so. Such scalars may
// resolve to non-scalar values during interpolation.
func (t *Template) SingleReference() (Reference, bool) {
	if len(t.parts) == 1 && t.parts[0].IsRef() {
		return *t.parts[0].Ref, true
	}
	return Reference{}, false
}

// SyntaxError reports a scalar that opens a ${ sequence it cannot finish
// legally. Pos is the byte offset of the offending character.
type SyntaxError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid reference at offset %d in %q: %s", e.Pos, e.Input, e.Msg)
}

// ParseTemplate splits a scalar into literal and reference parts. Text
// without ${ always parses as a single literal; once a ${ opens, the
// content up to the closing brace must match the reference grammar.
func ParseTemplate(s string) (*Template, error) {
	t := &Template{raw: s}
	pos := 0
	for pos < len(s) {
		open := strings.Index(s[pos:], "${")
		if open < 0 {
			t.parts = append(t.parts, Part{Raw: s[pos:], Literal: s[pos:]})
			break
		}
		open += pos
		if open > pos {
			t.parts = append(t.parts, Part{Raw: s[pos:open], Literal: s[pos:open]})
		}
		ref, end, err := parseReference(s, open)
		if err != nil {
			return nil, err
		}
		t.parts = append(t.parts, Part{Raw: s[open:end], Ref: ref})
		pos = end
	}
	if len(t.parts) == 0 {
		t.parts = append(t.parts, Part{Raw: "", Literal: ""})
	}
	return t, nil
}

// parseReference consumes one ${...} form starting at the opening dollar
// sign and returns the offset just past the closing brace.
func parseReference(s string, start int) (*Reference, int, error) {
	pos := start + len("${")
	name, next, err := parseIdent(s, pos)
	if err != nil {
		return nil, 0, err
	}
	ref := &Reference{Entity: name}
	pos = next

	for {
		if pos >= len(s) {
			return nil, 0, &SyntaxError{Input: s, Pos: pos, Msg: "unterminated reference"}
		}
		switch s[pos] {
		case '}':
			return ref, pos + 1, nil
		case '.':
			name, next, err := parseIdent(s, pos+1)
			if err != nil {
				return nil, 0, err
			}
			ref.Path = append(ref.Path, Segment{Name: name})
			pos = next
		case '[':
			idx, next, err := parseIndex(s, pos)
			if err != nil {
				return nil, 0, err
			}
			ref.Path = append(ref.Path, Segment{Index: idx})
			pos = next
		default:
			return nil, 0, &SyntaxError{
				Input: s,
				Pos:   pos,
				Msg:   fmt.Sprintf("unexpected character %q", s[pos]),
			}
		}
	}
}

func parseIdent(s string, pos int) (string, int, error) {
	if pos >= len(s) || !isIdentStart(s[pos]) {
		return "", 0, &SyntaxError{Input: s, Pos: pos, Msg: "expected identifier"}
	}
	end := pos + 1
	for end < len(s) && isIdentChar(s[end]) {
		end++
	}
	return s[pos:end], end, nil
}

// parseIndex consumes a [n] form starting at the opening bracket. Only plain
// non-negative decimal integers are allowed.
func parseIndex(s string, pos int) (int, int, error) {
	end := pos + 1
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == pos+1 {
		return 0, 0, &SyntaxError{Input: s, Pos: pos + 1, Msg: "expected index digit"}
	}
	if end >= len(s) || s[end] != ']' {
		return 0, 0, &SyntaxError{Input: s, Pos: end, Msg: "expected closing bracket"}
	}
	idx, err := strconv.Atoi(s[pos+1 : end])
	if err != nil {
		return 0, 0, &SyntaxError{Input: s, Pos: pos + 1, Msg: "index out of range"}
	}
	return idx, end + 1, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
