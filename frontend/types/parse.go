package types

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseError reports a malformed type string.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse type %q at %d: %s", e.Input, e.Pos, e.Msg)
}

// Parse reads a type string in signature/docblock syntax, such as
// `?Foo`, `int|false`, `array<string, list<int>>`, `array{a: int, b?: string}`,
// `callable(int, string=): bool` or `Box<T>&Countable`.
func Parse(s string) (Union, error) {
	return ParseWithTemplates(s, nil)
}

// ParseWithTemplates is Parse where bare names found in templates resolve to
// the corresponding template placeholder rather than a class.
func ParseWithTemplates(s string, templates map[string]Template) (Union, error) {
	p := &typeParser{input: s, templates: templates}
	p.skipSpace()
	u, err := p.union()
	if err != nil {
		return Union{}, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return Union{}, p.errorf("unexpected %q", p.input[p.pos:])
	}
	return u, nil
}

// MustParse is Parse for type strings known to be valid. It panics otherwise.
func MustParse(s string) Union {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

type typeParser struct {
	input     string
	pos       int
	templates map[string]Template
}

func (p *typeParser) errorf(format string, args ...any) error {
	return &ParseError{Input: p.input, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *typeParser) accept(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *typeParser) expect(c byte) error {
	if !p.accept(c) {
		return p.errorf("expected %q", c)
	}
	return nil
}

func (p *typeParser) union() (Union, error) {
	var atomics []Atomic
	for {
		part, err := p.intersection()
		if err != nil {
			return Union{}, err
		}
		atomics = append(atomics, part...)
		if !p.accept('|') {
			break
		}
	}
	return NewUnion(atomics...), nil
}

func (p *typeParser) intersection() ([]Atomic, error) {
	first, err := p.nullable()
	if err != nil {
		return nil, err
	}
	if p.peek() != '&' {
		return first, nil
	}
	if len(first) != 1 {
		return nil, p.errorf("only class-likes can be intersected")
	}
	head, ok := first[0].(Named)
	if !ok {
		return nil, p.errorf("only class-likes can be intersected, got %s", first[0])
	}
	for p.accept('&') {
		next, err := p.nullable()
		if err != nil {
			return nil, err
		}
		named, ok := next[0].(Named)
		if len(next) != 1 || !ok {
			return nil, p.errorf("only class-likes can be intersected")
		}
		head.Extra = append(head.Extra, named.Parts()...)
	}
	return []Atomic{head}, nil
}

func (p *typeParser) nullable() ([]Atomic, error) {
	if p.accept('?') {
		inner, err := p.atom()
		if err != nil {
			return nil, err
		}
		return append(inner, Null{}), nil
	}
	return p.atom()
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '_' || c == '\\' || c == '-' || unicode.IsLetter(rune(c)) || c >= 0x80 || p.pos > start && unicode.IsDigit(rune(c)) {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *typeParser) atom() ([]Atomic, error) {
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		u, err := p.union()
		if err != nil {
			return nil, err
		}
		return u.atomics, p.expect(')')
	case c == '\'' || c == '"':
		s, err := p.quoted()
		if err != nil {
			return nil, err
		}
		return []Atomic{LitString{s}}, nil
	case c == '-' || c >= '0' && c <= '9':
		return p.number()
	case c == 0:
		return nil, p.errorf("unexpected end of type")
	}
	name := p.ident()
	if name == "" {
		return nil, p.errorf("unexpected %q", c)
	}
	if t, ok := p.templates[name]; ok {
		return []Atomic{t}, nil
	}
	switch strings.ToLower(name) {
	case "int", "integer", "positive-int", "negative-int", "non-negative-int", "non-positive-int":
		return []Atomic{Int{}}, nil
	case "float", "double":
		return []Atomic{Float{}}, nil
	case "string", "non-empty-string", "numeric-string", "class-string", "lowercase-string", "callable-string", "literal-string":
		return []Atomic{String{}}, nil
	case "bool", "boolean":
		return []Atomic{Bool{}}, nil
	case "true":
		return []Atomic{LitBool{true}}, nil
	case "false":
		return []Atomic{LitBool{false}}, nil
	case "null":
		return []Atomic{Null{}}, nil
	case "void":
		return []Atomic{Void{}}, nil
	case "never", "never-return", "never-returns", "no-return", "noreturn":
		return []Atomic{Never{}}, nil
	case "mixed", "resource", "closed-resource":
		return []Atomic{Mixed{}}, nil
	case "object":
		return []Atomic{Object{}}, nil
	case "array-key":
		return []Atomic{Int{}, String{}}, nil
	case "scalar":
		return []Atomic{Int{}, Float{}, String{}, Bool{}}, nil
	case "numeric":
		return []Atomic{Int{}, Float{}, String{}}, nil
	case "iterable":
		return []Atomic{Array{Key: MixedType(), Value: MixedType()}, Named{Name: "Traversable"}}, nil
	case "array", "non-empty-array", "associative-array":
		return p.array()
	case "list", "non-empty-list":
		return p.list()
	case "callable", "pure-callable":
		return p.callable()
	}
	named := Named{Name: strings.TrimPrefix(name, "\\")}
	if p.accept('<') {
		for {
			param, err := p.union()
			if err != nil {
				return nil, err
			}
			named.Params = append(named.Params, param)
			if !p.accept(',') {
				break
			}
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
	}
	return []Atomic{named}, nil
}

func (p *typeParser) quoted() (string, error) {
	q := p.input[p.pos]
	start := p.pos
	p.pos++
	sb := &strings.Builder{}
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.input):
			sb.WriteByte(p.input[p.pos+1])
			p.pos += 2
		case c == q:
			p.pos++
			return sb.String(), nil
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	p.pos = start
	return "", p.errorf("unterminated string literal")
}

func (p *typeParser) number() ([]Atomic, error) {
	start := p.pos
	if p.input[p.pos] == '-' {
		p.pos++
	}
	isFloat := false
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '.' && !isFloat {
			isFloat = true
		} else if c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	lit := p.input[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, p.errorf("bad float literal %q", lit)
		}
		return []Atomic{LitFloat{f}}, nil
	}
	n, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		return nil, p.errorf("bad int literal %q", lit)
	}
	return []Atomic{LitInt{n}}, nil
}

func (p *typeParser) array() ([]Atomic, error) {
	switch {
	case p.accept('<'):
		first, err := p.union()
		if err != nil {
			return nil, err
		}
		if p.accept('>') {
			return []Atomic{Array{Key: NewUnion(Int{}, String{}), Value: first}}, nil
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		value, err := p.union()
		if err != nil {
			return nil, err
		}
		if first.IsNever() && value.IsNever() {
			return []Atomic{Shape{}}, p.expect('>')
		}
		return []Atomic{Array{Key: first, Value: value}}, p.expect('>')
	case p.accept('{'):
		return p.shape()
	}
	return []Atomic{Array{Key: NewUnion(Int{}, String{}), Value: MixedType()}}, nil
}

func (p *typeParser) shape() ([]Atomic, error) {
	var shape Shape
	if p.accept('}') {
		return []Atomic{shape}, nil
	}
	for i := 0; ; i++ {
		entry, err := p.shapeEntry(i)
		if err != nil {
			return nil, err
		}
		shape.Entries = append(shape.Entries, entry)
		if !p.accept(',') {
			break
		}
		if p.peek() == '}' {
			break
		}
	}
	return []Atomic{shape}, p.expect('}')
}

// shapeEntry reads `key: type`, `key?: type` or a positional `type`.
func (p *typeParser) shapeEntry(i int) (ShapeEntry, error) {
	save := p.pos
	var key string
	isInt := false
	switch c := p.peek(); {
	case c == '\'' || c == '"':
		k, err := p.quoted()
		if err != nil {
			return ShapeEntry{}, err
		}
		key = k
	case c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.input) && p.input[p.pos] >= '0' && p.input[p.pos] <= '9' {
			p.pos++
		}
		key, isInt = p.input[start:p.pos], true
	default:
		key = p.ident()
	}
	optional := p.accept('?')
	if key == "" || !p.accept(':') {
		// positional entry
		p.pos = save
		t, err := p.union()
		if err != nil {
			return ShapeEntry{}, err
		}
		return ShapeEntry{Key: strconv.Itoa(i), IntKey: true, Type: t}, nil
	}
	t, err := p.union()
	if err != nil {
		return ShapeEntry{}, err
	}
	return ShapeEntry{Key: key, IntKey: isInt, Type: t, Optional: optional}, nil
}

func (p *typeParser) list() ([]Atomic, error) {
	if !p.accept('<') {
		return []Atomic{List{Value: MixedType()}}, nil
	}
	value, err := p.union()
	if err != nil {
		return nil, err
	}
	return []Atomic{List{Value: value}}, p.expect('>')
}

func (p *typeParser) callable() ([]Atomic, error) {
	if !p.accept('(') {
		return []Atomic{Callable{}}, nil
	}
	var c Callable
	if !p.accept(')') {
		for {
			var param CallableParam
			if p.accept('.') {
				if !p.accept('.') || !p.accept('.') {
					return nil, p.errorf("expected '...'")
				}
				c.Variadic = true
			}
			t, err := p.union()
			if err != nil {
				return nil, err
			}
			param.Type = t
			param.ByRef = p.accept('&')
			param.Optional = p.accept('=')
			c.Params = append(c.Params, param)
			if !p.accept(',') {
				break
			}
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
	}
	if p.accept(':') {
		ret, err := p.nullable()
		if err != nil {
			return nil, err
		}
		c.Return = NewUnion(ret...)
	}
	return []Atomic{c}, nil
}
