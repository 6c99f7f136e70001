package spec

import (
	"fmt"
	"strings"

	"github.com/goplus/spk/pkgs/arch"
	"github.com/goplus/spk/pkgs/compiler"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

// SyntaxError reports a malformed spec string.
type SyntaxError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid spec %q at offset %d: %s", e.Input, e.Pos, e.Msg)
}

// Parse parses a single spec:
//
//	name @1.2:1.4 +debug ~shared foo=bar foo==bar %gcc@12 target=x86_64 ^dep@2
//
// The name may be omitted, which yields an anonymous spec as used in
// conditions and configuration. An empty string is a syntax error.
func Parse(s string) (*Spec, error) {
	specs, err := ParseAll(s)
	if err != nil {
		return nil, err
	}
	switch len(specs) {
	case 0:
		return nil, &SyntaxError{Input: s, Pos: 0, Msg: "expected a spec"}
	case 1:
		return specs[0], nil
	}
	return nil, &SyntaxError{Input: s, Pos: 0, Msg: fmt.Sprintf("expected one spec, got %d", len(specs))}
}

// MustParse is like Parse but panics on error.
func MustParse(s string) *Spec {
	sp, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return sp
}

// ParseAll parses a whitespace separated sequence of specs. A package name
// that does not follow ^ starts a new spec.
func ParseAll(s string) ([]*Spec, error) {
	p := &parser{in: s}
	return p.parse()
}

type parser struct {
	in  string
	pos int
}

func (p *parser) errorf(pos int, format string, args ...any) error {
	return &SyntaxError{Input: p.in, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool { return p.pos >= len(p.in) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.in[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.in[p.pos]) {
		p.pos++
	}
}

func (p *parser) scan(ok func(byte) bool) string {
	start := p.pos
	for !p.eof() && ok(p.in[p.pos]) {
		p.pos++
	}
	return p.in[start:p.pos]
}

func (p *parser) parse() ([]*Spec, error) {
	var (
		specs  []*Spec
		root   *Spec // spec receiving ^ dependencies
		target *Spec // spec receiving attributes
	)
	ensure := func() {
		if target == nil {
			root = &Spec{}
			target = root
			specs = append(specs, root)
		}
	}
	for {
		p.skipSpace()
		if p.eof() {
			return specs, nil
		}
		start := p.pos
		switch c := p.peek(); {
		case c == '^':
			p.pos++
			p.skipSpace()
			ensure()
			name := p.scan(isNameChar)
			if name == "" || p.peek() == '=' {
				return nil, p.errorf(p.pos, "expected a package name after ^")
			}
			if d, ok := root.Deps[name]; ok {
				target = d.Spec
			} else {
				target = New(name)
				root.AddDep(&Dependency{Spec: target})
			}
		case c == '@':
			p.pos++
			ensure()
			vl, err := p.versions()
			if err != nil {
				return nil, err
			}
			l, ok := target.Versions.Intersect(vl)
			if !ok {
				return nil, p.errorf(start, "version @%s conflicts with @%s", vl, target.Versions)
			}
			target.Versions = l
		case c == '+' || c == '~':
			p.pos++
			ensure()
			name := p.scan(isNameChar)
			if name == "" {
				return nil, p.errorf(p.pos, "expected a variant name after %q", c)
			}
			if err := p.setVariant(target, name, variant.BoolValue(c == '+'), start); err != nil {
				return nil, err
			}
		case c == '%':
			p.pos++
			ensure()
			name := p.scan(isNameChar)
			if name == "" {
				return nil, p.errorf(p.pos, "expected a compiler name after %%")
			}
			cs := compiler.Spec{Name: name}
			if p.peek() == '@' {
				p.pos++
				vl, err := p.versions()
				if err != nil {
					return nil, err
				}
				cs.Versions = vl
			}
			if target.Compiler != nil {
				merged, err := target.Compiler.Merge(cs)
				if err != nil {
					return nil, p.errorf(start, "%v", err)
				}
				cs = merged
			}
			target.Compiler = &cs
		case isNameChar(c):
			word := p.scan(isNameChar)
			if p.peek() != '=' {
				target = New(word)
				root = target
				specs = append(specs, root)
				continue
			}
			p.pos++
			propagate := false
			if p.peek() == '=' {
				p.pos++
				propagate = true
			}
			ensure()
			val, err := p.value()
			if err != nil {
				return nil, err
			}
			if err := p.setKey(target, word, val, propagate, start); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf(p.pos, "unexpected character %q", c)
		}
	}
}

func (p *parser) versions() (version.List, error) {
	start := p.pos
	tok := p.scan(isVersionChar)
	if tok == "" {
		return version.List{}, p.errorf(start, "expected a version after @")
	}
	l, err := version.ParseList(tok)
	if err != nil {
		return version.List{}, p.errorf(start, "%v", err)
	}
	return l, nil
}

func (p *parser) value() (string, error) {
	start := p.pos
	if q := p.peek(); q == '"' || q == '\'' {
		p.pos++
		end := strings.IndexByte(p.in[p.pos:], q)
		if end < 0 {
			return "", p.errorf(start, "unterminated quoted value")
		}
		v := p.in[p.pos : p.pos+end]
		p.pos += end + 1
		return v, nil
	}
	v := p.scan(func(c byte) bool { return !isSpace(c) && c != '^' && c != '%' })
	if v == "" {
		return "", p.errorf(start, "expected a value")
	}
	return v, nil
}

func (p *parser) setVariant(s *Spec, name string, v variant.Value, pos int) error {
	if s.Variants == nil {
		s.Variants = make(variant.Map)
	}
	if old, ok := s.Variants[name]; ok {
		merged, err := variant.Merge(name, old, v)
		if err != nil {
			return p.errorf(pos, "%v", err)
		}
		v = merged
	}
	s.Variants[name] = v
	return nil
}

func (p *parser) setKey(s *Spec, key, val string, propagate bool, pos int) error {
	switch key {
	case "arch", "architecture":
		a, err := arch.Parse(val)
		if err != nil {
			return p.errorf(pos, "%v", err)
		}
		return p.setArch(s, a, pos)
	case "platform":
		return p.setArch(s, arch.Arch{Platform: val}, pos)
	case "os":
		return p.setArch(s, arch.Arch{OS: val}, pos)
	case "target":
		return p.setArch(s, arch.Arch{Target: val}, pos)
	}
	if IsFlag(key) {
		s.Flags = s.Flags.Merge(Flags{key: strings.Fields(val)})
		return nil
	}
	v := variant.StringValue(val)
	v.Propagate = propagate
	return p.setVariant(s, key, v, pos)
}

func (p *parser) setArch(s *Spec, a arch.Arch, pos int) error {
	merged, err := s.Arch.Merge(a)
	if err != nil {
		return p.errorf(pos, "%v", err)
	}
	s.Arch = merged
	return nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isNameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c == '_' || c == '-' || c == '.'
}

func isVersionChar(c byte) bool {
	return isNameChar(c) || c == ':' || c == ',' || c == '='
}

func quoteValue(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t'\"^%") {
		return s
	}
	if strings.Contains(s, `"`) {
		return "'" + s + "'"
	}
	return `"` + s + `"`
}
