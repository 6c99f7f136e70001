// Package variant models package build options.
//
// A variant is boolean (+debug / ~debug), single-valued (foobar=baz) or
// multi-valued (fabrics=psm,verbs). Definitions come from package
// definitions. Values come from spec strings, configuration and defaults.
package variant

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Kind is the value domain of a variant.
type Kind int

const (
	Bool Kind = iota
	Single
	Multi
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Single:
		return "single"
	case Multi:
		return "multi"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var (
	// ErrConflict is returned when two values of one variant cannot both hold.
	ErrConflict = errors.New("conflicting variant values")
	// ErrInvalid is returned when a value does not fit its definition.
	ErrInvalid = errors.New("invalid variant value")
)

// Value is an assigned variant value. Items is sorted for multi-valued
// variants and holds one element for single-valued ones.
type Value struct {
	Kind  Kind
	Bool  bool
	Items []string
	// Propagate marks values written name==value, which also apply to
	// dependencies that declare the same variant.
	Propagate bool
}

// BoolValue returns a boolean value.
func BoolValue(b bool) Value { return Value{Kind: Bool, Bool: b} }

// StringValue returns the value of "name=s". A comma separated s yields a
// multi value.
func StringValue(s string) Value {
	items := strings.Split(s, ",")
	if len(items) == 1 {
		return Value{Kind: Single, Items: items}
	}
	return MultiValue(items...)
}

// MultiValue returns a multi-valued value holding items.
func MultiValue(items ...string) Value {
	items = slices.Clone(items)
	slices.Sort(items)
	return Value{Kind: Multi, Items: slices.Compact(items)}
}

// asBool interprets "true"/"false" single values as booleans.
func (v Value) asBool() (bool, bool) {
	switch {
	case v.Kind == Bool:
		return v.Bool, true
	case v.Kind == Single && (v.Items[0] == "true" || v.Items[0] == "True"):
		return true, true
	case v.Kind == Single && (v.Items[0] == "false" || v.Items[0] == "False"):
		return false, true
	}
	return false, false
}

// Equal reports whether v and o hold the same value.
func (v Value) Equal(o Value) bool {
	if v.Kind == Bool || o.Kind == Bool {
		a, aok := v.asBool()
		b, bok := o.asBool()
		return aok && bok && a == b
	}
	return slices.Equal(v.Items, o.Items)
}

// Contains reports whether every item of o is also held by v.
func (v Value) Contains(o Value) bool {
	if v.Kind == Bool || o.Kind == Bool {
		return v.Equal(o)
	}
	for _, it := range o.Items {
		if !slices.Contains(v.Items, it) {
			return false
		}
	}
	return true
}

// Merge combines two values of the same variant. Boolean and single values
// must agree. Multi values are unioned.
func Merge(name string, a, b Value) (Value, error) {
	prop := a.Propagate || b.Propagate
	if a.Kind == Bool || b.Kind == Bool {
		if !a.Equal(b) {
			return Value{}, fmt.Errorf("%w: %s and %s", ErrConflict, a.Format(name), b.Format(name))
		}
		x, _ := a.asBool()
		return Value{Kind: Bool, Bool: x, Propagate: prop}, nil
	}
	if a.Kind == Multi || b.Kind == Multi {
		m := MultiValue(append(slices.Clone(a.Items), b.Items...)...)
		m.Propagate = prop
		return m, nil
	}
	if a.Items[0] != b.Items[0] {
		return Value{}, fmt.Errorf("%w: %s and %s", ErrConflict, a.Format(name), b.Format(name))
	}
	a.Propagate = prop
	return a, nil
}

// Format renders v as it appears in a spec string.
func (v Value) Format(name string) string {
	if b, ok := v.asBool(); ok && v.Kind == Bool {
		if b {
			return "+" + name
		}
		return "~" + name
	}
	sep := "="
	if v.Propagate {
		sep = "=="
	}
	items := make([]string, len(v.Items))
	for i, it := range v.Items {
		items[i] = quote(it)
	}
	return name + sep + strings.Join(items, ",")
}

// String renders the value without its name.
func (v Value) String() string {
	if v.Kind == Bool {
		return fmt.Sprint(v.Bool)
	}
	return strings.Join(v.Items, ",")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t'\"^%@+~=,") {
		if strings.Contains(s, `"`) {
			return "'" + s + "'"
		}
		return `"` + s + `"`
	}
	return s
}

// Definition declares a variant on a package.
type Definition struct {
	Name        string
	Kind        Kind
	Default     Value
	Values      []string // allowed values; empty means any value
	Description string
}

// Normalize checks v against d and returns it converted to d's kind.
func (d *Definition) Normalize(v Value) (Value, error) {
	switch d.Kind {
	case Bool:
		b, ok := v.asBool()
		if !ok {
			return Value{}, fmt.Errorf("%w: %s is a boolean variant, got %q", ErrInvalid, d.Name, v)
		}
		return Value{Kind: Bool, Bool: b, Propagate: v.Propagate}, nil
	case Single:
		if v.Kind != Single {
			return Value{}, fmt.Errorf("%w: %s takes a single value, got %q", ErrInvalid, d.Name, v)
		}
	case Multi:
		if v.Kind == Bool {
			return Value{}, fmt.Errorf("%w: %s takes a list of values, got %q", ErrInvalid, d.Name, v)
		}
		v = Value{Kind: Multi, Items: v.Items, Propagate: v.Propagate}
	}
	if len(d.Values) > 0 {
		for _, it := range v.Items {
			if !slices.Contains(d.Values, it) {
				return Value{}, fmt.Errorf("%w: %s=%s, allowed values are %s", ErrInvalid, d.Name, it, strings.Join(d.Values, ", "))
			}
		}
	}
	return v, nil
}
