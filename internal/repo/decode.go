package repo

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/goplus/spk/pkgs/catalog"
	"github.com/goplus/spk/pkgs/spec"
	"github.com/goplus/spk/pkgs/variant"
	"github.com/goplus/spk/pkgs/version"
)

// decodeFile parses src into v. hclparse.Parser caches files by name and
// is not safe for concurrent use, so each call gets its own.
func decodeFile(src []byte, filename string, v any) error {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse %s: %w", filename, diags)
	}
	if diags := gohcl.DecodeBody(f.Body, nil, v); diags.HasErrors() {
		return fmt.Errorf("failed to decode %s: %w", filename, diags)
	}
	return nil
}

// ParsePackages decodes every package defined in an HCL source.
func ParsePackages(src []byte, filename string) ([]*catalog.Package, error) {
	var f packageFile
	if err := decodeFile(src, filename, &f); err != nil {
		return nil, err
	}
	pkgs := make([]*catalog.Package, 0, len(f.Packages))
	for _, b := range f.Packages {
		p, err := b.decode()
		if err != nil {
			return nil, fmt.Errorf("%s: package %s: %w", filename, b.Name, err)
		}
		pkgs = append(pkgs, p)
	}
	return pkgs, nil
}

func (b *packageBlock) decode() (*catalog.Package, error) {
	p := &catalog.Package{
		Name:        b.Name,
		Description: b.Description,
		Targets:     b.Targets,
	}
	for _, vb := range b.Versions {
		v, err := version.Parse(vb.Version)
		if err != nil {
			return nil, err
		}
		p.Versions = append(p.Versions, catalog.VersionDecl{Version: v, Preferred: vb.Preferred, Deprecated: vb.Deprecated})
	}
	for _, vb := range b.Variants {
		when, err := condition(vb.When, vb.WhenAny)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", vb.Name, err)
		}
		kind, def, err := variantDefault(vb.Default, vb.Multi)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", vb.Name, err)
		}
		p.Variants = append(p.Variants, catalog.VariantDecl{
			Definition: variant.Definition{
				Name:        vb.Name,
				Kind:        kind,
				Default:     def,
				Values:      vb.Values,
				Description: vb.Description,
			},
			When: when,
		})
	}
	for _, db := range b.Depends {
		s, err := spec.Parse(db.Spec)
		if err != nil {
			return nil, err
		}
		types, err := spec.ParseDepTypes(db.Type...)
		if err != nil {
			return nil, fmt.Errorf("depends_on %q: %w", db.Spec, err)
		}
		when, err := condition(db.When, db.WhenAny)
		if err != nil {
			return nil, fmt.Errorf("depends_on %q: %w", db.Spec, err)
		}
		p.Dependencies = append(p.Dependencies, catalog.DependencyDecl{Spec: s, Types: types, When: when})
	}
	for _, cb := range b.Conflicts {
		c, err := spec.ParseCondition(cb.Spec)
		if err != nil {
			return nil, err
		}
		when, err := condition(cb.When, cb.WhenAny)
		if err != nil {
			return nil, fmt.Errorf("conflicts %q: %w", cb.Spec, err)
		}
		p.Conflicts = append(p.Conflicts, catalog.Conflict{Constraint: c, When: when, Msg: cb.Msg})
	}
	for _, pb := range b.Provides {
		s, err := spec.Parse(pb.Spec)
		if err != nil {
			return nil, err
		}
		when, err := condition(pb.When, pb.WhenAny)
		if err != nil {
			return nil, fmt.Errorf("provides %q: %w", pb.Spec, err)
		}
		s.Virtual = true
		p.Provides = append(p.Provides, catalog.Provide{Virtual: s, When: when})
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// condition combines a when condition with a when_any disjunction.
func condition(when string, anyOf []string) (spec.Predicate, error) {
	var terms spec.And
	if when != "" {
		p, err := spec.ParseCondition(when)
		if err != nil {
			return nil, err
		}
		terms = append(terms, p)
	}
	if len(anyOf) > 0 {
		var or spec.Or
		for _, w := range anyOf {
			p, err := spec.ParseCondition(w)
			if err != nil {
				return nil, err
			}
			or = append(or, p)
		}
		terms = append(terms, or)
	}
	switch len(terms) {
	case 0:
		return spec.Always{}, nil
	case 1:
		return terms[0], nil
	}
	return terms, nil
}

// variantDefault derives the kind and default of a variant from its HCL
// default: a bool makes a boolean variant, a string a single-valued one
// and a list a multi-valued one.
func variantDefault(v cty.Value, multi bool) (variant.Kind, variant.Value, error) {
	if v.IsNull() {
		if multi {
			return variant.Multi, variant.MultiValue(), nil
		}
		return variant.Bool, variant.BoolValue(false), nil
	}
	if !v.IsWhollyKnown() {
		return 0, variant.Value{}, fmt.Errorf("default must be a constant")
	}
	ty := v.Type()
	switch {
	case ty == cty.Bool:
		if multi {
			return 0, variant.Value{}, fmt.Errorf("multi-valued variant cannot default to a bool")
		}
		return variant.Bool, variant.BoolValue(v.True()), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		var items []string
		for it := v.ElementIterator(); it.Next(); {
			_, e := it.Element()
			s, err := convert.Convert(e, cty.String)
			if err != nil {
				return 0, variant.Value{}, fmt.Errorf("default: %w", err)
			}
			items = append(items, s.AsString())
		}
		return variant.Multi, variant.MultiValue(items...), nil
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return 0, variant.Value{}, fmt.Errorf("default: %w", err)
	}
	if multi {
		return variant.Multi, variant.MultiValue(strings.Split(s.AsString(), ",")...), nil
	}
	return variant.Single, variant.Value{Kind: variant.Single, Items: []string{s.AsString()}}, nil
}

// virtuals returns the names provided by an index entry.
func (p *indexPackage) virtuals() ([]string, error) {
	var out []string
	for _, pb := range p.Provides {
		s, err := spec.Parse(pb.Spec)
		if err != nil {
			return nil, fmt.Errorf("package %s: provides %q: %w", p.Name, pb.Spec, err)
		}
		out = append(out, s.Name)
	}
	return out, nil
}
