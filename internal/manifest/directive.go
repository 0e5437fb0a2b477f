package manifest

import (
	"fmt"
	"sort"
	"strings"
)

// Group is the environment a dependency is declared for. Combined groups
// are written comma-separated in sorted order, e.g. "development,test".
type Group string

const (
	GroupNone        Group = ""
	GroupRuntime     Group = "runtime"
	GroupDevelopment Group = "development"
	GroupTest        Group = "test"
)

// NormalizeGroup canonicalizes a group spec. Symbols, spaces and order do not
// matter; "none", "default" and "" all mean runtime.
func NormalizeGroup(spec string) Group {
	fields := strings.FieldsFunc(spec, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	seen := make(map[string]bool)
	var names []string
	for _, f := range fields {
		f = strings.Trim(strings.TrimSpace(f), `:'"`)
		switch f {
		case "", "none", "default", "runtime":
			continue
		}
		if !seen[f] {
			seen[f] = true
			names = append(names, f)
		}
	}
	if len(names) == 0 {
		return GroupRuntime
	}
	sort.Strings(names)
	return Group(strings.Join(names, ","))
}

// IsRuntime reports whether g renders as an ungrouped declaration.
func (g Group) IsRuntime() bool {
	return NormalizeGroup(string(g)) == GroupRuntime
}

// header renders the opening line of a group block.
func (g Group) header() string {
	names := strings.Split(string(NormalizeGroup(string(g))), ",")
	syms := make([]string, len(names))
	for i, n := range names {
		syms[i] = ":" + n
	}
	return "group " + strings.Join(syms, ", ") + " do"
}

// Key identifies a directive. Two directives with the same key are the same
// declaration.
type Key struct {
	Name  string
	Group Group
}

func (k Key) String() string {
	return fmt.Sprintf("%s (%s)", k.Name, k.Group)
}

// Directive is one dependency declaration.
type Directive struct {
	Name     string
	Versions []string // Version constraints, e.g. "~> 1.2"
	Group    Group
	Options  []string // Raw trailing options, e.g. "require: false"
}

// Key returns the directive's normalized key.
func (d Directive) Key() Key {
	return Key{Name: d.Name, Group: NormalizeGroup(string(d.Group))}
}

// Render returns the declaration line without indentation or newline.
func (d Directive) Render() string {
	var b strings.Builder
	b.WriteString("gem '")
	b.WriteString(d.Name)
	b.WriteString("'")
	for _, v := range d.Versions {
		b.WriteString(", '")
		b.WriteString(v)
		b.WriteString("'")
	}
	for _, o := range d.Options {
		b.WriteString(", ")
		b.WriteString(o)
	}
	return b.String()
}

// Validate checks that the directive can be rendered.
func (d Directive) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("dependency name is required")
	}
	if strings.ContainsAny(d.Name, "'\"\n ") {
		return fmt.Errorf("invalid dependency name %q", d.Name)
	}
	for _, v := range d.Versions {
		if strings.ContainsAny(v, "'\n") {
			return fmt.Errorf("invalid version constraint %q for %s", v, d.Name)
		}
	}
	return nil
}
