// Package selector implements fully-qualified element names and the
// patterns used to address one or many of them from the control plane.
package selector

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/watthouse/agent/models"
)

// Kind discriminates the three pipeline element families.
type Kind int

const (
	// KindAny matches an empty kind component in a Pattern.
	KindAny Kind = iota
	KindSource
	KindTransform
	KindOutput
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindTransform:
		return "transform"
	case KindOutput:
		return "output"
	default:
		return ""
	}
}

var kindAliases = map[string]Kind{
	"source": KindSource, "src": KindSource, "sources": KindSource,
	"transform": KindTransform, "tra": KindTransform, "transforms": KindTransform,
	"output": KindOutput, "out": KindOutput, "outputs": KindOutput,
}

// ParseKind resolves a kind literal or alias. An empty string parses as
// KindAny.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindAny, nil
	}
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	return KindAny, fmt.Errorf("selector: unknown kind %q", s)
}

// Name is the fully-qualified address of one pipeline element.
type Name struct {
	Kind    Kind
	Plugin  models.PluginName
	Element models.ElementName
}

func (n Name) String() string {
	return fmt.Sprintf("%s/%s/%s", n.Kind, n.Plugin, n.Element)
}

// component is one segment of a Pattern: either "any" (empty kind only),
// a literal, or a glob (which may itself just be "*").
type component struct {
	literal string
	g       glob.Glob
	isGlob  bool
}

func (c component) matches(s string) bool {
	if c.isGlob {
		return c.g.Match(s)
	}
	return c.literal == s
}

func newComponent(s string) (component, error) {
	if s == "" || s == "*" || strings.ContainsAny(s, "*?[]{}") {
		g, err := glob.Compile(s)
		if err != nil {
			return component{}, fmt.Errorf("selector: invalid pattern component %q: %w", s, err)
		}
		return component{g: g, isGlob: true}, nil
	}
	return component{literal: s}, nil
}

// Pattern selects zero or more Names. Each component is either an exact
// literal, a glob (most commonly just "*"), or, for Kind, empty meaning
// "any kind".
type Pattern struct {
	hasKind bool
	kind    Kind
	plugin  component
	element component
}

// Parse reads a pattern from "kind/plugin/element", "kind", or
// "kind/*/*"-style strings, with kind accepting the short aliases
// src/tra/out in addition to the full names.
func Parse(s string) (Pattern, error) {
	parts := strings.Split(s, "/")
	if len(parts) > 3 {
		return Pattern{}, fmt.Errorf("selector: pattern %q has more than three components", s)
	}
	var kindStr, pluginStr, elementStr string
	switch len(parts) {
	case 1:
		kindStr = parts[0]
		pluginStr, elementStr = "*", "*"
	case 2:
		kindStr, pluginStr = parts[0], parts[1]
		elementStr = "*"
	case 3:
		kindStr, pluginStr, elementStr = parts[0], parts[1], parts[2]
	default:
		return Pattern{}, fmt.Errorf("selector: empty pattern")
	}

	var p Pattern
	if kindStr != "" {
		k, err := ParseKind(kindStr)
		if err != nil {
			return Pattern{}, err
		}
		p.hasKind = true
		p.kind = k
	}
	var err error
	if p.plugin, err = newComponent(pluginStr); err != nil {
		return Pattern{}, err
	}
	if p.element, err = newComponent(elementStr); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

// MustParse is Parse, panicking on error. Intended for constant patterns
// at package-init time, not for parsing control-plane input.
func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether name satisfies the pattern.
func (p Pattern) Match(name Name) bool {
	if p.hasKind && p.kind != name.Kind {
		return false
	}
	if !p.plugin.matches(string(name.Plugin)) {
		return false
	}
	return p.element.matches(string(name.Element))
}

// HasKind reports whether the pattern pins a specific kind, as opposed
// to matching elements of all three kinds.
func (p Pattern) HasKind() bool { return p.hasKind }
