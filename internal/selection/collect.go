package selection

import (
	"github.com/hanpama/projector/internal/language"
	"github.com/hanpama/projector/internal/schema"
)

// fieldGroups keeps the fields collected for one selection set, grouped by
// response name in first-occurrence order.
type fieldGroups struct {
	order []string
	index map[string][]*language.Field
}

func (g *fieldGroups) add(responseName string, f *language.Field) {
	if g.index == nil {
		g.index = make(map[string][]*language.Field)
	}
	if _, ok := g.index[responseName]; !ok {
		g.order = append(g.order, responseName)
	}
	g.index[responseName] = append(g.index[responseName], f)
}

// collector gathers the fields of selection sets for one operation.
type collector struct {
	schema *schema.Schema
	doc    *language.QueryDocument
	vars   map[string]any
}

// collect gathers the fields selected on objectType by every selection set
// in sets.
func (c *collector) collect(objectType *schema.Type, sets ...language.SelectionSet) *fieldGroups {
	g := &fieldGroups{}
	visited := make(map[string]bool)
	for _, set := range sets {
		c.collectInto(g, objectType, set, visited)
	}
	return g
}

func (c *collector) collectInto(g *fieldGroups, objectType *schema.Type, set language.SelectionSet, visited map[string]bool) {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *language.Field:
			if !c.included(sel.Directives) {
				continue
			}
			name := sel.Alias
			if name == "" {
				name = sel.Name
			}
			g.add(name, sel)

		case *language.InlineFragment:
			if !c.included(sel.Directives) || !c.applies(objectType, sel.TypeCondition) {
				continue
			}
			c.collectInto(g, objectType, sel.SelectionSet, visited)

		case *language.FragmentSpread:
			if !c.included(sel.Directives) || visited[sel.Name] {
				continue
			}
			visited[sel.Name] = true
			def := c.doc.Fragments.ForName(sel.Name)
			if def == nil || !c.applies(objectType, def.TypeCondition) || !c.included(def.Directives) {
				continue
			}
			c.collectInto(g, objectType, def.SelectionSet, visited)
		}
	}
}

// applies reports whether a fragment with the given type condition applies
// to values of objectType.
func (c *collector) applies(objectType *schema.Type, condition string) bool {
	if condition == "" || condition == objectType.Name {
		return true
	}
	cond := c.schema.Types[condition]
	if cond == nil || !cond.IsAbstract() {
		return false
	}
	for _, t := range c.schema.PossibleTypes(cond) {
		if t.Name == objectType.Name {
			return true
		}
	}
	return false
}

// included evaluates @skip and @include.
func (c *collector) included(dirs language.DirectiveList) bool {
	if d := dirs.ForName("skip"); d != nil && c.directiveIf(d) {
		return false
	}
	if d := dirs.ForName("include"); d != nil && !c.directiveIf(d) {
		return false
	}
	return true
}

func (c *collector) directiveIf(d *language.Directive) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false
	}
	b, _ := literalValue(arg.Value, c.vars).(bool)
	return b
}
