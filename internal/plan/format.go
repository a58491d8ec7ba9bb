package plan

import (
	"fmt"
	"strings"
)

// Style decorates the tokens of a rendered plan. Nil functions leave the
// token unchanged.
type Style struct {
	Keyword func(a ...any) string
	Binding func(a ...any) string
	Shape   func(a ...any) string
}

// Format renders a plan as a single deterministic line, e.g.
//
//	e0.Select(e1 => new Person(name: e1.name) { pets = e1.pets.Map(e2 => new Pet() { name = e2.name }).ToList() })
func Format(e Expr) string { return FormatWith(e, Style{}) }

func FormatWith(e Expr, s Style) string {
	var b strings.Builder
	f := formatter{b: &b, s: s}
	f.expr(e)
	return b.String()
}

type formatter struct {
	b *strings.Builder
	s Style
}

func (f formatter) expr(e Expr) {
	switch e := e.(type) {
	case *Input:
		f.b.WriteString(apply(f.s.Binding, e.Name))
	case *Member:
		f.expr(e.From)
		f.b.WriteByte('.')
		f.b.WriteString(e.Name)
	case *Invoke:
		f.b.WriteString(e.Field)
		f.b.WriteByte('(')
		f.expr(e.From)
		f.b.WriteByte(')')
	case *Default:
		f.b.WriteString(apply(f.s.Keyword, "default"))
		fmt.Fprintf(f.b, "(%s)", e.Result)
	case *Construct:
		f.construct(e)
	case *Bind:
		f.construct(e.Base)
		f.b.WriteString(" { ")
		for i, a := range e.Assignments {
			if i > 0 {
				f.b.WriteString(", ")
			}
			f.b.WriteString(a.Member.Name)
			f.b.WriteString(" = ")
			f.expr(a.Value)
		}
		f.b.WriteString(" }")
	case *Guard:
		f.expr(e.Subject)
		f.b.WriteString(" == ")
		f.b.WriteString(apply(f.s.Keyword, "nil"))
		f.b.WriteString(" ? ")
		f.b.WriteString(apply(f.s.Keyword, "nil"))
		f.b.WriteString(" : ")
		f.expr(e.Body)
	case *Map:
		f.expr(e.Source)
		f.b.WriteByte('.')
		f.b.WriteString(apply(f.s.Keyword, e.Mode.String()))
		f.b.WriteByte('(')
		f.b.WriteString(apply(f.s.Binding, e.Elem.Name))
		f.b.WriteString(" => ")
		f.expr(e.Body)
		f.b.WriteByte(')')
	case *Materialize:
		f.expr(e.Source)
		f.b.WriteString(".")
		f.b.WriteString(apply(f.s.Keyword, "To"+string(e.Kind)))
		f.b.WriteString("()")
	case *Distinct:
		f.expr(e.Source)
		f.b.WriteString(".")
		f.b.WriteString(apply(f.s.Keyword, "Distinct"))
		f.b.WriteString("()")
	default:
		fmt.Fprintf(f.b, "<%T>", e)
	}
}

func (f formatter) construct(c *Construct) {
	f.b.WriteString(apply(f.s.Keyword, "new"))
	f.b.WriteByte(' ')
	f.b.WriteString(apply(f.s.Shape, c.Shape.Name()))
	f.b.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			f.b.WriteString(", ")
		}
		f.b.WriteString(a.Param)
		f.b.WriteString(": ")
		f.expr(a.Value)
	}
	f.b.WriteByte(')')
}

func apply(fn func(a ...any) string, s string) string {
	if fn == nil {
		return s
	}
	return fn(s)
}
