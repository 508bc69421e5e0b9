package subgraph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OrderDirection controls result ordering on the ordering field.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// Operator is a filter suffix understood by Graph Node.
type Operator string

const (
	OpEq  Operator = ""
	OpLT  Operator = "_lt"
	OpGT  Operator = "_gt"
	OpLTE Operator = "_lte"
	OpGTE Operator = "_gte"
	OpIn  Operator = "_in"
)

// CursorField is the entity field every page is keyed on.
const CursorField = "id"

// Condition is a single `where` clause, e.g. timestamp_gte: 1672531200.
type Condition struct {
	Field string
	Op    Operator
	Value any
}

// Query describes one entity collection query against a subgraph.
type Query struct {
	Entity         string
	OrderBy        string
	OrderDirection OrderDirection
	// First caps the total number of records across all pages.
	First  int
	Where  []Condition
	Fields []string // dotted paths, e.g. "market.inputToken.symbol"
}

// Validate reports structural problems before anything hits the wire.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Entity) == "" {
		return fmt.Errorf("subgraph: query entity is required")
	}
	if q.First <= 0 {
		return fmt.Errorf("subgraph: query %s: first must be positive, got %d", q.Entity, q.First)
	}
	if len(q.Fields) == 0 {
		return fmt.Errorf("subgraph: query %s: no fields selected", q.Entity)
	}
	if strings.Contains(q.OrderBy, ".") {
		return fmt.Errorf("subgraph: query %s: nested order field %q is not supported", q.Entity, q.OrderBy)
	}
	switch q.OrderDirection {
	case "", OrderAsc, OrderDesc:
	default:
		return fmt.Errorf("subgraph: query %s: invalid order direction %q", q.Entity, q.OrderDirection)
	}
	for _, cond := range q.Where {
		if strings.TrimSpace(cond.Field) == "" {
			return fmt.Errorf("subgraph: query %s: filter field is required", q.Entity)
		}
		switch cond.Op {
		case OpEq, OpLT, OpGT, OpLTE, OpGTE, OpIn:
		default:
			return fmt.Errorf("subgraph: query %s: unsupported operator %q", q.Entity, cond.Op)
		}
	}
	return nil
}

// Columns returns the flat column names produced by the query, in field order.
func (q Query) Columns() []string {
	return selectionFor(q.Fields).columns(q.Entity)
}

// page narrows q for one request: it replaces the ordering, adds extra
// conditions (replacing any with the same field and operator) and selects the
// fields the pager reads from each record.
func (q Query) page(orderBy string, dir OrderDirection, extra ...Condition) Query {
	out := q
	out.OrderBy, out.OrderDirection = orderBy, dir
	out.Where = make([]Condition, 0, len(q.Where)+len(extra))
	for _, cond := range q.Where {
		replaced := false
		for _, e := range extra {
			if e.Field == cond.Field && e.Op == cond.Op {
				replaced = true
				break
			}
		}
		if !replaced {
			out.Where = append(out.Where, cond)
		}
	}
	out.Where = append(out.Where, extra...)
	out.Fields = append(append(make([]string, 0, len(q.Fields)+2), q.Fields...), CursorField)
	if orderBy != "" && orderBy != CursorField {
		out.Fields = append(out.Fields, orderBy)
	}
	return out
}

// render produces the GraphQL document for one request of at most first records.
func (q Query) render(first int) (string, error) {
	args := []string{fmt.Sprintf("first: %d", first)}
	if q.OrderBy != "" {
		args = append(args, "orderBy: "+q.OrderBy)
	}
	if q.OrderDirection != "" {
		args = append(args, "orderDirection: "+string(q.OrderDirection))
	}
	if len(q.Where) > 0 {
		where, err := renderWhere(q.Where)
		if err != nil {
			return "", fmt.Errorf("subgraph: query %s: %w", q.Entity, err)
		}
		args = append(args, "where: "+where)
	}

	var b strings.Builder
	b.WriteString("{\n  ")
	b.WriteString(q.Entity)
	b.WriteString("(")
	b.WriteString(strings.Join(args, ", "))
	b.WriteString(") ")
	selectionFor(q.Fields).write(&b, 2)
	b.WriteString("\n}")
	return b.String(), nil
}

func renderWhere(conds []Condition) (string, error) {
	parts := make([]string, 0, len(conds))
	for _, cond := range conds {
		// JSON literals for strings, numbers and lists are valid GraphQL input values.
		raw, err := json.Marshal(cond.Value)
		if err != nil {
			return "", fmt.Errorf("encode filter %s%s: %w", cond.Field, cond.Op, err)
		}
		parts = append(parts, fmt.Sprintf("%s%s: %s", cond.Field, cond.Op, raw))
	}
	return "{" + strings.Join(parts, ", ") + "}", nil
}

// selection is the field tree built from dotted paths, order preserving.
type selection struct {
	name     string
	children []*selection
}

func selectionFor(paths []string) *selection {
	root := &selection{}
	for _, path := range paths {
		node := root
		for _, part := range strings.Split(path, ".") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			node = node.child(part)
		}
	}
	return root
}

func (s *selection) child(name string) *selection {
	for _, c := range s.children {
		if c.name == name {
			return c
		}
	}
	c := &selection{name: name}
	s.children = append(s.children, c)
	return c
}

func (s *selection) leaf() bool { return len(s.children) == 0 }

func (s *selection) write(b *strings.Builder, indent int) {
	pad := strings.Repeat("  ", indent)
	b.WriteString("{\n")
	for _, c := range s.children {
		b.WriteString(pad)
		b.WriteString(c.name)
		if !c.leaf() {
			b.WriteString(" ")
			c.write(b, indent+1)
		}
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat("  ", indent-1))
	b.WriteString("}")
}

func (s *selection) columns(prefix string) []string {
	var cols []string
	for _, c := range s.children {
		name := prefix + "_" + c.name
		if c.leaf() {
			cols = append(cols, name)
			continue
		}
		cols = append(cols, c.columns(name)...)
	}
	return cols
}
