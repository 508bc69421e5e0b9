package subgraph

import (
	"context"
	"fmt"
)

// pager collects the records of one query with cursor filters instead of
// skip, which Graph Node caps at 5000.
type pager struct {
	client *Client
	url    string
	limit  int
	pages  int
	out    []map[string]any
}

func (p *pager) remaining() int { return p.limit - len(p.out) }

func (p *pager) fetch(ctx context.Context, q Query) ([]map[string]any, int, error) {
	first := min(p.client.pageSize, p.remaining())
	doc, err := q.render(first)
	if err != nil {
		return nil, 0, err
	}
	records, err := p.client.fetchPage(ctx, p.url, q.Entity, doc)
	if err != nil {
		return nil, 0, err
	}
	p.pages++
	return records, first, nil
}

func (p *pager) collect(ctx context.Context, q Query) error {
	if q.OrderBy == "" || q.OrderBy == CursorField {
		dir := q.OrderDirection
		if dir == "" {
			dir = OrderAsc
		}
		return p.byID(ctx, q, dir)
	}
	return p.byField(ctx, q)
}

// byID walks q in id order, each page starting after the last id seen.
func (p *pager) byID(ctx context.Context, q Query, dir OrderDirection) error {
	after := OpGT
	if dir == OrderDesc {
		after = OpLT
	}
	var cursor any
	for p.remaining() > 0 {
		var extra []Condition
		if cursor != nil {
			extra = append(extra, Condition{Field: CursorField, Op: after, Value: cursor})
		}
		records, first, err := p.fetch(ctx, q.page(CursorField, dir, extra...))
		if err != nil {
			return err
		}
		p.out = append(p.out, records...)
		if len(records) < first {
			return nil
		}
		if cursor = records[len(records)-1][CursorField]; cursor == nil {
			return fmt.Errorf("%w: %s record without %s", ErrSchemaMismatch, q.Entity, CursorField)
		}
	}
	return nil
}

// byField walks q ordered on a non-unique field. The value closing a full
// page may continue on the next one, so its records are dropped and refetched
// in id order before the walk moves strictly past it.
func (p *pager) byField(ctx context.Context, q Query) error {
	field, dir := q.OrderBy, q.OrderDirection
	if dir == "" {
		dir = OrderAsc
	}
	past := OpGT
	if dir == OrderDesc {
		past = OpLT
	}
	var bound any
	for p.remaining() > 0 {
		var extra []Condition
		if bound != nil {
			extra = append(extra, Condition{Field: field, Op: past, Value: bound})
		}
		records, first, err := p.fetch(ctx, q.page(field, dir, extra...))
		if err != nil {
			return err
		}
		if len(records) < first {
			p.out = append(p.out, records...)
			return nil
		}

		last := records[len(records)-1][field]
		if last == nil {
			return fmt.Errorf("%w: %s record without %s", ErrSchemaMismatch, q.Entity, field)
		}
		for _, rec := range records {
			if !sameValue(rec[field], last) {
				p.out = append(p.out, rec)
			}
		}
		ties := q.page(field, dir, Condition{Field: field, Op: OpEq, Value: last})
		if err := p.byID(ctx, ties, OrderAsc); err != nil {
			return err
		}
		bound = last
	}
	return nil
}

func sameValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}
