package subgraph

// flatten expands one entity object into flat records keyed by column name.
// Nested lists are exploded one record per element; an empty or missing list
// contributes a single record with nulls so the parent row survives.
func flatten(obj map[string]any, sel *selection, prefix string) []map[string]any {
	records := []map[string]any{{}}
	for _, field := range sel.children {
		name := prefix + "_" + field.name
		value := obj[field.name]
		if field.leaf() {
			for _, rec := range records {
				rec[name] = scalar(value)
			}
			continue
		}

		var nested []map[string]any
		switch v := value.(type) {
		case map[string]any:
			nested = flatten(v, field, name)
		case []any:
			for _, elem := range v {
				if m, ok := elem.(map[string]any); ok {
					nested = append(nested, flatten(m, field, name)...)
				}
			}
		}
		if len(nested) == 0 {
			nested = []map[string]any{{}}
		}
		records = cross(records, nested)
	}
	return records
}

func cross(left, right []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			rec := make(map[string]any, len(l)+len(r))
			for k, v := range l {
				rec[k] = v
			}
			for k, v := range r {
				rec[k] = v
			}
			out = append(out, rec)
		}
	}
	return out
}

// scalar drops nested values that were selected as leaves.
func scalar(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		return nil
	default:
		return v
	}
}
