package document

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/pkg/api"
)

// Match reports whether doc satisfies every filter of q.
func Match(doc api.Document, q api.Query) bool {
	for _, f := range q.Filters {
		if !matchFilter(doc, f) {
			return false
		}
	}
	return true
}

func matchFilter(doc api.Document, f api.Filter) bool {
	v, ok := Field(doc, f.Field)
	if !ok {
		return false
	}

	if f.Op == api.OpArrayContains {
		for _, item := range toList(v) {
			if c, ok := compare(item, f.Value); ok && c == 0 {
				return true
			}
		}
		return false
	}

	c, ok := compare(v, f.Value)
	if !ok {
		// несравнимые типы: совпадает только !=
		return f.Op == api.OpNotEqual
	}

	switch f.Op {
	case api.OpEqual:
		return c == 0
	case api.OpNotEqual:
		return c != 0
	case api.OpLess:
		return c < 0
	case api.OpLessEqual:
		return c <= 0
	case api.OpGreater:
		return c > 0
	case api.OpGreaterEqual:
		return c >= 0
	}
	return false
}

// Sort orders docs in place by q.OrderBy. Documents missing the field go last;
// ties are broken by id so the order is total.
func Sort(docs []api.Document, q api.Query) {
	field, desc := q.OrderBy, q.Descending
	if field == "" {
		field, desc = models.FieldCreatedAt, true
	}

	slices.SortStableFunc(docs, func(a, b api.Document) int {
		av, aok := Field(a, field)
		bv, bok := Field(b, field)
		switch {
		case !aok && !bok:
			return strings.Compare(a.ID, b.ID)
		case !aok:
			return 1
		case !bok:
			return -1
		}

		c, ok := compare(av, bv)
		if !ok || c == 0 {
			return strings.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
}

// Select filters and orders docs, returning a new slice.
func Select(docs []api.Document, q api.Query) []api.Document {
	out := make([]api.Document, 0, len(docs))
	for _, d := range docs {
		if Match(d, q) {
			out = append(out, d)
		}
	}
	Sort(out, q)
	return out
}

// compare orders two scalar values. Times may be given as time.Time or as
// RFC 3339 strings, numbers as any Go numeric type.
func compare(a, b any) (int, bool) {
	a, b = scalar(a), scalar(b)

	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv), true
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv), true
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, true
			case !av:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func scalar(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	case string:
		if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
			return t
		}
	}
	return v
}

func toList(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	}
	return nil
}
