package document

import (
	"fmt"

	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/pkg/api"
)

// Relation is an array of reader ids kept inside a document. Readers other
// than the owner may only add or remove themselves from it. Counter, when
// set, names a field that always holds the length of the array.
type Relation struct {
	Field   string `yaml:"field"`
	Counter string `yaml:"counter,omitempty"`
}

// Apply returns a copy of fields with p applied. The input is never mutated.
// Increment treats a missing field as zero; ArrayUnion/ArrayRemove treat a
// missing field as an empty list. Relation counters are recomputed from
// their arrays afterwards, so they cannot be moved by hand.
func Apply(fields map[string]any, p api.Patch, rels []Relation) (map[string]any, error) {
	out := make(map[string]any, len(fields)+len(p.Set))
	for k, v := range fields {
		out[k] = v
	}

	set, err := Normalize(p.Set)
	if err != nil {
		return nil, err
	}
	for k, v := range set {
		if models.IsReservedField(k) {
			return nil, fmt.Errorf("%w: field %q is read-only", ErrInvalidPatch, k)
		}
		out[k] = v
	}

	for k, delta := range p.Increment {
		if models.IsReservedField(k) {
			return nil, fmt.Errorf("%w: field %q is read-only", ErrInvalidPatch, k)
		}
		var current float64
		if v, ok := out[k]; ok && v != nil {
			n, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("%w: field %q is not a number", ErrInvalidPatch, k)
			}
			current = n
		}
		out[k] = current + float64(delta)
	}

	for k, values := range p.ArrayUnion {
		list, err := stringList(out[k], k)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			if !contains(list, v) {
				list = append(list, v)
			}
		}
		out[k] = toAnyList(list)
	}

	for k, values := range p.ArrayRemove {
		list, err := stringList(out[k], k)
		if err != nil {
			return nil, err
		}
		kept := list[:0]
		for _, v := range list {
			if !contains(values, v) {
				kept = append(kept, v)
			}
		}
		out[k] = toAnyList(kept)
	}

	if err := Recount(out, rels); err != nil {
		return nil, err
	}
	return out, nil
}

// Recount sets every relation counter of fields to the length of its array.
// Documents holding neither the array nor the counter are left alone.
func Recount(fields map[string]any, rels []Relation) error {
	for _, rel := range rels {
		if rel.Counter == "" {
			continue
		}
		_, hasList := fields[rel.Field]
		_, hasCounter := fields[rel.Counter]
		if !hasList && !hasCounter {
			continue
		}
		list, err := stringList(fields[rel.Field], rel.Field)
		if err != nil {
			return err
		}
		fields[rel.Counter] = float64(len(list))
	}
	return nil
}

// CanPatch decides whether actorID may apply p to doc.
// The owner may do anything. Other readers may only add or remove
// themselves from the relation arrays in rels (likes, membership).
func CanPatch(doc api.Document, actorID string, p api.Patch, rels []Relation) bool {
	if actorID == "" {
		return false
	}
	if doc.OwnerID == actorID {
		return true
	}
	if len(p.Set) > 0 || len(p.Increment) > 0 {
		return false
	}
	for field, values := range p.ArrayUnion {
		if !isRelation(rels, field) || !onlySelf(values, actorID) {
			return false
		}
	}
	for field, values := range p.ArrayRemove {
		if !isRelation(rels, field) || !onlySelf(values, actorID) {
			return false
		}
	}
	return true
}

func isRelation(rels []Relation, field string) bool {
	for _, rel := range rels {
		if rel.Field == field {
			return true
		}
	}
	return false
}

// CanDelete reports whether actorID may delete doc.
func CanDelete(doc api.Document, actorID string) bool {
	return actorID != "" && doc.OwnerID == actorID
}

func onlySelf(values []string, actorID string) bool {
	for _, v := range values {
		if v != actorID {
			return false
		}
	}
	return true
}

func stringList(v any, field string) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return append([]string(nil), x...), nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: field %q holds non-string items", ErrInvalidPatch, field)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: field %q is not an array", ErrInvalidPatch, field)
}

func toAnyList(list []string) []any {
	out := make([]any, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
