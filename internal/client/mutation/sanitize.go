package mutation

import (
	"reflect"

	"github.com/iudanet/bookclub/internal/models"
)

// Payload is the set of domain fields of a write.
type Payload map[string]any

// Sanitize drops every field that must not travel to the remote store:
// nil values, empty strings, empty slices and maps, and envelope fields.
// Zero numbers and false are meaningful and kept.
func Sanitize(p Payload) Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		if k == "" || models.IsReservedField(k) || isEmpty(v) {
			continue
		}
		out[k] = v
	}
	return out
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
