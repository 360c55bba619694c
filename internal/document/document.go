// Package document holds the rules shared by every implementation of the
// remote store: field access, query matching and ordering, atomic patch
// application and write authorization.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/bookclub/internal/models"
	"github.com/iudanet/bookclub/pkg/api"
)

// ErrInvalidPatch indicates a patch that cannot be applied to the stored value.
var ErrInvalidPatch = errors.New("invalid patch")

// Field returns a value of doc by name. Envelope names resolve to the
// envelope; everything else is looked up in Fields.
func Field(doc api.Document, name string) (any, bool) {
	switch name {
	case models.FieldID:
		return doc.ID, true
	case models.FieldOwnerID:
		return doc.OwnerID, true
	case models.FieldCreatedAt:
		return doc.CreatedAt, true
	case models.FieldUpdatedAt:
		return doc.UpdatedAt, true
	}
	v, ok := doc.Fields[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Normalize round-trips fields through JSON so that every implementation
// stores the same value types (float64, string, bool, []any, map[string]any).
func Normalize(fields map[string]any) (map[string]any, error) {
	if len(fields) == 0 {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}
	out := make(map[string]any, len(fields))
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	return out, nil
}

// Decode converts a wire document into a typed entity. The envelope always
// wins over same-named keys in Fields.
func Decode[T any](doc api.Document) (T, error) {
	var out T

	merged := make(map[string]any, len(doc.Fields)+4)
	for k, v := range doc.Fields {
		merged[k] = v
	}
	merged[models.FieldID] = doc.ID
	merged[models.FieldOwnerID] = doc.OwnerID
	merged[models.FieldCreatedAt] = doc.CreatedAt
	merged[models.FieldUpdatedAt] = doc.UpdatedAt

	raw, err := json.Marshal(merged)
	if err != nil {
		return out, fmt.Errorf("failed to marshal document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
	}
	return out, nil
}

// Clone returns a deep enough copy of doc for handing out to readers.
func Clone(doc api.Document) api.Document {
	out := doc
	out.Fields = make(map[string]any, len(doc.Fields))
	for k, v := range doc.Fields {
		if list, ok := v.([]any); ok {
			v = append([]any(nil), list...)
		}
		out.Fields[k] = v
	}
	return out
}

// NextUpdatedAt returns a write timestamp that never goes backwards for a
// document: at least now, and strictly after prev.
func NextUpdatedAt(prev, now time.Time) time.Time {
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
