package document

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field names the engine reserves inside every stored document. Everything
// else in a document belongs to the caller.
const (
	RevisionField        = "revision"
	RevisionIDField      = "id"
	RevisionCreatedField = "createdAt"
	RevisionHistoryField = "history"

	// Dotted paths used in projections, filters and update operators.
	RevisionIDPath      = RevisionField + "." + RevisionIDField
	RevisionCreatedPath = RevisionField + "." + RevisionCreatedField
	RevisionHistoryPath = RevisionField + "." + RevisionHistoryField

	// UpdatedAtField, when present in an incoming payload, supplies the
	// revision timestamp instead of the wall clock.
	UpdatedAtField = "updatedAt"
)

// DefaultIDField is Mongo's native primary key.
const DefaultIDField = "_id"

// Document is a schemaless record. The engine only interprets the primary
// key field and the "revision" sub-document.
type Document map[string]any

// AsMap unwraps v into a plain map when it is any of the map shapes the
// bson decoder or callers may hand us.
func AsMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]any:
		return m, true
	case primitive.M:
		return m, true
	}
	return nil, false
}

// Revision returns the document's revision sub-document, if present.
func (d Document) Revision() (map[string]any, bool) {
	return AsMap(d[RevisionField])
}

// Clone deep-copies a document. History snapshots must never alias the live
// document, so nested maps and slices are copied all the way down.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

// CloneValue deep-copies an arbitrary document value.
func CloneValue(v any) any {
	return cloneValue(v)
}

func cloneValue(v any) any {
	if m, ok := AsMap(v); ok {
		out := make(map[string]any, len(m))
		for k, mv := range m {
			out[k] = cloneValue(mv)
		}
		return out
	}
	switch s := v.(type) {
	case []any:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = cloneValue(e)
		}
		return out
	case primitive.A:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

// Merge deep-merges src into dst and returns dst. Values from src win on
// matching paths; maps merge recursively, everything else (slices included)
// is overwritten wholesale. Keys of dst absent from src are kept.
func Merge(dst map[string]any, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, sv := range src {
		if sm, ok := AsMap(sv); ok {
			if dm, ok := AsMap(dst[k]); ok {
				dst[k] = Merge(dm, sm)
				continue
			}
		}
		dst[k] = cloneValue(sv)
	}
	return dst
}
