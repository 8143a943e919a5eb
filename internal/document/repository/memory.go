package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/docrev/docrev/internal/document"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is a mutex-guarded Store used by unit tests and as the
// mongo-less fallback in main. It emulates the slice of Mongo behavior the
// engine relies on: equality filters and update operators on dotted paths,
// and inclusion/exclusion projections. The single mutex makes UpdateIf
// atomic, mirroring Mongo's per-document guarantee.
type MemoryStore struct {
	mu      sync.Mutex
	idField string
	docs    []document.Document
	seq     int
}

func NewMemoryStore(idField string) *MemoryStore {
	if idField == "" {
		idField = document.DefaultIDField
	}
	return &MemoryStore{idField: idField}
}

func (m *MemoryStore) FindOne(_ context.Context, filter document.Document, projection Projection) (document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if matches(d, filter) {
			return project(d, projection), nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) Find(_ context.Context, filter document.Document, projection Projection, fo FindOptions) ([]document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []document.Document{}
	for _, d := range m.docs {
		if matches(d, filter) {
			out = append(out, d)
		}
	}
	for field, dir := range fo.Sort {
		f, dir := field, dir
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := pathGet(out[i], f)
			b, _ := pathGet(out[j], f)
			if dir < 0 {
				return keyString(b) < keyString(a)
			}
			return keyString(a) < keyString(b)
		})
	}
	if fo.Skip > 0 {
		if fo.Skip >= int64(len(out)) {
			out = nil
		} else {
			out = out[fo.Skip:]
		}
	}
	if fo.Limit > 0 && int64(len(out)) > fo.Limit {
		out = out[:fo.Limit]
	}
	projected := make([]document.Document, len(out))
	for i, d := range out {
		projected[i] = project(d, projection)
	}
	return projected, nil
}

func (m *MemoryStore) Insert(_ context.Context, doc document.Document) (document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := doc.Clone()
	if _, ok := stored[m.idField]; !ok {
		m.seq++
		stored[m.idField] = fmt.Sprintf("doc_%06d", m.seq)
	}
	for _, d := range m.docs {
		if keyString(d[m.idField]) == keyString(stored[m.idField]) {
			return nil, fmt.Errorf("duplicate key '%v'", stored[m.idField])
		}
	}
	m.docs = append(m.docs, stored)
	return stored.Clone(), nil
}

func (m *MemoryStore) UpdateIf(_ context.Context, filter document.Document, u Update) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if !matches(d, filter) {
			continue
		}
		for path, v := range u.Set {
			pathSet(d, path, document.CloneValue(v))
		}
		for _, path := range u.Unset {
			pathDelete(d, path)
		}
		for path, v := range u.Push {
			pathPush(d, path, document.CloneValue(v))
		}
		return 1, nil
	}
	return 0, nil
}

func (m *MemoryStore) DeleteOne(_ context.Context, filter document.Document) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.docs {
		if matches(d, filter) {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// keyString normalizes a scalar for equality checks, so int32(3), int64(3),
// float64(3) and "3" all compare equal — the same tolerance the engine
// applies to caller-supplied revision ids.
func keyString(v any) string {
	if oid, ok := v.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(v)
}

func matches(d document.Document, filter document.Document) bool {
	for path, want := range filter {
		got, ok := pathGet(d, path)
		if !ok {
			return false
		}
		if keyString(got) != keyString(want) {
			return false
		}
	}
	return true
}

func pathGet(d map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	cur := any(d)
	for _, p := range parts {
		m, ok := document.AsMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func pathSet(d map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	cur := d
	for _, p := range parts[:len(parts)-1] {
		next, ok := document.AsMap(cur[p])
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func pathDelete(d map[string]any, path string) {
	parts := strings.Split(path, ".")
	cur := d
	for _, p := range parts[:len(parts)-1] {
		next, ok := document.AsMap(cur[p])
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func pathPush(d map[string]any, path string, v any) {
	existing, ok := pathGet(d, path)
	if !ok {
		pathSet(d, path, []any{v})
		return
	}
	switch arr := existing.(type) {
	case []any:
		pathSet(d, path, append(arr, v))
	case primitive.A:
		pathSet(d, path, append([]any(arr), v))
	default:
		pathSet(d, path, []any{v})
	}
}

// project deep-copies d through the projection. Exclusion projections delete
// the listed paths from a full copy; inclusion projections copy only the
// listed paths plus the primary key, like Mongo.
func project(d document.Document, p Projection) document.Document {
	out := d.Clone()
	if len(p) == 0 {
		return out
	}
	inclusive := false
	for _, v := range p {
		if v != 0 {
			inclusive = true
		}
	}
	if !inclusive {
		for path := range p {
			pathDelete(out, path)
		}
		return out
	}
	sel := document.Document{}
	if id, ok := out[document.DefaultIDField]; ok {
		sel[document.DefaultIDField] = id
	}
	for path, v := range p {
		if v == 0 {
			continue
		}
		if val, ok := pathGet(out, path); ok {
			pathSet(sel, path, val)
		}
	}
	return sel
}
