package repository

import (
	"context"
	"testing"

	"github.com/docrev/docrev/internal/document"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreInsertAndFindOne(t *testing.T) {
	s := NewMemoryStore("_id")
	ctx := context.Background()

	stored, err := s.Insert(ctx, document.Document{"name": "a"})
	require.NoError(t, err)
	require.NotEmpty(t, stored["_id"])

	got, err := s.FindOne(ctx, document.Document{"_id": stored["_id"]}, nil)
	require.NoError(t, err)
	require.Equal(t, "a", got["name"])

	missing, err := s.FindOne(ctx, document.Document{"_id": "nope"}, nil)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestMemoryStoreDottedFilterAndUpdate(t *testing.T) {
	s := NewMemoryStore("_id")
	ctx := context.Background()

	doc, err := s.Insert(ctx, document.Document{
		"name":     "a",
		"revision": map[string]any{"id": 1},
	})
	require.NoError(t, err)

	// filter on a nested path, set dotted paths, push onto a new array
	n, err := s.UpdateIf(ctx,
		document.Document{"_id": doc["_id"], "revision.id": 1},
		Update{
			Set:  map[string]any{"name": "b", "revision.id": 2},
			Push: map[string]any{"revision.history": map[string]any{"name": "a"}},
		})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err := s.FindOne(ctx, document.Document{"_id": doc["_id"]}, nil)
	require.NoError(t, err)
	require.Equal(t, "b", got["name"])
	rev, ok := got.Revision()
	require.True(t, ok)
	require.Equal(t, 2, rev["id"])
	require.Len(t, rev["history"], 1)

	// stale filter no longer matches
	n, err = s.UpdateIf(ctx,
		document.Document{"_id": doc["_id"], "revision.id": 1},
		Update{Set: map[string]any{"name": "c"}})
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMemoryStoreFilterToleratesNumericTypes(t *testing.T) {
	s := NewMemoryStore("_id")
	ctx := context.Background()
	doc, err := s.Insert(ctx, document.Document{"revision": map[string]any{"id": int32(3)}})
	require.NoError(t, err)

	got, err := s.FindOne(ctx, document.Document{"_id": doc["_id"], "revision.id": int64(3)}, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestMemoryStoreUnset(t *testing.T) {
	s := NewMemoryStore("_id")
	ctx := context.Background()
	doc, err := s.Insert(ctx, document.Document{"name": "a", "age": 5})
	require.NoError(t, err)

	n, err := s.UpdateIf(ctx, document.Document{"_id": doc["_id"]},
		Update{Set: map[string]any{"name": "b"}, Unset: []string{"age"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err := s.FindOne(ctx, document.Document{"_id": doc["_id"]}, nil)
	require.NoError(t, err)
	require.Equal(t, "b", got["name"])
	_, present := got["age"]
	require.False(t, present)
}

func TestMemoryStoreProjections(t *testing.T) {
	s := NewMemoryStore("_id")
	ctx := context.Background()
	doc, err := s.Insert(ctx, document.Document{
		"name":     "a",
		"age":      5,
		"revision": map[string]any{"id": 1, "history": []any{"snap"}},
	})
	require.NoError(t, err)

	// exclusion of a nested path keeps the rest of the sub-document
	got, err := s.FindOne(ctx, document.Document{"_id": doc["_id"]}, Projection{"revision.history": 0})
	require.NoError(t, err)
	rev, _ := got.Revision()
	require.Equal(t, 1, rev["id"])
	_, present := rev["history"]
	require.False(t, present)

	// inclusion keeps only the listed fields plus the primary key
	got, err = s.FindOne(ctx, document.Document{"_id": doc["_id"]}, Projection{"name": 1})
	require.NoError(t, err)
	require.Equal(t, "a", got["name"])
	require.Equal(t, doc["_id"], got["_id"])
	_, present = got["age"]
	require.False(t, present)
}

func TestMemoryStoreFindSkipLimit(t *testing.T) {
	s := NewMemoryStore("_id")
	ctx := context.Background()
	for _, n := range []string{"a", "b", "c", "d"} {
		_, err := s.Insert(ctx, document.Document{"name": n, "kind": "x"})
		require.NoError(t, err)
	}

	out, err := s.Find(ctx, document.Document{"kind": "x"}, nil, FindOptions{Skip: 1, Limit: 2, Sort: map[string]int{"name": 1}})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "b", out[0]["name"])
	require.Equal(t, "c", out[1]["name"])
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore("_id")
	ctx := context.Background()
	doc, err := s.Insert(ctx, document.Document{"name": "a"})
	require.NoError(t, err)

	n, err := s.DeleteOne(ctx, document.Document{"_id": doc["_id"]})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = s.DeleteOne(ctx, document.Document{"_id": doc["_id"]})
	require.NoError(t, err)
	require.Zero(t, n)
}
