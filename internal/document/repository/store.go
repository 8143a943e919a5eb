package repository

import (
	"context"

	"github.com/docrev/docrev/internal/document"
)

// Projection selects fields for a read: all-zero values exclude the listed
// (possibly dotted) paths, all-one values include only them. Mixing the two
// is not supported, matching Mongo.
type Projection map[string]int

// FindOptions carries the paging and ordering already resolved by the caller.
type FindOptions struct {
	Limit int64
	Skip  int64
	// Sort maps field name to 1 (ascending) or -1 (descending).
	Sort map[string]int
}

// Update is a single conditional write. Set and Unset honor dotted paths;
// Push appends a value to the array at each given path, creating it when
// absent. All three apply atomically with the filter.
type Update struct {
	Set   map[string]any
	Unset []string
	Push  map[string]any
}

// Store is the document-store capability the revision engine builds on.
// Implementations must make UpdateIf atomic with respect to its filter:
// of N concurrent UpdateIf calls racing on the same filter state, at most
// one may observe a modified count of 1.
type Store interface {
	// FindOne returns the first document matching filter, or nil when none does.
	FindOne(ctx context.Context, filter document.Document, projection Projection) (document.Document, error)

	// Find returns all documents matching filter, subject to opts.
	Find(ctx context.Context, filter document.Document, projection Projection, opts FindOptions) ([]document.Document, error)

	// Insert stores doc, assigning a primary key when the caller supplied
	// none, and returns the stored document.
	Insert(ctx context.Context, doc document.Document) (document.Document, error)

	// UpdateIf applies u to the single document matching filter and reports
	// how many documents were modified (0 when the filter no longer matches).
	UpdateIf(ctx context.Context, filter document.Document, u Update) (int64, error)

	// DeleteOne removes the single document matching filter and reports how
	// many documents were deleted.
	DeleteOne(ctx context.Context, filter document.Document) (int64, error)
}
