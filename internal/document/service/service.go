package service

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/docrev/docrev/internal/document"
	"github.com/docrev/docrev/internal/document/repository"
	"github.com/docrev/docrev/pkg/metrics"
)

// Options configures a revisioned document service.
type Options struct {
	// PrimaryKeyField names the document field used as the primary key.
	// Defaults to Mongo's native "_id".
	PrimaryKeyField string
	// DefaultPageSize caps Find results when the caller gave no limit.
	// Zero means unlimited.
	DefaultPageSize int64
	// MaxPageSize caps any caller-supplied limit. Zero means no cap.
	MaxPageSize int64
}

// Query is a multi-document read request, already stripped of any
// service-layer concerns (auth, routing).
type Query struct {
	// Filter holds equality terms; dotted paths are allowed.
	Filter document.Document
	// Select, when non-empty, restricts returned fields.
	Select []string
	Limit  int64
	Skip   int64
	Sort   map[string]int
}

// Service embeds revision tracking into document CRUD. Every stored
// document carries a revision sub-object {id, createdAt, history}; updates
// must echo the revision id they were based on and are applied with a single
// conditional write, so of N writers racing from the same revision exactly
// one wins and the rest get ErrConflict. The service holds no state between
// calls; the store's conditional write is the only serialization point.
type Service struct {
	repo        repository.Store
	idField     string
	defaultPage int64
	maxPage     int64
}

func New(repo repository.Store, opts Options) *Service {
	idField := opts.PrimaryKeyField
	if idField == "" {
		idField = document.DefaultIDField
	}
	return &Service{
		repo:        repo,
		idField:     idField,
		defaultPage: opts.DefaultPageSize,
		maxPage:     opts.MaxPageSize,
	}
}

// Create stores data as revision 1. Any caller-supplied revision metadata is
// discarded; the engine owns that field.
func (s *Service) Create(ctx context.Context, data document.Document) (document.Document, error) {
	doc := data.Clone()
	delete(doc, document.RevisionField)
	doc[document.RevisionField] = map[string]any{
		document.RevisionIDField:      int64(1),
		document.RevisionCreatedField: revisionTime(doc),
	}
	stored, err := s.repo.Insert(ctx, doc)
	if err != nil {
		return nil, err
	}
	metrics.DocumentOps.WithLabelValues("create").Inc()
	return stored, nil
}

// Get returns the document at id with revision.history elided.
func (s *Service) Get(ctx context.Context, id any) (document.Document, error) {
	d, err := s.repo.FindOne(ctx, s.keyFilter(id), historyExcluded())
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &NotFoundError{ID: id}
	}
	metrics.DocumentOps.WithLabelValues("get").Inc()
	return d, nil
}

// GetWithHistory returns the document at id including its full revision
// history. This is the one read that materializes history; everything else
// elides it.
func (s *Service) GetWithHistory(ctx context.Context, id any) (document.Document, error) {
	d, err := s.repo.FindOne(ctx, s.keyFilter(id), nil)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &NotFoundError{ID: id}
	}
	return d, nil
}

// Find runs a multi-document read. Without a field selection the store is
// told to skip revision.history entirely; with one, the selection runs as an
// inclusion projection and history is stripped from each result afterward.
// Ordering and paging are preserved as given, subject to the page-size caps.
func (s *Service) Find(ctx context.Context, q Query) ([]document.Document, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = s.defaultPage
	}
	if s.maxPage > 0 && limit > s.maxPage {
		limit = s.maxPage
	}
	opts := repository.FindOptions{Limit: limit, Skip: q.Skip, Sort: q.Sort}

	if len(q.Select) == 0 {
		out, err := s.repo.Find(ctx, q.Filter, historyExcluded(), opts)
		if err != nil {
			return nil, err
		}
		metrics.DocumentOps.WithLabelValues("find").Inc()
		return out, nil
	}

	out, err := s.repo.Find(ctx, q.Filter, selectionProjection(q.Select), opts)
	if err != nil {
		return nil, err
	}
	for _, d := range out {
		stripHistory(d)
	}
	metrics.DocumentOps.WithLabelValues("find").Inc()
	return out, nil
}

// Patch applies a partial update: data is deep-merged onto the current
// document (caller's fields win, untouched fields survive) and the revision
// advances by one.
func (s *Service) Patch(ctx context.Context, id any, data document.Document) (document.Document, error) {
	return s.updateRevision(ctx, id, data, true)
}

// Update replaces the document wholesale: the payload becomes the new state
// and fields it omits are removed. The payload must be a single object and
// id must be given; anything else is rejected before the store is touched.
func (s *Service) Update(ctx context.Context, id any, payload any) (document.Document, error) {
	if id == nil {
		return nil, &InvalidArgumentError{Reason: "update requires a record id; did you mean patch?"}
	}
	if payload == nil {
		return nil, &InvalidArgumentError{Reason: "update requires a document payload"}
	}
	if kind := reflect.TypeOf(payload).Kind(); kind == reflect.Slice || kind == reflect.Array {
		return nil, &InvalidArgumentError{Reason: "update does not replace multiple records; did you mean patch?"}
	}
	data, ok := document.AsMap(payload)
	if !ok {
		return nil, &InvalidArgumentError{Reason: "update payload must be a document"}
	}
	return s.updateRevision(ctx, id, document.Document(data), false)
}

// Remove deletes the document at id. No revision precondition: delete is
// unconditional and any current holder may issue it.
func (s *Service) Remove(ctx context.Context, id any) error {
	n, err := s.repo.DeleteOne(ctx, s.keyFilter(id))
	if err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{ID: id}
	}
	metrics.DocumentOps.WithLabelValues("remove").Inc()
	return nil
}

// updateRevision is the optimistic-concurrency core shared by Patch and
// Update; partial toggles the merge step and full-replace field removal.
func (s *Service) updateRevision(ctx context.Context, id any, data document.Document, partial bool) (document.Document, error) {
	key := normalizeID(id)

	current, err := s.repo.FindOne(ctx, document.Document{s.idField: key}, historyExcluded())
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, &NotFoundError{ID: id}
	}

	// The caller must echo the revision id it last observed.
	supplied, ok := revisionID(data)
	if !ok {
		return nil, &MissingRevisionError{ID: id}
	}
	currentRev, ok := revisionID(current)
	if !ok {
		return nil, fmt.Errorf("record '%v' carries no revision metadata", id)
	}
	// Fast fail on an obviously stale id. String-normalized so a numeric id
	// that crossed a JSON boundary as a string still compares equal. The
	// authoritative check is the conditional write below.
	if revisionKey(supplied) != revisionKey(currentRev) {
		metrics.RevisionConflicts.Inc()
		return nil, &ConflictError{ID: id}
	}

	next := data.Clone()
	if partial {
		next = document.Document(document.Merge(current.Clone(), next))
	}

	// Revision metadata is engine-owned; whatever the caller sent goes.
	delete(next, document.RevisionField)
	delete(next, s.idField)
	delete(next, document.DefaultIDField)

	curID, err := revisionInt(currentRev)
	if err != nil {
		return nil, fmt.Errorf("record '%v': %w", id, err)
	}

	set := map[string]any{}
	for k, v := range next {
		set[k] = v
	}
	// Dotted so a concurrently appended history entry is never clobbered by
	// a whole-sub-object write.
	set[document.RevisionIDPath] = curID + 1
	set[document.RevisionCreatedPath] = revisionTime(next)
	// A literal dotted path in the payload must not inject history either.
	delete(set, document.RevisionHistoryPath)

	// Full replace removes fields the payload no longer carries; $set alone
	// would silently keep them.
	var unset []string
	if !partial {
		for k := range current {
			if k == s.idField || k == document.DefaultIDField || k == document.RevisionField {
				continue
			}
			if _, keep := next[k]; !keep {
				unset = append(unset, k)
			}
		}
	}

	// Snapshot of the state being superseded. History was already excluded
	// at load; strip again in case the store returned it anyway.
	snapshot := current.Clone()
	stripHistory(snapshot)

	modified, err := s.repo.UpdateIf(ctx,
		document.Document{s.idField: key, document.RevisionIDPath: currentRev},
		repository.Update{
			Set:   set,
			Unset: unset,
			Push:  map[string]any{document.RevisionHistoryPath: map[string]any(snapshot)},
		})
	if err != nil {
		return nil, err
	}
	if modified != 1 {
		// Another writer advanced the revision between the lookup and the
		// conditional write.
		metrics.RevisionConflicts.Inc()
		return nil, &ConflictError{ID: id}
	}

	op := "update"
	if partial {
		op = "patch"
	}
	metrics.DocumentOps.WithLabelValues(op).Inc()
	return s.Get(ctx, id)
}

func (s *Service) keyFilter(id any) document.Document {
	return document.Document{s.idField: normalizeID(id)}
}

// revisionID pulls revision.id out of a document, reporting absence.
func revisionID(d document.Document) (any, bool) {
	rev, ok := d.Revision()
	if !ok {
		return nil, false
	}
	v, ok := rev[document.RevisionIDField]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// revisionKey normalizes a revision id for comparison across the numeric
// and string shapes transport encodings produce.
func revisionKey(v any) string {
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	return fmt.Sprint(v)
}

func revisionInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("revision id has unsupported type %T", v)
}

// revisionTime picks the timestamp for the revision being produced: an
// explicit updatedAt in the payload wins over the wall clock.
func revisionTime(d document.Document) any {
	if ts, ok := d[document.UpdatedAtField]; ok && ts != nil {
		return ts
	}
	return time.Now().UTC()
}
