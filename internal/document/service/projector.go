package service

import (
	"github.com/docrev/docrev/internal/document"
	"github.com/docrev/docrev/internal/document/repository"
)

// The history projector keeps revision.history out of ordinary reads.
// When the read has no competing field selection the store excludes the
// path itself (cheapest — the history array is never materialized). With a
// caller-supplied selection Mongo cannot mix inclusion and exclusion in one
// projection, so the selection runs as-is and history is stripped afterward.

// historyExcluded is the projection used by every point read and by
// selection-less multi reads.
func historyExcluded() repository.Projection {
	return repository.Projection{document.RevisionHistoryPath: 0}
}

// selectionProjection builds the inclusion projection for a caller's
// field selection.
func selectionProjection(fields []string) repository.Projection {
	p := repository.Projection{}
	for _, f := range fields {
		if f != "" {
			p[f] = 1
		}
	}
	return p
}

// stripHistory removes the nested history from a document's revision
// sub-object, in place. Used both to post-filter read results and to bound
// the snapshots pushed onto history (a history entry never contains its own
// history).
func stripHistory(d document.Document) {
	if rev, ok := d.Revision(); ok {
		delete(rev, document.RevisionHistoryField)
	}
}
