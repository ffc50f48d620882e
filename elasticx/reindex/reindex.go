// Package reindex rebuilds the contents of versioned indexes from the authoritative record store.
package reindex

import (
	"context"
	"slices"

	"github.com/clinia/indexsync/errorx"
	"github.com/clinia/indexsync/loggerx"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultPageSize = 100

// Scope selects the data partitions a page is read from.
type Scope string

// AllPartitions reads records across every partition.
const AllPartitions Scope = "*"

// Page addresses one page of record identifiers.
type Page struct {
	Scope  Scope
	Size   int
	Offset int
}

// RecordSource pages through the identifiers of the authoritative records.
// An empty page means there is nothing left to read.
type RecordSource interface {
	Search(ctx context.Context, page Page) ([]string, error)
}

// Targets maps an index family to the index its documents are written to.
type Targets map[string]string

// Families returns the family names, sorted.
func (t Targets) Families() []string {
	families := lo.Keys(t)
	slices.Sort(families)
	return families
}

// DocumentIndexer produces and writes the documents of every target family for the given records.
type DocumentIndexer interface {
	IndexBatch(ctx context.Context, ids []string, targets Targets) error
}

type Reindexer struct {
	source   RecordSource
	indexer  DocumentIndexer
	l        *loggerx.Logger
	pageSize int
	scope    Scope
}

type Option func(*Reindexer)

func WithPageSize(size int) Option {
	return func(r *Reindexer) {
		if size > 0 {
			r.pageSize = size
		}
	}
}

func WithScope(scope Scope) Option {
	return func(r *Reindexer) {
		r.scope = scope
	}
}

func NewReindexer(l *loggerx.Logger, source RecordSource, indexer DocumentIndexer, opts ...Option) *Reindexer {
	r := &Reindexer{
		source:   source,
		indexer:  indexer,
		l:        l,
		pageSize: DefaultPageSize,
		scope:    AllPartitions,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReindexAll sends every record of the source to the indexer, one page at a time,
// and returns the number of records indexed. It is a full resnapshot: the targets
// receive every record, whatever they already contain.
func (r *Reindexer) ReindexAll(ctx context.Context, targets Targets) (int, error) {
	total := 0
	page := Page{Scope: r.scope, Size: r.pageSize}
	for {
		if err := ctx.Err(); err != nil {
			return total, errorx.TransportFailureErrorf("reindex interrupted at offset %d", page.Offset).WithOriginalError(err)
		}

		ids, err := r.source.Search(ctx, page)
		if err != nil {
			return total, wrap(err, "could not read records at offset %d", page.Offset)
		}
		ids = lo.Uniq(ids)
		if len(ids) == 0 {
			break
		}

		if err := r.indexer.IndexBatch(ctx, ids, targets); err != nil {
			return total, wrap(err, "could not index records at offset %d", page.Offset)
		}

		total += len(ids)
		page.Offset += page.Size
		r.l.Debug(ctx, "reindexed page",
			attribute.Int("reindex.offset", page.Offset),
			attribute.Int("reindex.total", total),
		)
	}

	return total, nil
}

// wrap keeps typed errors as they are and marks the others as internal.
func wrap(err error, format string, args ...any) error {
	if _, ok := errorx.IsCliniaError(err); ok {
		return err
	}
	return errorx.InternalErrorf(format, args...).WithOriginalError(err)
}
