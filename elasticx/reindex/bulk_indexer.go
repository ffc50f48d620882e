package reindex

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/clinia/indexsync/elasticx"
	"github.com/clinia/indexsync/errorx"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Record is an authoritative record in its JSON form.
type Record struct {
	ID   string
	Body json.RawMessage
}

// RecordLoader loads the records with the given identifiers. Unknown identifiers are skipped.
type RecordLoader interface {
	Load(ctx context.Context, ids []string) ([]Record, error)
}

// Projection describes the document of one family. Fields maps a document path
// (sjson syntax) to a record path (gjson syntax). Without fields the record body
// is indexed as is.
type Projection struct {
	Fields map[string]string `json:"fields"`
}

// Project builds the document of a record. Record paths that do not resolve are left out.
func (p Projection) Project(rec Record) (json.RawMessage, error) {
	if len(p.Fields) == 0 {
		return rec.Body, nil
	}

	paths := lo.Keys(p.Fields)
	slices.Sort(paths)

	doc := []byte(`{}`)
	for _, dst := range paths {
		v := gjson.GetBytes(rec.Body, p.Fields[dst])
		if !v.Exists() {
			continue
		}

		var err error
		doc, err = sjson.SetRawBytes(doc, dst, []byte(v.Raw))
		if err != nil {
			return nil, errorx.InvalidArgumentErrorf("invalid document path %q", dst).WithOriginalError(err)
		}
	}
	return doc, nil
}

// BulkIndexer is the DocumentIndexer writing projected records with the bulk API.
type BulkIndexer struct {
	client      elasticx.Client
	loader      RecordLoader
	projections map[string]Projection
}

var _ DocumentIndexer = (*BulkIndexer)(nil)

func NewBulkIndexer(client elasticx.Client, loader RecordLoader, projections map[string]Projection) *BulkIndexer {
	return &BulkIndexer{client: client, loader: loader, projections: projections}
}

func (b *BulkIndexer) IndexBatch(ctx context.Context, ids []string, targets Targets) error {
	for _, family := range targets.Families() {
		if _, ok := b.projections[family]; !ok {
			return errorx.FailedPreconditionErrorf("no projection configured for family %s", family)
		}
	}

	records, err := b.loader.Load(ctx, ids)
	if err != nil {
		return err
	}

	for _, family := range targets.Families() {
		p := b.projections[family]
		docs := make([]elasticx.Document, 0, len(records))
		for _, rec := range records {
			body, err := p.Project(rec)
			if err != nil {
				return err
			}
			docs = append(docs, elasticx.Document{ID: rec.ID, Body: body})
		}

		if err := b.client.BulkIndex(ctx, targets[family], docs); err != nil {
			return err
		}
	}

	return nil
}
