// Package arangox reads the records indexed by indexsync from an ArangoDB collection.
package arangox

import (
	"context"
	"encoding/json"

	arangoDriver "github.com/arangodb/go-driver"
	"github.com/clinia/indexsync/elasticx/reindex"
	"github.com/clinia/indexsync/errorx"
	"github.com/clinia/indexsync/loggerx"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
)

const (
	searchQuery = `
		FOR r IN @@collection
			SORT r._key
			LIMIT @offset, @size
			RETURN r._key`

	scopedSearchQuery = `
		FOR r IN @@collection
			FILTER r.@scopeField == @scope
			SORT r._key
			LIMIT @offset, @size
			RETURN r._key`

	loadQuery = `
		FOR r IN @@collection
			FILTER r._key IN @keys
			RETURN r`
)

// RecordStore pages through the records of a collection by key and loads them. It is the
// record source and the record loader of the reindex.
type RecordStore struct {
	db         arangoDriver.Database
	collection string
	scopeField string
	l          *loggerx.Logger
}

type NewRecordStoreOptions struct {
	Database   arangoDriver.Database
	Collection string
	// ScopeField is the record attribute matched against the scope of a page. Without it,
	// only the AllPartitions scope can be read.
	ScopeField string
	Logger     *loggerx.Logger
}

func NewRecordStore(in NewRecordStoreOptions) (*RecordStore, error) {
	if in.Database == nil {
		return nil, errorx.InvalidArgumentErrorf("an arango database is required")
	}
	if in.Collection == "" {
		return nil, errorx.InvalidArgumentErrorf("an arango collection name is required")
	}

	l := in.Logger
	if l == nil {
		l = loggerx.New(loggerx.Config{})
	}

	return &RecordStore{
		db:         in.Database,
		collection: in.Collection,
		scopeField: in.ScopeField,
		l:          l.WithFields(attribute.String("arango.collection", in.Collection)),
	}, nil
}

// CheckCollection fails when the collection does not exist. It never creates it.
func (s *RecordStore) CheckCollection(ctx context.Context) error {
	exist, err := s.db.CollectionExists(ctx, s.collection)
	if err != nil {
		return wrapError(err, "could not check collection %s", s.collection)
	}
	if !exist {
		err := errorx.FailedPreconditionErrorf("collection %s does not exist", s.collection)
		s.l.WithError(err).Error(ctx, "the record collection is missing")
		return err
	}
	return nil
}

// Search returns the keys of a page of records, ordered by key.
func (s *RecordStore) Search(ctx context.Context, page reindex.Page) ([]string, error) {
	if page.Size <= 0 || page.Offset < 0 {
		return nil, errorx.InvalidArgumentErrorf("invalid page (size %d, offset %d)", page.Size, page.Offset)
	}

	query := searchQuery
	bindVars := map[string]interface{}{
		"@collection": s.collection,
		"offset":      page.Offset,
		"size":        page.Size,
	}

	switch {
	case page.Scope == reindex.AllPartitions || page.Scope == "":
	case s.scopeField == "":
		return nil, errorx.InvalidArgumentErrorf("cannot read scope %q without a scope field", page.Scope)
	default:
		query = scopedSearchQuery
		bindVars["scopeField"] = s.scopeField
		bindVars["scope"] = string(page.Scope)
	}

	cursor, err := s.db.Query(ctx, query, bindVars)
	if err != nil {
		return nil, wrapError(err, "could not search records at offset %d", page.Offset)
	}
	defer cursor.Close()

	keys := make([]string, 0, page.Size)
	for cursor.HasMore() {
		var key string
		if _, err := cursor.ReadDocument(ctx, &key); err != nil {
			return nil, wrapError(err, "could not read record key")
		}
		keys = append(keys, key)
	}

	return keys, nil
}

// Load returns the records with the given keys, in the order of the keys. Missing records
// are skipped.
func (s *RecordStore) Load(ctx context.Context, ids []string) ([]reindex.Record, error) {
	if len(ids) == 0 {
		return []reindex.Record{}, nil
	}

	cursor, err := s.db.Query(ctx, loadQuery, map[string]interface{}{
		"@collection": s.collection,
		"keys":        ids,
	})
	if err != nil {
		return nil, wrapError(err, "could not load %d records", len(ids))
	}
	defer cursor.Close()

	byKey := make(map[string]json.RawMessage, len(ids))
	for cursor.HasMore() {
		var doc json.RawMessage
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return nil, wrapError(err, "could not read record")
		}
		byKey[gjson.GetBytes(doc, "_key").String()] = doc
	}

	if missing := len(lo.Uniq(ids)) - len(byKey); missing > 0 {
		s.l.Warn(ctx, "records vanished before they could be indexed", attribute.Int("records.missing", missing))
	}

	return lo.FilterMap(ids, func(id string, _ int) (reindex.Record, bool) {
		doc, ok := byKey[id]
		return reindex.Record{ID: id, Body: doc}, ok
	}), nil
}
