package arangox

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"os"
	"slices"
	"testing"

	arangoDriver "github.com/arangodb/go-driver"
	arangoHttp "github.com/arangodb/go-driver/http"
	"github.com/clinia/indexsync/elasticx/reindex"
	"github.com/clinia/indexsync/errorx"
	loggerxtest "github.com/clinia/indexsync/loggerx/test"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type query struct {
	aql      string
	bindVars map[string]interface{}
}

// fakeDatabase serves the store queries from documents held in memory.
type fakeDatabase struct {
	arangoDriver.Database
	docs        []map[string]any
	collections []string
	queries     []query
	err         error
}

func (f *fakeDatabase) Query(_ context.Context, aql string, bindVars map[string]interface{}) (arangoDriver.Cursor, error) {
	f.queries = append(f.queries, query{aql: aql, bindVars: bindVars})
	if f.err != nil {
		return nil, f.err
	}

	if keys, ok := bindVars["keys"].([]string); ok {
		found := lo.Filter(f.docs, func(d map[string]any, _ int) bool {
			return slices.Contains(keys, d["_key"].(string))
		})
		return &fakeCursor{docs: lo.ToAnySlice(found)}, nil
	}

	docs := slices.Clone(f.docs)
	if field, ok := bindVars["scopeField"].(string); ok {
		docs = lo.Filter(docs, func(d map[string]any, _ int) bool { return d[field] == bindVars["scope"] })
	}
	slices.SortFunc(docs, func(a, b map[string]any) int {
		return cmp.Compare(a["_key"].(string), b["_key"].(string))
	})
	offset, size := bindVars["offset"].(int), bindVars["size"].(int)
	if offset > len(docs) {
		offset = len(docs)
	}
	keys := lo.Map(docs[offset:min(offset+size, len(docs))], func(d map[string]any, _ int) any { return d["_key"] })
	return &fakeCursor{docs: keys}, nil
}

func (f *fakeDatabase) CollectionExists(_ context.Context, name string) (bool, error) {
	return slices.Contains(f.collections, name), f.err
}

type fakeCursor struct {
	arangoDriver.Cursor
	docs []any
}

func (c *fakeCursor) HasMore() bool {
	return len(c.docs) > 0
}

func (c *fakeCursor) ReadDocument(_ context.Context, result interface{}) (arangoDriver.DocumentMeta, error) {
	raw, err := json.Marshal(c.docs[0])
	if err != nil {
		return arangoDriver.DocumentMeta{}, err
	}
	c.docs = c.docs[1:]
	return arangoDriver.DocumentMeta{}, json.Unmarshal(raw, result)
}

func (c *fakeCursor) Close() error {
	return nil
}

func newStore(t *testing.T, db arangoDriver.Database, scopeField string) *RecordStore {
	t.Helper()
	s, err := NewRecordStore(NewRecordStoreOptions{
		Database:   db,
		Collection: "service_requests",
		ScopeField: scopeField,
		Logger:     loggerxtest.NewTestLogger(t),
	})
	require.NoError(t, err)
	return s
}

func seed() []map[string]any {
	return []map[string]any{
		{"_key": "sr-3", "tenant": "b", "status": "done"},
		{"_key": "sr-1", "tenant": "a", "status": "active"},
		{"_key": "sr-2", "tenant": "a", "status": "draft"},
	}
}

func TestRecordStoreSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("should page through every record by key", func(t *testing.T) {
		db := &fakeDatabase{docs: seed()}
		s := newStore(t, db, "")

		first, err := s.Search(ctx, reindex.Page{Scope: reindex.AllPartitions, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"sr-1", "sr-2"}, first)

		second, err := s.Search(ctx, reindex.Page{Scope: reindex.AllPartitions, Size: 2, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"sr-3"}, second)

		last, err := s.Search(ctx, reindex.Page{Scope: reindex.AllPartitions, Size: 2, Offset: 4})
		require.NoError(t, err)
		assert.Empty(t, last)

		assert.Equal(t, searchQuery, db.queries[0].aql)
		assert.Equal(t, map[string]interface{}{"@collection": "service_requests", "offset": 0, "size": 2}, db.queries[0].bindVars)
	})

	t.Run("should filter records by scope", func(t *testing.T) {
		db := &fakeDatabase{docs: seed()}
		s := newStore(t, db, "tenant")

		keys, err := s.Search(ctx, reindex.Page{Scope: "a", Size: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"sr-1", "sr-2"}, keys)
		assert.Equal(t, scopedSearchQuery, db.queries[0].aql)
	})

	t.Run("should refuse a scope without a scope field", func(t *testing.T) {
		s := newStore(t, &fakeDatabase{}, "")

		_, err := s.Search(ctx, reindex.Page{Scope: "a", Size: 10})
		assert.True(t, errorx.IsInvalidArgumentError(err))
	})

	t.Run("should refuse an invalid page", func(t *testing.T) {
		s := newStore(t, &fakeDatabase{}, "")

		_, err := s.Search(ctx, reindex.Page{Scope: reindex.AllPartitions})
		assert.True(t, errorx.IsInvalidArgumentError(err))
	})

	t.Run("should report connection failures as transport failures", func(t *testing.T) {
		s := newStore(t, &fakeDatabase{err: errors.New("connection refused")}, "")

		_, err := s.Search(ctx, reindex.Page{Scope: reindex.AllPartitions, Size: 10})
		assert.True(t, errorx.IsTransportFailureError(err))
	})

	t.Run("should report server errors as internal", func(t *testing.T) {
		s := newStore(t, &fakeDatabase{err: arangoDriver.ArangoError{HasError: true, Code: 400, ErrorNum: 1501, ErrorMessage: "syntax error"}}, "")

		_, err := s.Search(ctx, reindex.Page{Scope: reindex.AllPartitions, Size: 10})
		assert.True(t, errorx.IsInternalError(err))
	})
}

func TestRecordStoreLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("should load records in the order of the keys", func(t *testing.T) {
		db := &fakeDatabase{docs: seed()}
		s := newStore(t, db, "")

		recs, err := s.Load(ctx, []string{"sr-3", "sr-missing", "sr-1"})
		require.NoError(t, err)

		require.Len(t, recs, 2)
		assert.Equal(t, "sr-3", recs[0].ID)
		assert.JSONEq(t, `{"_key":"sr-3","tenant":"b","status":"done"}`, string(recs[0].Body))
		assert.Equal(t, "sr-1", recs[1].ID)
		assert.Equal(t, loadQuery, db.queries[0].aql)
	})

	t.Run("should not query for no keys", func(t *testing.T) {
		db := &fakeDatabase{}
		recs, err := newStore(t, db, "").Load(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, recs)
		assert.Empty(t, db.queries)
	})

	t.Run("should feed the reindexer", func(t *testing.T) {
		s := newStore(t, &fakeDatabase{docs: seed()}, "tenant")
		indexer := &collectingIndexer{loader: s}

		total, err := reindex.NewReindexer(loggerxtest.NewTestLogger(t), s, indexer,
			reindex.WithPageSize(1),
			reindex.WithScope("a"),
		).ReindexAll(ctx, reindex.Targets{"service_requests": "service_requests-x"})
		require.NoError(t, err)

		assert.Equal(t, 2, total)
		assert.Equal(t, []string{"sr-1", "sr-2"}, indexer.ids)
	})
}

type collectingIndexer struct {
	loader reindex.RecordLoader
	ids    []string
}

func (c *collectingIndexer) IndexBatch(ctx context.Context, ids []string, _ reindex.Targets) error {
	recs, err := c.loader.Load(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range recs {
		c.ids = append(c.ids, r.ID)
	}
	return nil
}

func TestCheckCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("should accept an existing collection", func(t *testing.T) {
		db := &fakeDatabase{collections: []string{"service_requests"}}
		assert.NoError(t, newStore(t, db, "tenant").CheckCollection(ctx))
	})

	t.Run("should fail on a missing collection without creating it", func(t *testing.T) {
		// fakeDatabase does not implement CreateCollection, a call would panic.
		db := &fakeDatabase{}

		err := newStore(t, db, "tenant").CheckCollection(ctx)
		assert.True(t, errorx.IsFailedPreconditionError(err))
		assert.Empty(t, db.collections)
	})

	t.Run("should map a driver failure", func(t *testing.T) {
		db := &fakeDatabase{err: errors.New("connection refused")}

		err := newStore(t, db, "").CheckCollection(ctx)
		assert.True(t, errorx.IsTransportFailureError(err))
	})
}

func TestRecordStoreIntegration(t *testing.T) {
	url := os.Getenv("ARANGO_URL")
	if url == "" {
		t.Skip("ARANGO_URL is not set")
	}
	ctx := context.Background()

	conn, err := arangoHttp.NewConnection(arangoHttp.ConnectionConfig{Endpoints: []string{url}})
	require.NoError(t, err)
	c, err := arangoDriver.NewClient(arangoDriver.ClientConfig{Connection: conn})
	require.NoError(t, err)

	const dbName = "test_indexsync_records"
	if exists, err := c.DatabaseExists(ctx, dbName); err == nil && exists {
		db, err := c.Database(ctx, dbName)
		require.NoError(t, err)
		require.NoError(t, db.Remove(ctx))
	}
	_, err = c.CreateDatabase(ctx, dbName, &arangoDriver.CreateDatabaseOptions{})
	require.NoError(t, err)

	db, err := Connect(ctx, Config{Endpoints: []string{url}, Database: dbName})
	require.NoError(t, err)

	s := newStore(t, db, "tenant")
	assert.True(t, errorx.IsFailedPreconditionError(s.CheckCollection(ctx)))

	col, err := db.CreateCollection(ctx, "service_requests", nil)
	require.NoError(t, err)
	require.NoError(t, s.CheckCollection(ctx))
	_, _, err = col.CreateDocuments(ctx, seed())
	require.NoError(t, err)

	keys, err := s.Search(ctx, reindex.Page{Scope: "a", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"sr-1", "sr-2"}, keys)

	recs, err := s.Load(ctx, keys)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
