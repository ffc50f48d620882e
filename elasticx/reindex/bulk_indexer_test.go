package reindex

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/clinia/indexsync/elasticx"
	elasticxtest "github.com/clinia/indexsync/elasticx/test"
	"github.com/clinia/indexsync/errorx"
	loggerxtest "github.com/clinia/indexsync/loggerx/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLoader map[string]string

func (m mapLoader) Load(_ context.Context, ids []string) ([]Record, error) {
	out := []Record{}
	for _, id := range ids {
		if body, ok := m[id]; ok {
			out = append(out, Record{ID: id, Body: json.RawMessage(body)})
		}
	}
	return out, nil
}

var records = mapLoader{
	"sr-1": `{"patient":{"id":"p-1","name":"Ada"},"status":"active","sequencing":{"id":"seq-1","status":"done"}}`,
	"sr-2": `{"patient":{"id":"p-2"},"status":"draft","sequencing":{"id":"seq-2"}}`,
}

func TestProjection(t *testing.T) {
	t.Run("should map record paths to document paths", func(t *testing.T) {
		p := Projection{Fields: map[string]string{
			"patient_id":    "patient.id",
			"request.state": "status",
			"missing":       "does.not.exist",
		}}

		doc, err := p.Project(Record{ID: "sr-1", Body: json.RawMessage(records["sr-1"])})
		require.NoError(t, err)
		assert.JSONEq(t, `{"patient_id":"p-1","request":{"state":"active"}}`, string(doc))
	})

	t.Run("should index the record as is without fields", func(t *testing.T) {
		doc, err := Projection{}.Project(Record{ID: "sr-2", Body: json.RawMessage(records["sr-2"])})
		require.NoError(t, err)
		assert.JSONEq(t, records["sr-2"], string(doc))
	})
}

func TestBulkIndexer(t *testing.T) {
	ctx := context.Background()
	cluster := elasticxtest.NewCluster(t)
	client, err := elasticx.NewClient(elasticx.Config{Addresses: []string{cluster.URL()}, RequestTimeout: time.Second}, loggerxtest.NewTestLogger(t))
	require.NoError(t, err)

	projections := map[string]Projection{
		"analyses":    {Fields: map[string]string{"patient": "patient.id", "status": "status"}},
		"sequencings": {Fields: map[string]string{"id": "sequencing.id", "status": "sequencing.status"}},
	}
	indexer := NewBulkIndexer(client, records, projections)

	t.Run("should write one document per family", func(t *testing.T) {
		err := indexer.IndexBatch(ctx, []string{"sr-1", "sr-2", "sr-unknown"}, Targets{
			"analyses":    "analyses-abc",
			"sequencings": "sequencings-def",
		})
		require.NoError(t, err)

		assert.Equal(t, map[string]string{
			"sr-1": `{"patient":"p-1","status":"active"}`,
			"sr-2": `{"patient":"p-2","status":"draft"}`,
		}, cluster.Docs("analyses-abc"))
		assert.Equal(t, map[string]string{
			"sr-1": `{"id":"seq-1","status":"done"}`,
			"sr-2": `{"id":"seq-2"}`,
		}, cluster.Docs("sequencings-def"))
	})

	t.Run("should fail for a family without projection", func(t *testing.T) {
		err := indexer.IndexBatch(ctx, []string{"sr-1"}, Targets{"patients": "patients-abc"})
		assert.True(t, errorx.IsFailedPreconditionError(err))
		assert.False(t, cluster.Exists("patients-abc"))
	})
}
