package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinia/indexsync/elasticx"
	"github.com/clinia/indexsync/elasticx/migrate"
	"github.com/clinia/indexsync/elasticx/reindex"
	elasticxtest "github.com/clinia/indexsync/elasticx/test"
	"github.com/clinia/indexsync/elasticx/template"
	"github.com/clinia/indexsync/errorx"
	"github.com/clinia/indexsync/httpx"
	loggerxtest "github.com/clinia/indexsync/loggerx/test"
	"github.com/clinia/indexsync/otelx"
	"github.com/clinia/indexsync/testx"
)

type fakeRunner struct {
	mu     sync.Mutex
	res    *migrate.Result
	err    error
	status []migrate.FamilyStatus
	calls  int
	ctxErr error
	panics bool
}

func (f *fakeRunner) Migrate(ctx context.Context) (*migrate.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ctxErr = ctx.Err()
	if f.panics {
		panic("boom")
	}
	return f.res, f.err
}

func (f *fakeRunner) Status(context.Context) ([]migrate.FamilyStatus, error) {
	return f.status, f.err
}

func (f *fakeRunner) Phase() migrate.Phase {
	return migrate.PhaseIdle
}

func newHandler(t *testing.T, runner Runner, metrics http.Handler) http.Handler {
	t.Helper()
	h, err := NewHandler(NewHandlerOptions{
		Runner:  runner,
		Metrics: metrics,
		Logger:  loggerxtest.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func TestHandlerMigrate(t *testing.T) {
	t.Run("should answer with the result of the run", func(t *testing.T) {
		runner := &fakeRunner{res: &migrate.Result{
			RunID:   "2Uw1dxF3kkqDgkcbtWJS2Vbt3AG",
			Outcome: migrate.OutcomeMigrated,
			Phase:   migrate.PhaseCleaning,
			Records: 3,
		}}

		res, body := testx.PostJson[migrate.Result](newHandler(t, runner, nil), "/migrations", "")

		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, *runner.res, body)
		assert.Equal(t, "2Uw1dxF3kkqDgkcbtWJS2Vbt3AG", res.Header().Get(httpx.RunIDHeaderKey))
		assert.Equal(t, "CLEANING", res.Header().Get(httpx.PhaseHeaderKey))
		assert.Equal(t, 1, runner.calls)
	})

	t.Run("should refuse a second run with a conflict", func(t *testing.T) {
		runner := &fakeRunner{err: errorx.AlreadyRunningErrorf("a migration is already running (phase REBUILDING)")}

		res, body := testx.PostJson[httpx.ErrorResponse](newHandler(t, runner, nil), "/migrations", "")

		assert.Equal(t, http.StatusConflict, res.Code)
		assert.Equal(t, errorx.ErrorTypeAlreadyRunning, body.Error.Type)
		assert.Empty(t, body.Result)
	})

	t.Run("should report a failed run with its result", func(t *testing.T) {
		runner := &fakeRunner{
			res: &migrate.Result{RunID: "run", Outcome: migrate.OutcomeFailed, Phase: migrate.PhasePublishing},
			err: errorx.ClusterRejectedErrorf("alias update rejected"),
		}

		res, body := testx.PostJson[httpx.ErrorResponse](newHandler(t, runner, nil), "/migrations", "")

		assert.Equal(t, http.StatusBadGateway, res.Code)
		assert.Equal(t, errorx.ErrorTypeClusterRejected, body.Error.Type)
		assert.Equal(t, "PUBLISHING", res.Header().Get(httpx.PhaseHeaderKey))

		var result migrate.Result
		require.NoError(t, json.Unmarshal(body.Result, &result))
		assert.Equal(t, migrate.OutcomeFailed, result.Outcome)
	})

	t.Run("should not cancel the run with the request", func(t *testing.T) {
		runner := &fakeRunner{res: &migrate.Result{Outcome: migrate.OutcomeNoop}}
		h := newHandler(t, runner, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/migrations", nil)
		require.NoError(t, err)
		h.ServeHTTP(&discardWriter{header: http.Header{}}, req)

		assert.NoError(t, runner.ctxErr)
	})

	t.Run("should recover from a panic", func(t *testing.T) {
		res, body := testx.PostJson[httpx.ErrorResponse](newHandler(t, &fakeRunner{panics: true}, nil), "/migrations", "")

		assert.Equal(t, http.StatusInternalServerError, res.Code)
		assert.Equal(t, errorx.ErrorTypeInternal, body.Error.Type)
	})

	t.Run("should only accept POST", func(t *testing.T) {
		res := testx.Get(newHandler(t, &fakeRunner{}, nil), "/migrations")
		assert.Equal(t, http.StatusMethodNotAllowed, res.Code)
	})
}

type discardWriter struct {
	header http.Header
}

func (d *discardWriter) Header() http.Header         { return d.header }
func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }
func (d *discardWriter) WriteHeader(int)             {}

func TestHandlerStatus(t *testing.T) {
	t.Run("should report every family", func(t *testing.T) {
		runner := &fakeRunner{status: []migrate.FamilyStatus{
			{Family: "analyses", Indexes: []string{"analyses-abc"}, Current: "abc", Desired: "def", Drift: true},
		}}

		res, body := testx.GetJson[StatusResponse](newHandler(t, runner, nil), "/status")

		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, migrate.PhaseIdle, body.Phase)
		assert.Equal(t, runner.status, body.Families)
		assert.Equal(t, "IDLE", res.Header().Get(httpx.PhaseHeaderKey))
	})

	t.Run("should map a cluster failure to 503", func(t *testing.T) {
		runner := &fakeRunner{err: errorx.TransportFailureErrorf("cluster unreachable")}

		res, body := testx.GetJson[httpx.ErrorResponse](newHandler(t, runner, nil), "/status")

		assert.Equal(t, http.StatusServiceUnavailable, res.Code)
		assert.Equal(t, errorx.ErrorTypeTransportFailure, body.Error.Type)
	})
}

func TestHandlerMetrics(t *testing.T) {
	t.Run("should answer 404 without a prometheus meter", func(t *testing.T) {
		res := testx.Get(newHandler(t, &fakeRunner{}, nil), "/metrics")
		assert.Equal(t, http.StatusNotFound, res.Code)
	})
}

func TestNewHandler(t *testing.T) {
	_, err := NewHandler(NewHandlerOptions{})
	assert.True(t, errorx.IsInvalidArgumentError(err))
}

type records map[string]string

func (r records) Search(_ context.Context, page reindex.Page) ([]string, error) {
	if page.Offset > 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r records) Load(_ context.Context, ids []string) ([]reindex.Record, error) {
	out := make([]reindex.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, reindex.Record{ID: id, Body: json.RawMessage(r[id])})
	}
	return out, nil
}

func TestHandlerWithMigrator(t *testing.T) {
	ctx := context.Background()
	cluster := elasticxtest.NewCluster(t)
	l := loggerxtest.NewTestLogger(t)

	client := testx.AssertAndPanicOnError(elasticx.NewClient(elasticx.Config{Addresses: []string{cluster.URL()}, RequestTimeout: 5 * time.Second}, l))

	meter, err := otelx.NewMeter("indexsync", l, &otelx.Config{ServiceName: "indexsync", Metrics: otelx.MeterConfig{Provider: "prometheus"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = meter.Shutdown(ctx) })

	store := records{"r-1": `{"status":"done"}`}
	m, err := migrate.NewMigrator(migrate.NewMigratorOptions{
		Client: client,
		Templates: template.StaticSource{"analyses": []byte(`{
			"index_patterns": ["analyses-*"],
			"template": {"mappings": {"properties": {"status": {"type": "keyword"}}}}
		}`)},
		Reindexer:        reindex.NewReindexer(l, store, reindex.NewBulkIndexer(client, store, map[string]reindex.Projection{"analyses": {}})),
		Families:         []migrate.Family{{Name: "analyses"}},
		ReadinessRetries: 1,
		Logger:           l,
		Meter:            meter,
	})
	require.NoError(t, err)

	h := newHandler(t, m, meter.Handler())

	res, result := testx.PostJson[migrate.Result](h, "/migrations", "")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, migrate.OutcomeMigrated, result.Outcome)
	assert.Equal(t, 1, result.Records)

	res, status := testx.GetJson[StatusResponse](h, "/status")
	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, status.Families, 1)
	assert.False(t, status.Families[0].Drift)
	assert.Equal(t, int64(1), status.Families[0].Documents)

	res, second := testx.PostJson[migrate.Result](h, "/migrations", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, migrate.OutcomeNoop, second.Outcome)

	metrics := testx.Get(h, "/metrics").Body.String()
	assert.True(t, strings.Contains(metrics, `indexsync_migration_runs_total{`), metrics)
	assert.Contains(t, metrics, `outcome="noop"`)
}

var _ Runner = (*migrate.Migrator)(nil)

