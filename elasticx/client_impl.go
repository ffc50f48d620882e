package elasticx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/clinia/indexsync/errorx"
	"github.com/clinia/indexsync/loggerx"
	"github.com/clinia/indexsync/retryx"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

const blockWritesSettings = `{"settings":{"index.blocks.write":true}}`

type client struct {
	es      *elasticsearch.Client
	l       *loggerx.Logger
	timeout time.Duration
}

var _ Client = (*client)(nil)

// NewClient creates a new Client based on the given config.
func NewClient(c Config, l *loggerx.Logger) (Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: c.Addresses,
		Username:  c.Username,
		Password:  c.Password,
		Transport: c.Transport,
		// Retries belong to the caller.
		DisableRetry: true,
	})
	if err != nil {
		return nil, err
	}

	timeout := c.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &client{es: es, l: l, timeout: timeout}, nil
}

// do runs req with the request timeout and hands the response to handle.
// The response body is closed once handle returns.
func (c *client) do(ctx context.Context, op Operation, method string, req esapi.Request, handle func(res *esapi.Response) error) error {
	action, err := ActionFromMethod(method)
	if err != nil {
		return err
	}
	c.l.Debug(ctx, "elasticsearch request",
		attribute.String("elastic.operation", string(op)),
		attribute.String("audit.action", string(action)),
	)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return transportError(op, err)
	}
	defer func() {
		if res.Body != nil {
			res.Body.Close()
		}
	}()

	return handle(res)
}

func expectSuccess(op Operation) func(res *esapi.Response) error {
	return func(res *esapi.Response) error {
		if res.IsError() {
			return responseError(op, res)
		}
		return nil
	}
}

// tolerateNotFound treats a 404 as a success.
func tolerateNotFound(op Operation) func(res *esapi.Response) error {
	return func(res *esapi.Response) error {
		if res.StatusCode == http.StatusNotFound {
			return nil
		}
		return expectSuccess(op)(res)
	}
}

func (c *client) Ping(ctx context.Context) error {
	return c.do(ctx, OperationPing, http.MethodHead, esapi.PingRequest{}, expectSuccess(OperationPing))
}

func (c *client) WaitReady(ctx context.Context, opts ...retryx.RetryOption) error {
	opts = append([]retryx.RetryOption{retryx.WithContext(ctx)}, opts...)
	return retryx.ExponentialRetry(func() error {
		return c.Ping(ctx)
	}, opts...)
}

func (c *client) Aliases(ctx context.Context) (Aliases, error) {
	aliases := Aliases{}
	err := c.do(ctx, OperationListAliases, http.MethodGet, esapi.CatAliasesRequest{
		Format: "json",
		H:      []string{"alias", "index"},
	}, func(res *esapi.Response) error {
		if res.IsError() {
			return responseError(OperationListAliases, res)
		}

		var rows []catAlias
		if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
			return decodeError(OperationListAliases, err)
		}
		for _, row := range rows {
			aliases[row.Alias] = append(aliases[row.Alias], row.Index)
		}
		for _, indexes := range aliases {
			slices.Sort(indexes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return aliases, nil
}

func (c *client) Mapping(ctx context.Context, index string) (json.RawMessage, bool, error) {
	var (
		mapping json.RawMessage
		found   bool
	)
	err := c.do(ctx, OperationGetMapping, http.MethodGet, esapi.IndicesGetMappingRequest{
		Index: []string{index},
	}, func(res *esapi.Response) error {
		if res.StatusCode == http.StatusNotFound {
			return nil
		}
		if res.IsError() {
			return responseError(OperationGetMapping, res)
		}

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return transportError(OperationGetMapping, err)
		}
		mapping, found = body, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return mapping, found, nil
}

func (c *client) PutIndexTemplate(ctx context.Context, name string, body []byte) error {
	return c.do(ctx, OperationPutTemplate, http.MethodPut, esapi.IndicesPutIndexTemplateRequest{
		Name: name,
		Body: bytes.NewReader(body),
	}, expectSuccess(OperationPutTemplate))
}

func (c *client) BlockWrites(ctx context.Context, index string) error {
	return c.do(ctx, OperationBlockWrites, http.MethodPut, esapi.IndicesPutSettingsRequest{
		Index: []string{index},
		Body:  strings.NewReader(blockWritesSettings),
	}, expectSuccess(OperationBlockWrites))
}

func (c *client) CloneIndex(ctx context.Context, src, dst string) error {
	return c.do(ctx, OperationCloneIndex, http.MethodPut, esapi.IndicesCloneRequest{
		Index:  src,
		Target: dst,
	}, expectSuccess(OperationCloneIndex))
}

func (c *client) UpdateAliases(ctx context.Context, actions ...AliasAction) error {
	if len(actions) == 0 {
		return nil
	}

	return c.do(ctx, OperationUpdateAliases, http.MethodPost, esapi.IndicesUpdateAliasesRequest{
		Body: esutil.NewJSONReader(map[string][]AliasAction{"actions": actions}),
	}, expectSuccess(OperationUpdateAliases))
}

func (c *client) SetAlias(ctx context.Context, alias string, add, remove []string) error {
	actions := lo.Map(remove, func(index string, _ int) AliasAction {
		return RemoveAlias(index, alias)
	})
	actions = append(actions, lo.Map(add, func(index string, _ int) AliasAction {
		return AddAlias(index, alias)
	})...)

	return c.UpdateAliases(ctx, actions...)
}

func (c *client) CreateIndex(ctx context.Context, index string) error {
	return c.do(ctx, OperationCreateIndex, http.MethodPut, esapi.IndicesCreateRequest{
		Index: index,
	}, expectSuccess(OperationCreateIndex))
}

func (c *client) DeleteIndexes(ctx context.Context, names ...string) error {
	names = lo.Uniq(lo.Compact(names))
	if len(names) == 0 {
		return nil
	}

	return c.do(ctx, OperationDeleteIndexes, http.MethodDelete, esapi.IndicesDeleteRequest{
		Index:             names,
		IgnoreUnavailable: esapi.BoolPtr(true),
	}, tolerateNotFound(OperationDeleteIndexes))
}

func (c *client) IndexExists(ctx context.Context, index string) (bool, error) {
	exists := false
	err := c.do(ctx, OperationIndexExists, http.MethodHead, esapi.IndicesExistsRequest{
		Index: []string{index},
	}, func(res *esapi.Response) error {
		switch {
		case res.StatusCode == http.StatusNotFound:
			return nil
		case res.IsError():
			return responseError(OperationIndexExists, res)
		default:
			exists = true
			return nil
		}
	})

	return exists, err
}

func (c *client) Indexes(ctx context.Context, pattern string) ([]string, error) {
	names := []string{}
	err := c.do(ctx, OperationListIndexes, http.MethodGet, esapi.CatIndicesRequest{
		Index:  []string{pattern},
		Format: "json",
		H:      []string{"index"},
	}, func(res *esapi.Response) error {
		if res.StatusCode == http.StatusNotFound {
			return nil
		}
		if res.IsError() {
			return responseError(OperationListIndexes, res)
		}

		var rows []catIndex
		if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
			return decodeError(OperationListIndexes, err)
		}
		for _, row := range rows {
			names = append(names, row.Index)
		}
		slices.Sort(names)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return names, nil
}

func (c *client) Refresh(ctx context.Context, indexes ...string) error {
	indexes = lo.Uniq(lo.Compact(indexes))
	if len(indexes) == 0 {
		return nil
	}

	return c.do(ctx, OperationRefresh, http.MethodPost, esapi.IndicesRefreshRequest{
		Index:             indexes,
		IgnoreUnavailable: esapi.BoolPtr(true),
	}, expectSuccess(OperationRefresh))
}

func (c *client) Count(ctx context.Context, index string) (int64, error) {
	var count int64
	err := c.do(ctx, OperationCount, http.MethodGet, esapi.CountRequest{
		Index: []string{index},
	}, func(res *esapi.Response) error {
		if res.IsError() {
			return responseError(OperationCount, res)
		}

		var cr countResponse
		if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
			return decodeError(OperationCount, err)
		}
		count = cr.Count
		return nil
	})

	return count, err
}

func (c *client) WriteDocument(ctx context.Context, index, id string, body json.RawMessage) error {
	return c.do(ctx, OperationWriteDocument, http.MethodPut, esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
	}, expectSuccess(OperationWriteDocument))
}

func (c *client) DeleteDocument(ctx context.Context, index, id string) error {
	return c.do(ctx, OperationDeleteDocument, http.MethodDelete, esapi.DeleteRequest{
		Index:      index,
		DocumentID: id,
	}, tolerateNotFound(OperationDeleteDocument))
}

func (c *client) BulkIndex(ctx context.Context, index string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	body, err := bulkBody(docs)
	if err != nil {
		return withOperation(OperationBulkIndex, errorx.InvalidArgumentErrorf("invalid document body").WithOriginalError(err))
	}

	return c.do(ctx, OperationBulkIndex, http.MethodPost, esapi.BulkRequest{
		Index: index,
		Body:  body,
	}, func(res *esapi.Response) error {
		if res.IsError() {
			return responseError(OperationBulkIndex, res)
		}

		var br bulkResponse
		if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
			return decodeError(OperationBulkIndex, err)
		}
		if !br.Errors {
			return nil
		}

		return bulkItemsError(br, len(docs))
	})
}

// bulkBody encodes docs as index actions in the newline delimited bulk format.
func bulkBody(docs []Document) (io.Reader, error) {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	for _, doc := range docs {
		if err := enc.Encode(bulkMeta{Index: bulkMetaIndex{ID: doc.ID}}); err != nil {
			return nil, err
		}
		if err := json.Compact(buf, doc.Body); err != nil {
			return nil, err
		}
		buf.WriteByte('\n')
	}
	return buf, nil
}

func bulkItemsError(br bulkResponse, total int) error {
	details := []*errorx.CliniaError{}
	for _, item := range br.Items {
		for _, r := range item {
			if r.Error == nil {
				continue
			}
			details = append(details, errorx.ClusterRejectedErrorf("document %s: %s: %s", r.ID, r.Error.Type, r.Error.Reason))
		}
	}

	return withOperation(OperationBulkIndex,
		errorx.ClusterRejectedErrorf("%d of %d documents rejected", len(details), total).WithDetails(details...),
	)
}
