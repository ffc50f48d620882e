package elasticx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/clinia/indexsync/retryx"
)

// Client is a synchronous gateway to a single Elastic server, or an entire cluster of Elastic servers.
// Every method issues one request and returns errors typed with errorx and tagged with an Operation.
type Client interface {
	Ping(ctx context.Context) error
	// WaitReady pings the cluster until it answers or the retries are exhausted.
	WaitReady(ctx context.Context, opts ...retryx.RetryOption) error

	// Aliases returns every alias known to the cluster with the indexes it points to.
	Aliases(ctx context.Context) (Aliases, error)
	// Mapping returns the raw mapping of index. found is false when the index does not exist.
	Mapping(ctx context.Context, index string) (mapping json.RawMessage, found bool, err error)
	PutIndexTemplate(ctx context.Context, name string, body []byte) error

	BlockWrites(ctx context.Context, index string) error
	// CloneIndex requires src to be write-blocked.
	CloneIndex(ctx context.Context, src, dst string) error

	// UpdateAliases applies every action in one atomic request.
	UpdateAliases(ctx context.Context, actions ...AliasAction) error
	// SetAlias removes alias from the indexes in remove and adds it to the indexes in add, atomically.
	SetAlias(ctx context.Context, alias string, add, remove []string) error

	// CreateIndex creates an empty index, shaped by the index templates matching its name.
	CreateIndex(ctx context.Context, index string) error
	// DeleteIndexes ignores indexes that do not exist.
	DeleteIndexes(ctx context.Context, names ...string) error
	IndexExists(ctx context.Context, index string) (bool, error)
	// Indexes lists the concrete indexes matching pattern, sorted by name.
	Indexes(ctx context.Context, pattern string) ([]string, error)
	Refresh(ctx context.Context, indexes ...string) error
	Count(ctx context.Context, index string) (int64, error)

	WriteDocument(ctx context.Context, index, id string, body json.RawMessage) error
	// DeleteDocument succeeds when the document does not exist.
	DeleteDocument(ctx context.Context, index, id string) error
	BulkIndex(ctx context.Context, index string, docs []Document) error
}

type Config struct {
	Addresses      []string      `json:"addresses"`
	Username       string        `json:"username"`
	Password       string        `json:"password"`
	RequestTimeout time.Duration `json:"request_timeout"`

	Transport http.RoundTripper `json:"-"`
}

const DefaultRequestTimeout = 30 * time.Second

// Document is a document body addressed by id.
type Document struct {
	ID   string
	Body json.RawMessage
}
