// Package elasticxtest provides an in-memory search cluster speaking the subset of the
// Elasticsearch REST API used by elasticx.
package elasticxtest

import (
	"net/http"
	"net/http/httptest"
	"path"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
)

type index struct {
	mappings  []byte
	docs      map[string][]byte
	blocked   bool
	refreshes int
}

type template struct {
	patterns []string
	priority int64
	body     []byte
}

// Request is a request received by the cluster.
type Request struct {
	Method string
	Path   string
	Body   []byte
}

// Fault alters the handling of the requests matching Method and Path (a regular expression).
// With a Status, the request fails without being applied. With a Delay, the request is
// applied and the response is held back, which lets client timeouts fire after the change.
type Fault struct {
	Method string
	Path   string
	Status int
	Delay  time.Duration
	// Times bounds the number of matching requests affected. Zero means every request.
	Times int
	// Skip lets the first matching requests through.
	Skip int

	path *regexp.Regexp
}

// Cluster is a fake search cluster served over httptest.
type Cluster struct {
	srv *httptest.Server

	mu           sync.Mutex
	indexes      map[string]*index
	aliases      map[string][]string
	templates    map[string]*template
	aliasHistory []map[string][]string
	requests     []Request
	faults       []*Fault
}

// NewCluster starts a cluster that is closed with the test.
func NewCluster(t testing.TB) *Cluster {
	t.Helper()
	c := &Cluster{
		indexes:   map[string]*index{},
		aliases:   map[string][]string{},
		templates: map[string]*template{},
	}
	c.srv = httptest.NewServer(http.HandlerFunc(c.serveHTTP))
	t.Cleanup(c.srv.Close)
	return c
}

func (c *Cluster) URL() string {
	return c.srv.URL
}

// Inject registers a fault. Faults are matched in registration order.
func (c *Cluster) Inject(f Fault) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.path = regexp.MustCompile(f.Path)
	c.faults = append(c.faults, &f)
}

// CreateIndex creates a concrete index with the given mappings document (e.g. {"properties":{}}).
func (c *Cluster) CreateIndex(name, mappings string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes[name] = &index{mappings: []byte(mappings), docs: map[string][]byte{}}
}

// PutDocument stores a document, creating the index from the templates if needed.
func (c *Cluster) PutDocument(indexName, id, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoCreate(indexName).docs[id] = []byte(body)
}

// PutAlias points alias at indexes without recording the change in the alias history.
func (c *Cluster) PutAlias(alias string, indexes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aliases[alias] = slices.Sorted(slices.Values(indexes))
}

func (c *Cluster) Exists(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.indexes[name]
	return ok
}

// IndexNames returns the concrete indexes, sorted.
func (c *Cluster) IndexNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := lo.Keys(c.indexes)
	slices.Sort(names)
	return names
}

// Docs returns a copy of the documents of a concrete index.
func (c *Cluster) Docs(name string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.indexes[name]
	if !ok {
		return nil
	}
	return lo.MapValues(idx.docs, func(b []byte, _ string) string { return string(b) })
}

func (c *Cluster) Mappings(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.indexes[name]; ok {
		return string(idx.mappings)
	}
	return ""
}

func (c *Cluster) Blocked(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.indexes[name]
	return ok && idx.blocked
}

func (c *Cluster) Refreshes(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.indexes[name]; ok {
		return idx.refreshes
	}
	return 0
}

// AliasTargets returns the indexes behind alias.
func (c *Cluster) AliasTargets(alias string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.aliases[alias])
}

// AliasHistory returns the alias table as observed after each alias update request.
func (c *Cluster) AliasHistory() []map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.aliasHistory)
}

// Template returns the body of an index template.
func (c *Cluster) Template(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tpl, ok := c.templates[name]; ok {
		return string(tpl.body), true
	}
	return "", false
}

// Requests returns every request received, in order.
func (c *Cluster) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.requests)
}

// Writes returns the received requests that may change the cluster state, in order.
func (c *Cluster) Writes() []Request {
	return lo.Filter(c.Requests(), func(r Request, _ int) bool {
		switch {
		case r.Method == http.MethodGet, r.Method == http.MethodHead:
			return false
		case strings.HasSuffix(r.Path, "/_count"), strings.HasSuffix(r.Path, "/_refresh"):
			return false
		}
		return true
	})
}

func (c *Cluster) snapshotAliases() map[string][]string {
	return lo.MapValues(c.aliases, func(v []string, _ string) []string { return slices.Clone(v) })
}

// resolve expands a comma separated list of names, wildcards and aliases into concrete indexes.
func (c *Cluster) resolve(expr string) (names []string, missing []string) {
	for _, part := range strings.Split(expr, ",") {
		switch {
		case part == "_all" || strings.Contains(part, "*"):
			for name := range c.indexes {
				if ok, _ := path.Match(part, name); ok || part == "_all" {
					names = append(names, name)
				}
			}
		case c.indexes[part] != nil:
			names = append(names, part)
		case len(c.aliases[part]) > 0:
			names = append(names, c.aliases[part]...)
		default:
			missing = append(missing, part)
		}
	}
	names = lo.Uniq(names)
	slices.Sort(names)
	return names, missing
}

// autoCreate returns the index, creating it from the matching template with the highest priority.
func (c *Cluster) autoCreate(name string) *index {
	if idx, ok := c.indexes[name]; ok {
		return idx
	}

	var best *template
	for _, tpl := range c.templates {
		for _, p := range tpl.patterns {
			if ok, _ := path.Match(p, name); ok && (best == nil || tpl.priority > best.priority) {
				best = tpl
			}
		}
	}

	mappings := []byte(`{}`)
	if best != nil {
		mappings = templateMappings(best.body)
	}

	idx := &index{mappings: mappings, docs: map[string][]byte{}}
	c.indexes[name] = idx
	return idx
}

func (c *Cluster) removeIndex(name string) {
	delete(c.indexes, name)
	for alias, indexes := range c.aliases {
		indexes = lo.Without(indexes, name)
		if len(indexes) == 0 {
			delete(c.aliases, alias)
			continue
		}
		c.aliases[alias] = indexes
	}
}
