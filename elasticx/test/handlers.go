package elasticxtest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

func (c *Cluster) serveHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	body, _ := io.ReadAll(r.Body)

	c.mu.Lock()
	c.requests = append(c.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})
	fault := c.matchFault(r)
	if fault != nil && fault.Status != 0 {
		c.mu.Unlock()
		writeError(w, fault.Status, "injected_fault", fmt.Sprintf("%s %s failed", r.Method, r.URL.Path))
		return
	}

	rec := &response{status: http.StatusOK}
	c.route(rec, r, body)
	c.mu.Unlock()

	if fault != nil && fault.Delay > 0 {
		select {
		case <-time.After(fault.Delay):
		case <-r.Context().Done():
			return
		}
	}

	w.WriteHeader(rec.status)
	if r.Method != http.MethodHead {
		w.Write(rec.body)
	}
}

func (c *Cluster) matchFault(r *http.Request) *Fault {
	for _, f := range c.faults {
		if f.Method != "" && f.Method != r.Method {
			continue
		}
		if !f.path.MatchString(r.URL.Path) {
			continue
		}
		if f.Times < 0 {
			continue
		}
		if f.Skip > 0 {
			f.Skip--
			continue
		}
		if f.Times > 0 {
			f.Times--
			if f.Times == 0 {
				f.Times = -1
			}
		}
		return f
	}
	return nil
}

type response struct {
	status int
	body   []byte
}

func (r *response) json(status int, v any) {
	r.status = status
	r.body, _ = json.Marshal(v)
}

func (r *response) error(status int, typ, reason string) {
	r.json(status, errorBody(status, typ, reason))
}

func errorBody(status int, typ, reason string) map[string]any {
	cause := map[string]any{"type": typ, "reason": reason}
	return map[string]any{
		"error":  map[string]any{"root_cause": []any{cause}, "type": typ, "reason": reason},
		"status": status,
	}
}

func writeError(w http.ResponseWriter, status int, typ, reason string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody(status, typ, reason))
}

var acknowledged = map[string]any{"acknowledged": true}

func (c *Cluster) route(w *response, r *http.Request, body []byte) {
	segs := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	m := r.Method

	switch {
	case r.URL.Path == "/":
		w.json(http.StatusOK, map[string]any{"version": map[string]any{"number": "8.15.0"}, "tagline": "You Know, for Search"})
	case segs[0] == "_cat" && len(segs) >= 2 && segs[1] == "aliases" && m == http.MethodGet:
		c.catAliases(w)
	case segs[0] == "_cat" && len(segs) >= 2 && segs[1] == "indices" && m == http.MethodGet:
		pattern := "*"
		if len(segs) == 3 {
			pattern = segs[2]
		}
		c.catIndices(w, pattern)
	case segs[0] == "_index_template" && len(segs) == 2 && m == http.MethodPut:
		c.putTemplate(w, segs[1], body)
	case segs[0] == "_aliases" && len(segs) == 1 && m == http.MethodPost:
		c.updateAliases(w, body)
	case len(segs) == 1 && m == http.MethodHead:
		c.exists(w, segs[0])
	case len(segs) == 1 && m == http.MethodPut:
		c.createIndex(w, segs[0])
	case len(segs) == 1 && m == http.MethodDelete:
		c.deleteIndexes(w, segs[0], r.URL.Query().Get("ignore_unavailable") == "true")
	case len(segs) == 2 && segs[1] == "_mapping" && m == http.MethodGet:
		c.getMapping(w, segs[0])
	case len(segs) == 2 && segs[1] == "_settings" && m == http.MethodPut:
		c.putSettings(w, segs[0], body)
	case len(segs) == 2 && segs[1] == "_refresh":
		c.refresh(w, segs[0], r.URL.Query().Get("ignore_unavailable") == "true")
	case len(segs) == 2 && segs[1] == "_count":
		c.count(w, segs[0])
	case len(segs) == 2 && segs[1] == "_bulk" && m == http.MethodPost:
		c.bulk(w, segs[0], body)
	case len(segs) == 3 && segs[1] == "_doc" && (m == http.MethodPut || m == http.MethodPost):
		c.indexDocument(w, segs[0], segs[2], body)
	case len(segs) == 3 && segs[1] == "_doc" && m == http.MethodDelete:
		c.deleteDocument(w, segs[0], segs[2])
	case len(segs) == 3 && segs[1] == "_clone" && (m == http.MethodPut || m == http.MethodPost):
		c.clone(w, segs[0], segs[2])
	default:
		w.error(http.StatusBadRequest, "illegal_argument_exception", fmt.Sprintf("unsupported request %s %s", m, r.URL.Path))
	}
}

func indexNotFound(w *response, name string) {
	w.error(http.StatusNotFound, "index_not_found_exception", "no such index ["+name+"]")
}

func (c *Cluster) catAliases(w *response) {
	rows := []map[string]string{}
	for _, alias := range slices.Sorted(maps.Keys(c.aliases)) {
		for _, idx := range c.aliases[alias] {
			rows = append(rows, map[string]string{"alias": alias, "index": idx})
		}
	}
	w.json(http.StatusOK, rows)
}

func (c *Cluster) catIndices(w *response, pattern string) {
	names, missing := c.resolve(pattern)
	if len(missing) > 0 {
		indexNotFound(w, missing[0])
		return
	}
	rows := []map[string]string{}
	for _, name := range names {
		rows = append(rows, map[string]string{"index": name})
	}
	w.json(http.StatusOK, rows)
}

func (c *Cluster) putTemplate(w *response, name string, body []byte) {
	if !gjson.ValidBytes(body) {
		w.error(http.StatusBadRequest, "x_content_parse_exception", "invalid template body")
		return
	}
	patterns := []string{}
	for _, p := range gjson.GetBytes(body, "index_patterns").Array() {
		patterns = append(patterns, p.String())
	}
	if len(patterns) == 0 {
		w.error(http.StatusBadRequest, "action_request_validation_exception", "index patterns are missing")
		return
	}
	c.templates[name] = &template{patterns: patterns, priority: gjson.GetBytes(body, "priority").Int(), body: body}
	w.json(http.StatusOK, acknowledged)
}

func templateMappings(body []byte) []byte {
	m := gjson.GetBytes(body, "template.mappings")
	if !m.Exists() {
		return []byte(`{}`)
	}
	return []byte(m.Raw)
}

func (c *Cluster) updateAliases(w *response, body []byte) {
	actions := gjson.GetBytes(body, "actions").Array()
	if len(actions) == 0 {
		w.error(http.StatusBadRequest, "action_request_validation_exception", "no actions specified")
		return
	}

	next := c.snapshotAliases()
	removed := map[string]bool{}
	for _, a := range actions {
		switch {
		case a.Get("add").Exists():
			idx, alias := a.Get("add.index").String(), a.Get("add.alias").String()
			if c.indexes[idx] == nil || removed[idx] {
				indexNotFound(w, idx)
				return
			}
			if !slices.Contains(next[alias], idx) {
				next[alias] = append(next[alias], idx)
				slices.Sort(next[alias])
			}
		case a.Get("remove").Exists():
			idx, alias := a.Get("remove.index").String(), a.Get("remove.alias").String()
			if !slices.Contains(next[alias], idx) {
				w.error(http.StatusNotFound, "aliases_not_found_exception", "aliases ["+alias+"] missing")
				return
			}
			next[alias] = slices.DeleteFunc(next[alias], func(s string) bool { return s == idx })
			if len(next[alias]) == 0 {
				delete(next, alias)
			}
		case a.Get("remove_index").Exists():
			idx := a.Get("remove_index.index").String()
			if c.indexes[idx] == nil {
				indexNotFound(w, idx)
				return
			}
			removed[idx] = true
		default:
			w.error(http.StatusBadRequest, "illegal_argument_exception", "unknown alias action "+a.Raw)
			return
		}
	}

	for alias := range next {
		if c.indexes[alias] != nil && !removed[alias] {
			w.error(http.StatusBadRequest, "invalid_alias_name_exception", "an index exists with the same name as the alias ["+alias+"]")
			return
		}
	}

	c.aliases = next
	for idx := range removed {
		c.removeIndex(idx)
	}
	c.aliasHistory = append(c.aliasHistory, c.snapshotAliases())
	w.json(http.StatusOK, acknowledged)
}

func (c *Cluster) exists(w *response, expr string) {
	names, missing := c.resolve(expr)
	if len(missing) > 0 || len(names) == 0 {
		w.status = http.StatusNotFound
		return
	}
	w.status = http.StatusOK
}

func (c *Cluster) createIndex(w *response, name string) {
	if c.indexes[name] != nil || len(c.aliases[name]) > 0 {
		w.error(http.StatusBadRequest, "resource_already_exists_exception", "index ["+name+"] already exists")
		return
	}
	c.autoCreate(name)
	w.json(http.StatusOK, map[string]any{"acknowledged": true, "shards_acknowledged": true, "index": name})
}

func (c *Cluster) deleteIndexes(w *response, expr string, ignoreUnavailable bool) {
	var targets []string
	for _, name := range strings.Split(expr, ",") {
		if len(c.aliases[name]) > 0 && c.indexes[name] == nil {
			w.error(http.StatusBadRequest, "illegal_argument_exception",
				"The provided expression ["+name+"] matches an alias, specify the corresponding concrete indices instead.")
			return
		}
		names, missing := c.resolve(name)
		if len(missing) > 0 && !ignoreUnavailable {
			indexNotFound(w, missing[0])
			return
		}
		targets = append(targets, names...)
	}
	for _, name := range targets {
		c.removeIndex(name)
	}
	w.json(http.StatusOK, acknowledged)
}

func (c *Cluster) getMapping(w *response, expr string) {
	names, missing := c.resolve(expr)
	if len(missing) > 0 {
		indexNotFound(w, missing[0])
		return
	}
	out := map[string]any{}
	for _, name := range names {
		out[name] = map[string]json.RawMessage{"mappings": c.indexes[name].mappings}
	}
	w.json(http.StatusOK, out)
}

func (c *Cluster) putSettings(w *response, expr string, body []byte) {
	names, missing := c.resolve(expr)
	if len(missing) > 0 {
		indexNotFound(w, missing[0])
		return
	}
	block := gjson.GetBytes(body, `settings.index\.blocks\.write`)
	if !block.Exists() {
		block = gjson.GetBytes(body, "settings.index.blocks.write")
	}
	for _, name := range names {
		if block.Exists() {
			c.indexes[name].blocked = block.Bool()
		}
	}
	w.json(http.StatusOK, acknowledged)
}

func (c *Cluster) refresh(w *response, expr string, ignoreUnavailable bool) {
	names, missing := c.resolve(expr)
	if len(missing) > 0 && !ignoreUnavailable {
		indexNotFound(w, missing[0])
		return
	}
	for _, name := range names {
		c.indexes[name].refreshes++
	}
	w.json(http.StatusOK, map[string]any{"_shards": map[string]int{"total": len(names), "successful": len(names), "failed": 0}})
}

func (c *Cluster) count(w *response, expr string) {
	names, missing := c.resolve(expr)
	if len(missing) > 0 {
		indexNotFound(w, missing[0])
		return
	}
	total := 0
	for _, name := range names {
		total += len(c.indexes[name].docs)
	}
	w.json(http.StatusOK, map[string]int{"count": total})
}

// writeTarget resolves the index a document write goes to. Aliases must have a single target.
func (c *Cluster) writeTarget(name string) (string, bool) {
	if c.indexes[name] != nil {
		return name, true
	}
	if targets := c.aliases[name]; len(targets) > 0 {
		if len(targets) != 1 {
			return "", false
		}
		return targets[0], true
	}
	return name, true
}

func (c *Cluster) indexDocument(w *response, name, id string, body []byte) {
	target, ok := c.writeTarget(name)
	if !ok {
		w.error(http.StatusBadRequest, "illegal_argument_exception", "no write index is defined for alias ["+name+"]")
		return
	}
	status, typ, reason := c.storeDocument(target, id, body)
	if typ != "" {
		w.error(status, typ, reason)
		return
	}
	w.json(status, map[string]any{"_index": target, "_id": id, "result": resultFor(status)})
}

func resultFor(status int) string {
	if status == http.StatusCreated {
		return "created"
	}
	return "updated"
}

func (c *Cluster) storeDocument(target, id string, body []byte) (int, string, string) {
	if !json.Valid(body) {
		return http.StatusBadRequest, "document_parsing_exception", "failed to parse document [" + id + "]"
	}
	idx := c.autoCreate(target)
	if idx.blocked {
		return http.StatusForbidden, "cluster_block_exception", "index [" + target + "] blocked by: [FORBIDDEN/8/index write (api)]"
	}
	status := http.StatusOK
	if _, ok := idx.docs[id]; !ok {
		status = http.StatusCreated
	}
	idx.docs[id] = slices.Clone(body)
	return status, "", ""
}

func (c *Cluster) deleteDocument(w *response, name, id string) {
	target, ok := c.writeTarget(name)
	idx := c.indexes[target]
	if !ok || idx == nil {
		indexNotFound(w, name)
		return
	}
	if idx.blocked {
		w.error(http.StatusForbidden, "cluster_block_exception", "index ["+target+"] blocked by: [FORBIDDEN/8/index write (api)]")
		return
	}
	if _, ok := idx.docs[id]; !ok {
		w.json(http.StatusNotFound, map[string]any{"_index": target, "_id": id, "result": "not_found"})
		return
	}
	delete(idx.docs, id)
	w.json(http.StatusOK, map[string]any{"_index": target, "_id": id, "result": "deleted"})
}

func (c *Cluster) clone(w *response, src, dst string) {
	idx := c.indexes[src]
	if idx == nil {
		indexNotFound(w, src)
		return
	}
	if !idx.blocked {
		w.error(http.StatusBadRequest, "illegal_state_exception", "index "+src+" must be read-only to resize index. use \"index.blocks.write=true\"")
		return
	}
	if c.indexes[dst] != nil || len(c.aliases[dst]) > 0 {
		w.error(http.StatusBadRequest, "resource_already_exists_exception", "index ["+dst+"] already exists")
		return
	}
	docs := make(map[string][]byte, len(idx.docs))
	for id, doc := range idx.docs {
		docs[id] = slices.Clone(doc)
	}
	c.indexes[dst] = &index{mappings: slices.Clone(idx.mappings), docs: docs}
	w.json(http.StatusOK, map[string]any{"acknowledged": true, "shards_acknowledged": true, "index": dst})
}

func (c *Cluster) bulk(w *response, defaultIndex string, body []byte) {
	type item map[string]any
	items := []map[string]item{}
	hasErrors := false

	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		meta := slices.Clone(sc.Bytes())
		if len(bytes.TrimSpace(meta)) == 0 {
			continue
		}
		action := gjson.GetBytes(meta, "index")
		if !action.Exists() {
			w.error(http.StatusBadRequest, "illegal_argument_exception", "only index actions are supported")
			return
		}
		if !sc.Scan() {
			w.error(http.StatusBadRequest, "illegal_argument_exception", "the bulk request must be terminated by a newline")
			return
		}
		doc := slices.Clone(sc.Bytes())

		name := action.Get("_index").String()
		if name == "" {
			name = defaultIndex
		}
		id := action.Get("_id").String()

		it := item{"_id": id}
		target, ok := c.writeTarget(name)
		if !ok {
			it["_index"], it["status"] = name, http.StatusBadRequest
			it["error"] = map[string]string{"type": "illegal_argument_exception", "reason": "no write index is defined for alias [" + name + "]"}
			hasErrors = true
			items = append(items, map[string]item{"index": it})
			continue
		}

		status, typ, reason := c.storeDocument(target, id, doc)
		it["_index"], it["status"] = target, status
		if typ != "" {
			it["error"] = map[string]string{"type": typ, "reason": reason}
			hasErrors = true
		} else {
			it["result"] = resultFor(status)
		}
		items = append(items, map[string]item{"index": it})
	}

	w.json(http.StatusOK, map[string]any{"took": 1, "errors": hasErrors, "items": items})
}
