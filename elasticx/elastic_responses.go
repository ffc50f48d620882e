package elasticx

type catAlias struct {
	Alias string `json:"alias"`
	Index string `json:"index"`
}

type catIndex struct {
	Index string `json:"index"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

type bulkResponse struct {
	Errors bool                      `json:"errors"`
	Items  []map[string]bulkItemResp `json:"items"`
}

type bulkItemResp struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

type bulkMeta struct {
	Index bulkMetaIndex `json:"index"`
}

type bulkMetaIndex struct {
	ID string `json:"_id"`
}
