package elasticx

import (
	"slices"

	"github.com/samber/lo"
)

// Aliases maps an alias name to the indexes it points to.
type Aliases map[string][]string

// Target returns the index behind alias when it points to exactly one index.
func (a Aliases) Target(alias string) (string, bool) {
	indexes := a[alias]
	if len(indexes) != 1 {
		return "", false
	}
	return indexes[0], true
}

// References reports whether any alias points to index.
func (a Aliases) References(index string) bool {
	for _, indexes := range a {
		if slices.Contains(indexes, index) {
			return true
		}
	}
	return false
}

// Names returns the alias names, sorted.
func (a Aliases) Names() []string {
	names := lo.Keys(a)
	slices.Sort(names)
	return names
}

type AliasRef struct {
	Index string `json:"index"`
	Alias string `json:"alias"`
}

type IndexRef struct {
	Index string `json:"index"`
}

// AliasAction is one entry of an atomic alias update. Exactly one field is set.
type AliasAction struct {
	Add         *AliasRef `json:"add,omitempty"`
	Remove      *AliasRef `json:"remove,omitempty"`
	RemoveIndex *IndexRef `json:"remove_index,omitempty"`
}

func AddAlias(index, alias string) AliasAction {
	return AliasAction{Add: &AliasRef{Index: index, Alias: alias}}
}

func RemoveAlias(index, alias string) AliasAction {
	return AliasAction{Remove: &AliasRef{Index: index, Alias: alias}}
}

// RemoveIndex deletes a concrete index as part of an alias update, which allows
// an alias to take over the name of an existing index atomically.
func RemoveIndex(index string) AliasAction {
	return AliasAction{RemoveIndex: &IndexRef{Index: index}}
}
