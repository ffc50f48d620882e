// Package template loads the schema templates applied to the cluster for each index family.
package template

import (
	"context"
	"errors"
	"io/fs"
	"path"

	"github.com/clinia/indexsync/errorx"
	"github.com/ghodss/yaml"
	"github.com/tidwall/gjson"
)

// Template is an index template body as sent to the cluster.
type Template struct {
	Name string
	Body []byte
}

type Source interface {
	Template(ctx context.Context, name string) (Template, error)
}

var extensions = []string{".json", ".yaml", ".yml"}

type fsSource struct {
	fsys fs.FS
}

// NewFSSource reads templates named "<name>.json", "<name>.yaml" or "<name>.yml" from fsys.
// YAML templates are converted to JSON.
func NewFSSource(fsys fs.FS) Source {
	return &fsSource{fsys: fsys}
}

func (s *fsSource) Template(_ context.Context, name string) (Template, error) {
	for _, ext := range extensions {
		raw, err := fs.ReadFile(s.fsys, name+ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Template{}, errorx.InternalErrorf("could not read template %s", name).WithOriginalError(err)
		}

		return parse(name, path.Ext(name+ext), raw)
	}

	return Template{}, errorx.NotFoundErrorf("template %s not found", name)
}

func parse(name, ext string, raw []byte) (Template, error) {
	body := raw
	if ext != ".json" {
		var err error
		body, err = yaml.YAMLToJSON(raw)
		if err != nil {
			return Template{}, errorx.SchemaErrorf("template %s is not valid yaml", name).WithOriginalError(err)
		}
	}

	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return Template{}, errorx.SchemaErrorf("template %s is not a json object", name)
	}

	return Template{Name: name, Body: body}, nil
}

// StaticSource serves templates held in memory, keyed by name.
type StaticSource map[string][]byte

func (s StaticSource) Template(_ context.Context, name string) (Template, error) {
	raw, ok := s[name]
	if !ok {
		return Template{}, errorx.NotFoundErrorf("template %s not found", name)
	}
	return parse(name, ".json", raw)
}
