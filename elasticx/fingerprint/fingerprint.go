// Package fingerprint derives the schema fingerprint of index templates and live index mappings.
//
// A fingerprint is the md5 hex digest of the canonical JSON form of the mapping
// properties. Key order and whitespace do not change it, anything outside the
// properties (dynamic templates, _meta, settings) is ignored.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/clinia/indexsync/errorx"
	"github.com/clinia/indexsync/jsonx"
	"github.com/tidwall/gjson"
)

const (
	templatePropertiesPath = "template.mappings.properties"
	mappingPropertiesPath  = "mappings.properties"
)

// Template returns the fingerprint of an index template body.
func Template(template []byte) (string, error) {
	if !gjson.ValidBytes(template) {
		return "", errorx.SchemaErrorf("template is not valid json")
	}

	props := gjson.GetBytes(template, templatePropertiesPath)
	if !props.Exists() {
		return "", errorx.SchemaErrorf("template has no %s", templatePropertiesPath)
	}

	return digest(props)
}

// LiveMapping returns the fingerprint of the mapping reported by the cluster for the
// index named indexRootName. When the mapping is empty or has no properties for that
// index and ignoreMissing is set, found is false and no error is returned. A mapping
// that is not valid json is always a schema error.
func LiveMapping(indexRootName string, mapping []byte, ignoreMissing bool) (fp string, found bool, err error) {
	if len(mapping) > 0 && !gjson.ValidBytes(mapping) {
		return "", false, errorx.SchemaErrorf("mapping of %s is not valid json", indexRootName)
	}

	props := gjson.GetBytes(mapping, gjson.Escape(indexRootName)+"."+mappingPropertiesPath)
	if !props.Exists() {
		if ignoreMissing {
			return "", false, nil
		}
		return "", false, errorx.SchemaErrorf("mapping of %s has no %s", indexRootName, mappingPropertiesPath)
	}

	fp, err = digest(props)
	if err != nil {
		return "", false, err
	}
	return fp, true, nil
}

func digest(props gjson.Result) (string, error) {
	if !props.IsObject() {
		return "", errorx.SchemaErrorf("mapping properties must be an object, got %s", props.Type)
	}

	canonical, err := jsonx.Canonical([]byte(props.Raw))
	if err != nil {
		return "", errorx.SchemaErrorf("mapping properties cannot be canonicalized").WithOriginalError(err)
	}

	sum := md5.Sum(canonical)
	return hex.EncodeToString(sum[:]), nil
}
