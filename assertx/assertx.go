package assertx

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type tHelper interface {
	Helper()
}

// EqualAsJSONExcept compares the JSON encodings of expected and actual after
// removing the sjson paths listed in except from both.
func EqualAsJSONExcept(t require.TestingT, expected, actual interface{}, except []string, args ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	ebs, abs := encode(t, expected), encode(t, actual)

	var err error
	for _, k := range except {
		ebs, err = sjson.Delete(ebs, k)
		require.NoError(t, err)

		abs, err = sjson.Delete(abs, k)
		require.NoError(t, err)
	}

	return assert.JSONEq(t, ebs, abs, args...)
}

// JSONPathEqual asserts that the value found at the gjson path of doc matches expected.
func JSONPathEqual(t require.TestingT, expected interface{}, doc []byte, path string, args ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	res := gjson.GetBytes(doc, path)
	if !assert.True(t, res.Exists(), "path %q not found in %s", path, doc) {
		return false
	}

	return assert.JSONEq(t, encode(t, expected), res.Raw, args...)
}

func encode(t require.TestingT, v interface{}) string {
	if raw, ok := v.(json.RawMessage); ok {
		return string(raw)
	}
	var b bytes.Buffer
	require.NoError(t, json.NewEncoder(&b).Encode(v))
	return strings.TrimSpace(b.String())
}
