package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/clinia/indexsync/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analysesTemplate = `{
	"index_patterns": ["analyses-*"],
	"priority": 1,
	"template": {
		"settings": {"number_of_shards": 1},
		"mappings": {
			"properties": {
				"patient": {"type": "keyword"},
				"status": {"type": "keyword", "ignore_above": 256},
				"created": {"type": "date"}
			}
		}
	}
}`

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestTemplate(t *testing.T) {
	t.Run("should digest the canonical properties", func(t *testing.T) {
		fp, err := Template([]byte(analysesTemplate))
		require.NoError(t, err)

		expected := md5Hex(`{"created":{"type":"date"},"patient":{"type":"keyword"},"status":{"ignore_above":256,"type":"keyword"}}`)
		assert.Equal(t, expected, fp)
		assert.Len(t, fp, 32)
	})

	t.Run("should be deterministic", func(t *testing.T) {
		a, err := Template([]byte(analysesTemplate))
		require.NoError(t, err)
		b, err := Template([]byte(analysesTemplate))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("should ignore key order and everything outside the properties", func(t *testing.T) {
		reordered := `{"template":{"mappings":{"properties":{
			"status":{"ignore_above":256,"type":"keyword"},
			"created":{"type":"date"},
			"patient":{"type":"keyword"}
		},"_meta":{"version":42}}},"index_patterns":["other-*"],"priority":9}`

		a, err := Template([]byte(analysesTemplate))
		require.NoError(t, err)
		b, err := Template([]byte(reordered))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("should change with the properties", func(t *testing.T) {
		changed := `{"template":{"mappings":{"properties":{"patient":{"type":"text"}}}}}`

		a, err := Template([]byte(analysesTemplate))
		require.NoError(t, err)
		b, err := Template([]byte(changed))
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("should fail without properties", func(t *testing.T) {
		for _, tpl := range []string{
			`{"template":{"mappings":{}}}`,
			`{"mappings":{"properties":{}}}`,
			`{"template":{"mappings":{"properties":"keyword"}}}`,
			`{"template":`,
		} {
			_, err := Template([]byte(tpl))
			assert.True(t, errorx.IsSchemaError(err), tpl)
		}
	})
}

func TestLiveMapping(t *testing.T) {
	mapping := `{"analyses-abc":{"mappings":{"properties":{
		"status":{"type":"keyword","ignore_above":256},
		"patient":{"type":"keyword"},
		"created":{"type":"date"}
	}}}}`

	t.Run("should match the template fingerprint", func(t *testing.T) {
		expected, err := Template([]byte(analysesTemplate))
		require.NoError(t, err)

		fp, found, err := LiveMapping("analyses-abc", []byte(mapping), false)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, expected, fp)
	})

	t.Run("should support index names with dots", func(t *testing.T) {
		_, found, err := LiveMapping("analyses.v1", []byte(`{"analyses.v1":{"mappings":{"properties":{}}}}`), false)
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("should return nothing for a missing index when ignoring", func(t *testing.T) {
		fp, found, err := LiveMapping("sequencings-abc", []byte(mapping), true)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, fp)

		_, found, err = LiveMapping("analyses-abc", nil, true)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("should fail for a missing index when not ignoring", func(t *testing.T) {
		_, _, err := LiveMapping("sequencings-abc", []byte(mapping), false)
		assert.True(t, errorx.IsSchemaError(err))
	})

	t.Run("should fail for a malformed mapping even when ignoring", func(t *testing.T) {
		truncated := mapping[:len(mapping)/2]

		for _, ignoreMissing := range []bool{true, false} {
			fp, found, err := LiveMapping("analyses-abc", []byte(truncated), ignoreMissing)
			assert.True(t, errorx.IsSchemaError(err), "ignoreMissing=%v", ignoreMissing)
			assert.False(t, found)
			assert.Empty(t, fp)
		}
	})
}
