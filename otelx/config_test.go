package otelx

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/ory/jsonschema/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
)

const rootSchema = `{
  "properties": {
    "telemetry": {
      "$ref": "%s"
    }
  }
}
`

func TestConfigSchema(t *testing.T) {
	compile := func(t *testing.T) *jsonschema.Schema {
		t.Helper()
		c := jsonschema.NewCompiler()
		require.NoError(t, AddConfigSchema(c))
		require.NoError(t, c.AddResource("config", bytes.NewBufferString(fmt.Sprintf(rootSchema, ConfigSchemaID))))

		schema, err := c.Compile(context.Background(), "config")
		require.NoError(t, err)
		return schema
	}

	t.Run("func=AddConfigSchema", func(t *testing.T) {
		conf := Config{
			ServiceName: "indexsync",
			Tracing:     TracerConfig{Provider: "stdout", Pretty: true},
			Metrics:     MeterConfig{Provider: "prometheus"},
		}

		rawConfig, err := sjson.Set("{}", "telemetry", &conf)
		require.NoError(t, err)

		assert.NoError(t, compile(t).Validate(bytes.NewBufferString(rawConfig)))
	})

	t.Run("should reject an unknown provider", func(t *testing.T) {
		rawConfig := `{"telemetry":{"metrics":{"provider":"otlp"}}}`
		assert.Error(t, compile(t).Validate(bytes.NewBufferString(rawConfig)))
	})
}
