package otelx

import (
	"bytes"
	_ "embed"
	"io"
)

type TracerConfig struct {
	// Provider is either "stdout" or empty for a noop tracer.
	Provider string `json:"provider"`
	Pretty   bool   `json:"pretty"`

	// Writer overrides os.Stdout for the stdout provider.
	Writer io.Writer `json:"-"`
}

type MeterConfig struct {
	// Provider is either "prometheus" or empty for a noop meter.
	Provider string `json:"provider"`
}

type Config struct {
	ServiceName string       `json:"service_name"`
	Tracing     TracerConfig `json:"tracing"`
	Metrics     MeterConfig  `json:"metrics"`
}

//go:embed config.schema.json
var ConfigSchema string

const ConfigSchemaID = "clinia://telemetry-config"

// AddConfigSchema adds the telemetry schema to the compiler.
// The interface is specified instead of `jsonschema.Compiler` to allow the use of any jsonschema library fork or version.
func AddConfigSchema(c interface {
	AddResource(url string, r io.Reader) error
}) error {
	return c.AddResource(ConfigSchemaID, bytes.NewBufferString(ConfigSchema))
}
