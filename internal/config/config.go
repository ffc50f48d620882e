// Package config holds the indexsync configuration and the command line flags that override it.
package config

import (
	"context"
	_ "embed"

	"github.com/spf13/pflag"

	"github.com/clinia/indexsync/arangox"
	"github.com/clinia/indexsync/configx"
	"github.com/clinia/indexsync/elasticx"
	"github.com/clinia/indexsync/elasticx/reindex"
	"github.com/clinia/indexsync/loggerx"
	"github.com/clinia/indexsync/otelx"
)

//go:embed config.schema.json
var Schema []byte

type Migration struct {
	PageSize       int           `json:"page_size"`
	PublishRetries int           `json:"publish_retries"`
	SweepOrphans   bool          `json:"sweep_orphans"`
	DryRun         bool          `json:"dry_run"`
	RunOnStartup   bool          `json:"run_on_startup"`
	Scope          reindex.Scope `json:"scope"`
}

type Templates struct {
	// Dir holds one {name}.json index template per family.
	Dir string `json:"dir"`
}

type Family struct {
	Name string `json:"name"`
	// Template defaults to the family name.
	Template   string             `json:"template"`
	Projection reindex.Projection `json:"projection"`
}

type Serve struct {
	Address string `json:"address"`
}

type Config struct {
	Elasticsearch elasticx.Config `json:"elasticsearch"`
	Migration     Migration       `json:"migration"`
	Templates     Templates       `json:"templates"`
	Families      []Family        `json:"families"`
	Arango        arangox.Config  `json:"arango"`
	Log           loggerx.Config  `json:"log"`
	Serve         Serve           `json:"serve"`
	Telemetry     otelx.Config    `json:"telemetry"`
}

// Projections returns the document projection of every family.
func (c *Config) Projections() map[string]reindex.Projection {
	projections := make(map[string]reindex.Projection, len(c.Families))
	for _, f := range c.Families {
		projections[f.Name] = f.Projection
	}
	return projections
}

// Defaults are the values used when neither a file, the environment nor a flag sets a key.
// Every key settable from the environment needs a default.
var Defaults = map[string]interface{}{
	"elasticsearch.addresses":       []string{"http://localhost:9200"},
	"elasticsearch.username":        "",
	"elasticsearch.password":        "",
	"elasticsearch.request_timeout": elasticx.DefaultRequestTimeout.String(),

	"migration.page_size":       reindex.DefaultPageSize,
	"migration.publish_retries": 3,
	"migration.sweep_orphans":   false,
	"migration.dry_run":         false,
	"migration.run_on_startup":  true,
	"migration.scope":           string(reindex.AllPartitions),

	"templates.dir": "templates",
	"families":      []interface{}{},

	"arango.endpoints":   []string{"http://localhost:8529"},
	"arango.database":    "indexsync",
	"arango.collection":  "records",
	"arango.scope_field": "",
	"arango.username":    "root",
	"arango.password":    "",

	"log.level":  "info",
	"log.format": "json",

	"serve.address": ":8080",

	"telemetry.service_name":     "indexsync",
	"telemetry.metrics.provider": "",
	"telemetry.tracing.provider": "",
	"telemetry.tracing.pretty":   false,
}

// FlagKeys maps the flags registered by RegisterFlags to their configuration key.
var FlagKeys = map[string]string{
	"elasticsearch-address": "elasticsearch.addresses",
	"templates-dir":         "templates.dir",
	"page-size":             "migration.page_size",
	"scope":                 "migration.scope",
	"dry-run":               "migration.dry_run",
	"sweep-orphans":         "migration.sweep_orphans",
	"log-level":             "log.level",
	"log-format":            "log.format",
	"address":               "serve.address",
}

// RegisterFlags adds the configuration flags to fs. A flag only overrides the configuration
// when it is set.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringSlice("elasticsearch-address", nil, "Elasticsearch node address, repeatable")
	fs.String("templates-dir", "", "Directory holding the index templates")
	fs.Int("page-size", 0, "Number of records read per reindex page")
	fs.String("scope", "", "Data partition to reindex, * for all")
	fs.Bool("dry-run", false, "Check the index families without writing to the cluster")
	fs.Bool("sweep-orphans", false, "Delete versioned indexes no alias points to")
	fs.String("log-level", "", "Log level: debug, info, warn or error")
	fs.String("log-format", "", "Log format: json or text")
	fs.String("address", "", "Listen address of the admin server")
}

// Load reads the configuration from the defaults, the given files, INDEXSYNC_ environment
// variables and the flags, in that order, and validates it.
func Load(ctx context.Context, flags *pflag.FlagSet, files []string, opts ...configx.OptionModifier) (*Config, error) {
	modifiers := []configx.OptionModifier{
		configx.WithBaseValues(Defaults),
		configx.WithConfigFiles(files...),
		configx.WithStderrValidationReporter(),
	}
	if flags != nil {
		modifiers = append(modifiers, configx.WithFlags(flags, FlagKeys))
	}
	modifiers = append(modifiers, opts...)

	p, err := configx.New(ctx, Schema, modifiers...)
	if err != nil {
		return nil, err
	}

	c := &Config{}
	if err := p.Unmarshal(c); err != nil {
		return nil, err
	}
	if c.Elasticsearch.RequestTimeout <= 0 {
		c.Elasticsearch.RequestTimeout = elasticx.DefaultRequestTimeout
	}

	return c, nil
}
