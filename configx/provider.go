// Package configx loads configuration from defaults, files, environment variables and command
// line flags, and validates the result against a JSON schema.
package configx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/ory/jsonschema/v3"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinia/indexsync/loggerx"
)

const (
	Delimiter        = "."
	DefaultEnvPrefix = "INDEXSYNC_"
)

type tuple struct {
	Key   string
	Value interface{}
}

// Provider holds the merged configuration. Sources are applied in this order, the last
// one winning: base values, config files, environment variables, user providers, command
// line flags and forced values.
type Provider struct {
	*koanf.Koanf

	files             []string
	flags             *pflag.FlagSet
	flagKeys          map[string]string
	envPrefix         string
	logger            *loggerx.Logger
	skipValidation    bool
	disableEnvLoading bool
	forcedValues      []tuple
	baseValues        []tuple
	userProviders     []koanf.Provider
	onValidationError func(k *koanf.Koanf, err error)
}

// New loads the configuration and validates it against schema.
func New(ctx context.Context, schema []byte, modifiers ...OptionModifier) (*Provider, error) {
	p := &Provider{
		envPrefix:         DefaultEnvPrefix,
		onValidationError: func(*koanf.Koanf, error) {},
	}
	for _, m := range modifiers {
		m(p)
	}
	if p.logger == nil {
		p.logger = loggerx.New(loggerx.Config{})
	}

	id, compiler, err := newCompiler(schema)
	if err != nil {
		return nil, err
	}
	s, err := compiler.Compile(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	k, err := p.load()
	if err != nil {
		return nil, err
	}

	if !p.skipValidation {
		if err := validate(k, s); err != nil {
			p.onValidationError(k, err)
			return nil, err
		}
	}

	p.Koanf = k
	p.logger.Debug(ctx, "configuration loaded", attribute.StringSlice("config.files", p.files))
	return p, nil
}

func (p *Provider) load() (*koanf.Koanf, error) {
	k := koanf.New(Delimiter)

	if err := k.Load(confmap.Provider(tuples(p.baseValues), Delimiter), nil); err != nil {
		return nil, errors.WithStack(err)
	}

	for _, f := range p.files {
		parser, err := parserFor(f)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(f), parser); err != nil {
			return nil, errors.Wrapf(err, "unable to load config file %s", f)
		}
	}

	if !p.disableEnvLoading {
		if err := k.Load(p.envProvider(k), nil); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	for _, up := range p.userProviders {
		if err := k.Load(up, nil); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if p.flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(p.flags, Delimiter, k, p.flagKey), nil); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if err := k.Load(confmap.Provider(tuples(p.forcedValues), Delimiter), nil); err != nil {
		return nil, errors.WithStack(err)
	}

	return k, nil
}

func tuples(values []tuple) map[string]interface{} {
	m := make(map[string]interface{}, len(values))
	for _, t := range values {
		m[t.Key] = t.Value
	}
	return m
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	default:
		return nil, errors.Errorf("unsupported config file format %q, use json or yaml", filepath.Ext(path))
	}
}

// envProvider reads the variables matching a key known so far. The key
// "migration.page_size" is read from INDEXSYNC_MIGRATION_PAGE_SIZE and the value is
// converted to the type of the current value.
func (p *Provider) envProvider(k *koanf.Koanf) koanf.Provider {
	known := map[string]string{}
	for _, key := range k.Keys() {
		known[p.envPrefix+strings.ToUpper(strings.ReplaceAll(key, Delimiter, "_"))] = key
	}

	return env.ProviderWithValue(p.envPrefix, Delimiter, func(name, value string) (string, interface{}) {
		key, ok := known[name]
		if !ok {
			return "", nil
		}
		return key, coerce(k.Get(key), value)
	})
}

func coerce(current interface{}, value string) interface{} {
	switch current.(type) {
	case bool:
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	case int, int64:
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	case float64:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	case []string, []interface{}:
		if strings.HasPrefix(strings.TrimSpace(value), "[") {
			var v []interface{}
			if err := json.Unmarshal([]byte(value), &v); err == nil {
				return v
			}
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return value
}

func (p *Provider) flagKey(f *pflag.Flag) (string, interface{}) {
	key, ok := p.flagKeys[f.Name]
	if !ok {
		return "", nil
	}

	switch f.Value.Type() {
	case "bool":
		v, _ := p.flags.GetBool(f.Name)
		return key, v
	case "int":
		v, _ := p.flags.GetInt(f.Name)
		return key, v
	case "stringSlice":
		v, _ := p.flags.GetStringSlice(f.Name)
		return key, v
	default:
		return key, f.Value.String()
	}
}

func validate(k *koanf.Koanf, s *jsonschema.Schema) error {
	raw, err := json.Marshal(k.Raw())
	if err != nil {
		return errors.WithStack(err)
	}
	return s.Validate(bytes.NewReader(raw))
}

// Unmarshal decodes the configuration into v using the json tags of its fields.
func (p *Provider) Unmarshal(v interface{}) error {
	return errors.WithStack(p.UnmarshalWithConf("", v, koanf.UnmarshalConf{Tag: "json"}))
}

func (p *Provider) printHumanReadableValidationErrors(k *koanf.Koanf, w io.Writer, err error) {
	if err == nil {
		return
	}

	_, _ = fmt.Fprintln(w, "The configuration contains values or keys which are invalid:")

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		_, _ = fmt.Fprintln(w, err.Error())
		return
	}

	for _, cause := range leafCauses(ve) {
		key := strings.ReplaceAll(strings.TrimPrefix(strings.TrimPrefix(cause.InstancePtr, "#"), "/"), "/", Delimiter)
		if key == "" {
			_, _ = fmt.Fprintf(w, "%s\n", cause.Message)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s: %v\n", key, k.Get(key))
		_, _ = fmt.Fprintf(w, "%s^-- %s\n\n", strings.Repeat(" ", len(key)+2), cause.Message)
	}
}

func leafCauses(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leafCauses(c)...)
	}
	return out
}
