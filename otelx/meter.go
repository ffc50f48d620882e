package otelx

import (
	"context"
	"net/http"

	"github.com/clinia/indexsync/errorx"
	"github.com/clinia/indexsync/loggerx"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type Meter struct {
	meter    metric.Meter
	handler  http.Handler
	shutdown func(context.Context) error
}

// NewMeter builds the meter described by c. An empty provider yields a noop meter.
func NewMeter(name string, l *loggerx.Logger, c *Config) (*Meter, error) {
	switch c.Metrics.Provider {
	case "prometheus":
		reg := promclient.NewRegistry()
		mp, err := SetupPrometheusMeterProvider(c.ServiceName, reg)
		if err != nil {
			return nil, err
		}
		l.Info(context.Background(), "prometheus meter configured, exposing measurements on /metrics")
		return &Meter{
			meter:    mp.Meter(name),
			handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			shutdown: mp.Shutdown,
		}, nil
	case "":
		return NewNoopMeter(), nil
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown metrics provider %q", c.Metrics.Provider)
	}
}

func NewNoopMeter() *Meter {
	return &Meter{
		meter: noop.NewMeterProvider().Meter("NoopMeter"),
	}
}

// IsLoaded returns true if the meter has been loaded.
func (m *Meter) IsLoaded() bool {
	return m != nil && m.meter != nil
}

// Meter returns the underlying OpenTelemetry meter.
func (m *Meter) Meter() metric.Meter {
	return m.meter
}

// Handler serves the collected measurements in the prometheus text format.
// It responds with 404 when no prometheus provider is configured.
func (m *Meter) Handler() http.Handler {
	if m.handler == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

func (m *Meter) Shutdown(ctx context.Context) error {
	if m.shutdown == nil {
		return nil
	}
	return m.shutdown(ctx)
}
