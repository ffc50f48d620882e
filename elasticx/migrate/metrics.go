package migrate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	runsMetricName          = "indexsync.migration.runs"
	recordsMetricName       = "indexsync.records.migrated"
	phaseDurationMetricName = "indexsync.migration.phase.duration"
)

type metrics struct {
	runs          metric.Int64Counter
	records       metric.Int64Counter
	phaseDuration metric.Float64Histogram
}

func newMetrics(m metric.Meter) (*metrics, error) {
	runs, err := m.Int64Counter(runsMetricName,
		metric.WithDescription("Migration runs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	records, err := m.Int64Counter(recordsMetricName,
		metric.WithDescription("Records written to rebuilt indexes"),
	)
	if err != nil {
		return nil, err
	}

	phaseDuration, err := m.Float64Histogram(phaseDurationMetricName,
		metric.WithDescription("Duration of the migration phases"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &metrics{runs: runs, records: records, phaseDuration: phaseDuration}, nil
}

func (m *metrics) run(ctx context.Context, outcome Outcome, records int) {
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
	if records > 0 {
		m.records.Add(ctx, int64(records))
	}
}

func (m *metrics) phase(ctx context.Context, phase Phase, elapsed time.Duration) {
	m.phaseDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("phase", string(phase))))
}
