// Package migrate keeps the index families of a search cluster in line with their schema
// templates.
//
// Each family is served through an alias named after the family. The indexes behind it
// are versioned by the fingerprint of the template they were built from, which lets a run
// tell from the alias alone whether a family drifted. A drifted family is rebuilt into a
// fresh versioned index, published with one atomic alias update and its previous index
// is deleted.
package migrate

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/clinia/indexsync/elasticx"
	"github.com/clinia/indexsync/elasticx/reindex"
	"github.com/clinia/indexsync/elasticx/template"
	"github.com/clinia/indexsync/errorx"
	"github.com/clinia/indexsync/loggerx"
	"github.com/clinia/indexsync/otelx"
	"github.com/clinia/indexsync/tracex"
	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const componentName = "migrate.Migrator"

const (
	DefaultPublishRetries       = 3
	DefaultPublishRetryInterval = 500 * time.Millisecond
	DefaultReadinessRetries     = 5
)

// Reindexer fills the target index of each family from the record store.
type Reindexer interface {
	ReindexAll(ctx context.Context, targets reindex.Targets) (int, error)
}

type Migrator struct {
	client    elasticx.Client
	templates template.Source
	reindexer Reindexer
	families  []Family

	dryRun               bool
	sweepOrphans         bool
	publishRetries       int
	publishRetryInterval time.Duration
	readinessRetries     int

	l       *loggerx.Logger
	t       *otelx.Tracer
	metrics *metrics

	sem   *semaphore.Weighted
	phase atomic.Value
}

type NewMigratorOptions struct {
	Client    elasticx.Client
	Templates template.Source
	Reindexer Reindexer
	Families  []Family

	// DryRun stops a run after CHECKING, without writing anything to the cluster.
	DryRun bool
	// SweepOrphans makes CLEANING delete every unreferenced versioned index of the families.
	SweepOrphans bool
	// PublishRetries bounds the attempts of an alias update that failed in transit.
	PublishRetries       int
	PublishRetryInterval time.Duration
	ReadinessRetries     int

	Logger *loggerx.Logger
	Tracer *otelx.Tracer
	Meter  *otelx.Meter
}

func NewMigrator(in NewMigratorOptions) (*Migrator, error) {
	switch {
	case in.Client == nil:
		return nil, errorx.InvalidArgumentErrorf("a cluster client is required")
	case in.Templates == nil:
		return nil, errorx.InvalidArgumentErrorf("a template source is required")
	case in.Reindexer == nil:
		return nil, errorx.InvalidArgumentErrorf("a reindexer is required")
	case len(in.Families) == 0:
		return nil, errorx.InvalidArgumentErrorf("at least one index family is required")
	}

	families := make([]Family, 0, len(in.Families))
	seen := map[string]bool{}
	for _, f := range in.Families {
		if f.Name == "" {
			return nil, errorx.InvalidArgumentErrorf("index family name cannot be empty")
		}
		if seen[f.Name] {
			return nil, errorx.InvalidArgumentErrorf("duplicated index family %q", f.Name)
		}
		seen[f.Name] = true
		if f.Template == "" {
			f.Template = f.Name
		}
		families = append(families, f)
	}

	l := in.Logger
	if l == nil {
		l = loggerx.New(loggerx.Config{})
	}
	t := in.Tracer
	if t == nil {
		t = otelx.NewNoopTracer(componentName)
	}
	meter := in.Meter
	if meter == nil {
		meter = otelx.NewNoopMeter()
	}
	mt, err := newMetrics(meter.Meter())
	if err != nil {
		return nil, errorx.InternalErrorf("could not create migration instruments").WithOriginalError(err)
	}

	m := &Migrator{
		client:               in.Client,
		templates:            in.Templates,
		reindexer:            in.Reindexer,
		families:             families,
		dryRun:               in.DryRun,
		sweepOrphans:         in.SweepOrphans,
		publishRetries:       in.PublishRetries,
		publishRetryInterval: in.PublishRetryInterval,
		readinessRetries:     in.ReadinessRetries,
		l:                    l,
		t:                    t,
		metrics:              mt,
		sem:                  semaphore.NewWeighted(1),
	}
	if m.publishRetries <= 0 {
		m.publishRetries = DefaultPublishRetries
	}
	if m.publishRetryInterval <= 0 {
		m.publishRetryInterval = DefaultPublishRetryInterval
	}
	if m.readinessRetries <= 0 {
		m.readinessRetries = DefaultReadinessRetries
	}
	m.phase.Store(PhaseIdle)

	return m, nil
}

// Families returns the families handled by the migrator.
func (m *Migrator) Families() []Family {
	return slices.Clone(m.families)
}

// Phase returns the phase of the run in flight, IDLE when there is none.
func (m *Migrator) Phase() Phase {
	return m.phase.Load().(Phase)
}

func (m *Migrator) instrument(ctx context.Context, name string, kvs ...attribute.KeyValue) (context.Context, trace.Span, *loggerx.Logger) {
	return tracex.Instrument(ctx, m.l, m.t, componentName, name, kvs...)
}

// Migrate runs the state machine once. A single run may be in flight at a time, a call
// made while another run is in progress fails with an ALREADY_RUNNING error.
//
// The result is returned along with the error of a failed run, its Phase tells where
// the run stopped.
func (m *Migrator) Migrate(ctx context.Context) (*Result, error) {
	if !m.sem.TryAcquire(1) {
		return nil, errorx.AlreadyRunningErrorf("a migration is already running (phase %s)", m.Phase())
	}
	defer m.sem.Release(1)
	defer m.phase.Store(PhaseIdle)

	r := &run{
		Migrator: m,
		res: &Result{
			RunID:  ksuid.New().String(),
			Phase:  PhaseIdle,
			DryRun: m.dryRun,
		},
	}

	ctx, span, l := m.instrument(ctx, "Migrate",
		attribute.String("run.id", r.res.RunID),
		attribute.Bool("migration.dry_run", m.dryRun),
	)
	defer span.End()

	err := r.execute(ctx, l)
	if err != nil {
		r.res.Outcome = OutcomeFailed
		tracex.RecordError(span, err)
		l.WithError(err).Error(ctx, "migration failed", attribute.String("migration.phase", r.res.Phase.String()))
	}
	m.metrics.run(ctx, r.res.Outcome, r.res.Records)

	return r.res, err
}

// run holds the state of one migration run.
type run struct {
	*Migrator
	res     *Result
	aliases elasticx.Aliases
	// fresh are the target indexes created by this run.
	fresh []string
}

func (r *run) execute(ctx context.Context, l *loggerx.Logger) error {
	if err := r.step(ctx, l, PhaseChecking, r.check); err != nil {
		return err
	}

	changed := r.res.Changed()
	switch {
	case len(changed) == 0:
		r.res.Outcome = OutcomeNoop
		r.res.Phase = PhaseIdle
		l.Info(ctx, "every index family is up to date")
		return nil
	case r.dryRun:
		r.res.Outcome = OutcomeDryRun
		r.res.Phase = PhaseIdle
		for _, p := range changed {
			l.Info(ctx, "dry run, index family would be migrated", familyAttrs(p)...)
		}
		return nil
	}

	for _, step := range []struct {
		phase Phase
		fn    func(context.Context, *loggerx.Logger) error
	}{
		{PhaseRebuilding, r.rebuild},
		{PhasePublishing, r.publish},
		{PhaseCleaning, r.clean},
	} {
		if err := r.step(ctx, l, step.phase, step.fn); err != nil {
			return err
		}
	}

	r.res.Outcome = OutcomeMigrated
	r.res.Phase = PhaseIdle
	l.Info(ctx, "migration completed",
		attribute.Int("migration.records", r.res.Records),
		attribute.StringSlice("index.families", familyNames(changed)),
	)
	return nil
}

func (r *run) step(ctx context.Context, l *loggerx.Logger, phase Phase, fn func(context.Context, *loggerx.Logger) error) error {
	r.res.Phase = phase
	r.phase.Store(phase)

	ctx, span, _ := r.instrument(ctx, phase.String(), attribute.String("run.id", r.res.RunID))
	defer span.End()
	pl := l.WithFields(attribute.String("migration.phase", phase.String()))

	start := time.Now()
	err := fn(ctx, pl)
	r.metrics.phase(ctx, phase, time.Since(start))
	tracex.RecordError(span, err)

	return err
}

func familyAttrs(p FamilyPlan) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("index.family", p.Family),
		attribute.String("index.target", p.Target),
		attribute.StringSlice("index.previous", p.Previous),
	}
}

func familyNames(plans []FamilyPlan) []string {
	names := make([]string, 0, len(plans))
	for _, p := range plans {
		names = append(names, p.Family)
	}
	return names
}
