package main

import (
	"context"
	"io"
	"os"

	"github.com/clinia/indexsync/arangox"
	"github.com/clinia/indexsync/elasticx"
	"github.com/clinia/indexsync/elasticx/migrate"
	"github.com/clinia/indexsync/elasticx/reindex"
	"github.com/clinia/indexsync/elasticx/template"
	"github.com/clinia/indexsync/internal/config"
	"github.com/clinia/indexsync/loggerx"
	"github.com/clinia/indexsync/otelx"
	"go.opentelemetry.io/otel/attribute"
)

const serviceName = "indexsync"

type recordStore interface {
	reindex.RecordSource
	reindex.RecordLoader
}

// openRecordStore connects to the authoritative record store. Tests replace it.
var openRecordStore = func(ctx context.Context, c *config.Config, l *loggerx.Logger) (recordStore, error) {
	db, err := arangox.Connect(ctx, c.Arango)
	if err != nil {
		return nil, err
	}

	s, err := arangox.NewRecordStore(arangox.NewRecordStoreOptions{
		Database:   db,
		Collection: c.Arango.Collection,
		ScopeField: c.Arango.ScopeField,
		Logger:     l,
	})
	if err != nil {
		return nil, err
	}

	if err := s.CheckCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

type app struct {
	cfg      *config.Config
	l        *loggerx.Logger
	tracer   *otelx.Tracer
	meter    *otelx.Meter
	migrator *migrate.Migrator
}

func newApp(ctx context.Context, c *config.Config, logs io.Writer) (*app, error) {
	l := loggerx.NewWithWriter(logs, c.Log).WithFields(attribute.String("service.name", serviceName))

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = serviceName
	}
	tracer, err := otelx.NewTracer(serviceName, l, &c.Telemetry)
	if err != nil {
		return nil, err
	}
	meter, err := otelx.NewMeter(serviceName, l, &c.Telemetry)
	if err != nil {
		return nil, err
	}

	client, err := elasticx.NewClient(c.Elasticsearch, l)
	if err != nil {
		return nil, err
	}

	store, err := openRecordStore(ctx, c, l)
	if err != nil {
		l.WithError(err).Error(ctx, "could not open the record store")
		return nil, err
	}

	families := make([]migrate.Family, 0, len(c.Families))
	for _, f := range c.Families {
		families = append(families, migrate.Family{Name: f.Name, Template: f.Template})
	}

	reindexer := reindex.NewReindexer(l, store, reindex.NewBulkIndexer(client, store, c.Projections()),
		reindex.WithPageSize(c.Migration.PageSize),
		reindex.WithScope(c.Migration.Scope),
	)

	m, err := migrate.NewMigrator(migrate.NewMigratorOptions{
		Client:         client,
		Templates:      template.NewFSSource(os.DirFS(c.Templates.Dir)),
		Reindexer:      reindexer,
		Families:       families,
		DryRun:         c.Migration.DryRun,
		SweepOrphans:   c.Migration.SweepOrphans,
		PublishRetries: c.Migration.PublishRetries,
		Logger:         l,
		Tracer:         tracer,
		Meter:          meter,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: c, l: l, tracer: tracer, meter: meter, migrator: m}, nil
}

func (a *app) shutdown(ctx context.Context) {
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.l.WithError(err).Warn(ctx, "could not flush traces")
	}
	if err := a.meter.Shutdown(ctx); err != nil {
		a.l.WithError(err).Warn(ctx, "could not stop the meter")
	}
}
