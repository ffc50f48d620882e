package migrate

import (
	"context"
	"slices"

	"github.com/clinia/indexsync/elasticx"
	"github.com/clinia/indexsync/elasticx/fingerprint"
	"github.com/clinia/indexsync/elasticx/reindex"
	"github.com/clinia/indexsync/errorx"
	"github.com/clinia/indexsync/loggerx"
	"github.com/clinia/indexsync/retryx"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

// check applies the templates and compares their fingerprint with the one of the
// index each alias points to.
func (r *run) check(ctx context.Context, l *loggerx.Logger) error {
	if err := r.client.WaitReady(ctx, retryx.WithRetryCount(r.readinessRetries)); err != nil {
		return err
	}

	aliases, err := r.client.Aliases(ctx)
	if err != nil {
		return err
	}
	r.aliases = aliases

	for _, f := range r.families {
		p, err := r.plan(ctx, f)
		if err != nil {
			l.WithError(err).Error(ctx, "could not check index family", attribute.String("index.family", f.Name))
			return err
		}
		r.res.Families = append(r.res.Families, p)

		if p.Changed {
			l.Info(ctx, "index family changed",
				append(familyAttrs(p),
					attribute.String("fingerprint.current", p.Current),
					attribute.String("fingerprint.desired", p.Desired),
					attribute.Bool("index.legacy", p.Legacy),
				)...,
			)
		} else {
			l.Debug(ctx, "index family up to date", familyAttrs(p)...)
		}
	}

	return nil
}

func (r *run) plan(ctx context.Context, f Family) (FamilyPlan, error) {
	tpl, err := r.templates.Template(ctx, f.Template)
	if err != nil {
		return FamilyPlan{}, err
	}

	desired, err := fingerprint.Template(tpl.Body)
	if err != nil {
		return FamilyPlan{}, err
	}

	if !r.dryRun {
		if err := r.client.PutIndexTemplate(ctx, tpl.Name, tpl.Body); err != nil {
			return FamilyPlan{}, err
		}
	}

	p := FamilyPlan{
		Family:   f.Name,
		Template: tpl.Name,
		Desired:  desired,
		Target:   elasticx.VersionedIndexName(f.Name, desired).String(),
		Previous: slices.Clone(r.aliases[f.Name]),
	}

	if current, ok := r.aliases.Target(f.Name); ok {
		p.Current, _ = elasticx.IndexName(current).FingerprintFor(f.Name)
	}

	if len(p.Previous) == 0 {
		exists, err := r.client.IndexExists(ctx, f.Name)
		if err != nil {
			return FamilyPlan{}, err
		}
		p.Legacy = exists
	}

	p.Changed = p.Legacy || p.Current != p.Desired
	return p, nil
}

// rebuild fills the target index of every changed family from the record store. The
// targets of unchanged families are the indexes they already serve and are left alone.
func (r *run) rebuild(ctx context.Context, l *loggerx.Logger) error {
	targets := reindex.Targets{}
	for _, p := range r.res.Changed() {
		targets[p.Family] = p.Target
	}

	// A target no alias points to is a leftover of an interrupted run, it is rebuilt
	// from scratch.
	r.fresh = lo.Filter(lo.Values(targets), func(index string, _ int) bool {
		return !r.aliases.References(index)
	})
	slices.Sort(r.fresh)

	if err := r.client.DeleteIndexes(ctx, r.fresh...); err != nil {
		return err
	}
	for _, index := range r.fresh {
		if err := r.client.CreateIndex(ctx, index); err != nil {
			r.discard(ctx, l)
			return err
		}
	}

	records, err := r.reindexer.ReindexAll(ctx, targets)
	r.res.Records = records
	if err != nil {
		l.WithError(err).Error(ctx, "reindex failed, discarding rebuilt indexes",
			attribute.StringSlice("index.targets", r.fresh),
			attribute.Int("migration.records", records),
		)
		r.discard(ctx, l)
		return err
	}

	if err := r.client.Refresh(ctx, lo.Values(targets)...); err != nil {
		r.discard(ctx, l)
		return err
	}

	l.Info(ctx, "index families rebuilt",
		attribute.StringSlice("index.targets", r.fresh),
		attribute.Int("migration.records", records),
	)
	return nil
}

// discard deletes the targets created by the run. It runs even when ctx is done.
func (r *run) discard(ctx context.Context, l *loggerx.Logger) {
	if len(r.fresh) == 0 {
		return
	}
	if err := r.client.DeleteIndexes(context.WithoutCancel(ctx), r.fresh...); err != nil {
		l.WithError(err).Error(ctx, "could not discard rebuilt indexes", attribute.StringSlice("index.targets", r.fresh))
	}
}

// publish points the alias of every changed family to its target. On failure the
// targets that did not go live are discarded.
func (r *run) publish(ctx context.Context, l *loggerx.Logger) error {
	for _, p := range r.res.Changed() {
		if err := r.publishFamily(ctx, l.WithFields(familyAttrs(p)...), p); err != nil {
			r.discardUnpublished(ctx, l)
			return err
		}
	}
	return nil
}

// discardUnpublished deletes the targets created by the run that no alias references.
// Nothing is deleted when the aliases cannot be read back.
func (r *run) discardUnpublished(ctx context.Context, l *loggerx.Logger) {
	if len(r.fresh) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	aliases, err := r.client.Aliases(ctx)
	if err != nil {
		l.WithError(err).Error(ctx, "could not read aliases, keeping rebuilt indexes", attribute.StringSlice("index.targets", r.fresh))
		return
	}

	unpublished := lo.Filter(r.fresh, func(index string, _ int) bool {
		return !aliases.References(index)
	})
	if len(unpublished) == 0 {
		return
	}
	if err := r.client.DeleteIndexes(ctx, unpublished...); err != nil {
		l.WithError(err).Error(ctx, "could not discard unpublished indexes", attribute.StringSlice("index.targets", unpublished))
		return
	}
	l.Info(ctx, "unpublished indexes discarded", attribute.StringSlice("index.targets", unpublished))
}

// publishFamily swaps the alias in one request. A failed request may still have been
// applied by the cluster, so the aliases are read back before deciding to retry.
func (r *run) publishFamily(ctx context.Context, l *loggerx.Logger, p FamilyPlan) error {
	actions := []elasticx.AliasAction{}
	for _, prev := range p.Superseded() {
		actions = append(actions, elasticx.RemoveAlias(prev, p.Family))
	}
	actions = append(actions, elasticx.AddAlias(p.Target, p.Family))
	if p.Legacy {
		actions = append(actions, elasticx.RemoveIndex(p.Family))
	}

	attempt := 0
	err := retryx.ExponentialRetry(func() error {
		attempt++
		err := r.client.UpdateAliases(ctx, actions...)
		if err == nil {
			return nil
		}

		if published, verr := r.published(ctx, p); verr == nil && published {
			l.Warn(ctx, "alias update reported a failure but was applied", attribute.Int("publish.attempt", attempt))
			return nil
		}

		l.WithError(err).Warn(ctx, "alias update failed", attribute.Int("publish.attempt", attempt))
		return err
	},
		retryx.WithContext(ctx),
		retryx.WithRetryCount(r.publishRetries),
		retryx.WithInterval(r.publishRetryInterval),
		retryx.WithRetryIf(errorx.IsTransportFailureError),
	)
	if err != nil {
		return err
	}

	l.Info(ctx, "index family published")
	return nil
}

func (r *run) published(ctx context.Context, p FamilyPlan) (bool, error) {
	aliases, err := r.client.Aliases(ctx)
	if err != nil {
		return false, err
	}
	target, ok := aliases.Target(p.Family)
	return ok && target == p.Target, nil
}

// clean deletes the indexes superseded by the run. The aliases have moved already, so
// failures are logged and reported in the result only.
func (r *run) clean(ctx context.Context, l *loggerx.Logger) error {
	aliases, err := r.client.Aliases(ctx)
	if err != nil {
		l.WithError(err).Warn(ctx, "could not list aliases, superseded indexes are kept")
		r.res.Leftovers = lo.FlatMap(r.res.Changed(), func(p FamilyPlan, _ int) []string { return p.Superseded() })
		return nil
	}

	var stale []string
	for _, p := range r.res.Changed() {
		stale = append(stale, lo.Reject(p.Superseded(), func(index string, _ int) bool {
			return aliases.References(index)
		})...)
	}

	if r.sweepOrphans {
		stale = append(stale, r.orphans(ctx, l, aliases)...)
	}

	stale = lo.Uniq(stale)
	slices.Sort(stale)
	if len(stale) == 0 {
		return nil
	}

	if err := r.client.DeleteIndexes(ctx, stale...); err != nil {
		l.WithError(err).Warn(ctx, "could not delete superseded indexes", attribute.StringSlice("index.previous", stale))
		r.res.Leftovers = stale
		return nil
	}

	l.Info(ctx, "superseded indexes deleted", attribute.StringSlice("index.previous", stale))
	return nil
}

// orphans lists the versioned indexes of the families that no alias points to.
func (r *run) orphans(ctx context.Context, l *loggerx.Logger, aliases elasticx.Aliases) []string {
	var orphans []string
	for _, f := range r.families {
		names, err := r.client.Indexes(ctx, f.Name+"-*")
		if err != nil {
			l.WithError(err).Warn(ctx, "could not list versioned indexes", attribute.String("index.family", f.Name))
			continue
		}
		orphans = append(orphans, lo.Filter(names, func(name string, _ int) bool {
			return elasticx.IndexName(name).IsGeneratedVersionOf(f.Name) && !aliases.References(name)
		})...)
	}
	return orphans
}
