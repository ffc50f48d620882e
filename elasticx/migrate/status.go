package migrate

import (
	"context"

	"github.com/clinia/indexsync/elasticx"
	"github.com/clinia/indexsync/elasticx/fingerprint"
	"go.opentelemetry.io/otel/attribute"
)

// FamilyStatus describes how a family is served and whether it matches its template.
type FamilyStatus struct {
	Family string `json:"family"`
	// Indexes lists the indexes behind the alias.
	Indexes []string `json:"indexes"`
	// Current is the fingerprint encoded in the alias target name.
	Current string `json:"current_fingerprint,omitempty"`
	// Live is the fingerprint of the mapping the cluster reports for the alias target.
	Live      string `json:"live_fingerprint,omitempty"`
	Desired   string `json:"desired_fingerprint"`
	Documents int64  `json:"documents"`
	Legacy    bool   `json:"legacy,omitempty"`
	// Drift is set when the next run would migrate the family.
	Drift bool `json:"drift"`
	// MappingDrift is set when the live mapping no longer matches the template, which
	// happens when the index was altered outside of a migration.
	MappingDrift bool `json:"mapping_drift,omitempty"`
}

// Status reports the state of every family without changing anything on the cluster.
func (m *Migrator) Status(ctx context.Context) ([]FamilyStatus, error) {
	ctx, span, l := m.instrument(ctx, "Status")
	defer span.End()

	aliases, err := m.client.Aliases(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]FamilyStatus, 0, len(m.families))
	for _, f := range m.families {
		s, err := m.familyStatus(ctx, aliases, f)
		if err != nil {
			l.WithError(err).Error(ctx, "could not read index family status", attribute.String("index.family", f.Name))
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

func (m *Migrator) familyStatus(ctx context.Context, aliases elasticx.Aliases, f Family) (FamilyStatus, error) {
	tpl, err := m.templates.Template(ctx, f.Template)
	if err != nil {
		return FamilyStatus{}, err
	}
	desired, err := fingerprint.Template(tpl.Body)
	if err != nil {
		return FamilyStatus{}, err
	}

	s := FamilyStatus{
		Family:  f.Name,
		Indexes: aliases[f.Name],
		Desired: desired,
	}
	if s.Indexes == nil {
		s.Indexes = []string{}
	}

	target, ok := aliases.Target(f.Name)
	if !ok && len(s.Indexes) == 0 {
		exists, err := m.client.IndexExists(ctx, f.Name)
		if err != nil {
			return FamilyStatus{}, err
		}
		if exists {
			s.Legacy = true
			target, ok = f.Name, true
		}
	}

	if ok {
		if !s.Legacy {
			s.Current, _ = elasticx.IndexName(target).FingerprintFor(f.Name)
		}

		mapping, found, err := m.client.Mapping(ctx, target)
		if err != nil {
			return FamilyStatus{}, err
		}
		if found {
			s.Live, _, err = fingerprint.LiveMapping(target, mapping, true)
			if err != nil {
				return FamilyStatus{}, err
			}
		}

		s.Documents, err = m.client.Count(ctx, target)
		if err != nil {
			return FamilyStatus{}, err
		}
	}

	s.Drift = s.Legacy || s.Current != s.Desired
	s.MappingDrift = s.Live != "" && s.Live != s.Desired
	return s, nil
}
