package migrate

import "github.com/samber/lo"

// Family is a logical index published as an alias over versioned indexes.
type Family struct {
	// Name is the logical index name.
	Name string
	// Template names the schema template of the family. It defaults to Name.
	Template string
}

// FamilyPlan is what CHECKING found out about a family.
type FamilyPlan struct {
	Family   string `json:"family"`
	Template string `json:"template"`
	// Desired is the fingerprint of the template.
	Desired string `json:"desired_fingerprint"`
	// Current is the fingerprint encoded in the name of the alias target, if any.
	Current string `json:"current_fingerprint,omitempty"`
	// Target is the versioned index holding the desired schema.
	Target string `json:"target"`
	// Previous lists the indexes behind the alias before the run.
	Previous []string `json:"previous,omitempty"`
	// Legacy is set when a concrete index occupies the logical name.
	Legacy  bool `json:"legacy,omitempty"`
	Changed bool `json:"changed"`
}

// Superseded returns the indexes to retire once the alias points to the target.
func (p FamilyPlan) Superseded() []string {
	return lo.Without(p.Previous, p.Target)
}

// Result describes a migration run.
type Result struct {
	RunID   string  `json:"run_id"`
	Outcome Outcome `json:"outcome"`
	// Phase is the last phase entered, the failing one when the run failed.
	Phase    Phase        `json:"phase"`
	DryRun   bool         `json:"dry_run,omitempty"`
	Families []FamilyPlan `json:"families"`
	Records  int          `json:"records"`
	// Leftovers are superseded indexes CLEANING could not delete.
	Leftovers []string `json:"leftovers,omitempty"`
}

// Changed returns the plans of the families whose schema changed.
func (r *Result) Changed() []FamilyPlan {
	return lo.Filter(r.Families, func(p FamilyPlan, _ int) bool { return p.Changed })
}
