package migrate

// Phase is a state of the migration state machine.
//
//	IDLE -> CHECKING -> REBUILDING -> PUBLISHING -> CLEANING -> IDLE
//
// CHECKING goes straight back to IDLE when no family changed.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseChecking   Phase = "CHECKING"
	PhaseRebuilding Phase = "REBUILDING"
	PhasePublishing Phase = "PUBLISHING"
	PhaseCleaning   Phase = "CLEANING"
)

func (p Phase) String() string {
	return string(p)
}

// Outcome is how a migration run ended.
type Outcome string

const (
	// OutcomeNoop means every family already matched its template.
	OutcomeNoop     Outcome = "noop"
	OutcomeMigrated Outcome = "migrated"
	// OutcomeDryRun means changes were detected and reported but not applied.
	OutcomeDryRun Outcome = "dry_run"
	OutcomeFailed Outcome = "failed"
)
