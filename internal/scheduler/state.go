package scheduler

// State is scraper_job's position in the state machine described by §4.7.
type State string

const (
	// StateUnconfigured means no Schedule Config row exists and the
	// scheduler has never been enabled.
	StateUnconfigured State = "unconfigured"
	StateIdle         State = "idle"
	StateRunning      State = "running"
	StatePaused       State = "paused"
)

const (
	minNextRunTolerance = 30 // seconds in the past still accepted as "now"
	maxNextRunDays      = 30
)
