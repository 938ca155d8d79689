package indexer

import "time"

// Outcome tags what happened to one note during an index run.
type Outcome string

const (
	OutcomeIndexed   Outcome = "indexed"   // Unseen note, fully indexed
	OutcomeUpdated   Outcome = "updated"   // Changed note, re-chunked and re-embedded
	OutcomeDeleted   Outcome = "deleted"   // Note gone from the vault, removed from index
	OutcomeUnchanged Outcome = "unchanged" // Fingerprint match, skipped entirely
	OutcomeSkipped   Outcome = "skipped"   // Per-note failure, recorded and passed over
)

// Skip records why a note was passed over during a run.
type Skip struct {
	SourcePath string `json:"source_path"`
	Reason     string `json:"reason"`
}

// Summary aggregates per-note outcomes of one index run.
type Summary struct {
	Indexed    int           `json:"indexed"`
	Updated    int           `json:"updated"`
	Deleted    int           `json:"deleted"`
	Unchanged  int           `json:"unchanged"`
	Skipped    int           `json:"skipped"`
	Skips      []Skip        `json:"skips,omitempty"`
	Generation uint64        `json:"generation"`
	Duration   time.Duration `json:"duration"`
}

// record tallies one outcome into the summary.
func (s *Summary) record(o Outcome) {
	switch o {
	case OutcomeIndexed:
		s.Indexed++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeDeleted:
		s.Deleted++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeSkipped:
		s.Skipped++
	}
}
