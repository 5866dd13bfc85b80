package live

import (
	"context"
	"time"

	"github.com/LucadeVeintemilla/emotionTracking/core"
)

type Outcome string

// Cycle outcomes
const (
	OutcomeAccepted  Outcome = "accepted"  // result written to the preview
	OutcomeFailed    Outcome = "failed"    // error flag written to the preview
	OutcomeStale     Outcome = "stale"     // subject changed while in flight
	OutcomeDiscarded Outcome = "discarded" // session closed while in flight
)

// Cycle is one tick's unit of work. SessionID and SubjectID are fixed at creation.
type Cycle struct {
	ID         string
	SessionID  string
	SubjectID  string
	Raw        []byte
	Frame      []byte
	StartedAt  time.Time
	FinishedAt time.Time
	Artifact   *Artifact
	Err        error
}

// CycleRecord is the persisted summary of a finished cycle. Frames are not kept.
type CycleRecord struct {
	ID         string    `json:"id" db:"id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	SubjectID  string    `json:"student_id" db:"subject_id"`
	Outcome    Outcome   `json:"outcome" db:"outcome"`
	ErrorKind  string    `json:"error_kind,omitempty" db:"error_kind"`
	Error      string    `json:"error,omitempty" db:"error"`
	FrameSize  int       `json:"frame_size" db:"frame_size"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
}

func (c *Cycle) Record(outcome Outcome) CycleRecord {
	rec := CycleRecord{
		ID:         c.ID,
		SessionID:  c.SessionID,
		SubjectID:  c.SubjectID,
		Outcome:    outcome,
		FrameSize:  len(c.Frame),
		StartedAt:  c.StartedAt,
		FinishedAt: c.FinishedAt,
	}
	if c.Err != nil {
		rec.ErrorKind = KindOf(c.Err).String()
		rec.Error = c.Err.Error()
	}
	return rec
}

// CycleOrderingFields are the fields cycle history can be ordered by.
var CycleOrderingFields = []string{"started_at", "finished_at", "subject_id", "outcome"}

type CycleRecorder interface {
	RecordCycle(ctx context.Context, rec CycleRecord) error
	// QueryCycles lists the cycles of a session, by start time when no ordering is given.
	QueryCycles(ctx context.Context, sessionID string, orderings ...core.DBOrdering) ([]CycleRecord, error)
}
