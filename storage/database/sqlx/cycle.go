package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/LucadeVeintemilla/emotionTracking/core"
	"github.com/LucadeVeintemilla/emotionTracking/core/live"
)

const cycleColumns = "id, session_id, subject_id, outcome, error_kind, error, frame_size, started_at, finished_at"

type cycleRow struct {
	ID         string      `db:"id"`
	SessionID  string      `db:"session_id"`
	SubjectID  string      `db:"subject_id"`
	Outcome    string      `db:"outcome"`
	ErrorKind  null.String `db:"error_kind"`
	Error      null.String `db:"error"`
	FrameSize  int         `db:"frame_size"`
	StartedAt  time.Time   `db:"started_at"`
	FinishedAt null.Time   `db:"finished_at"`
}

type cycleRepository struct {
	db *sqlx.DB
}

var _ live.CycleRecorder = (*cycleRepository)(nil) // interface compliance check

func NewCycleRepository(db *sqlx.DB) *cycleRepository {
	return &cycleRepository{db: db}
}

func (repo cycleRepository) toRow(rec live.CycleRecord) cycleRow {
	return cycleRow{
		ID:         rec.ID,
		SessionID:  rec.SessionID,
		SubjectID:  rec.SubjectID,
		Outcome:    string(rec.Outcome),
		ErrorKind:  null.NewString(rec.ErrorKind, rec.ErrorKind != ""),
		Error:      null.NewString(rec.Error, rec.Error != ""),
		FrameSize:  rec.FrameSize,
		StartedAt:  rec.StartedAt.UTC(),
		FinishedAt: null.NewTime(rec.FinishedAt.UTC(), !rec.FinishedAt.IsZero()),
	}
}

func (repo cycleRepository) fromRow(row cycleRow) live.CycleRecord {
	rec := live.CycleRecord{
		ID:         row.ID,
		SessionID:  row.SessionID,
		SubjectID:  row.SubjectID,
		Outcome:    live.Outcome(row.Outcome),
		ErrorKind:  row.ErrorKind.String,
		Error:      row.Error.String,
		FrameSize:  row.FrameSize,
		StartedAt:  row.StartedAt.UTC(),
		FinishedAt: row.FinishedAt.Time,
	}
	if row.FinishedAt.Valid {
		rec.FinishedAt = rec.FinishedAt.UTC()
	}
	return rec
}

func (repo cycleRepository) RecordCycle(ctx context.Context, rec live.CycleRecord) error {
	q := repo.db.Rebind("INSERT INTO capture_cycles (" + cycleColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	row := repo.toRow(rec)
	_, err := repo.db.ExecContext(ctx, q,
		row.ID, row.SessionID, row.SubjectID, row.Outcome, row.ErrorKind, row.Error, row.FrameSize, row.StartedAt, row.FinishedAt)
	if err != nil {
		return errors.Wrap(err, "inserting capture cycle")
	}
	return nil
}

func (repo cycleRepository) QueryCycles(ctx context.Context, sessionID string, ordering ...core.DBOrdering) ([]live.CycleRecord, error) {
	orderBy, err := orderClause(ordering)
	if err != nil {
		return nil, err
	}
	q := repo.db.Rebind("SELECT " + cycleColumns + " FROM capture_cycles WHERE session_id = ? ORDER BY " + orderBy)

	var rows []cycleRow
	if err := repo.db.SelectContext(ctx, &rows, q, sessionID); err != nil {
		return nil, errors.Wrap(err, "querying capture cycles")
	}
	recs := make([]live.CycleRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, repo.fromRow(row))
	}
	return recs, nil
}

// orderClause only lets through the fields listed in live.CycleOrderingFields.
func orderClause(ordering []core.DBOrdering) (string, error) {
	if len(ordering) == 0 {
		return "started_at ASC, id ASC", nil
	}
	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if !isOrderingField(ord.Field) {
			return "", errors.Errorf("cannot order capture cycles by %q", ord.Field)
		}
		orderList = append(orderList, ord.String())
	}
	orderList = append(orderList, "id ASC")
	return strings.Join(orderList, ", "), nil
}

func isOrderingField(field string) bool {
	for _, f := range live.CycleOrderingFields {
		if f == field {
			return true
		}
	}
	return false
}
