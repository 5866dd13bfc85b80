package emotion

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/LucadeVeintemilla/emotionTracking/core"
)

var (
	// errors
	ErrSessionRequired = errors.New("a session id is required")
)

type (
	// TallySource provides the raw per-subject tallies for a session.
	TallySource interface {
		SessionTallies(ctx context.Context, sessionID string) ([]Tally, error)
	}

	// NameResolver maps subject ids to display names. Ids it cannot resolve map to student.UnknownName.
	NameResolver interface {
		DisplayNames(ctx context.Context, ids []string) map[string]string
	}

	Service struct {
		source TallySource
		names  NameResolver
		interp *Interpreter
		logger core.Logger
	}
)

func NewService(source TallySource, names NameResolver, interp *Interpreter, logger core.Logger) *Service {
	if interp == nil {
		interp = DefaultInterpreter()
	}
	return &Service{source: source, names: names, interp: interp, logger: logger}
}

// Statistics fetches the tallies of a session and aggregates them.
func (svc *Service) Statistics(ctx context.Context, sessionID string) (Statistics, error) {
	sessionID = core.CleanString(sessionID)
	if sessionID == "" {
		return Statistics{}, core.NewValidationError(
			ErrSessionRequired,
			core.FieldError{Field: "session_id", Error: ErrSessionRequired.Error()},
		)
	}

	tallies, err := svc.source.SessionTallies(ctx, sessionID)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "fetching session tallies")
	}

	ids := make([]string, 0, len(tallies))
	for _, t := range tallies {
		ids = append(ids, t.SubjectID)
	}
	names := svc.names.DisplayNames(ctx, ids)

	stats := Aggregate(sessionID, tallies, names, svc.interp)
	svc.logger.Debug("session statistics computed", map[string]interface{}{
		"session_id": sessionID,
		"subjects":   len(stats.Rows),
		"dominant":   string(stats.Dominant),
	})
	return stats, nil
}

// Summary renders the plain-text report of a session.
func (svc *Service) Summary(ctx context.Context, sessionID string) (Statistics, string, error) {
	stats, err := svc.Statistics(ctx, sessionID)
	if err != nil {
		return Statistics{}, "", err
	}
	var sb strings.Builder
	if err := RenderSummary(&sb, stats); err != nil {
		return Statistics{}, "", errors.Wrap(err, "rendering summary")
	}
	return stats, sb.String(), nil
}
