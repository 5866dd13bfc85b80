package student

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/LucadeVeintemilla/emotionTracking/core"
)

var (
	// errors
	ErrNotFound = errors.New("student not found")

	minSearchRatio = .6
)

type (
	Repository interface {
		QueryStudents(ctx context.Context) ([]Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Student, error) {
	students, err := svc.repo.QueryStudents(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	filter.Search = core.CleanString(filter.Search)
	return Filter(students, filter), nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	id = core.CleanString(id)
	if id == "" {
		return Student{}, ErrNotFound
	}
	return svc.repo.GetStudent(ctx, id)
}

// DisplayName resolves a student id to its display name.
// Unknown ids (and directory failures) yield UnknownName.
func (svc *Service) DisplayName(ctx context.Context, id string) string {
	std, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			svc.logger.Warn("resolving student name", errors.Wrap(err, "id="+id))
		}
		return UnknownName
	}
	return nameOrUnknown(std)
}

// DisplayNames resolves many ids with a single roster query.
func (svc *Service) DisplayNames(ctx context.Context, ids []string) map[string]string {
	names := make(map[string]string, len(ids))
	students, err := svc.repo.QueryStudents(ctx)
	if err != nil {
		svc.logger.Warn("resolving student names", errors.Wrap(err, "querying students"))
	}
	byID := make(map[string]Student, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}
	for _, id := range ids {
		if std, ok := byID[id]; ok {
			names[id] = nameOrUnknown(std)
		} else {
			names[id] = UnknownName
		}
	}
	return names
}

// Search finds a student by id, or by the display name closest to `query`.
func (svc *Service) Search(ctx context.Context, query string) (Student, error) {
	query = core.CleanString(query)
	if query == "" {
		return Student{}, ErrNotFound
	}
	students, err := svc.repo.QueryStudents(ctx)
	if err != nil {
		return Student{}, errors.Wrap(err, "querying students")
	}

	var (
		best      Student
		bestRatio float64
	)
	lquery := strings.ToLower(query)
	for _, s := range students {
		if s.ID == query {
			return s, nil
		}
		ratio := difflib.NewMatcher(
			strings.Split(lquery, ""),
			strings.Split(strings.ToLower(s.DisplayName()), ""),
		).Ratio()
		if ratio > bestRatio {
			best, bestRatio = s, ratio
		}
	}
	if bestRatio < minSearchRatio {
		return Student{}, ErrNotFound
	}
	return best, nil
}

func nameOrUnknown(s Student) string {
	if name := s.DisplayName(); name != "" {
		return name
	}
	return UnknownName
}
