package core

import (
	"strings"

	"github.com/pkg/errors"
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrderings parses a comma separated list of fields, eg: "-started_at,outcome".
// A leading "-" means descending. Only fields in `allowed` are accepted.
func ParseOrderings(val string, allowed ...string) ([]DBOrdering, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, nil
	}

	var orderings []DBOrdering
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !contains(allowed, field) {
			return nil, NewValidationError(
				errors.Errorf("cannot order by %q", field),
				FieldError{Field: "ordering", Error: "invalid ordering field: " + field},
			)
		}
		orderings = append(orderings, DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
