package student

import (
	"strings"
)

// UnknownName is displayed for a student id absent from the directory.
const UnknownName = "Unknown"

// Student is a directory entry. The roster is owned by the external directory;
// this service only reads it.
type Student struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	LastName string   `json:"last_name"`
	Email    string   `json:"email"`
	Images   []string `json:"images,omitempty"` // reference photos
}

func (s Student) DisplayName() string {
	return strings.TrimSpace(s.Name + " " + s.LastName)
}

// QueryFilter narrows a roster query. Empty fields match everything.
type QueryFilter struct {
	IDs    []string `query:"id"`
	Search string   `query:"search"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return len(qf.IDs) == 0 && qf.Search == ""
}

func (qf QueryFilter) matches(s Student) bool {
	if len(qf.IDs) > 0 {
		found := false
		for _, id := range qf.IDs {
			if id == s.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if qf.Search != "" {
		search := strings.ToLower(qf.Search)
		if !strings.Contains(strings.ToLower(s.DisplayName()), search) &&
			!strings.Contains(strings.ToLower(s.Email), search) {
			return false
		}
	}
	return true
}

// Filter applies the QueryFilter to a roster, keeping its order.
func Filter(students []Student, filter QueryFilter) []Student {
	if filter.IsEmpty() {
		return students
	}
	res := make([]Student, 0, len(students))
	for _, s := range students {
		if filter.matches(s) {
			res = append(res, s)
		}
	}
	return res
}
