package emotion

import (
	"strings"
)

type Label string

// Emotion labels
const (
	Angry    Label = "angry"
	Fear     Label = "fear"
	Happy    Label = "happy"
	Sad      Label = "sad"
	Surprise Label = "surprise"
	Neutral  Label = "neutral"
)

// Labels is the closed label set. Its order is the display order and the tie-break order.
var Labels = []Label{Angry, Fear, Happy, Sad, Surprise, Neutral}

var labelAliases = map[string]Label{
	"angrys":    Angry, // legacy backend key
	"surprised": Surprise,
}

// ParseLabel maps a backend key to a Label.
func ParseLabel(s string) (Label, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, l := range Labels {
		if string(l) == s {
			return l, true
		}
	}
	l, ok := labelAliases[s]
	return l, ok
}

// Counts maps labels to non-negative counts. Missing labels read as 0.
type Counts map[Label]int

// NewCounts returns Counts with every label set to 0.
func NewCounts() Counts {
	c := make(Counts, len(Labels))
	for _, l := range Labels {
		c[l] = 0
	}
	return c
}

func (c Counts) Get(l Label) int {
	return c[l]
}

// Values returns the counts in Labels order.
func (c Counts) Values() []int {
	vals := make([]int, len(Labels))
	for i, l := range Labels {
		vals[i] = c[l]
	}
	return vals
}

func (c Counts) IsZero() bool {
	for _, l := range Labels {
		if c[l] != 0 {
			return false
		}
	}
	return true
}

// Tally is the backend's per-subject report for one session.
type Tally struct {
	SubjectID   string `json:"student_id"`
	Before      Counts `json:"before"`
	After       Counts `json:"after"`
	TotalFrames int    `json:"total_frames"`
}

// SubjectRow is a Tally with its subject's display name resolved.
type SubjectRow struct {
	SubjectID   string `json:"student_id"`
	Name        string `json:"name"`
	Before      Counts `json:"before"`
	After       Counts `json:"after"`
	TotalFrames int    `json:"total_frames"`
	HasData     bool   `json:"has_data"`
}

// Statistics is derived, in-memory only.
type Statistics struct {
	SessionID   string       `json:"session_id"`
	Rows        []SubjectRow `json:"rows"`
	TotalBefore Counts       `json:"total_before"`
	TotalAfter  Counts       `json:"total_after"`
	TotalFrames int          `json:"total_frames"`
	Dominant    Label        `json:"dominant,omitempty"`
	HasDominant bool         `json:"has_dominant"`
	Message     string       `json:"message,omitempty"`
}
