package emotion

// Totals sums the before and after counts of every tally, per label.
// Labels outside the label set are ignored.
func Totals(tallies []Tally) (before, after Counts) {
	before, after = NewCounts(), NewCounts()
	for _, t := range tallies {
		for _, l := range Labels {
			before[l] += t.Before[l]
			after[l] += t.After[l]
		}
	}
	return before, after
}

// Dominant returns the label with the highest count.
// Ties go to the label that comes first in Labels, so all-zero counts yield Labels[0].
func Dominant(counts Counts) Label {
	dominant := Labels[0]
	for _, l := range Labels[1:] {
		if counts[l] > counts[dominant] {
			dominant = l
		}
	}
	return dominant
}

// Aggregate builds the session Statistics out of raw tallies.
// `names` maps subject ids to display names; missing ids are left for the caller to default.
// Only an empty tally list has no dominant label. A nil interp means DefaultInterpreter.
func Aggregate(sessionID string, tallies []Tally, names map[string]string, interp *Interpreter) Statistics {
	if interp == nil {
		interp = DefaultInterpreter()
	}
	stats := Statistics{
		SessionID: sessionID,
		Rows:      make([]SubjectRow, 0, len(tallies)),
	}
	stats.TotalBefore, stats.TotalAfter = Totals(tallies)

	for _, t := range tallies {
		row := SubjectRow{
			SubjectID:   t.SubjectID,
			Name:        names[t.SubjectID],
			Before:      t.Before,
			After:       t.After,
			TotalFrames: t.TotalFrames,
			HasData:     !(t.Before.IsZero() && t.After.IsZero()),
		}
		if row.Before == nil {
			row.Before = NewCounts()
		}
		if row.After == nil {
			row.After = NewCounts()
		}
		stats.TotalFrames += t.TotalFrames
		stats.Rows = append(stats.Rows, row)
	}

	if len(tallies) > 0 {
		stats.Dominant = Dominant(stats.TotalAfter)
		stats.HasDominant = true
		stats.Message = interp.Message(stats.Dominant)
	}
	return stats
}
