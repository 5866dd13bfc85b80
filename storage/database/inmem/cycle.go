package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/LucadeVeintemilla/emotionTracking/core"
	"github.com/LucadeVeintemilla/emotionTracking/core/live"
)

type cycleRepository struct {
	mutex sync.RWMutex
	table map[string][]live.CycleRecord // session id -> records, in insertion order
}

var _ live.CycleRecorder = (*cycleRepository)(nil)

func NewCycleRepository() *cycleRepository {
	return &cycleRepository{table: make(map[string][]live.CycleRecord)}
}

func (repo *cycleRepository) RecordCycle(_ context.Context, rec live.CycleRecord) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()
	repo.table[rec.SessionID] = append(repo.table[rec.SessionID], rec)
	return nil
}

func (repo *cycleRepository) QueryCycles(_ context.Context, sessionID string, ordering ...core.DBOrdering) ([]live.CycleRecord, error) {
	repo.mutex.RLock()
	recs := append([]live.CycleRecord(nil), repo.table[sessionID]...)
	repo.mutex.RUnlock()

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "started_at", Ascending: true}}
	}
	for _, ord := range ordering {
		if _, ok := cycleFieldCmp[ord.Field]; !ok {
			return nil, errors.Errorf("cannot order capture cycles by %q", ord.Field)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		for _, ord := range ordering {
			c := cycleFieldCmp[ord.Field](recs[i], recs[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return recs, nil
}

var cycleFieldCmp = map[string]func(a, b live.CycleRecord) int{
	"started_at":  func(a, b live.CycleRecord) int { return cmpTime(a.StartedAt.UnixNano(), b.StartedAt.UnixNano()) },
	"finished_at": func(a, b live.CycleRecord) int { return cmpTime(a.FinishedAt.UnixNano(), b.FinishedAt.UnixNano()) },
	"subject_id":  func(a, b live.CycleRecord) int { return strings.Compare(a.SubjectID, b.SubjectID) },
	"outcome":     func(a, b live.CycleRecord) int { return strings.Compare(string(a.Outcome), string(b.Outcome)) },
}

func cmpTime(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
