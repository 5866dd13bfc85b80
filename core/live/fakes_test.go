package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LucadeVeintemilla/emotionTracking/core"
	logsvc "github.com/LucadeVeintemilla/emotionTracking/services/logger"
)

const okImage = `{"image": "data:image/jpeg;base64,aGVsbG8="}` // "hello"

type fakeSource struct {
	mu    sync.Mutex
	calls int
	errs  []error // consumed in order; nil entries succeed
}

func (f *fakeSource) Capture(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return []byte("raw-frame"), nil
}

type passthrough struct{}

func (passthrough) Preprocess(_ context.Context, raw []byte) ([]byte, error) {
	return raw, nil
}

// gatedTransport blocks every exchange until the test releases it (when gated).
type gatedTransport struct {
	mu          sync.Mutex
	calls       int
	inFlight    int
	maxInFlight int
	lastReq     Request
	ctxErrs     []error

	gate    chan struct{}
	entered chan struct{}
	resp    Response
	err     error
}

func newGatedTransport(gated bool) *gatedTransport {
	t := &gatedTransport{
		entered: make(chan struct{}, 64),
		resp:    Response{Status: 200, Body: []byte(okImage)},
	}
	if gated {
		t.gate = make(chan struct{})
	}
	return t
}

func (t *gatedTransport) Exchange(ctx context.Context, req Request) (Response, error) {
	t.mu.Lock()
	t.calls++
	t.inFlight++
	if t.inFlight > t.maxInFlight {
		t.maxInFlight = t.inFlight
	}
	t.lastReq = req
	resp, err := t.resp, t.err
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.inFlight--
		t.mu.Unlock()
	}()

	select {
	case t.entered <- struct{}{}:
	default:
	}
	if t.gate != nil {
		select {
		case <-t.gate:
		case <-ctx.Done():
			t.mu.Lock()
			t.ctxErrs = append(t.ctxErrs, ctx.Err())
			t.mu.Unlock()
			return Response{}, ctx.Err()
		}
	}
	return resp, err
}

func (t *gatedTransport) release() {
	t.gate <- struct{}{}
}

func (t *gatedTransport) waitEntered(tb testing.TB) {
	tb.Helper()
	select {
	case <-t.entered:
	case <-time.After(2 * time.Second):
		tb.Fatal("exchange never started")
	}
}

func (t *gatedTransport) stats() (calls, maxInFlight int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls, t.maxInFlight
}

type memRecorder struct {
	mu      sync.Mutex
	records []CycleRecord
}

func (r *memRecorder) RecordCycle(_ context.Context, rec CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memRecorder) QueryCycles(_ context.Context, sessionID string, _ ...core.DBOrdering) ([]CycleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var recs []CycleRecord
	for _, rec := range r.records {
		if rec.SessionID == sessionID {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

type statusSink struct {
	mu       sync.Mutex
	statuses []Status
}

func (s *statusSink) Notify(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
}

func (s *statusSink) last() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[len(s.statuses)-1]
}

var errCameraBusy = errors.New("camera busy")

type harness struct {
	sched     *Scheduler
	source    *fakeSource
	transport *gatedTransport
	recorder  *memRecorder
	sink      *statusSink
	logger    *logsvc.RecordingLogger
}

// newHarness builds a scheduler whose timer never fires on its own (unless interval is set),
// so tests drive ticks by hand.
func newHarness(t *testing.T, gated bool, interval time.Duration) *harness {
	if interval == 0 {
		interval = time.Hour
	}
	h := &harness{
		source:    &fakeSource{},
		transport: newGatedTransport(gated),
		recorder:  &memRecorder{},
		sink:      &statusSink{},
		logger:    logsvc.NewRecordingLogger(),
	}
	sched, err := NewScheduler("sess-1", Deps{
		Source:       h.source,
		Preprocessor: passthrough{},
		Transport:    h.transport,
		Recorder:     h.recorder,
		Logger:       h.logger,
		Listeners:    []Listener{h.sink},
		Interval:     interval,
	})
	require.NoError(t, err)
	h.sched = sched
	t.Cleanup(func() {
		sched.Close()
		sched.Wait()
	})
	return h
}
