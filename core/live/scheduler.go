package live

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/LucadeVeintemilla/emotionTracking/core"
)

const DefaultInterval = 2 * time.Second

// mockable
var nowFunc = time.Now

type (
	// FrameSource captures one still frame. It may fail when the camera is busy or unavailable.
	FrameSource interface {
		Capture(ctx context.Context) ([]byte, error)
	}

	// Preprocessor bounds a raw frame to an uploadable size.
	Preprocessor interface {
		Preprocess(ctx context.Context, raw []byte) ([]byte, error)
	}

	Deps struct {
		Source       FrameSource
		Preprocessor Preprocessor
		Transport    Transport
		Recorder     CycleRecorder // optional
		Logger       core.Logger
		Listeners    []Listener
		Interval     time.Duration
	}

	// Stats counts what the scheduler did with its ticks.
	Stats struct {
		Started   int64 `json:"started"`
		Skipped   int64 `json:"skipped"`
		Accepted  int64 `json:"accepted"`
		Failed    int64 `json:"failed"`
		Stale     int64 `json:"stale"`
		Discarded int64 `json:"discarded"`
	}

	// Scheduler drives the capture cycles of one live session.
	Scheduler struct {
		state    *State
		source   FrameSource
		prep     Preprocessor
		coord    *Coordinator
		recorder CycleRecorder
		logger   core.Logger
		interval time.Duration

		ctx    context.Context // cancelled on Close
		cancel context.CancelFunc

		mu     sync.Mutex // guards the ticker goroutine
		halt   chan struct{}
		halted chan struct{}

		cycles sync.WaitGroup
		stats  Stats
	}
)

func NewScheduler(sessionID string, deps Deps) (*Scheduler, error) {
	if err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(sessionID, "sessionID"),
	).Check(); err != nil {
		return nil, errors.Wrap(err, "creating scheduler")
	}
	// vala.IsNotNil panics on value types
	switch {
	case deps.Source == nil:
		return nil, errors.Wrap(errMissingDep, "creating scheduler: Source")
	case deps.Preprocessor == nil:
		return nil, errors.Wrap(errMissingDep, "creating scheduler: Preprocessor")
	case deps.Transport == nil:
		return nil, errors.Wrap(errMissingDep, "creating scheduler: Transport")
	case deps.Logger == nil:
		return nil, errors.Wrap(errMissingDep, "creating scheduler: Logger")
	}

	interval := deps.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	state := NewState(sessionID)
	for _, l := range deps.Listeners {
		state.Subscribe(l)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		state:    state,
		source:   deps.Source,
		prep:     deps.Preprocessor,
		coord:    NewCoordinator(deps.Transport),
		recorder: deps.Recorder,
		logger:   deps.Logger,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (s *Scheduler) SessionID() string {
	return s.state.SessionID()
}

func (s *Scheduler) State() *State {
	return s.state
}

func (s *Scheduler) Tag(subject Subject) error {
	return s.state.Tag(subject)
}

func (s *Scheduler) Untag() error {
	return s.state.Untag()
}

func (s *Scheduler) Status() Status {
	return s.state.Status()
}

// Start begins ticking. It fails when no subject is tagged; it is a no-op while already recording.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := s.state.start()
	if err != nil || !changed {
		return err
	}
	s.halt, s.halted = make(chan struct{}), make(chan struct{})
	go s.loop(s.halt, s.halted)
	s.logger.Info("live session recording", map[string]interface{}{
		"session_id": s.SessionID(),
		"interval":   s.interval.String(),
	})
	return nil
}

// Stop cancels the timer. When it returns, no new cycle can start.
// A cycle already in flight still completes and is applied if its subject is still tagged.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := s.state.stop()
	if err != nil {
		return err
	}
	s.haltLoop()
	if changed {
		s.logger.Info("live session stopped", map[string]interface{}{"session_id": s.SessionID()})
	}
	return nil
}

// Close ends the session. The in-flight cycle is cancelled and its result, if any, is ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.close() {
		return
	}
	s.cancel()
	s.haltLoop()
	s.logger.Info("live session closed", map[string]interface{}{"session_id": s.SessionID()})
}

// Wait blocks until every started cycle has finished.
func (s *Scheduler) Wait() {
	s.cycles.Wait()
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Started:   atomic.LoadInt64(&s.stats.Started),
		Skipped:   atomic.LoadInt64(&s.stats.Skipped),
		Accepted:  atomic.LoadInt64(&s.stats.Accepted),
		Failed:    atomic.LoadInt64(&s.stats.Failed),
		Stale:     atomic.LoadInt64(&s.stats.Stale),
		Discarded: atomic.LoadInt64(&s.stats.Discarded),
	}
}

// haltLoop must be called with s.mu held.
func (s *Scheduler) haltLoop() {
	if s.halt == nil {
		return
	}
	close(s.halt)
	<-s.halted
	s.halt, s.halted = nil, nil
}

func (s *Scheduler) loop(halt <-chan struct{}, halted chan<- struct{}) {
	defer close(halted)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-halt:
			return
		case <-ticker.C:
			select {
			case <-halt: // halt wins over a simultaneous tick
				return
			default:
				s.Tick()
			}
		}
	}
}

// Tick starts a cycle unless the session is not recording, no subject is tagged or a cycle is in flight.
// Skipped ticks are dropped, never queued. It reports whether a cycle was started.
func (s *Scheduler) Tick() bool {
	id := uuid.New().String()
	subject, reason := s.state.acquire(id)
	if reason != notSkipped {
		atomic.AddInt64(&s.stats.Skipped, 1)
		return false
	}
	atomic.AddInt64(&s.stats.Started, 1)

	c := &Cycle{
		ID:        id,
		SessionID: s.SessionID(),
		SubjectID: subject.ID,
		StartedAt: nowFunc().UTC(),
	}
	s.cycles.Add(1)
	go s.run(c)
	return true
}

func (s *Scheduler) run(c *Cycle) {
	defer s.cycles.Done()
	s.execute(s.ctx, c)
	c.FinishedAt = nowFunc().UTC()

	outcome := s.state.Apply(c)
	switch outcome {
	case OutcomeAccepted:
		atomic.AddInt64(&s.stats.Accepted, 1)
	case OutcomeFailed:
		atomic.AddInt64(&s.stats.Failed, 1)
		s.logger.Warn("capture cycle failed", c.Err, map[string]interface{}{
			"session_id": c.SessionID,
			"student_id": c.SubjectID,
			"kind":       KindOf(c.Err).String(),
		})
	case OutcomeStale:
		atomic.AddInt64(&s.stats.Stale, 1)
		s.logger.Debug("stale capture cycle discarded", map[string]interface{}{
			"session_id": c.SessionID,
			"student_id": c.SubjectID,
			"cycle_id":   c.ID,
		})
	case OutcomeDiscarded:
		atomic.AddInt64(&s.stats.Discarded, 1)
	}

	if s.recorder != nil {
		if err := s.recorder.RecordCycle(context.Background(), c.Record(outcome)); err != nil {
			s.logger.Error("recording capture cycle", errors.Wrap(err, "cycle_id="+c.ID))
		}
	}
}

// execute runs capture, preprocess and submit, stopping at the first failure.
func (s *Scheduler) execute(ctx context.Context, c *Cycle) {
	raw, err := s.source.Capture(ctx)
	if err != nil {
		c.Err = CaptureError(err)
		return
	}
	c.Raw = raw

	frame, err := s.prep.Preprocess(ctx, raw)
	if err != nil {
		c.Err = EncodingError(err)
		return
	}
	c.Frame = frame

	c.Artifact, c.Err = s.coord.Submit(ctx, c)
}
