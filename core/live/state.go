package live

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseArmed
	PhaseRecording
	PhaseStopped
	PhaseClosed
)

var phaseNames = [...]string{"idle", "armed", "recording", "stopped", "closed"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return errors.Errorf("unknown phase %q", text)
}

// Subject is a reference to a directory student. Identity is the ID only.
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Artifact is a displayable backend result: either image bytes or a URL.
type Artifact struct {
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`
	URL         string `json:"url,omitempty"`
}

// Preview is what the live view shows for the tagged subject.
type Preview struct {
	SubjectID string    `json:"student_id,omitempty"`
	CycleID   string    `json:"cycle_id,omitempty"`
	Artifact  *Artifact `json:"artifact,omitempty"`
	Err       error     `json:"-"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func (p Preview) IsEmpty() bool {
	return p.Artifact == nil && p.Err == nil
}

func (p Preview) HasError() bool {
	return p.Err != nil
}

// Status is a point-in-time view of a session.
type Status struct {
	SessionID string   `json:"session_id"`
	Phase     Phase    `json:"phase"`
	Subject   *Subject `json:"subject"`
	Preview   Preview  `json:"preview"`
	InFlight  bool     `json:"in_flight"`
}

// Listener is notified after every change of a session's Status, in the order the changes happened.
// Notify is called outside of the state lock. It must not block nor change the State.
type Listener interface {
	Notify(status Status)
}

type skipReason int

const (
	notSkipped skipReason = iota
	skipNotRecording
	skipNoSubject
	skipInFlight
)

// State holds the tagged subject, the preview slots, the phase and the in-flight slot of one session.
type State struct {
	mu        sync.Mutex
	sessionID string
	phase     Phase
	subject   *Subject
	preview   Preview
	inFlight  string // cycle id, empty when free
	listeners []Listener

	seq      uint64 // last status change, guarded by mu
	notified uint64 // last change fanned out, guarded by notifyMu
	notifyMu sync.Mutex
	turn     *sync.Cond
}

func NewState(sessionID string) *State {
	s := &State{sessionID: sessionID, phase: PhaseIdle}
	s.turn = sync.NewCond(&s.notifyMu)
	return s
}

func (s *State) SessionID() string {
	return s.sessionID
}

func (s *State) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Tag selects the subject to observe. Changing the subject clears the preview and error flag.
// Tagging while recording keeps the timer running; an in-flight cycle is left alone.
func (s *State) Tag(subject Subject) error {
	if subject.ID == "" {
		return PreconditionError("tag", ErrSubjectRequired)
	}
	s.mu.Lock()
	if s.phase == PhaseClosed {
		s.mu.Unlock()
		return PreconditionError("tag", ErrSessionClosed)
	}
	if s.subject == nil || s.subject.ID != subject.ID {
		s.preview = Preview{}
	}
	s.subject = &subject
	if s.phase != PhaseRecording {
		s.phase = PhaseArmed
	}
	return s.unlockAndNotify()
}

// Untag clears the subject. While recording, ticks become no-ops until a new subject is tagged.
func (s *State) Untag() error {
	s.mu.Lock()
	if s.phase == PhaseClosed {
		s.mu.Unlock()
		return PreconditionError("untag", ErrSessionClosed)
	}
	s.subject = nil
	s.preview = Preview{}
	if s.phase != PhaseRecording {
		s.phase = PhaseIdle
	}
	return s.unlockAndNotify()
}

func (s *State) Current() (Subject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subject == nil {
		return Subject{}, false
	}
	return *s.subject, true
}

func (s *State) Preview() Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status()
}

func (s *State) status() Status {
	st := Status{
		SessionID: s.sessionID,
		Phase:     s.phase,
		Preview:   s.preview,
		InFlight:  s.inFlight != "",
	}
	if s.subject != nil {
		subj := *s.subject
		st.Subject = &subj
	}
	return st
}

// unlockAndNotify releases the lock and then fans the new status out to the listeners.
func (s *State) unlockAndNotify() error {
	st := s.status()
	listeners := append([]Listener(nil), s.listeners...)
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	// fan-outs run one at a time, in change order
	s.notifyMu.Lock()
	for s.notified != seq-1 {
		s.turn.Wait()
	}
	s.notifyMu.Unlock()

	for _, l := range listeners {
		l.Notify(st)
	}

	s.notifyMu.Lock()
	s.notified = seq
	s.turn.Broadcast()
	s.notifyMu.Unlock()
	return nil
}

// start moves an armed or stopped session to recording. It reports whether the phase changed.
func (s *State) start() (bool, error) {
	s.mu.Lock()
	switch {
	case s.phase == PhaseClosed:
		s.mu.Unlock()
		return false, PreconditionError("start", ErrSessionClosed)
	case s.phase == PhaseRecording:
		s.mu.Unlock()
		return false, nil
	case s.subject == nil:
		s.mu.Unlock()
		return false, PreconditionError("start", ErrNoSubjectSelected)
	}
	s.phase = PhaseRecording
	return true, s.unlockAndNotify()
}

// stop moves a recording session to stopped. It reports whether the phase changed.
func (s *State) stop() (bool, error) {
	s.mu.Lock()
	switch s.phase {
	case PhaseClosed:
		s.mu.Unlock()
		return false, PreconditionError("stop", ErrSessionClosed)
	case PhaseRecording:
		s.phase = PhaseStopped
		return true, s.unlockAndNotify()
	}
	s.mu.Unlock()
	return false, nil
}

// close is terminal. It releases the in-flight slot so late results find nothing to write to.
func (s *State) close() bool {
	s.mu.Lock()
	if s.phase == PhaseClosed {
		s.mu.Unlock()
		return false
	}
	s.phase = PhaseClosed
	s.inFlight = ""
	s.unlockAndNotify()
	return true
}

// acquire takes the in-flight slot for cycleID and snapshots the tagged subject.
func (s *State) acquire(cycleID string) (Subject, skipReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.phase != PhaseRecording:
		return Subject{}, skipNotRecording
	case s.subject == nil:
		return Subject{}, skipNoSubject
	case s.inFlight != "":
		return Subject{}, skipInFlight
	}
	s.inFlight = cycleID
	return *s.subject, notSkipped
}

// Apply releases the cycle's in-flight slot and writes its result to the preview,
// unless the cycle is stale (its subject is no longer tagged) or the session is closed.
func (s *State) Apply(c *Cycle) Outcome {
	s.mu.Lock()
	if s.inFlight == c.ID {
		s.inFlight = ""
	}
	switch {
	case s.phase == PhaseClosed:
		s.mu.Unlock()
		return OutcomeDiscarded
	case s.subject == nil || s.subject.ID != c.SubjectID:
		s.mu.Unlock()
		return OutcomeStale
	}

	outcome := OutcomeAccepted
	s.preview.SubjectID = c.SubjectID
	s.preview.CycleID = c.ID
	s.preview.UpdatedAt = c.FinishedAt
	if c.Err != nil {
		// the last accepted artifact of this subject stays visible behind the error flag
		outcome = OutcomeFailed
		s.preview.Err = c.Err
	} else {
		s.preview.Artifact = c.Artifact
		s.preview.Err = nil
	}
	s.unlockAndNotify()
	return outcome
}
