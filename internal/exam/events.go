package exam

import "github.com/stemsi/vocab-runner/internal/model"

// EventType names a session event.
type EventType string

const (
	EventState     EventType = "state"
	EventTick      EventType = "tick"
	EventNavigate  EventType = "navigate"
	EventAnswer    EventType = "answer"
	EventFlip      EventType = "flip"
	EventAssess    EventType = "assess"
	EventRecording EventType = "recording"
	EventClosed    EventType = "closed"
)

// Event is emitted after every tick and transition, carrying the snapshot
// taken when it happened.
type Event struct {
	Type     EventType              `json:"type"`
	Snapshot *model.SessionSnapshot `json:"snapshot"`
}

// Listener receives session events in order. It must not call back into the
// session.
type Listener func(Event)

// queue appends an event to the outbox. Caller holds s.mu.
func (s *Session) queue(e Event) {
	if s.listener == nil {
		return
	}
	s.outbox = append(s.outbox, e)
}

// unlockAndFlush releases s.mu and delivers queued events outside of it.
// flushMu is taken before s.mu is released so deliveries keep their order.
func (s *Session) unlockAndFlush() {
	if len(s.outbox) == 0 {
		s.mu.Unlock()
		return
	}
	events := s.outbox
	s.outbox = nil
	snap := s.snapshotLocked()
	s.flushMu.Lock()
	s.mu.Unlock()
	defer s.flushMu.Unlock()

	for _, e := range events {
		e.Snapshot = snap
		s.listener(e)
	}
}
