package exam

import "time"

// Ticker is the owned repeating timer of a session.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

// SystemTicker wraps time.Ticker.
func SystemTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// startTimerLocked starts the 1-second timer unless one is already running.
func (s *Session) startTimerLocked() {
	if s.timerStop != nil {
		return
	}
	stop := make(chan struct{})
	s.timerStop = stop
	go s.runTimer(s.newTicker(time.Second), stop)
}

// stopTimerLocked stops the timer. A tick already in flight is discarded
// because it no longer matches the session's stop channel.
func (s *Session) stopTimerLocked() {
	if s.timerStop == nil {
		return
	}
	close(s.timerStop)
	s.timerStop = nil
}

func (s *Session) runTimer(t Ticker, stop chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			s.tick(stop)
		}
	}
}

// tick advances both counters once. Reaching zero remaining time on a
// countdown variant triggers the regular submit path exactly once.
func (s *Session) tick(stop chan struct{}) {
	s.mu.Lock()
	if s.timerStop != stop || !s.state.Timed() {
		s.mu.Unlock()
		return
	}

	s.elapsed++
	if s.remaining > 0 {
		s.remaining--
	}
	if s.flip != nil {
		s.flip.cardElapsed++
	}
	s.queue(Event{Type: EventTick})

	expire := s.variant.Countdown() && s.remaining == 0 && !s.autoSubmitted
	if expire {
		s.autoSubmitted = true
	}
	s.unlockAndFlush()

	if expire {
		s.log.Info().Int("elapsed", s.elapsedSnapshot()).Msg("Time is up, submitting")
		_ = s.submit(s.baseCtx, "timeout")
	}
}

func (s *Session) elapsedSnapshot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}
