package session

import "sync"

// Signals carries operator interrupts raised asynchronously (pendant events,
// SIGINT) into the control loop. The loop samples and clears them only at its
// own checkpoints, never mid-recording, so raising a signal is always safe.
type Signals struct {
	mu        sync.Mutex
	stop      bool
	rerecord  bool
	exitEarly bool
}

func NewSignals() *Signals { return &Signals{} }

func (s *Signals) RaiseStop() {
	s.mu.Lock()
	s.stop = true
	s.mu.Unlock()
}

func (s *Signals) RaiseRerecord() {
	s.mu.Lock()
	s.rerecord = true
	s.mu.Unlock()
}

func (s *Signals) RaiseExitEarly() {
	s.mu.Lock()
	s.exitEarly = true
	s.mu.Unlock()
}

// StopRequested reports the stop flag without clearing it; stop is terminal
// for a session.
func (s *Signals) StopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop
}

// ConsumeRerecord reports and clears the re-record flag.
func (s *Signals) ConsumeRerecord() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.rerecord
	s.rerecord = false
	return v
}

// ClearEpisodeFlags resets the per-episode flags before the next attempt.
func (s *Signals) ClearEpisodeFlags() {
	s.mu.Lock()
	s.rerecord = false
	s.exitEarly = false
	s.mu.Unlock()
}
