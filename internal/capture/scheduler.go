package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSchedulerStarted is returned when Start is called on a scheduler that
// is running or has already been stopped
var ErrSchedulerStarted = errors.New("flush scheduler already started")

type schedulerState int

const (
	schedulerIdle schedulerState = iota
	schedulerRunning
	schedulerStopped
)

// Scheduler fires a callback on a fixed period until stopped.
// A Scheduler is single use: once stopped it cannot be restarted.
type Scheduler struct {
	state schedulerState
	stop  chan struct{}
	done  chan struct{}

	mu sync.Mutex
}

// NewScheduler creates an idle scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Start begins calling onFire every interval. The first call happens after
// one full interval.
func (s *Scheduler) Start(interval time.Duration, onFire func()) error {
	if interval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %v", interval)
	}
	if onFire == nil {
		return errors.New("flush callback cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != schedulerIdle {
		return ErrSchedulerStarted
	}

	s.state = schedulerRunning
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(interval, onFire, s.stop, s.done)

	return nil
}

func (s *Scheduler) run(interval time.Duration, onFire func(), stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// A tick and a stop can be ready together; stop wins
			select {
			case <-stop:
				return
			default:
			}
			onFire()
		}
	}
}

// Stop cancels future fires and waits for an in-flight callback to return.
// It is safe to call more than once and on a scheduler that never started.
// Stop must not be called from inside the callback.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	prev := s.state
	s.state = schedulerStopped
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if prev != schedulerRunning {
		return
	}

	close(stop)
	<-done
}

// Running reports whether the scheduler is currently firing
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == schedulerRunning
}
