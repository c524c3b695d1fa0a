package cli

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner animates a label and the elapsed time while batch runs are in
// flight. Start after Stop begins a fresh timer.
type Spinner struct {
	frames   []string
	interval time.Duration
	writer   io.Writer

	mu       sync.Mutex
	label    string
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval: 80 * time.Millisecond,
		writer:   w,
	}
}

// SetLabel changes the text shown next to the spinner.
func (s *Spinner) SetLabel(label string) {
	s.mu.Lock()
	s.label = label
	s.mu.Unlock()
}

// Start shows label; on a running spinner it only swaps the label.
func (s *Spinner) Start(label string) {
	s.mu.Lock()
	if s.running {
		s.label = label
		s.mu.Unlock()
		return
	}
	s.running = true
	s.label = label
	stop := make(chan struct{})
	s.stopChan = stop
	s.mu.Unlock()

	started := time.Now()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for idx := 0; ; idx++ {
			s.mu.Lock()
			label := s.label
			s.mu.Unlock()
			elapsed := time.Since(started).Truncate(time.Second)
			fmt.Fprintf(s.writer, "\r\033[K%s %s (%s)", s.frames[idx%len(s.frames)], label, elapsed)
			select {
			case <-stop:
				fmt.Fprintf(s.writer, "\r\033[K")
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop clears the spinner line and waits for the animation to exit.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
}
