package cliui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"charm.land/bubbles/v2/spinner"
	"github.com/charmbracelet/x/ansi"
)

// Spinner animates a single status line. Start and Stop may be called from
// any goroutine and in any order; redundant calls are no-ops.
type Spinner struct {
	w      io.Writer
	msg    string
	frames []string
	fps    time.Duration

	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
}

// NewSpinner returns a stopped spinner that writes msg to w.
func NewSpinner(w io.Writer, msg string) *Spinner {
	return &Spinner{
		w:      w,
		msg:    msg,
		frames: spinner.Dot.Frames,
		fps:    spinner.Dot.FPS,
	}
}

// Start begins animating.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.run(s.done, s.stopped)
}

// Stop halts the animation and erases the line. It returns once the line has
// been cleared.
func (s *Spinner) Stop() {
	s.mu.Lock()
	done, stopped := s.done, s.stopped
	s.done, s.stopped = nil, nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	close(done)
	<-stopped
}

// Active reports whether the spinner is running.
func (s *Spinner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

func (s *Spinner) run(done, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(s.fps)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		fmt.Fprintf(s.w, "\r  %s %s",
			spinnerStyle.Render(s.frames[frame%len(s.frames)]),
			s.msg,
		)

		select {
		case <-done:
			fmt.Fprint(s.w, "\r"+ansi.EraseEntireLine)
			return
		case <-ticker.C:
		}
	}
}
