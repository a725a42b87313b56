package main

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/flightmap/internal/tracker"
	"github.com/unklstewy/flightmap/pkg/feature"
	"github.com/unklstewy/flightmap/pkg/filter"
)

// sender is satisfied by *tea.Program.
type sender interface {
	Send(msg tea.Msg)
}

// programRenderer forwards session output into the bubbletea event loop.
// Send blocks until the loop takes the message, and renderer calls must
// not block, so messages are queued and a single goroutine forwards them
// in the order they were published.
type programRenderer struct {
	mu      sync.Mutex
	program sender
	queue   []tea.Msg

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ tracker.Renderer      = (*programRenderer)(nil)
	_ tracker.CycleObserver = (*programRenderer)(nil)
)

func newProgramRenderer() *programRenderer {
	return &programRenderer{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// attach sets the program and starts forwarding. Messages sent before
// attach are dropped.
func (r *programRenderer) attach(program sender) {
	r.mu.Lock()
	r.program = program
	r.mu.Unlock()
	go r.forward(program)
}

// close stops forwarding. Queued messages are discarded.
func (r *programRenderer) close() {
	r.closeOnce.Do(func() { close(r.done) })
}

func (r *programRenderer) forward(program sender) {
	for {
		select {
		case <-r.done:
			return
		case <-r.wake:
		}
		for {
			msg, ok := r.pop()
			if !ok {
				break
			}
			program.Send(msg)
		}
	}
}

func (r *programRenderer) pop() (tea.Msg, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil, false
	}
	msg := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	return msg, true
}

func (r *programRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	if r.program == nil {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, msg)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *programRenderer) SetFeatures(fc feature.Collection) { r.send(featuresMsg(fc)) }

func (r *programRenderer) SetFilter(p filter.Predicate) { r.send(filterMsg(p)) }

func (r *programRenderer) Recenter(d tracker.RecenterDirective) { r.send(recenterMsg(d)) }

func (r *programRenderer) ShowPopup(d tracker.PopupDirective) { r.send(popupMsg(d)) }

func (r *programRenderer) CycleCompleted(rep tracker.CycleReport) { r.send(cycleMsg(rep)) }
