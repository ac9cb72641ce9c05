// Package task implements the cooperative unit of background work
// shared by parsing, indexing and searching: a reusable
// run/pause/stop/finish state machine driving one worker goroutine.
package task

import (
	"sync"
)

// State is one of the six states a Task can occupy.
type State int

const (
	Idle State = iota
	Running
	Paused
	Finished
	Failed
	Stopped
)

// String renders the state for logging.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Finished:
		return "Finished"
	case Failed:
		return "Failed"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Body is the unit of work a Task runs on its worker goroutine. It
// must observe ctl.StopRequested() and ctl.WaitPause() at well-defined
// suspension points. Returning a non-nil error fails the task;
// returning nil after ctl.StopRequested() became true stops it;
// otherwise it finishes.
type Body func(ctl *Control) error

// Control is the handle a Body uses to cooperate with Stop/Pause
// requests and to report progress. It carries no back-reference to the
// Task's caller-visible state, only the flags and callbacks a worker
// needs.
type Control struct {
	t *Task
}

// StopRequested reports whether Stop has been called. Workers must
// check this at every suspension point.
func (c *Control) StopRequested() bool {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	return c.t.stopRequested
}

// WaitPause blocks the worker goroutine while a pause is requested,
// transitioning the task's visible state to Paused for the duration,
// and returns once Start() wakes it back up or Stop() fires. It
// returns true if the caller should stop (a Stop arrived while
// paused).
func (c *Control) WaitPause() bool {
	t := c.t
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.pauseRequested || t.stopRequested {
		return t.stopRequested
	}
	t.setStateLocked(Paused)
	for t.pauseRequested && !t.stopRequested {
		t.resumeCond.Wait()
	}
	if !t.stopRequested {
		t.setStateLocked(Running)
	}
	return t.stopRequested
}

// Progress reports p in [0,100]. Duplicate consecutive values are
// dropped.
func (c *Control) Progress(p int) {
	t := c.t
	t.mu.Lock()
	last := t.progress
	changed := p != last
	if changed {
		t.progress = p
	}
	cb := t.onProgress
	t.mu.Unlock()
	if changed && cb != nil {
		cb(p)
	}
}

// Task is one cancelable, pausable unit of background work.
// The zero value is not usable; construct with New.
type Task struct {
	mu         sync.Mutex
	body       Body
	onState    func(State)
	onProgress func(int)

	state         State
	progress      int
	stopRequested bool
	pauseRequested bool

	wg         sync.WaitGroup
	started    bool
	resumeCond *sync.Cond
}

// New returns an Idle task that will run body on Start.
// onStateChanged and onProgress, if non-nil, are invoked on the
// worker goroutine; callers must marshal to their own goroutine as
// needed.
func New(body Body, onStateChanged func(State), onProgress func(int)) *Task {
	t := &Task{
		body:    body,
		onState: onStateChanged,
		onProgress: onProgress,
		state:   Idle,
	}
	t.resumeCond = sync.NewCond(&t.mu)
	return t
}

// State returns the task's current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Progress returns the last reported progress value.
func (t *Task) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Start moves an Idle/Paused/Stopped/Finished task to Running. The
// first call (and any call after the task reached Stopped or Finished)
// spawns a worker goroutine; a call while Paused merely wakes it.
func (t *Task) Start() {
	t.mu.Lock()
	switch {
	case !t.started || t.state == Stopped || t.state == Finished:
		t.started = true
		t.stopRequested = false
		t.pauseRequested = false
		t.setStateLocked(Running)
		t.wg.Add(1)
		go t.run()
	case t.state == Paused:
		t.pauseRequested = false
		t.resumeCond.Broadcast()
	}
	t.mu.Unlock()
}

// Stop requests cooperative cancellation. Idempotent.
func (t *Task) Stop() {
	t.mu.Lock()
	t.stopRequested = true
	t.pauseRequested = false
	t.resumeCond.Broadcast()
	t.mu.Unlock()
}

// Pause requests the worker transition to Paused at its next
// WaitPause checkpoint.
func (t *Task) Pause() {
	t.mu.Lock()
	t.pauseRequested = true
	t.mu.Unlock()
}

// Wait blocks until the worker goroutine has returned (i.e. the task
// has reached Finished, Failed or Stopped). Safe to call from any
// goroutine, including before Start (returns immediately).
func (t *Task) Wait() {
	t.wg.Wait()
}

func (t *Task) run() {
	defer t.wg.Done()
	ctl := &Control{t: t}
	err := t.body(ctl)

	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case err != nil:
		t.setStateLocked(Failed)
	case t.stopRequested:
		t.setStateLocked(Stopped)
	default:
		t.setStateLocked(Finished)
	}
}

// setStateLocked updates state and fires the callback. Must be called
// with mu held; the callback itself runs without the lock to avoid a
// deadlock if it calls back into the Task.
func (t *Task) setStateLocked(s State) {
	if t.state == s {
		return
	}
	t.state = s
	cb := t.onState
	if cb == nil {
		return
	}
	t.mu.Unlock()
	cb(s)
	t.mu.Lock()
}
