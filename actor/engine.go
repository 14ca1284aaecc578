package actor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrTimeout is returned by Ask when no reply arrives within the deadline.
var ErrTimeout = errors.New("actor: ask timed out")

// Engine manages actor lifecycle and message dispatch.
type Engine struct {
	pidCounter uint64
	actors     map[string]*process
	mu         sync.RWMutex
	stopping   atomic.Bool
}

// NewEngine creates an empty, ready-to-spawn Engine.
func NewEngine() *Engine {
	return &Engine{actors: make(map[string]*process)}
}

func (e *Engine) nextPID() *PID {
	id := atomic.AddUint64(&e.pidCounter, 1)
	return &PID{ID: fmt.Sprintf("actor-%d", id)}
}

// Spawn starts a new actor and returns its PID, or nil if the engine
// is shutting down.
func (e *Engine) Spawn(props *Props) *PID {
	if e.stopping.Load() {
		logrus.Warn("actor: engine stopping, refusing to spawn")
		return nil
	}
	pid := e.nextPID()
	proc := newProcess(e, pid, props)

	e.mu.Lock()
	e.actors[pid.ID] = proc
	e.mu.Unlock()

	go proc.run()
	return pid
}

// Send delivers a fire-and-forget message to pid. sender may be nil.
func (e *Engine) Send(pid *PID, message interface{}, sender *PID) {
	if pid == nil || e.stopping.Load() {
		return
	}
	e.mu.RLock()
	proc, ok := e.actors[pid.ID]
	e.mu.RUnlock()
	if !ok {
		logrus.WithField("pid", pid.ID).Debug("actor: send to unknown pid, dropping")
		return
	}
	proc.send(&envelope{sender: sender, message: message})
}

// Ask sends a message and blocks for a reply via ctx.Reply, up to timeout.
func (e *Engine) Ask(pid *PID, message interface{}, timeout time.Duration) (interface{}, error) {
	if pid == nil {
		return nil, errors.New("actor: ask to nil pid")
	}
	e.mu.RLock()
	proc, ok := e.actors[pid.ID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("actor: ask to unknown pid %s", pid.ID)
	}

	replyCh := make(chan interface{}, 1)
	proc.send(&envelope{message: message, requestID: e.nextRequestID(), replyCh: replyCh})

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-time.After(timeout):
		return nil, ErrTimeout
	}
}

func (e *Engine) nextRequestID() string {
	id := atomic.AddUint64(&e.pidCounter, 1)
	return fmt.Sprintf("req-%d", id)
}

// Stop asks an actor to shut down; it processes Stopping then Stopped.
func (e *Engine) Stop(pid *PID) {
	if pid == nil {
		return
	}
	e.mu.RLock()
	_, ok := e.actors[pid.ID]
	e.mu.RUnlock()
	if ok {
		e.Send(pid, Stopping{}, nil)
	}
}

func (e *Engine) remove(pid *PID) {
	e.mu.Lock()
	delete(e.actors, pid.ID)
	e.mu.Unlock()
}

// Shutdown stops every actor and waits up to timeout for them to exit.
func (e *Engine) Shutdown(timeout time.Duration) {
	if !e.stopping.CompareAndSwap(false, true) {
		return
	}
	e.mu.RLock()
	pids := make([]*PID, 0, len(e.actors))
	for _, proc := range e.actors {
		pids = append(pids, proc.pid)
	}
	e.mu.RUnlock()

	for _, pid := range pids {
		e.Stop(pid)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		e.mu.RLock()
		remaining := len(e.actors)
		e.mu.RUnlock()
		if remaining == 0 {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}

	e.mu.Lock()
	if len(e.actors) > 0 {
		logrus.WithField("remaining", len(e.actors)).Warn("actor: shutdown timed out, forcing removal")
		e.actors = make(map[string]*process)
	}
	e.mu.Unlock()
}
