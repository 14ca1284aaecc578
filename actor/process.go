package actor

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

const defaultMailboxSize = 1024

// process is the running instance of an actor: its state plus mailbox.
type process struct {
	engine  *Engine
	pid     *PID
	actor   Actor
	mailbox chan *envelope
	props   *Props
	stopCh  chan struct{}
	stopped atomic.Bool
}

func newProcess(engine *Engine, pid *PID, props *Props) *process {
	return &process{
		engine:  engine,
		pid:     pid,
		props:   props,
		mailbox: make(chan *envelope, defaultMailboxSize),
		stopCh:  make(chan struct{}),
	}
}

func (p *process) send(e *envelope) {
	_, isStopping := e.message.(Stopping)
	_, isStopped := e.message.(Stopped)
	if p.stopped.Load() && !isStopping && !isStopped {
		return
	}
	select {
	case p.mailbox <- e:
	default:
		logrus.WithField("pid", p.pid.ID).WithField("type", typeName(e.message)).
			Warn("actor: mailbox full, dropping message")
	}
}

func (p *process) run() {
	var stoppingInvoked bool

	defer func() {
		p.stopped.Store(true)
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("pid", p.pid.ID).WithField("panic", r).
					Error("actor: panic during final Stopped handling")
			}
			p.engine.remove(p.pid)
		}()
		if p.actor != nil {
			p.invoke(Stopped{}, nil, "", nil)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("pid", p.pid.ID).WithField("panic", r).
				WithField("stack", string(debug.Stack())).Error("actor: panicked")
			if p.stopped.CompareAndSwap(false, true) {
				closeOnce(p.stopCh)
				if p.actor != nil && !stoppingInvoked {
					p.invoke(Stopping{}, nil, "", nil)
					stoppingInvoked = true
				}
			}
		}
	}()

	p.actor = p.props.produce()
	if p.actor == nil {
		panic("actor: producer returned nil actor")
	}
	p.invoke(Started{}, nil, "", nil)

	for {
		select {
		case <-p.stopCh:
			if p.stopped.CompareAndSwap(false, true) {
				if !stoppingInvoked {
					p.invoke(Stopping{}, nil, "", nil)
					stoppingInvoked = true
				}
			}
			return

		case e, ok := <-p.mailbox:
			if !ok {
				return
			}
			_, isStopping := e.message.(Stopping)
			_, isStopped := e.message.(Stopped)
			if p.stopped.Load() && !isStopping && !isStopped {
				continue
			}
			switch msg := e.message.(type) {
			case Stopping:
				if p.stopped.CompareAndSwap(false, true) {
					if !stoppingInvoked {
						p.invoke(msg, e.sender, e.requestID, e.replyCh)
						stoppingInvoked = true
					}
					closeOnce(p.stopCh)
				}
			default:
				p.invoke(e.message, e.sender, e.requestID, e.replyCh)
			}
		}
	}
}

func (p *process) invoke(msg interface{}, sender *PID, requestID string, replyCh chan interface{}) {
	ctx := &context{
		engine:    p.engine,
		self:      p.pid,
		sender:    sender,
		message:   msg,
		requestID: requestID,
		replyCh:   replyCh,
	}
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("pid", p.pid.ID).WithField("message", typeName(msg)).
				WithField("panic", r).Error("actor: panic in Receive")
		}
	}()
	p.actor.Receive(ctx)
}

func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func typeName(v interface{}) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", v)
}
