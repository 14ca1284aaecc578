package actor

// Context is handed to an Actor's Receive for the message currently
// being processed.
type Context interface {
	Engine() *Engine
	Self() *PID
	Sender() *PID
	Message() interface{}

	// RequestID is non-empty when the current message was sent via
	// Engine.Ask; Reply must be called exactly once in that case.
	RequestID() string
	Reply(msg interface{})
}

type context struct {
	engine  *Engine
	self    *PID
	sender  *PID
	message interface{}

	requestID string
	replyCh   chan interface{}
}

func (c *context) Engine() *Engine        { return c.engine }
func (c *context) Self() *PID             { return c.self }
func (c *context) Sender() *PID           { return c.sender }
func (c *context) Message() interface{}   { return c.message }
func (c *context) RequestID() string      { return c.requestID }

func (c *context) Reply(msg interface{}) {
	if c.replyCh == nil {
		return
	}
	select {
	case c.replyCh <- msg:
	default:
	}
}
