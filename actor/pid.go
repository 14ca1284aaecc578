// Package actor is a small actor engine adapted from the teacher's
// vendored bollywood framework: actors process messages sequentially
// from a mailbox, and a single Engine owns process lifecycle and
// message delivery. It is what lets WorldActor serialize every
// mutation of shared game state without an explicit mutex.
package actor

// PID is a unique reference to a running actor instance.
type PID struct {
	ID string
}

func (p *PID) String() string {
	if p == nil {
		return "<nil>"
	}
	return p.ID
}
