package actor

// Actor processes messages delivered to it one at a time.
type Actor interface {
	Receive(ctx Context)
}

// Producer creates a fresh Actor instance; called once per Spawn.
type Producer func() Actor

// Props configures how an actor is produced.
type Props struct {
	producer Producer
}

// NewProps builds Props around a Producer.
func NewProps(producer Producer) *Props {
	if producer == nil {
		panic("actor: producer cannot be nil")
	}
	return &Props{producer: producer}
}

func (p *Props) produce() Actor {
	return p.producer()
}
