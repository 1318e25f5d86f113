package pubsub

type Event interface {
}

type Publisher[E Event] interface {
	PublishEvent(*E) error
	AddSubscriber(Subscriber[E])
}

type Subscriber[E Event] interface {
	ConsumeEvent(*E) error
}

// SimplePublisher loops through each subscriber and calls ConsumeEvent on
// it, in registration order, on the publishing goroutine. Callers that
// publish from multiple goroutines must serialize publishes themselves.
type SimplePublisher[E Event] struct {
	subscribers []Subscriber[E]
}

func NewSimplePublisher[E Event]() *SimplePublisher[E] {
	return &SimplePublisher[E]{
		subscribers: make([]Subscriber[E], 0),
	}
}

func (p *SimplePublisher[E]) PublishEvent(e *E) error {
	for _, s := range p.subscribers {
		err := s.ConsumeEvent(e)
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *SimplePublisher[E]) AddSubscriber(s Subscriber[E]) {
	p.subscribers = append(p.subscribers, s)
}
