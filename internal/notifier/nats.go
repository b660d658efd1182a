package notifier

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/venkytv/drive-events/pkg/cycle"
)

// EventsSubject is the subject suffix emissions are published under.
const EventsSubject = "events"

// NATS publishes emissions as JSON on a subject.
type NATS struct {
	Conn    *nats.Conn
	Subject string
}

func (n NATS) Emit(_ context.Context, em cycle.Emission) error {
	if n.Conn == nil {
		return errors.New("nats connection is required")
	}
	payload, err := em.Marshal()
	if err != nil {
		return err
	}
	return n.Conn.Publish(n.Subject, payload)
}
