package protocol

import "io"

// Direction tells an Observer which way a message travelled.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "send"
	}
	return "recv"
}

// Observer is a diagnostic hook invoked for every framed message.
// It must not retain or modify the payload.
type Observer func(dir Direction, m Message)

// Conn frames messages over a duplex byte stream. It is not safe for
// concurrent use: one request is in flight at a time.
type Conn struct {
	rw       io.ReadWriter
	observer Observer
}

// NewConn returns a Conn over rw. A nil observer disables tracing.
func NewConn(rw io.ReadWriter, observer Observer) *Conn {
	return &Conn{rw: rw, observer: observer}
}

// Send writes one message.
func (c *Conn) Send(m Message) error {
	if err := WriteMessage(c.rw, m); err != nil {
		return err
	}
	if c.observer != nil {
		c.observer(Outbound, m)
	}
	return nil
}

// Receive reads one message.
func (c *Conn) Receive() (Message, error) {
	m, err := ReadMessage(c.rw)
	if err != nil {
		return Message{}, err
	}
	if c.observer != nil {
		c.observer(Inbound, m)
	}
	return m, nil
}

// Exchange sends req and blocks until the reply has been read.
func (c *Conn) Exchange(req Message) (Message, error) {
	if err := c.Send(req); err != nil {
		return Message{}, err
	}
	return c.Receive()
}
