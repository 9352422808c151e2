package presence

import (
	"sync"

	"github.com/google/uuid"
)

// Member is the handle of a single realtime connection. Frames reach the
// connection only through its outbound queue, drained by one writer.
type Member struct {
	ID       string
	Identity string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewMember(identity string, buffer int) *Member {
	if buffer < 1 {
		buffer = 1
	}
	return &Member{
		ID:       uuid.NewString(),
		Identity: identity,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

// Outbound is drained by the connection's write pump.
func (m *Member) Outbound() <-chan []byte { return m.send }

// Done is closed once the member has been closed.
func (m *Member) Done() <-chan struct{} { return m.done }

// TrySend queues a frame without blocking. It reports false when the member
// is closed or its queue is full.
func (m *Member) TrySend(frame []byte) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.send <- frame:
		return true
	default:
		return false
	}
}

func (m *Member) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}
