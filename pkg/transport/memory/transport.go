// Package memory implements transport.Transport with two in-process
// queues. Tests play the client side with ClientEnqueue and
// ClientDequeue.
package memory

import (
	"errors"
	"slices"
	"sync"

	"github.com/QYUbit/ticksim/pkg/transport"
)

var ErrQueueEmpty = errors.New("queue is empty")

// Transport is safe for concurrent use.
type Transport struct {
	inbox *transport.Inbox

	mu       sync.Mutex
	outbound []transport.Datagram
	failFor  map[transport.Endpoint]error
}

func New() *Transport {
	return &Transport{
		inbox:   transport.NewInbox(0),
		failFor: make(map[transport.Endpoint]error),
	}
}

// ClientEnqueue queues data as if from was sending it to the server.
func (t *Transport) ClientEnqueue(data []byte, from transport.Endpoint) {
	t.inbox.Push(transport.Datagram{Data: slices.Clone(data), From: from})
}

// ClientDequeue pops the oldest datagram sent by the server. The From
// field holds the destination.
func (t *Transport) ClientDequeue() (transport.Datagram, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.outbound) == 0 {
		return transport.Datagram{}, ErrQueueEmpty
	}
	d := t.outbound[0]
	t.outbound = t.outbound[1:]
	return d, nil
}

func (t *Transport) ClientQueueCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.outbound)
}

// FailSendsTo makes every Send to ep return err until cleared with a nil
// error.
func (t *Transport) FailSendsTo(ep transport.Endpoint, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err == nil {
		delete(t.failFor, ep)
		return
	}
	t.failFor[ep] = err
}

func (t *Transport) TryReceive() (transport.Datagram, bool) {
	return t.inbox.Pop()
}

func (t *Transport) Pending() int {
	return t.inbox.Len()
}

func (t *Transport) Send(to transport.Endpoint, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err, ok := t.failFor[to]; ok {
		return err
	}
	t.outbound = append(t.outbound, transport.Datagram{Data: slices.Clone(data), From: to})
	return nil
}
