// Package expectation implements the per-interface bounded SPSC queue the
// end-to-end harness uses to assert that server-driven messages arrive
// exactly, in order, once: the shell is the sole producer, the device's
// inbound-dispatch path the sole consumer.
package expectation

import (
	"sync"
	"time"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
	"github.com/cirrus-iot/astarte-device-sdk/internal/astarte"
)

const capacity = 2

// Kind tags which of the three expected-message shapes a Message holds.
type Kind int

const (
	Individual Kind = iota
	Property
	Object
)

// Message is the tagged union of expectations a shell command can declare.
type Message struct {
	Kind      Kind
	Path      string
	Data      astarte.AstarteData // Individual, Property (set)
	Unset     bool                // Property only
	Entries   []astarte.ObjectEntry
	RawBytes  []byte
	Timestamp *time.Time
}

// Queues holds one bounded queue per interface name, created lazily on
// first use.
type Queues struct {
	mu  sync.Mutex
	byI map[string]*queue
}

// New returns an empty set of per-interface queues.
func New() *Queues {
	return &Queues{byI: make(map[string]*queue)}
}

func (q *Queues) get(iface string) *queue {
	q.mu.Lock()
	defer q.mu.Unlock()
	iq, ok := q.byI[iface]
	if !ok {
		iq = &queue{ch: make(chan Message, capacity)}
		q.byI[iface] = iq
	}
	return iq
}

// AddIndividual enqueues an expected individual-datastream value.
func (q *Queues) AddIndividual(iface, path string, data astarte.AstarteData, ts *time.Time) error {
	return q.get(iface).add(Message{Kind: Individual, Path: path, Data: data, Timestamp: ts})
}

// AddObject enqueues an expected object-aggregated publish.
func (q *Queues) AddObject(iface, path string, entries []astarte.ObjectEntry, raw []byte, ts *time.Time) error {
	return q.get(iface).add(Message{Kind: Object, Path: path, Entries: entries, RawBytes: raw, Timestamp: ts})
}

// AddPropertySet enqueues an expected property-set value.
func (q *Queues) AddPropertySet(iface, path string, data astarte.AstarteData) error {
	return q.get(iface).add(Message{Kind: Property, Path: path, Data: data})
}

// AddPropertyUnset enqueues an expected property-unset event.
func (q *Queues) AddPropertyUnset(iface, path string) error {
	return q.get(iface).add(Message{Kind: Property, Path: path, Unset: true})
}

// Peek returns iface's head message without removing it.
func (q *Queues) Peek(iface string) (Message, error) {
	return q.get(iface).peek()
}

// Pop removes and returns iface's head message.
func (q *Queues) Pop(iface string) (Message, error) {
	return q.get(iface).pop()
}

// Count reports the number of messages currently queued for iface.
func (q *Queues) Count(iface string) int {
	return q.get(iface).count()
}

// queue is a capacity-2 SPSC buffer for one interface, realized over a
// buffered channel: the channel itself is the head/tail, and peeked holds
// the one element Peek has borrowed out of it without consuming. The peeked
// element still counts against capacity.
type queue struct {
	mu     sync.Mutex
	ch     chan Message
	peeked *Message
}

func (q *queue) add(m Message) error {
	const op = "expectation.Queues.Add"
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.peeked != nil && len(q.ch)+1 >= capacity {
		return asterr.New(asterr.KindQueueFull, op, nil)
	}
	select {
	case q.ch <- m:
		return nil
	default:
		return asterr.New(asterr.KindQueueFull, op, nil)
	}
}

func (q *queue) peek() (Message, error) {
	const op = "expectation.Queues.Peek"
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.peeked != nil {
		return *q.peeked, nil
	}
	select {
	case m := <-q.ch:
		q.peeked = &m
		return m, nil
	default:
		return Message{}, asterr.New(asterr.KindQueueEmpty, op, nil)
	}
}

func (q *queue) pop() (Message, error) {
	const op = "expectation.Queues.Pop"
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.peeked != nil {
		m := *q.peeked
		q.peeked = nil
		return m, nil
	}
	select {
	case m := <-q.ch:
		return m, nil
	default:
		return Message{}, asterr.New(asterr.KindQueueEmpty, op, nil)
	}
}

func (q *queue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.ch)
	if q.peeked != nil {
		n++
	}
	return n
}
