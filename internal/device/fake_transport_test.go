package device

import (
	"sync"
	"time"
)

// fakeTransport is a hand-written Transport fake: subscribes and publishes
// succeed immediately (no pending outgoing), and tests drive the FSM by
// calling the registered callbacks directly, mirroring how a real broker's
// CONNACK/SUBACK/PUBACK would fire them asynchronously.
type fakeTransport struct {
	mu sync.Mutex

	connectErr error
	connected  bool

	subscribedTopics  []string
	publishedTopics   []string
	failNextSubscribe bool
	pending           int

	onConnected    func(bool)
	onDisconnected func()
	onSubscribed   func(uint32, byte)
	onMessage      func(string, []byte)
}

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Disconnect(time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeTransport) Subscribe(topic string, qos byte) error {
	f.mu.Lock()
	f.subscribedTopics = append(f.subscribedTopics, topic)
	fail := f.failNextSubscribe
	f.mu.Unlock()
	code := byte(qos)
	if fail {
		code = 0x80
	}
	if f.onSubscribed != nil {
		f.onSubscribed(0, code)
	}
	return nil
}

func (f *fakeTransport) Publish(topic string, _ []byte, _ byte, _ bool) error {
	f.mu.Lock()
	f.publishedTopics = append(f.publishedTopics, topic)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) HasPendingOutgoing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending > 0
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) SetOnConnected(fn func(bool))          { f.onConnected = fn }
func (f *fakeTransport) SetOnDisconnected(fn func())           { f.onDisconnected = fn }
func (f *fakeTransport) SetOnSubscribed(fn func(uint32, byte)) { f.onSubscribed = fn }
func (f *fakeTransport) SetOnMessage(fn func(string, []byte)) { f.onMessage = fn }

func (f *fakeTransport) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.subscribedTopics))
	copy(out, f.subscribedTopics)
	return out
}

func (f *fakeTransport) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.publishedTopics))
	copy(out, f.publishedTopics)
	return out
}
