// Package events delivers render triggers from the core to presentation subscribers.
package events

import (
	"sync"

	"github.com/fjod/inviteu/internal/domain"
)

// Listener is notified when cart contents or checkout state change.
// Calls are fire-and-forget; the core never waits for them.
type Listener interface {
	OnCartChanged()
	OnCheckoutStateChanged(state domain.CheckoutState)
}

// Bus fans events out to listeners. Each listener has its own queue drained by
// one goroutine, so it sees events in the order they were published.
type Bus struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[int]*subscriber
	wg          sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[int]*subscriber)}
}

// Subscribe registers l and returns a function that removes it.
// Events still queued for l when it is removed are dropped.
func (b *Bus) Subscribe(l Listener) (unsubscribe func()) {
	sub := &subscriber{
		listener: l,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		wg:       &b.wg,
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = sub
	b.mu.Unlock()

	go sub.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
			sub.stop()
		})
	}
}

func (b *Bus) CartChanged() {
	b.dispatch(func(l Listener) { l.OnCartChanged() })
}

func (b *Bus) CheckoutStateChanged(state domain.CheckoutState) {
	b.dispatch(func(l Listener) { l.OnCheckoutStateChanged(state) })
}

// Wait blocks until every queued callback has returned or been dropped. Used on shutdown.
func (b *Bus) Wait() {
	b.wg.Wait()
}

func (b *Bus) dispatch(call func(Listener)) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		sub.enqueue(call)
	}
}

type subscriber struct {
	listener Listener

	mu     sync.Mutex
	queue  []func(Listener)
	closed bool

	wake chan struct{}
	done chan struct{}
	wg   *sync.WaitGroup
}

func (s *subscriber) enqueue(call func(Listener)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.queue = append(s.queue, call)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.wake:
			s.drain()
		case <-s.done:
			s.mu.Lock()
			dropped := len(s.queue)
			s.queue = nil
			s.mu.Unlock()
			for i := 0; i < dropped; i++ {
				s.wg.Done()
			}
			return
		}
	}
}

func (s *subscriber) stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	close(s.done)
}

func (s *subscriber) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.closed {
			s.mu.Unlock()
			return
		}
		call := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		call(s.listener)
		s.wg.Done()
	}
}

// Funcs adapts plain functions to Listener. Nil fields are skipped.
type Funcs struct {
	CartChanged          func()
	CheckoutStateChanged func(domain.CheckoutState)
}

func (f Funcs) OnCartChanged() {
	if f.CartChanged != nil {
		f.CartChanged()
	}
}

func (f Funcs) OnCheckoutStateChanged(state domain.CheckoutState) {
	if f.CheckoutStateChanged != nil {
		f.CheckoutStateChanged(state)
	}
}
