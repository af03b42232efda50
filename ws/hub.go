// Package ws carries the northbound job-state broadcast channel: an
// in-process hub fanning job and printer events out to websocket clients.
package ws

import "sync"

// maxPending bounds each subscriber's backlog. Progress ticks are the high
// frequency traffic, so they are shed first when a client falls behind.
const maxPending = 64

// Hub fans broadcast messages out to registered subscribers. Each
// subscriber has its own queue and pump goroutine, so a stalled websocket
// never blocks the queue workers publishing into the hub. Progress ticks
// for the same job are coalesced in the queue: a slow client observes the
// latest progress value rather than a replay of every tick.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*subscriber
	closed  bool
}

type subscriber struct {
	out  chan Message
	stop chan struct{}

	mu      sync.Mutex
	pending []Message
	// wake has capacity 1; it tells the pump there is queued work.
	wake chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*subscriber)}
}

// Register subscribes a client channel under id, replacing any previous
// subscriber with the same id. The channel should be buffered (recommended
// size 10); it is closed on Unregister or Shutdown.
func (h *Hub) Register(id string, ch chan Message) {
	sub := &subscriber{
		out:  ch,
		stop: make(chan struct{}),
		wake: make(chan struct{}, 1),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return
	}
	if old, ok := h.clients[id]; ok {
		close(old.stop)
	}
	h.clients[id] = sub
	h.mu.Unlock()

	go sub.pump()
}

// Unregister removes the client with the given id and closes its channel.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	sub, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()
	if ok {
		close(sub.stop)
	}
}

// Broadcast enqueues a message for every subscriber. Never blocks: slow
// clients coalesce progress and shed backlog instead of stalling the caller.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	for _, sub := range h.clients {
		sub.enqueue(msg)
	}
	h.mu.RUnlock()
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown stops every subscriber pump and closes every client channel.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*subscriber, 0, len(h.clients))
	for id, sub := range h.clients {
		subs = append(subs, sub)
		delete(h.clients, id)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		close(sub.stop)
	}
}

// enqueue adds a message to the subscriber's queue. A job_progress message
// overwrites the queued progress for the same job; when the queue is full,
// the oldest progress tick is shed first, then the oldest message.
func (s *subscriber) enqueue(msg Message) {
	s.mu.Lock()
	if msg.Type == MessageTypeJobProgress {
		if jobID, ok := msg.Data["job_id"]; ok {
			for i := range s.pending {
				if s.pending[i].Type == MessageTypeJobProgress && s.pending[i].Data["job_id"] == jobID {
					s.pending[i] = msg
					s.mu.Unlock()
					s.signal()
					return
				}
			}
		}
	}
	if len(s.pending) >= maxPending {
		shed := -1
		for i := range s.pending {
			if s.pending[i].Type == MessageTypeJobProgress {
				shed = i
				break
			}
		}
		if shed >= 0 {
			s.pending = append(s.pending[:shed], s.pending[shed+1:]...)
		} else {
			s.pending = s.pending[1:]
		}
	}
	s.pending = append(s.pending, msg)
	s.mu.Unlock()
	s.signal()
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump drains the queue into the client channel. Delivery order within the
// queue is preserved; only the blocked send can stall, and stop aborts it.
func (s *subscriber) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			msg := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()

			select {
			case s.out <- msg:
			case <-s.stop:
				return
			}
		}
	}
}
