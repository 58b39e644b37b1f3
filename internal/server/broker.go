package server

import (
	"encoding/json"
	"sync"

	"github.com/cardbid/auctioneer/internal/auction"
)

// Message is one encoded notification as delivered to stream clients.
type Message struct {
	Type string
	Data []byte
}

// Broker is an in-process pub/sub for auction notifications. It implements
// auction.Notifier.
type Broker struct {
	mu   sync.RWMutex
	subs map[chan Message]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[chan Message]struct{}),
	}
}

// Subscribe returns a channel that receives every published notification.
func (b *Broker) Subscribe() chan Message {
	ch := make(chan Message, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(ch chan Message) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Subscribers returns the number of open subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) Notify(n auction.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	b.Publish(Message{Type: n.Type, Data: data})
}

// Publish sends an encoded message to all subscribers.
func (b *Broker) Publish(msg Message) {
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
