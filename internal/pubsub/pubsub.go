// Package pubsub implements the pub/sub bus: per-channel subscriber
// sets, publish fan-out, pattern listing, and subscribed-session state
// (spec §4.F). There is no control-thread goroutine in front of it:
// session goroutines call the bus directly through the dispatcher, and
// the bus guards its own maps with its own RWMutex, the way the
// teacher's SubscriptionIndex guards a reverse channel→client index
// with its own lock instead of the connection pool's.
package pubsub

import (
	"sync"

	"github.com/adred-codev/kvstore/internal/glob"
)

// Sink is the outbound message surface a subscriber connection exposes
// to the bus. It must not block the publisher: an implementation
// backed by a buffered channel should attempt a non-blocking send and
// report false if the buffer is full, matching spec §4.F's "delivery
// is best-effort: if a sink cannot accept the message promptly the
// subscriber is evicted".
type Sink interface {
	// TrySend attempts to deliver one already-framed reply. It must
	// return immediately; false means the subscriber should be evicted.
	TrySend(frame []byte) bool
}

// Subscriber is the ownership pair the spec calls a SubscriberHandle:
// a sink plus the address identifier used as the subscriber-set key.
type Subscriber struct {
	Addr string
	Sink Sink
}

// Bus is the subscription registry: channel name → subscriber set,
// plus a per-connection subscribed-channel count.
type Bus struct {
	mu          sync.RWMutex
	channels    map[string]map[string]Subscriber // channel -> addr -> subscriber
	subCount    map[string]int                    // addr -> number of channels subscribed
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		channels: make(map[string]map[string]Subscriber),
		subCount: make(map[string]int),
	}
}

// Subscribe adds sub as a subscriber of channel and returns the
// connection's new total subscription count across all channels.
func (b *Bus) Subscribe(channel string, sub Subscriber) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.channels[channel]
	if !ok {
		set = make(map[string]Subscriber)
		b.channels[channel] = set
	}
	if _, already := set[sub.Addr]; !already {
		set[sub.Addr] = sub
		b.subCount[sub.Addr]++
	}
	return b.subCount[sub.Addr]
}

// Unsubscribe removes addr from channel (or, if channel=="", from
// every channel it is subscribed to — the ALL form). It returns the
// connection's remaining total subscription count.
func (b *Bus) Unsubscribe(addr, channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if channel == "" {
		for ch, set := range b.channels {
			if _, ok := set[addr]; ok {
				delete(set, addr)
				if len(set) == 0 {
					delete(b.channels, ch)
				}
			}
		}
		delete(b.subCount, addr)
		return 0
	}
	if set, ok := b.channels[channel]; ok {
		if _, present := set[addr]; present {
			delete(set, addr)
			if len(set) == 0 {
				delete(b.channels, channel)
			}
			if b.subCount[addr] > 0 {
				b.subCount[addr]--
			}
			if b.subCount[addr] == 0 {
				delete(b.subCount, addr)
			}
		}
	}
	return b.subCount[addr]
}

// UnsubscribeAll removes every subscription owned by addr. Called by
// the supervisor on connection close (spec §4.F: "must never outlive a
// subscriber connection").
func (b *Bus) UnsubscribeAll(addr string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var left []string
	for ch, set := range b.channels {
		if _, ok := set[addr]; ok {
			delete(set, addr)
			left = append(left, ch)
			if len(set) == 0 {
				delete(b.channels, ch)
			}
		}
	}
	delete(b.subCount, addr)
	return left
}

// SubscribedChannels lists every channel addr currently subscribes to,
// used by UNSUBSCRIBE with no arguments (the "unsubscribe from
// everything" form) to reply once per channel being left.
func (b *Bus) SubscribedChannels(addr string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []string
	for ch, set := range b.channels {
		if _, ok := set[addr]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// SubscriptionCount returns how many channels addr currently
// subscribes to — the boolean "is this connection in subscribed mode"
// used by the dispatcher's gate is simply count > 0.
func (b *Bus) SubscriptionCount(addr string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.subCount[addr]
}

// Publish delivers frame to every subscriber of channel, evicting any
// subscriber whose sink cannot accept it promptly, and returns the
// number of deliveries that actually succeeded.
func (b *Bus) Publish(channel string, frame []byte) int {
	b.mu.RLock()
	set := b.channels[channel]
	subs := make([]Subscriber, 0, len(set))
	for _, s := range set {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	delivered := 0
	var dead []string
	for _, s := range subs {
		if s.Sink.TrySend(frame) {
			delivered++
		} else {
			dead = append(dead, s.Addr)
		}
	}
	for _, addr := range dead {
		b.Unsubscribe(addr, channel)
	}
	return delivered
}

// Channels lists channel names with at least one subscriber, filtered
// by an optional glob pattern (empty pattern means no filter).
func (b *Bus) Channels(pattern string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.channels))
	for ch := range b.channels {
		if pattern == "" || glob.Match([]byte(pattern), []byte(ch)) {
			out = append(out, ch)
		}
	}
	return out
}

// NumSub returns the subscriber count for each requested channel, in
// the same order.
func (b *Bus) NumSub(channels []string) []int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]int, len(channels))
	for i, ch := range channels {
		out[i] = len(b.channels[ch])
	}
	return out
}

// Stats reports the number of distinct subscribed connections and the
// number of channels with at least one subscriber, for the periodic
// gauge sample in the maintenance loop.
func (b *Bus) Stats() (subscribers, channels int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subCount), len(b.channels)
}
