// Package events broadcasts entry lifecycle notifications to subscribers.
//
// Events are plain data. Publish never blocks: each subscriber has a
// buffered channel, and an event that does not fit is dropped for that
// subscriber and logged.
package events

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/quill/internal/journal"
)

// Kind distinguishes event types.
type Kind int

const (
	// EntrySaved is emitted after a save commits.
	EntrySaved Kind = iota + 1
	// EntryDeleted is emitted after a delete removed an entry.
	EntryDeleted
	// ConflictDetected is emitted when a save lost a version race.
	ConflictDetected
	// SaveFailed is emitted when a save fails for any other reason.
	SaveFailed
)

func (k Kind) String() string {
	switch k {
	case EntrySaved:
		return "EntrySaved"
	case EntryDeleted:
		return "EntryDeleted"
	case ConflictDetected:
		return "ConflictDetected"
	case SaveFailed:
		return "SaveFailed"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is one notification. Fields irrelevant to the kind are zero.
type Event struct {
	Kind Kind
	Seq  int64 // assigned by Publish; strictly increasing per bus
	Key  journal.Key
	At   time.Time

	// EntrySaved
	Version int64

	// ConflictDetected
	LocalVersion  int64
	RemoteVersion int64

	// SaveFailed. Never contains entry content.
	Code   journal.ErrorCode
	Reason string
}

// DefaultBuffer is the channel capacity of a subscription.
const DefaultBuffer = 64

// Bus fans events out to subscribers.
//
// Thread-safety: all methods are safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]*Subscription
	nextID int
	seq    int64
	closed bool
	logger *slog.Logger
}

// NewBus creates a Bus. A nil logger uses slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{subs: make(map[int]*Subscription), logger: logger}
}

// Subscription receives events on C until Close.
type Subscription struct {
	C <-chan Event

	ch   chan Event
	bus  *Bus
	id   int
	once sync.Once
}

// Subscribe registers a subscriber with the given channel capacity
// (DefaultBuffer when buffer <= 0). Subscribing to a closed bus returns a
// subscription whose channel is already closed.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		sub.once.Do(func() {})
		return sub
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	return sub
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// Publish stamps e with the next sequence number and delivers it to every
// subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.seq++
	e.Seq = b.seq
	for _, sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			b.logger.Warn("event dropped: subscriber full",
				"event", e.Kind.String(),
				"key", e.Key.String(),
				"seq", e.Seq,
			)
		}
	}
}

// Close closes every subscription. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.closed = true
	b.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}
