// Package events carries preference and dictionary update notifications from
// the commands that write them to the components that cache them.
package events

import (
	"context"
	"errors"
	"sync"

	st "github.com/keshon/yomiage/internal/storagetypes"
)

type Kind string

const (
	UserPreferenceUpdated  Kind = "user_preference_updated"
	GuildPreferenceUpdated Kind = "guild_preference_updated"
	DictionaryAdded        Kind = "dictionary_added"
	DictionaryUpdated      Kind = "dictionary_updated"
	DictionaryRemoved      Kind = "dictionary_removed"
)

// Event is one update notification. Exactly one payload field is set,
// matching Kind.
type Event struct {
	Kind  Kind
	User  *st.UserVoicePreference
	Guild *st.GuildVoicePreference
	Entry *st.DictionaryEntry
}

func UserUpdated(p st.UserVoicePreference) Event {
	return Event{Kind: UserPreferenceUpdated, User: &p}
}

func GuildUpdated(p st.GuildVoicePreference) Event {
	return Event{Kind: GuildPreferenceUpdated, Guild: &p}
}

// DictionaryChanged builds the event for op applied to e.
func DictionaryChanged(op st.DictionaryOp, e st.DictionaryEntry) Event {
	kind := DictionaryAdded
	switch op {
	case st.DictionaryUpdate:
		kind = DictionaryUpdated
	case st.DictionaryRemove:
		kind = DictionaryRemoved
	}
	return Event{Kind: kind, Entry: &e}
}

// Op maps a dictionary event kind back to its operation.
func (e Event) Op() (st.DictionaryOp, bool) {
	switch e.Kind {
	case DictionaryAdded:
		return st.DictionaryAdd, true
	case DictionaryUpdated:
		return st.DictionaryUpdate, true
	case DictionaryRemoved:
		return st.DictionaryRemove, true
	}
	return "", false
}

var ErrBusClosed = errors.New("event bus closed")

// Bus fans each published event out to every subscriber. Publish blocks until
// every subscriber has room, so updates are never dropped.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Event
	closed bool
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber channel with the given buffer size.
// The channel is closed by Close.
func (b *Bus) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

// Handler reacts to update events.
type Handler interface {
	HandleUpdate(ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

func (f HandlerFunc) HandleUpdate(ev Event) { f(ev) }

// Pump delivers events from ch to h, one at a time, until ch is closed or ctx
// is done.
func Pump(ctx context.Context, ch <-chan Event, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			h.HandleUpdate(ev)
		}
	}
}
