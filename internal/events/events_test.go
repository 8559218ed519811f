package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quill/internal/journal"
)

var key = journal.Key{Date: "2025-03-03", Type: journal.TypeDaily}

func TestPublish_FansOut(t *testing.T) {
	b := NewBus(nil)
	s1 := b.Subscribe(4)
	s2 := b.Subscribe(4)

	b.Publish(Event{Kind: EntrySaved, Key: key, Version: 1})

	for _, s := range []*Subscription{s1, s2} {
		e := <-s.C
		assert.Equal(t, EntrySaved, e.Kind)
		assert.Equal(t, int64(1), e.Version)
	}
}

func TestPublish_DropsWhenFull(t *testing.T) {
	b := NewBus(nil)
	s := b.Subscribe(1)

	b.Publish(Event{Kind: EntrySaved})
	b.Publish(Event{Kind: EntrySaved})

	e := <-s.C
	assert.Equal(t, int64(1), e.Seq)
	select {
	case e := <-s.C:
		t.Fatalf("unexpected event %v", e)
	default:
	}
}

func TestPublish_StampsSequence(t *testing.T) {
	b := NewBus(nil)
	s := b.Subscribe(4)

	b.Publish(Event{Kind: EntrySaved, Seq: 99})
	b.Publish(Event{Kind: EntryDeleted})

	assert.Equal(t, int64(1), (<-s.C).Seq)
	assert.Equal(t, int64(2), (<-s.C).Seq)
}

func TestSubscription_Close(t *testing.T) {
	b := NewBus(nil)
	s := b.Subscribe(1)
	s.Close()
	s.Close()

	_, ok := <-s.C
	assert.False(t, ok)

	b.Publish(Event{Kind: EntryDeleted})
}

func TestBus_Close(t *testing.T) {
	b := NewBus(nil)
	s := b.Subscribe(1)
	b.Close()

	_, ok := <-s.C
	require.False(t, ok)

	late := b.Subscribe(1)
	_, ok = <-late.C
	assert.False(t, ok)
	late.Close()
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "ConflictDetected", ConflictDetected.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
