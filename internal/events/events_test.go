package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	st "github.com/keshon/yomiage/internal/storagetypes"
)

func TestPublishFansOut(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(1)
	b := bus.Subscribe(1)

	require.NoError(t, bus.Publish(context.Background(), UserUpdated(st.NewUserVoicePreference("u1"))))

	for _, ch := range []<-chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, UserPreferenceUpdated, ev.Kind)
		require.NotNil(t, ev.User)
		assert.Equal(t, "u1", ev.User.UserID)
	}
}

func TestPublishBlocksUntilContextDone(t *testing.T) {
	bus := NewBus()
	_ = bus.Subscribe(0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := bus.Publish(ctx, GuildUpdated(st.NewGuildVoicePreference("g1")))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClosedBus(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(1)
	bus.Close()
	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)
	assert.ErrorIs(t, bus.Publish(context.Background(), Event{}), ErrBusClosed)

	late := bus.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)
}

func TestDictionaryChangedRoundTripsOp(t *testing.T) {
	entry := st.DictionaryEntry{GuildID: "g", Before: "a", After: "b"}
	for _, op := range []st.DictionaryOp{st.DictionaryAdd, st.DictionaryUpdate, st.DictionaryRemove} {
		ev := DictionaryChanged(op, entry)
		got, ok := ev.Op()
		assert.True(t, ok)
		assert.Equal(t, op, got)
		assert.Equal(t, entry, *ev.Entry)
	}

	_, ok := UserUpdated(st.UserVoicePreference{}).Op()
	assert.False(t, ok)
}

func TestPumpDeliversInOrderAndStopsOnClose(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(4)

	var got []string
	done := make(chan error, 1)
	go func() {
		done <- Pump(context.Background(), ch, HandlerFunc(func(ev Event) {
			got = append(got, ev.User.UserID)
		}))
	}()

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, UserUpdated(st.UserVoicePreference{UserID: "1"})))
	require.NoError(t, bus.Publish(ctx, UserUpdated(st.UserVoicePreference{UserID: "2"})))
	bus.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pump did not stop")
	}
	assert.Equal(t, []string{"1", "2"}, got)
}
