package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func TestFakeClock_AdvanceMovesNow(t *testing.T) {
	c := NewFakeClock(epoch)
	c.Advance(90 * time.Second)
	assert.Equal(t, epoch.Add(90*time.Second), c.Now())
}

func TestFakeClock_FiresInDeadlineOrder(t *testing.T) {
	c := NewFakeClock(epoch)
	var order []string
	c.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	c.AfterFunc(time.Second, func() { order = append(order, "a") })
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	c.AfterFunc(10*time.Second, func() { order = append(order, "late") })

	c.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 1, c.Pending())
}

func TestFakeClock_CallbackSeesDeadline(t *testing.T) {
	c := NewFakeClock(epoch)
	var at time.Time
	c.AfterFunc(2*time.Second, func() { at = c.Now() })
	c.Advance(time.Minute)
	assert.Equal(t, epoch.Add(2*time.Second), at)
}

func TestFakeClock_CallbackCanRearm(t *testing.T) {
	c := NewFakeClock(epoch)
	fired := 0
	var tick func()
	tick = func() {
		fired++
		c.AfterFunc(time.Second, tick)
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(5 * time.Second)
	assert.Equal(t, 5, fired)
	assert.Equal(t, 1, c.Pending())
}

func TestFakeClock_Stop(t *testing.T) {
	c := NewFakeClock(epoch)
	timer := c.AfterFunc(time.Second, func() { t.Error("stopped timer fired") })
	require.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(time.Minute)
	assert.Zero(t, c.Pending())
}

func TestFakeClock_StopAfterFire(t *testing.T) {
	c := NewFakeClock(epoch)
	timer := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)
	assert.False(t, timer.Stop())
}

func TestFakeClock_BlockUntil(t *testing.T) {
	c := NewFakeClock(epoch)
	go func() {
		time.Sleep(10 * time.Millisecond)
		c.AfterFunc(time.Second, func() {})
	}()
	assert.True(t, c.BlockUntil(1, time.Second))
	assert.False(t, c.BlockUntil(2, 20*time.Millisecond))
}
