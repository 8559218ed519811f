package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealAfterFunc(t *testing.T) {
	c := New()
	fired := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestRealStop(t *testing.T) {
	c := New()
	timer := c.AfterFunc(time.Hour, func() { t.Error("stopped timer fired") })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
}
