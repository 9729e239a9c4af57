package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinWindow(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"))
	}
	assert.False(t, l.Allow("10.0.0.1"))

	// Other keys have their own bucket
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestWindowResets(t *testing.T) {
	l := New(1, 10*time.Millisecond)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
	time.Sleep(15 * time.Millisecond)
	assert.True(t, l.Allow("k"))
}
