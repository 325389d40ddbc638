package api

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (l *limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func TestLimiter_DropsIdleBuckets(t *testing.T) {
	l := newLimiter(1, 1)
	require.NotNil(t, l)
	now := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		assert.True(t, l.allow(fmt.Sprintf("ip:10.0.0.%d", i)))
	}
	assert.False(t, l.allow("ip:10.0.0.1"))
	assert.Equal(t, 50, l.size())

	// One caller stays active while the others go quiet.
	now = now.Add(limiterIdle / 2)
	assert.True(t, l.allow("user:active"))

	now = now.Add(limiterIdle / 2)
	assert.True(t, l.allow("user:active"))
	assert.Equal(t, 1, l.size())

	// A returning caller starts with a full bucket.
	assert.True(t, l.allow("ip:10.0.0.1"))
	assert.Equal(t, 2, l.size())
}

func TestLimiter_Disabled(t *testing.T) {
	assert.Nil(t, newLimiter(0, 10))
}
