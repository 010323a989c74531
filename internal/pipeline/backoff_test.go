package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestNextBackoff(t *testing.T) {
	got := []time.Duration{initialBackoff}
	for len(got) < 7 {
		got = append(got, retry.NextBackoff(got[len(got)-1], maxBackoff))
	}
	assert.Equal(t, []time.Duration{
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		3200 * time.Millisecond,
		5 * time.Second,
		5 * time.Second,
	}, got)
}

func TestSleepWithContext(t *testing.T) {
	clock := clockwork.NewFakeClock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepWithContext(ctx, clock, time.Hour))
	assert.False(t, sleepWithContext(ctx, clock, 0))
	assert.True(t, sleepWithContext(context.Background(), clock, 0))
}
