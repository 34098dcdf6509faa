package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockSleep_WaitsOnClock(t *testing.T) {
	clk := clockwork.NewFakeClock()
	sleep := clockSleep(clk)

	done := make(chan error, 1)
	go func() { done <- sleep(context.Background(), 40*time.Second) }()

	require.NoError(t, clk.BlockUntilContext(context.Background(), 1))
	clk.Advance(40 * time.Second)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sleep did not return after the clock advanced")
	}
}

func TestClockSleep_ContextCancel(t *testing.T) {
	sleep := clockSleep(clockwork.NewFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
}

func TestClockSleep_ZeroDuration(t *testing.T) {
	assert.NoError(t, clockSleep(clockwork.NewFakeClock())(context.Background(), 0))
}
