// ABOUTME: Tests for the bounded record feed
// ABOUTME: Ordering, drop on overflow and close semantics
package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(t *testing.T, name string, ev Event) ServerRecord {
	t.Helper()
	p := csvnParams(name, "10.0.0.1", 8080)
	p.Event = ev
	rec, err := NewServerRecord(p)
	require.NoError(t, err)
	return rec
}

func TestFeedDeliversInOrder(t *testing.T) {
	f, err := NewFeed(4, WithFeedLogger(zerolog.Nop()))
	require.NoError(t, err)

	f.ServerUp(testRecord(t, "a", EventRunning))
	f.ServerDown(testRecord(t, "a", EventShutdown))

	ctx := context.Background()
	r, err := f.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventRunning, r.Event())

	r, err = f.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventShutdown, r.Event())
}

func TestFeedDropsWhenFull(t *testing.T) {
	f, err := NewFeed(1,
		WithFeedLogger(zerolog.Nop()),
		WithSendTimeout(10*time.Millisecond),
	)
	require.NoError(t, err)

	f.ServerUp(testRecord(t, "a", EventRunning))
	f.ServerUp(testRecord(t, "b", EventRunning))

	r, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", r.ServiceName())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFeedDrainsAfterClose(t *testing.T) {
	f, err := NewFeed(2, WithFeedLogger(zerolog.Nop()))
	require.NoError(t, err)

	f.ServerUp(testRecord(t, "a", EventRunning))
	f.Close()
	f.Close()
	f.ServerUp(testRecord(t, "b", EventRunning))

	r, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", r.ServiceName())

	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, ErrFeedClosed)
}

func TestFeedNextUnblocksOnClose(t *testing.T) {
	f, err := NewFeed(1, WithFeedLogger(zerolog.Nop()))
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Close()
	}()

	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, ErrFeedClosed)
}

func TestFeedAsClientObserver(t *testing.T) {
	c, fb := newTestClient(t)
	f, err := NewFeed(4, WithFeedLogger(zerolog.Nop()))
	require.NoError(t, err)
	c.AddObserver(f)

	fb.resolved(csvnEntry("collabnetsvn", "192.168.1.20", 8080))

	r, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "collabnetsvn", r.ServiceName())
}

func TestFeedCapacity(t *testing.T) {
	_, err := NewFeed(0)
	assert.Error(t, err)
	_, err = NewFeed(1, WithSendTimeout(0))
	assert.Error(t, err)
}
