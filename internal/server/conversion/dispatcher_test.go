package conversion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/photoai/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoster struct {
	mu      sync.Mutex
	events  []Event
	release chan struct{}
	err     error
	ctxErr  error
}

func (f *fakePoster) Post(ctx context.Context, e Event) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	f.ctxErr = ctx.Err()
	return f.err
}

func (f *fakePoster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestDispatcher_DeliversAndCloseWaits(t *testing.T) {
	p := &fakePoster{}
	d := NewDispatcher(p, 4, 16, time.Second, logging.Nop{})

	for i := 0; i < 3; i++ {
		assert.True(t, d.Submit(context.Background(), Event{Type: EventLead}))
	}
	require.NoError(t, d.Close())
	assert.Equal(t, 3, p.count())
}

func TestDispatcher_QueuesBurstBeyondWorkers(t *testing.T) {
	p := &fakePoster{release: make(chan struct{})}
	d := NewDispatcher(p, 1, 8, time.Second, logging.Nop{})

	for i := 0; i < 5; i++ {
		assert.True(t, d.Submit(context.Background(), Event{Type: EventLead}))
	}

	close(p.release)
	require.NoError(t, d.Close())
	assert.Equal(t, 5, p.count())
}

func TestDispatcher_DropsOnlyWhenQueueFull(t *testing.T) {
	p := &fakePoster{release: make(chan struct{})}
	d := NewDispatcher(p, 1, 2, time.Second, logging.Nop{})

	accepted := 0
	for i := 0; i < 10; i++ {
		if d.Submit(context.Background(), Event{Type: EventLead}) {
			accepted++
		}
	}
	// the worker holds at most one job, the queue two more
	assert.GreaterOrEqual(t, accepted, 2)
	assert.LessOrEqual(t, accepted, 3)

	close(p.release)
	require.NoError(t, d.Close())
	assert.Equal(t, accepted, p.count())
}

func TestDispatcher_DetachedFromRequestCancel(t *testing.T) {
	p := &fakePoster{release: make(chan struct{})}
	d := NewDispatcher(p, 1, 8, time.Second, logging.Nop{})

	ctx, cancel := context.WithCancel(context.Background())
	assert.True(t, d.Submit(ctx, Event{Type: EventLead}))
	cancel()
	close(p.release)

	require.NoError(t, d.Close())
	assert.NoError(t, p.ctxErr)
}

func TestDispatcher_FailureIsSwallowed(t *testing.T) {
	p := &fakePoster{err: errors.New("boom")}
	d := NewDispatcher(p, 1, 8, time.Second, logging.Nop{})

	assert.True(t, d.Submit(context.Background(), Event{Type: EventLead}))
	assert.NoError(t, d.Close())
}

func TestDispatcher_SubmitAfterClose(t *testing.T) {
	p := &fakePoster{}
	d := NewDispatcher(p, 1, 8, time.Second, logging.Nop{})
	require.NoError(t, d.Close())

	assert.False(t, d.Submit(context.Background(), Event{Type: EventLead}))
	assert.Equal(t, 0, p.count())
}

func TestDispatcher_CloseTwice(t *testing.T) {
	d := NewDispatcher(&fakePoster{}, 2, 4, time.Second, logging.Nop{})
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
}
