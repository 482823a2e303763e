package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
	err    error
}

func (s *memorySink) Write(ctx context.Context, e Event) error {
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherRecordDoesNotWaitForSink(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	d := NewDispatcher(sink, 1, 8)

	start := time.Now()
	for i := 0; i < 5; i++ {
		d.Record(Event{Action: "VIEW", Resource: "USER"})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 0, sink.count())

	close(sink.block)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 5, sink.count())
}

func TestDispatcherDropsWhenBufferFull(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	d := NewDispatcher(sink, 1, 1)

	for i := 0; i < 20; i++ {
		d.Record(Event{Action: "VIEW", Resource: "USER"})
	}

	close(sink.block)
	require.NoError(t, d.Close(context.Background()))
	// 一个在工作协程中，一个在缓冲区中，其余被丢弃
	assert.LessOrEqual(t, sink.count(), 2)
	assert.GreaterOrEqual(t, sink.count(), 1)
}

func TestDispatcherSwallowsSinkErrors(t *testing.T) {
	sink := &memorySink{err: errors.New("database is locked")}
	d := NewDispatcher(sink, 2, 4)

	assert.NotPanics(t, func() {
		d.Record(Event{Action: "DELETE", Resource: "USER"})
	})
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcherRecordAfterClose(t *testing.T) {
	sink := &memorySink{}
	d := NewDispatcher(sink, 1, 4)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	assert.NotPanics(t, func() {
		d.Record(Event{Action: "VIEW", Resource: "USER"})
	})
	assert.Equal(t, 0, sink.count())
}

func TestDispatcherCloseHonoursDeadline(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	defer close(sink.block)
	d := NewDispatcher(sink, 1, 4)
	d.Record(Event{Action: "VIEW", Resource: "USER"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
}
