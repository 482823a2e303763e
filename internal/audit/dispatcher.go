package audit

import (
	"context"
	"sync"
	"time"

	"rbacadmin/pkg/logger"

	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// Dispatcher 进程内异步审计管道：Record只做非阻塞入队，由工作协程写入Sink
type Dispatcher struct {
	sink    Sink
	events  chan Event
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher 创建并启动审计分发器
func NewDispatcher(sink Sink, workers, buffer int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	d := &Dispatcher{
		sink:    sink,
		events:  make(chan Event, buffer),
		workers: workers,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run(i)
	}
	return d
}

// Record 非阻塞入队，缓冲区满或已关闭时丢弃并记录告警
func (d *Dispatcher) Record(e Event) {
	e = e.normalize()

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		eventsTotal.WithLabelValues(resultDropped).Inc()
		d.logDrop(e, "dispatcher closed")
		return
	}

	select {
	case d.events <- e:
		queueDepth.Inc()
	default:
		eventsTotal.WithLabelValues(resultDropped).Inc()
		d.logDrop(e, "buffer full")
	}
}

// Close 停止接收新事件并等待已入队事件写完，ctx到期则放弃等待
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run(worker int) {
	defer d.wg.Done()
	for e := range d.events {
		queueDepth.Dec()
		d.write(worker, e)
	}
}

func (d *Dispatcher) write(worker int, e Event) {
	defer func() {
		if r := recover(); r != nil {
			eventsTotal.WithLabelValues(resultFailed).Inc()
			logger.GetLogger().WithFields(logrus.Fields{
				"worker": worker,
				"action": e.Action,
			}).Errorf("audit sink panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := d.sink.Write(ctx, e); err != nil {
		eventsTotal.WithLabelValues(resultFailed).Inc()
		logger.GetLogger().WithFields(logrus.Fields{
			"worker":   worker,
			"action":   e.Action,
			"resource": e.Resource,
			"username": e.Username,
		}).Errorf("Failed to write audit log: %v", err)
		return
	}
	eventsTotal.WithLabelValues(resultRecorded).Inc()
}

func (d *Dispatcher) logDrop(e Event, reason string) {
	logger.GetLogger().WithFields(logrus.Fields{
		"action":   e.Action,
		"resource": e.Resource,
		"username": e.Username,
	}).Warnf("audit event dropped: %s", reason)
}
