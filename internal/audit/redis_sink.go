package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"rbacadmin/pkg/logger"
	"rbacadmin/pkg/queue"

	"github.com/sirupsen/logrus"
)

const queueName = "events"

// Queue 审计事件使用的队列能力
type Queue interface {
	Enqueue(ctx context.Context, name string, payload []byte) error
	Dequeue(ctx context.Context, name string, timeout time.Duration) ([]byte, error)
}

// RedisSink 将事件推入Redis队列，由Consumer异步落库
type RedisSink struct {
	queue Queue
}

func NewRedisSink(q Queue) *RedisSink {
	return &RedisSink{queue: q}
}

// Write 序列化事件并入队，入队前先脱敏
func (s *RedisSink) Write(ctx context.Context, e Event) error {
	e = e.normalize()
	e.Details = Sanitize(e.Details)
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.queue.Enqueue(ctx, queueName, payload)
}

// Consumer 从队列读取事件写入Sink
type Consumer struct {
	queue   Queue
	sink    Sink
	timeout time.Duration
}

func NewConsumer(q Queue, sink Sink) *Consumer {
	return &Consumer{queue: q, sink: sink, timeout: time.Second}
}

// Run 持续消费直到ctx取消
func (c *Consumer) Run(ctx context.Context) {
	appLogger := logger.GetLogger()
	appLogger.Info("Audit queue consumer started")
	defer appLogger.Info("Audit queue consumer stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := c.ConsumeOne(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			appLogger.WithError(err).Warn("audit queue read failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// ConsumeOne 处理一条消息，队列为空时返回false
func (c *Consumer) ConsumeOne(ctx context.Context) (bool, error) {
	payload, err := c.queue.Dequeue(ctx, queueName, c.timeout)
	if err != nil {
		if errors.Is(err, queue.ErrEmpty) {
			return false, nil
		}
		return false, err
	}

	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		eventsTotal.WithLabelValues(resultFailed).Inc()
		logger.GetLogger().WithError(err).Error("Discarding malformed audit message")
		return true, nil
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := c.sink.Write(writeCtx, e); err != nil {
		eventsTotal.WithLabelValues(resultFailed).Inc()
		logger.GetLogger().WithFields(logrus.Fields{
			"action":   e.Action,
			"username": e.Username,
		}).Errorf("Failed to persist queued audit log: %v", err)
		return true, nil
	}
	eventsTotal.WithLabelValues(resultRecorded).Inc()
	return true, nil
}
