package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrEmpty 阻塞读取超时，队列中没有消息
var ErrEmpty = errors.New("queue is empty")

// RedisQueue Redis列表队列，左进右出
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisQueue 创建Redis队列实例
func NewRedisQueue(config *Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})
	return NewRedisQueueWithClient(client, config.Prefix)
}

// NewRedisQueueWithClient 使用已有客户端创建队列
func NewRedisQueueWithClient(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "rbac:audit"
	}
	return &RedisQueue{
		client: client,
		prefix: prefix,
	}
}

// Client 底层客户端，供健康检查使用
func (q *RedisQueue) Client() *redis.Client {
	return q.client
}

// Close 关闭Redis连接
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping 测试Redis连接
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Enqueue 消息入队
func (q *RedisQueue) Enqueue(ctx context.Context, name string, payload []byte) error {
	if err := q.client.LPush(ctx, q.key(name), payload).Err(); err != nil {
		return fmt.Errorf("消息入队失败: %v", err)
	}
	return nil
}

// Dequeue 阻塞读取一条消息，超时返回ErrEmpty
func (q *RedisQueue) Dequeue(ctx context.Context, name string, timeout time.Duration) ([]byte, error) {
	result, err := q.client.BRPop(ctx, timeout, q.key(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, err
	}
	// BRPop 返回 [key, value]
	if len(result) < 2 {
		return nil, ErrEmpty
	}
	return []byte(result[1]), nil
}

// Length 队列长度
func (q *RedisQueue) Length(ctx context.Context, name string) (int64, error) {
	return q.client.LLen(ctx, q.key(name)).Result()
}

func (q *RedisQueue) key(name string) string {
	return fmt.Sprintf("%s:%s", q.prefix, name)
}
