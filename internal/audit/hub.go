package audit

import (
	"encoding/json"
	"sync"

	"rbacadmin/internal/models"
	"rbacadmin/pkg/logger"
)

// Subscriber 实时审计流的订阅者
type Subscriber struct {
	C    <-chan []byte
	send chan []byte
}

// Hub 将持久化后的审计记录广播给在线订阅者
type Hub struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	bufferSize  int
}

func NewHub(bufferSize int) *Hub {
	if bufferSize < 1 {
		bufferSize = 16
	}
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		bufferSize:  bufferSize,
	}
}

// Subscribe 注册订阅者
func (h *Hub) Subscribe() *Subscriber {
	ch := make(chan []byte, h.bufferSize)
	sub := &Subscriber{C: ch, send: ch}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe 注销订阅者并关闭其通道，可重复调用
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}

// Count 当前订阅者数量
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Publish 广播一条记录，跟不上的订阅者会被移除
func (h *Hub) Publish(entry *models.AuditLogEntry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		logger.GetLogger().WithError(err).Warn("audit stream marshal failed")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- payload:
		default:
			delete(h.subscribers, sub)
			close(sub.send)
		}
	}
}
