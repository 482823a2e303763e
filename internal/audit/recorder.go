package audit

import (
	"time"

	"rbacadmin/internal/models"
)

const (
	UsernameUnknown   = "unknown"
	UsernameAnonymous = "anonymous"
	UnknownValue      = "Unknown"
)

// Event 一次待记录的审计事件
type Event struct {
	UserID     *uint                  `json:"userId,omitempty"`
	Username   string                 `json:"username"`
	Action     models.AuditAction     `json:"action"`
	Resource   models.AuditResource   `json:"resource"`
	ResourceID *string                `json:"resourceId,omitempty"`
	IPAddress  string                 `json:"ipAddress"`
	UserAgent  string                 `json:"userAgent"`
	Details    map[string]interface{} `json:"details,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// Recorder 记录审计事件。实现必须立即返回，且不得panic或向调用方返回错误
type Recorder interface {
	Record(e Event)
}

// RecorderFunc 函数适配
type RecorderFunc func(e Event)

func (f RecorderFunc) Record(e Event) { f(e) }

// Nop 丢弃所有事件
var Nop Recorder = RecorderFunc(func(Event) {})

// normalize 补全默认值
func (e Event) normalize() Event {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}
	if e.Username == "" {
		e.Username = UsernameAnonymous
	}
	if e.UserAgent == "" {
		e.UserAgent = UnknownValue
	}
	return e
}

// ToEntry 转换为数据库记录，details在此处脱敏
func (e Event) ToEntry() (*models.AuditLogEntry, error) {
	e = e.normalize()
	details, err := encodeDetails(Sanitize(e.Details))
	if err != nil {
		return nil, err
	}
	return &models.AuditLogEntry{
		UserID:     e.UserID,
		Username:   e.Username,
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		Details:    details,
		CreatedAt:  e.OccurredAt,
	}, nil
}
