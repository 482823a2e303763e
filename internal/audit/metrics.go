package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultRecorded = "recorded"
	resultDropped  = "dropped"
	resultFailed   = "failed"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbac_audit_events_total",
			Help: "审计事件处理结果计数",
		},
		[]string{"result"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rbac_audit_queue_depth",
			Help: "进程内审计缓冲区中待写入的事件数",
		},
	)
)
