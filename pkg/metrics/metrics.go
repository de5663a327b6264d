package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"routing_key", "queue"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	// 看板操作计数
	BoardOperationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_operation_total",
			Help: "Total number of project and task operations",
		},
		[]string{"operation", "result"}, // result: ok, validation, forbidden, not_found, conflict, error
	)

	// 同一列中出现相同 position 的次数（list 时检测）
	PositionTieCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "board_position_ties_total",
			Help: "Number of equal positions observed within a column while listing",
		},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"statement"},
	)

	SlowQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "db_slow_query_duration_seconds",
			Help:    "Duration of slow queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
		},
	)

	// 熔断器状态：0 closed, 1 open, 2 half-open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	// 对账清理计数
	ReconcileCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_items_total",
			Help: "Items repaired by the reconciler",
		},
		[]string{"kind"}, // kind: project, orphan_task
	)

	// outbox 投递计数
	OutboxDispatchCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_dispatch_total",
			Help: "Outbox events dispatched to the broker",
		},
		[]string{"result"},
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementBoardOperation 增加看板操作计数
func IncrementBoardOperation(operation, result string) {
	BoardOperationCount.WithLabelValues(operation, result).Inc()
}

// AddPositionTies 记录 list 时发现的并列 position
func AddPositionTies(n int) {
	if n > 0 {
		PositionTieCount.Add(float64(n))
	}
}

// IncrementSlowQuery 记录一次慢查询；statement 取 SQL 的首个关键字以控制标签基数
func IncrementSlowQuery(sql string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(statementKind(sql)).Inc()
	SlowQueryDuration.Observe(duration.Seconds())
}

// SetCircuitBreakerState 更新熔断器状态
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// AddReconciled 记录对账修复的数量
func AddReconciled(kind string, n int64) {
	if n > 0 {
		ReconcileCount.WithLabelValues(kind).Add(float64(n))
	}
}

// IncrementOutboxDispatch 记录 outbox 投递结果
func IncrementOutboxDispatch(result string) {
	OutboxDispatchCount.WithLabelValues(result).Inc()
}

func statementKind(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}
