package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 적용 주기 관련 메트릭
	ApplyCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmstate_apply_cycles_total",
			Help: "Total number of apply cycles executed",
		},
		[]string{"status"}, // success, failed, no_changes
	)

	ApplyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nmstate_apply_duration_seconds",
			Help:    "Time spent in each apply cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	ChangeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmstate_change_operations_total",
			Help: "Total number of backend change operations issued",
		},
		[]string{"operation"}, // create-interface, delete-route, set-dns, ...
	)

	// 검증/롤백 관련 메트릭
	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmstate_verifications_total",
			Help: "Total number of post-apply verifications",
		},
		[]string{"result"}, // match, mismatch
	)

	VerificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nmstate_verification_duration_seconds",
			Help:    "Time spent polling for post-apply verification",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	Rollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmstate_rollbacks_total",
			Help: "Total number of rollback attempts",
		},
		[]string{"status"}, // success, failed
	)

	// 조정(서비스 모드) 관련 메트릭
	ReconcileCycleCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nmstate_reconcile_cycles_total",
			Help: "Total number of reconcile cycles executed",
		},
	)

	ReconcileDocuments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmstate_reconcile_documents_total",
			Help: "Total number of desired state documents processed",
		},
		[]string{"status"}, // applied, failed
	)

	PollingBackoffLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nmstate_polling_backoff_level",
			Help: "Current backoff level (0 = no backoff)",
		},
	)

	// 데이터베이스 연결 관련 메트릭
	DBConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nmstate_db_connection_status",
			Help: "Database connection status (1 = connected, 0 = disconnected)",
		},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nmstate_db_query_duration_seconds",
			Help:    "Time spent executing database queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type"}, // get_pending, update_status
	)

	// 에러 메트릭
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmstate_errors_total",
			Help: "Total number of errors encountered",
		},
		[]string{"error_type"}, // validation, backend, repository
	)

	// 시스템 정보
	ServiceInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nmstate_service_info",
			Help: "Service information",
		},
		[]string{"version", "node_name"},
	)
)

// RecordApply는 적용 주기의 결과와 소요 시간을 기록합니다
func RecordApply(status string, duration float64) {
	ApplyCycles.WithLabelValues(status).Inc()
	ApplyDuration.WithLabelValues(status).Observe(duration)
}

// RecordChangeOperation은 백엔드 변경 지시 하나를 기록합니다
func RecordChangeOperation(operation string) {
	ChangeOperations.WithLabelValues(operation).Inc()
}

// RecordVerification은 적용 후 검증 결과를 기록합니다
func RecordVerification(result string, duration float64) {
	Verifications.WithLabelValues(result).Inc()
	VerificationDuration.WithLabelValues(result).Observe(duration)
}

// RecordRollback은 롤백 시도 결과를 기록합니다
func RecordRollback(status string) {
	Rollbacks.WithLabelValues(status).Inc()
}

// RecordReconcileCycle은 조정 주기의 문서 처리 결과를 기록합니다
func RecordReconcileCycle(applied, failed int) {
	ReconcileCycleCount.Inc()
	ReconcileDocuments.WithLabelValues("applied").Add(float64(applied))
	ReconcileDocuments.WithLabelValues("failed").Add(float64(failed))
}

// RecordDBQuery는 데이터베이스 쿼리 시간을 기록합니다
func RecordDBQuery(queryType string, duration float64) {
	DBQueryDuration.WithLabelValues(queryType).Observe(duration)
}

// RecordError는 에러 발생을 기록합니다
func RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

// SetBackoffLevel은 현재 백오프 레벨을 설정합니다
func SetBackoffLevel(level float64) {
	PollingBackoffLevel.Set(level)
}

// SetDBConnectionStatus는 데이터베이스 연결 상태를 설정합니다
func SetDBConnectionStatus(connected bool) {
	if connected {
		DBConnectionStatus.Set(1)
	} else {
		DBConnectionStatus.Set(0)
	}
}

// SetServiceInfo는 서비스 정보를 설정합니다
func SetServiceInfo(version, nodeName string) {
	ServiceInfo.WithLabelValues(version, nodeName).Set(1)
}
