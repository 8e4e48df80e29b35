package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики pipeline. Регистрируются в default registry,
// отдаются через promhttp.Handler на /metrics.
var (
	// RunsFinished — завершённые runs по виду pipeline и итоговому статусу.
	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ballpark",
		Name:      "runs_finished_total",
		Help:      "Total number of finished pipeline runs",
	}, []string{"kind", "status"})

	// TaskAttempts — попытки выполнения узлов по виду и результату
	// (success, transient, permanent).
	TaskAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ballpark",
		Name:      "task_attempts_total",
		Help:      "Total number of task execution attempts",
	}, []string{"kind", "result"})

	// NodeDuration — длительность выполнения узлов DAG.
	NodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ballpark",
		Name:      "node_duration_seconds",
		Help:      "Duration of DAG node execution",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"kind"})

	// AnomaliesDetected — найденные аномалии по severity и правилу.
	AnomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ballpark",
		Name:      "anomalies_detected_total",
		Help:      "Total number of data quality anomalies detected",
	}, []string{"severity", "rule"})

	// WarehouseRows — строки, обработанные loader'ом, по сущности и
	// исходу (inserted, updated, rejected).
	WarehouseRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ballpark",
		Name:      "warehouse_rows_total",
		Help:      "Total number of warehouse rows by load outcome",
	}, []string{"entity", "op"})

	// ScheduledRuns — runs, созданные scheduler'ом, по виду pipeline.
	ScheduledRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ballpark",
		Name:      "scheduled_runs_total",
		Help:      "Total number of runs created by the scheduler",
	}, []string{"kind"})
)
