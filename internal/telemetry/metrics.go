package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики воркера и клиента. Регистрируются в prometheus.DefaultRegisterer
// и отдаются через promhttp.Handler() на /metrics.
var (
	// TasksTotal — завершённые tasks по типу и исходу (completed/error).
	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowkit_tasks_total",
		Help: "Tasks finished by the worker, by task type and outcome",
	}, []string{"type", "outcome"})

	// TaskDuration — длительность выполнения task.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flowkit_task_duration_seconds",
		Help:    "Task handler duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	// TaskRetries — повторные попытки внутри task.
	TaskRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowkit_task_retries_total",
		Help: "Retry attempts performed by workers",
	})

	// MapItemsTotal — записи map-шага по исходу (result/error).
	MapItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowkit_map_items_total",
		Help: "Map items appended to accumulation lists, by outcome",
	}, []string{"outcome"})

	// MirrorFailures — неудачные публикации исхода в RabbitMQ.
	MirrorFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowkit_outcome_mirror_failures_total",
		Help: "Task outcome events that could not be published to the broker",
	})

	// ClientPolls — опросы статуса workflow клиентом.
	ClientPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowkit_client_polls_total",
		Help: "Workflow status polls performed by the client",
	})
)
