package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery loop iteration outcomes.
const (
	IterationTaskCompleted = "task_completed"
	IterationEmptyQueue    = "empty_queue"
	IterationError         = "error"
)

// Per-task results.
const (
	TaskSent            = "sent"
	TaskInvalidEmail    = "invalid_email"
	TaskTransportFailed = "transport_failed"
	TaskDeferred        = "deferred"
)

// DeliveryMetrics records delivery worker activity.
type DeliveryMetrics struct {
	iterations   *prometheus.CounterVec
	tasks        *prometheus.CounterVec
	sendDuration prometheus.Histogram
}

// NewDeliveryMetrics registers the delivery metrics on the provided registerer.
func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	if reg == nil {
		return &DeliveryMetrics{}
	}
	iterations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailmaven_delivery_iterations_total",
		Help: "Delivery loop iterations by outcome.",
	}, []string{"outcome"})
	tasks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailmaven_delivery_tasks_total",
		Help: "Processed delivery tasks by result.",
	}, []string{"result"})
	sendDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mailmaven_delivery_send_duration_seconds",
		Help:    "Duration of email send calls in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(iterations, tasks, sendDuration)
	return &DeliveryMetrics{
		iterations:   iterations,
		tasks:        tasks,
		sendDuration: sendDuration,
	}
}

// IncIteration counts one pass of the worker loop.
func (d *DeliveryMetrics) IncIteration(outcome string) {
	if d == nil || d.iterations == nil {
		return
	}
	d.iterations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncTask counts one processed task.
func (d *DeliveryMetrics) IncTask(result string) {
	if d == nil || d.tasks == nil {
		return
	}
	d.tasks.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveSend records how long a send call took.
func (d *DeliveryMetrics) ObserveSend(duration time.Duration) {
	if d == nil || d.sendDuration == nil {
		return
	}
	d.sendDuration.Observe(duration.Seconds())
}
