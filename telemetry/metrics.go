package telemetry

// Histogram bucket definitions for different latency profiles
var (
	// StorageBuckets for single-statement SQLite round trips
	StorageBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1, 5}

	// BatchBuckets for rows delivered per poll
	BatchBuckets = []float64{0, 1, 2, 5, 10, 25, 50, 100, 250}
)

var (
	// PublishTotal counts publishes by result (success, failed)
	PublishTotal CounterVec = noopCounterVec{}

	// PublishDurationSeconds measures append + broadcast latency
	PublishDurationSeconds Histogram = NoopStat{}

	// BroadcastFailuresTotal counts wake signals that could not be sent after a durable append
	BroadcastFailuresTotal Counter = NoopStat{}

	// WakeSignalsTotal counts wake signals received by local subscriptions
	WakeSignalsTotal Counter = NoopStat{}

	// PollTotal counts polls by result (success, failed, corrupt)
	PollTotal CounterVec = noopCounterVec{}

	// PollDurationSeconds measures the storage part of a poll
	PollDurationSeconds Histogram = NoopStat{}

	// PollBatchRows measures rows delivered per poll
	PollBatchRows Histogram = NoopStat{}

	// DeliveredTotal counts messages handed to the callback context
	DeliveredTotal Counter = NoopStat{}

	// ActiveSubscriptions tracks registered subscriptions in this process
	ActiveSubscriptions Gauge = NoopStat{}

	// HandlerPanicsTotal counts recovered panics in queued tasks by queue name
	HandlerPanicsTotal CounterVec = noopCounterVec{}

	// QueueTasksTotal counts tasks submitted per execution context
	QueueTasksTotal CounterVec = noopCounterVec{}

	// ClearTotal counts group-wide clears
	ClearTotal Counter = NoopStat{}

	// LogRows tracks rows currently in the shared message log
	LogRows Gauge = NoopStat{}

	// LogMaxID tracks the newest message id in the shared message log
	LogMaxID Gauge = NoopStat{}
)

// InitMetrics initializes all Prometheus metrics.
// Must be called after InitializeTelemetry().
func InitMetrics() {
	PublishTotal = NewCounterVec(
		"publish_total",
		"Total publishes by result",
		[]string{"result"},
	)
	PublishDurationSeconds = NewHistogramWithBuckets(
		"publish_duration_seconds",
		"Publish duration (append and broadcast) in seconds",
		StorageBuckets,
	)
	BroadcastFailuresTotal = NewCounter(
		"broadcast_failures_total",
		"Wake signals that failed to send after a durable append",
	)
	WakeSignalsTotal = NewCounter(
		"wake_signals_total",
		"Wake signals received by local subscriptions",
	)
	PollTotal = NewCounterVec(
		"poll_total",
		"Polls by result",
		[]string{"result"},
	)
	PollDurationSeconds = NewHistogramWithBuckets(
		"poll_duration_seconds",
		"Poll storage duration in seconds",
		StorageBuckets,
	)
	PollBatchRows = NewHistogramWithBuckets(
		"poll_batch_rows",
		"Rows delivered per poll",
		BatchBuckets,
	)
	DeliveredTotal = NewCounter(
		"delivered_total",
		"Messages handed to the callback context",
	)
	ActiveSubscriptions = NewGauge(
		"active_subscriptions",
		"Registered subscriptions in this process",
	)
	HandlerPanicsTotal = NewCounterVec(
		"task_panics_total",
		"Recovered panics in queued tasks",
		[]string{"queue"},
	)
	QueueTasksTotal = NewCounterVec(
		"queue_tasks_total",
		"Tasks submitted per execution context",
		[]string{"queue"},
	)
	ClearTotal = NewCounter(
		"clear_total",
		"Group-wide clears",
	)
	LogRows = NewGauge(
		"log_rows",
		"Rows in the shared message log",
	)
	LogMaxID = NewGauge(
		"log_max_id",
		"Newest message id in the shared message log",
	)
}
