package types

// CloudWatch metric names and dimensions for the event relay.
const (
	MetricNamespace = "CloudNotes"

	MetricRelayOutcome   = "RelayMessageOutcome"
	MetricRelayQueueLag  = "RelayQueueLag"
	MetricPublishLatency = "NotificationPublishLatency"

	DimOutcome   = "Outcome"
	DimEventType = "EventType"
)
