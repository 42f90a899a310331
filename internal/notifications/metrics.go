package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"cloudnotes/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics emits relay metrics to CloudWatch:
//
//   - RelayMessageOutcome: Dims {Outcome, EventType}, one per processed message
//   - RelayQueueLag: no dims, time from enqueue to processing start
//   - NotificationPublishLatency: Dims {EventType}, duration of a publish
//
// Emission failures are logged and never reach the relay.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics publishes to namespace, or types.MetricNamespace when
// namespace is empty.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

func (m *CloudWatchMetrics) RecordOutcome(ctx context.Context, outcome string, eventType types.EventType) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(types.DimOutcome), Value: aws.String(outcome)},
	}
	if eventType != "" {
		dims = append(dims, cwtypes.Dimension{Name: aws.String(types.DimEventType), Value: aws.String(string(eventType))})
	}
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricRelayOutcome),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	}, "outcome", outcome)
}

func (m *CloudWatchMetrics) RecordQueueLag(ctx context.Context, lag time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricRelayQueueLag),
		Value:      aws.Float64(float64(lag.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	}, "lag_ms", lag.Milliseconds())
}

func (m *CloudWatchMetrics) RecordPublishLatency(ctx context.Context, eventType types.EventType, d time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricPublishLatency),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimEventType), Value: aws.String(string(eventType))},
		},
	}, "duration_ms", d.Milliseconds())
}

func (m *CloudWatchMetrics) put(ctx context.Context, datum cwtypes.MetricDatum, logArgs ...any) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		args := append([]any{"metric", aws.ToString(datum.MetricName), "error", err}, logArgs...)
		m.logger.ErrorContext(ctx, "failed to record metric", args...)
	}
}

// NoopMetrics discards everything. Used when METRICS_ENABLED is false.
type NoopMetrics struct{}

func (NoopMetrics) RecordOutcome(context.Context, string, types.EventType) {}
func (NoopMetrics) RecordQueueLag(context.Context, time.Duration) {}
func (NoopMetrics) RecordPublishLatency(context.Context, types.EventType, time.Duration) {}
