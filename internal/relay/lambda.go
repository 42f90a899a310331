package relay

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
)

// LambdaHandler runs the Relay behind an SQS event source mapping. Retained
// messages are reported as batch item failures, so the mapping must have
// ReportBatchItemFailures enabled.
type LambdaHandler struct {
	relay  *Relay
	logger *slog.Logger
}

func NewLambdaHandler(relay *Relay, logger *slog.Logger) *LambdaHandler {
	return &LambdaHandler{relay: relay, logger: logger}
}

// Handle processes the batch in order. If ctx ends mid-batch the remaining
// records are reported as failures without being processed.
func (h *LambdaHandler) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse

	for i, record := range ev.Records {
		if ctx.Err() != nil {
			for _, rest := range ev.Records[i:] {
				resp.BatchItemFailures = append(resp.BatchItemFailures,
					events.SQSBatchItemFailure{ItemIdentifier: rest.MessageId})
			}
			h.logger.WarnContext(ctx, "invocation ending mid-batch", "remaining", len(ev.Records)-i)
			break
		}

		h.relay.RecordSentTimestamp(ctx, record.Attributes["SentTimestamp"])
		if _, err := h.relay.Process(ctx, record.Body); err != nil {
			h.logger.WarnContext(ctx, "note event retained for redelivery",
				"message_id", record.MessageId,
				"error", err,
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}

	return resp, nil
}
