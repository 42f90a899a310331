package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"cloudnotes/internal/config"
)

// deleteTimeout bounds an acknowledgement issued after the poll context has
// been cancelled.
const deleteTimeout = 5 * time.Second

// QueueClient is the subset of the SQS API used by the Poller.
type QueueClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Poller long-polls one queue and feeds each message to a Relay, one at a
// time in receipt order.
type Poller struct {
	client QueueClient
	relay  *Relay
	cfg    config.RelayConfig
	logger *slog.Logger
}

func NewPoller(client QueueClient, relay *Relay, cfg config.RelayConfig, logger *slog.Logger) *Poller {
	return &Poller{client: client, relay: relay, cfg: cfg, logger: logger}
}

// Run polls until ctx is cancelled. A failed receive is logged and retried
// after the configured backoff. Run returns nil on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "relay poller started",
		"queue_url", p.cfg.QueueURL,
		"max_messages", p.cfg.MaxMessages,
		"wait_time_seconds", p.cfg.WaitTimeSeconds,
	)

	for {
		if ctx.Err() != nil {
			p.logger.InfoContext(ctx, "relay poller stopped")
			return nil
		}

		if err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.ErrorContext(ctx, "failed to receive note events", "error", err)
			sleepCtx(ctx, p.cfg.ErrorBackoff)
		}
	}
}

// PollOnce receives one batch and processes it. Only a receive failure is
// returned; per-message failures leave the message for redelivery.
func (p *Poller) PollOnce(ctx context.Context) error {
	out, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(p.cfg.QueueURL),
		MaxNumberOfMessages:         p.cfg.MaxMessages,
		WaitTimeSeconds:             p.cfg.WaitTimeSeconds,
		VisibilityTimeout:           p.cfg.VisibilityTimeout,
		MessageAttributeNames:       []string{"All"},
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{sqstypes.MessageSystemAttributeNameSentTimestamp},
	})
	if err != nil {
		return err
	}

	for i, m := range out.Messages {
		if ctx.Err() != nil {
			p.logger.InfoContext(ctx, "stopping mid-batch, remaining messages will redeliver",
				"remaining", len(out.Messages)-i,
			)
			return nil
		}
		p.handle(ctx, m)
	}
	return nil
}

func (p *Poller) handle(ctx context.Context, m sqstypes.Message) {
	messageID := aws.ToString(m.MessageId)
	p.relay.RecordSentTimestamp(ctx, m.Attributes[string(sqstypes.MessageSystemAttributeNameSentTimestamp)])

	outcome, err := p.relay.Process(ctx, aws.ToString(m.Body))
	if err != nil {
		p.logger.WarnContext(ctx, "note event retained for redelivery",
			"message_id", messageID,
			"error", err,
		)
		return
	}
	if !outcome.Acknowledge() {
		return
	}

	// The publish already happened, so the delete must not be lost to a
	// shutdown that lands between the two.
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()
	_, err = p.client.DeleteMessage(delCtx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.cfg.QueueURL),
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to delete note event",
			"message_id", messageID,
			"outcome", string(outcome),
			"error", err,
		)
		return
	}
	p.logger.DebugContext(ctx, "note event acknowledged",
		"message_id", messageID,
		"outcome", string(outcome),
	)
}

// sleepCtx waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
