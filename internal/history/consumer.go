package history

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/pkg/logger"
)

// SQSAPI is the subset of the SQS client used by Consumer and Publisher.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// EventRecorder is what the consumer hands decoded events to.
type EventRecorder interface {
	Record(ctx context.Context, evt domain.MessageEvent) (bool, error)
}

// Consumer long-polls the message events queue. Undecodable and invalid
// events are deleted; events that fail to record stay on the queue for
// redelivery.
type Consumer struct {
	client    SQSAPI
	queueURL  string
	recorder  EventRecorder
	waitTime  int32
	errorWait time.Duration
	done      chan struct{}
	stopped   chan struct{}
	started   atomic.Bool
	stopOnce  sync.Once
}

// NewConsumer creates a consumer for queueURL.
func NewConsumer(client SQSAPI, queueURL string, recorder EventRecorder) *Consumer {
	return &Consumer{
		client:    client,
		queueURL:  queueURL,
		recorder:  recorder,
		waitTime:  20,
		errorWait: 5 * time.Second,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Start begins polling in the background.
func (c *Consumer) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	logger.Info("Message event consumer started", "queue", c.queueURL)
	go c.poll(ctx)
}

// Stop ends polling and waits for the in-flight batch.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
	if c.started.Load() {
		<-c.stopped
	}
}

func (c *Consumer) poll(ctx context.Context) {
	defer close(c.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		if err := c.ReceiveOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("SQS receive failed", "queue", c.queueURL, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-time.After(c.errorWait):
			}
		}
	}
}

// ReceiveOnce handles one batch of up to ten messages.
func (c *Consumer) ReceiveOnce(ctx context.Context) error {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     c.waitTime,
	})
	if err != nil {
		return err
	}

	for _, msg := range out.Messages {
		var evt domain.MessageEvent
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &evt); err != nil {
			logger.Warn("Dropping undecodable message event", "messageId", aws.ToString(msg.MessageId), "error", err)
			c.deleteMessage(ctx, msg.ReceiptHandle)
			continue
		}

		if _, err := c.recorder.Record(ctx, evt); err != nil {
			if permanent(err) {
				logger.Warn("Dropping invalid message event", "accountId", evt.AccountID, "messageId", evt.MessageID, "error", err)
				c.deleteMessage(ctx, msg.ReceiptHandle)
				continue
			}
			logger.Error("Recording message event failed", "accountId", evt.AccountID, "messageId", evt.MessageID, "error", err)
			continue
		}
		c.deleteMessage(ctx, msg.ReceiptHandle)
	}
	return nil
}

// permanent errors will fail the same way on every redelivery.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrInvalidMessageEvent) ||
		errors.Is(err, domain.ErrUnknownCampaign) ||
		errors.Is(err, domain.ErrConfiguration) ||
		errors.Is(err, domain.ErrInvalidTenantIdentifier)
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	}); err != nil {
		logger.Warn("SQS delete failed", "queue", c.queueURL, "error", err)
	}
}
