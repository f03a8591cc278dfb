package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/ignite/campaign-targeting/internal/domain"
)

// Publisher announces freshly staged targets to the messaging pipeline.
type Publisher struct {
	client   SQSAPI
	queueURL string
	timeout  time.Duration
}

// NewPublisher creates a publisher for queueURL.
func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL, timeout: 5 * time.Second}
}

// NotifyStaged sends one notification. The campaign type and account ride
// along as message attributes for subscription filtering.
func (p *Publisher) NotifyStaged(ctx context.Context, n domain.StagedNotification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling staged notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"accountId":    {DataType: aws.String("String"), StringValue: aws.String(n.AccountID)},
			"campaignType": {DataType: aws.String("String"), StringValue: aws.String(string(n.CampaignType))},
		},
	})
	if err != nil {
		return fmt.Errorf("publishing staged notification: %w", err)
	}
	return nil
}
