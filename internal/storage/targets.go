package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/pkg/logger"
)

const (
	// MaxTransactItems is DynamoDB's TransactWriteItems limit.
	MaxTransactItems = 100
	// BatchSize is DynamoDB's BatchWriteItem limit.
	BatchSize = 25
	// MaxBatchRetries bounds resubmission of UnprocessedItems.
	MaxBatchRetries = 3
)

// StageMode records how a stage was written.
type StageMode string

const (
	StageSkipped     StageMode = "skipped"
	StageTransaction StageMode = "transaction"
	StageBatch       StageMode = "batch"
)

// StageResult summarizes a stage.
type StageResult struct {
	Mode    StageMode
	Deleted int
	Written int
}

type targetItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	domain.StagedTarget
}

// StageTargets replaces the account's staged targets of one campaign with
// targets. Stale targets are deleted and current ones overwritten, so rerunning
// after any failure converges. An empty list is a no-op that keeps the
// previous targets in place.
//
// Small stages are one transaction. Larger ones are batched; a failure after
// the first applied batch returns a *domain.StageError matching
// domain.ErrPartialStage.
func (s *Store) StageTargets(ctx context.Context, accountID string, campaign domain.CampaignType, runID string, targets []domain.Target) (StageResult, error) {
	if len(targets) == 0 {
		return StageResult{Mode: StageSkipped}, nil
	}

	pk := accountPK(accountID)
	puts, err := s.targetPuts(pk, accountID, campaign, runID, targets)
	if err != nil {
		return StageResult{}, &domain.StageError{AccountID: accountID, Campaign: campaign, Err: err}
	}

	existing, err := s.existingTargetKeys(ctx, pk, campaign)
	if err != nil {
		return StageResult{}, &domain.StageError{AccountID: accountID, Campaign: campaign, Err: err}
	}
	var deletes []string
	for _, sk := range existing {
		if _, keep := puts[sk]; !keep {
			deletes = append(deletes, sk)
		}
	}

	if len(deletes)+len(puts) <= MaxTransactItems {
		if err := s.stageTransaction(ctx, pk, deletes, puts); err != nil {
			return StageResult{}, &domain.StageError{AccountID: accountID, Campaign: campaign, Err: err}
		}
		return StageResult{Mode: StageTransaction, Deleted: len(deletes), Written: len(puts)}, nil
	}

	res := StageResult{Mode: StageBatch}
	deleteReqs := make([]types.WriteRequest, 0, len(deletes))
	for _, sk := range deletes {
		deleteReqs = append(deleteReqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key(pk, sk)}})
	}
	res.Deleted, err = s.batchWrite(ctx, deleteReqs)
	if err != nil {
		return res, &domain.StageError{AccountID: accountID, Campaign: campaign, Deleted: res.Deleted, Err: err}
	}

	putReqs := make([]types.WriteRequest, 0, len(puts))
	for _, sk := range sortedKeys(puts) {
		putReqs = append(putReqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: puts[sk]}})
	}
	res.Written, err = s.batchWrite(ctx, putReqs)
	if err != nil {
		return res, &domain.StageError{AccountID: accountID, Campaign: campaign, Deleted: res.Deleted, Written: res.Written, Err: err}
	}

	logger.Info("Staged targets in batches", "accountId", accountID, "campaign", string(campaign),
		"deleted", res.Deleted, "written", res.Written)
	return res, nil
}

// targetPuts marshals one item per customer; the last duplicate wins.
func (s *Store) targetPuts(pk, accountID string, campaign domain.CampaignType, runID string, targets []domain.Target) (map[string]map[string]types.AttributeValue, error) {
	now := s.now().UTC()
	puts := make(map[string]map[string]types.AttributeValue, len(targets))
	for _, t := range targets {
		if t.CustomerID == "" {
			return nil, errors.New("target without customer id")
		}
		t.CampaignType = campaign
		sk := targetPrefix(string(campaign)) + t.CustomerID
		av, err := attributevalue.MarshalMap(targetItem{
			PK: pk,
			SK: sk,
			StagedTarget: domain.StagedTarget{
				Target:    t,
				AccountID: accountID,
				RunID:     runID,
				Status:    domain.DeliveryPending,
				Attempts:  0,
				CreatedAt: now,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling target %s: %w", t.CustomerID, err)
		}
		puts[sk] = av
	}
	return puts, nil
}

func (s *Store) existingTargetKeys(ctx context.Context, pk string, campaign domain.CampaignType) ([]string, error) {
	p := dynamodb.NewQueryPaginator(s.db, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ProjectionExpression:   aws.String("PK, SK"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: pk},
			":prefix": &types.AttributeValueMemberS{Value: targetPrefix(string(campaign))},
		},
	})

	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying staged targets: %w", err)
		}
		for _, item := range page.Items {
			if sk, ok := item["SK"].(*types.AttributeValueMemberS); ok {
				keys = append(keys, sk.Value)
			}
		}
	}
	return keys, nil
}

// ListTargets returns the staged targets of one campaign.
func (s *Store) ListTargets(ctx context.Context, accountID string, campaign domain.CampaignType) ([]domain.StagedTarget, error) {
	p := dynamodb.NewQueryPaginator(s.db, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: accountPK(accountID)},
			":prefix": &types.AttributeValueMemberS{Value: targetPrefix(string(campaign))},
		},
	})

	var out []domain.StagedTarget
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying staged targets: %w", err)
		}
		var items []targetItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("decoding staged targets: %w", err)
		}
		for _, it := range items {
			out = append(out, it.StagedTarget)
		}
	}
	return out, nil
}

func (s *Store) stageTransaction(ctx context.Context, pk string, deletes []string, puts map[string]map[string]types.AttributeValue) error {
	items := make([]types.TransactWriteItem, 0, len(deletes)+len(puts))
	for _, sk := range deletes {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{TableName: aws.String(s.table), Key: key(pk, sk)},
		})
	}
	for _, sk := range sortedKeys(puts) {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{TableName: aws.String(s.table), Item: puts[sk]},
		})
	}
	if _, err := s.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// batchWrite submits reqs in chunks, resubmitting unprocessed items with
// backoff. It returns how many requests were applied.
func (s *Store) batchWrite(ctx context.Context, reqs []types.WriteRequest) (int, error) {
	applied := 0
	for start := 0; start < len(reqs); start += BatchSize {
		end := min(start+BatchSize, len(reqs))
		pending := reqs[start:end]

		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt > MaxBatchRetries {
				return applied, fmt.Errorf("%d items still unprocessed after %d retries", len(pending), MaxBatchRetries)
			}
			if attempt > 0 {
				s.sleep(time.Duration(50<<attempt) * time.Millisecond)
			}
			out, err := s.db.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{s.table: pending},
			})
			if err != nil {
				return applied, fmt.Errorf("batch write: %w", err)
			}
			left := out.UnprocessedItems[s.table]
			applied += len(pending) - len(left)
			pending = left
		}
	}
	return applied, nil
}
