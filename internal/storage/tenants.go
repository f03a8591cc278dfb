package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ignite/campaign-targeting/internal/domain"
)

type tenantItem struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	AccountID string    `dynamodbav:"accountId"`
	TaxID     string    `dynamodbav:"taxId"`
	Status    string    `dynamodbav:"status"`
	CreatedAt time.Time `dynamodbav:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"updatedAt"`
}

func (i tenantItem) config() domain.TenantConfig {
	return domain.TenantConfig{
		AccountID: i.AccountID,
		TaxID:     i.TaxID,
		Status:    domain.ProvisioningStatus(i.Status),
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// GetTenant reads an account's config document. A missing document is
// domain.ErrTenantNotFound.
func (s *Store) GetTenant(ctx context.Context, accountID string) (domain.TenantConfig, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key(accountPK(accountID), configSK),
	})
	if err != nil {
		return domain.TenantConfig{}, fmt.Errorf("getting tenant %s: %w", accountID, err)
	}
	if len(out.Item) == 0 {
		return domain.TenantConfig{}, fmt.Errorf("%w: %s", domain.ErrTenantNotFound, accountID)
	}
	var item tenantItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return domain.TenantConfig{}, fmt.Errorf("decoding tenant %s: %w", accountID, err)
	}
	if item.AccountID == "" {
		item.AccountID = accountID
	}
	return item.config(), nil
}

// PutTenant writes an account's config document. Provisioning is owned by
// another service; this exists for seeding and tests.
func (s *Store) PutTenant(ctx context.Context, cfg domain.TenantConfig) error {
	av, err := attributevalue.MarshalMap(tenantItem{
		PK:        accountPK(cfg.AccountID),
		SK:        configSK,
		AccountID: cfg.AccountID,
		TaxID:     cfg.TaxID,
		Status:    string(cfg.Status),
		CreatedAt: cfg.CreatedAt,
		UpdatedAt: cfg.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshaling tenant: %w", err)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av}); err != nil {
		return fmt.Errorf("putting tenant %s: %w", cfg.AccountID, err)
	}
	return nil
}

// ListProvisioned scans every config document and keeps the provisioned
// tenants that have a tax id.
func (s *Store) ListProvisioned(ctx context.Context) ([]domain.TenantConfig, error) {
	p := dynamodb.NewScanPaginator(s.db, &dynamodb.ScanInput{
		TableName:        aws.String(s.table),
		FilterExpression: aws.String("SK = :sk AND #status = :status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sk":     &types.AttributeValueMemberS{Value: configSK},
			":status": &types.AttributeValueMemberS{Value: string(domain.ProvisioningProvisioned)},
		},
	})

	var tenants []domain.TenantConfig
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning tenants: %w", err)
		}
		var items []tenantItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("decoding tenants: %w", err)
		}
		for _, it := range items {
			if it.SK != configSK {
				continue
			}
			cfg := it.config()
			if cfg.Provisioned() {
				tenants = append(tenants, cfg)
			}
		}
	}
	return tenants, nil
}
