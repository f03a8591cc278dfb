package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/ignite/campaign-targeting/internal/domain"
)

type settingsItem struct {
	PK                 string `dynamodbav:"PK"`
	SK                 string `dynamodbav:"SK"`
	Type               string `dynamodbav:"type"`
	Enabled            *bool  `dynamodbav:"enabled"`
	Message            string `dynamodbav:"message,omitempty"`
	Coupon             string `dynamodbav:"coupon,omitempty"`
	InactiveDays       int    `dynamodbav:"inactiveDays,omitempty"`
	CouponValidityDays int    `dynamodbav:"couponValidityDays,omitempty"`
	MinimumPurchases   int    `dynamodbav:"minimumPurchases,omitempty"`
	ProgramStart       string `dynamodbav:"programStart,omitempty"`
	CooldownDays       int    `dynamodbav:"cooldownDays,omitempty"`
}

// GetSettings reads one campaign's settings for an account. Accounts without
// a settings document get the enabled defaults.
func (s *Store) GetSettings(ctx context.Context, accountID string, t domain.CampaignType) (domain.CampaignSettings, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key(accountPK(accountID), campaignSK(string(t))),
	})
	if err != nil {
		return domain.CampaignSettings{}, fmt.Errorf("getting %s settings for %s: %w", t, accountID, err)
	}
	if len(out.Item) == 0 {
		return domain.DefaultCampaignSettings(t), nil
	}

	var item settingsItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return domain.CampaignSettings{}, fmt.Errorf("decoding %s settings for %s: %w", t, accountID, err)
	}
	settings := domain.CampaignSettings{
		Type:               t,
		Enabled:            item.Enabled == nil || *item.Enabled,
		Message:            item.Message,
		Coupon:             item.Coupon,
		InactiveDays:       item.InactiveDays,
		CouponValidityDays: item.CouponValidityDays,
		MinimumPurchases:   item.MinimumPurchases,
		ProgramStart:       item.ProgramStart,
		CooldownDays:       item.CooldownDays,
	}
	return settings.WithDefaults(), nil
}

// PutSettings stores one campaign's settings for an account.
func (s *Store) PutSettings(ctx context.Context, accountID string, settings domain.CampaignSettings) error {
	enabled := settings.Enabled
	av, err := attributevalue.MarshalMap(settingsItem{
		PK:                 accountPK(accountID),
		SK:                 campaignSK(string(settings.Type)),
		Type:               string(settings.Type),
		Enabled:            &enabled,
		Message:            settings.Message,
		Coupon:             settings.Coupon,
		InactiveDays:       settings.InactiveDays,
		CouponValidityDays: settings.CouponValidityDays,
		MinimumPurchases:   settings.MinimumPurchases,
		ProgramStart:       settings.ProgramStart,
		CooldownDays:       settings.CooldownDays,
	})
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av}); err != nil {
		return fmt.Errorf("putting %s settings for %s: %w", settings.Type, accountID, err)
	}
	return nil
}
