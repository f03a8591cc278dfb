package main

import (
	"testing"

	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettingsYAML(t *testing.T) {
	doc := `
campaigns:
  - type: birthday
    message: "Feliz aniversário, {{ name | first_name }}!"
    coupon: NIVER10
    couponValidityDays: 7
  - type: reactivation
    enabled: false
    inactiveDays: 120
`
	got, err := parseSettings([]byte(doc))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.CampaignBirthday, got[0].Type)
	assert.True(t, got[0].Enabled)
	assert.Equal(t, "NIVER10", got[0].Coupon)
	assert.Equal(t, 7, got[0].CouponValidityDays)

	assert.Equal(t, domain.CampaignReactivation, got[1].Type)
	assert.False(t, got[1].Enabled)
	assert.Equal(t, 120, got[1].InactiveDays)
}

func TestParseSettingsJSON(t *testing.T) {
	got, err := parseSettings([]byte(`{"campaigns":[{"type":"loyalty","minimumPurchases":8,"cooldownDays":45}]}`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.CampaignLoyalty, got[0].Type)
	assert.Equal(t, 8, got[0].MinimumPurchases)
	assert.Equal(t, 45, got[0].CooldownDays)
}

func TestParseSettingsRejectsGarbage(t *testing.T) {
	_, err := parseSettings([]byte("campaigns: [unterminated"))
	assert.Error(t, err)
}
