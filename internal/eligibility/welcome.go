package eligibility

import (
	"fmt"

	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/snowflake"
)

// Customers who registered yesterday and never got a welcome message.
var welcomeRule = Rule{
	Type: domain.CampaignWelcome,
	Query: func(t Tables, w Window, _ domain.CampaignSettings) (string, []any, error) {
		q := fmt.Sprintf(`WITH %s
SELECT %s,
  c.DATA_CADASTRO AS REGISTRATION_DATE
FROM %s c
LEFT JOIN message_history mh ON mh.USER_ID = c.ID
WHERE c.DATA_CADASTRO IS NOT NULL
  AND %s = TO_DATE(@yesterday)
  AND mh.LAST_MESSAGE_SENT IS NULL
  AND %s`,
			historyCTE(t), customerColumns, t.Customers,
			localDate("c.DATA_CADASTRO"), phonePredicate)
		sql, args := bindNamed(q, map[string]any{
			"campaign_type": string(domain.CampaignWelcome),
			"yesterday":     dateArg(w.Yesterday),
		})
		return sql, args, nil
	},
	Map: func(row snowflake.Row) domain.Target {
		return domain.Target{
			CustomerID: row.String("CUSTOMER_ID"),
			Name:       row.String("NAME"),
			Phone:      row.String("PHONE"),
			Data: map[string]any{
				"registrationDate": dateOrNil(row.Value("REGISTRATION_DATE")),
			},
		}
	},
}
