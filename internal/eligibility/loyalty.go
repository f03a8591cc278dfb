package eligibility

import (
	"fmt"

	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/snowflake"
)

// Frequent buyers since the program start, outside the message and voucher
// cooldown.
var loyaltyRule = Rule{
	Type: domain.CampaignLoyalty,
	Query: func(t Tables, w Window, s domain.CampaignSettings) (string, []any, error) {
		start, err := ParseLocalDate(s.ProgramStart)
		if err != nil {
			return "", nil, fmt.Errorf("%w: loyalty program start %q", domain.ErrConfiguration, s.ProgramStart)
		}
		q := fmt.Sprintf(`WITH purchases AS (
  SELECT CPF_CLIENTE,
    COUNT(*) AS PURCHASE_COUNT,
    MAX(DATA) AS LAST_PURCHASE_DATE,
    SUM(VALOR) AS TOTAL_SPENT
  FROM %[1]s
  WHERE %[2]s
    AND %[4]s BETWEEN TO_DATE(@program_start) AND TO_DATE(@today)
  GROUP BY CPF_CLIENTE
),
last_voucher AS (
  SELECT CPF_CLIENTE, MAX(DATA) AS LAST_VOUCHER_DATE
  FROM %[1]s
  WHERE %[2]s
    AND %[3]s
  GROUP BY CPF_CLIENTE
),
%[5]s
SELECT %[6]s,
  p.PURCHASE_COUNT AS PURCHASE_COUNT,
  p.LAST_PURCHASE_DATE AS LAST_PURCHASE_DATE,
  p.TOTAL_SPENT AS TOTAL_SPENT,
  lv.LAST_VOUCHER_DATE AS LAST_VOUCHER_DATE
FROM %[7]s c
JOIN purchases p ON p.CPF_CLIENTE = c.CPF
LEFT JOIN last_voucher lv ON lv.CPF_CLIENTE = c.CPF
LEFT JOIN message_history mh ON mh.USER_ID = c.ID
WHERE p.PURCHASE_COUNT >= @minimum_purchases
  AND (lv.LAST_VOUCHER_DATE IS NULL OR %[8]s < TO_DATE(@cooldown_start))
  AND (mh.LAST_MESSAGE_SENT IS NULL OR %[9]s < TO_DATE(@cooldown_start))
  AND %[10]s`,
			t.Sales, successfulSale, voucherPredicate, localDate("DATA"),
			historyCTE(t), customerColumns, t.Customers,
			localDate("lv.LAST_VOUCHER_DATE"), localDate("mh.LAST_MESSAGE_SENT"), phonePredicate)
		sql, args := bindNamed(q, map[string]any{
			"campaign_type":     string(domain.CampaignLoyalty),
			"program_start":     dateArg(start),
			"today":             dateArg(w.Today),
			"minimum_purchases": s.MinimumPurchases,
			"cooldown_start":    dateArg(w.DaysAgo(s.CooldownDays)),
		})
		return sql, args, nil
	},
	Map: func(row snowflake.Row) domain.Target {
		return domain.Target{
			CustomerID: row.String("CUSTOMER_ID"),
			Name:       row.String("NAME"),
			Phone:      row.String("PHONE"),
			Data: map[string]any{
				"purchaseCount":    row.Int("PURCHASE_COUNT"),
				"lastPurchaseDate": dateOrNil(row.Value("LAST_PURCHASE_DATE")),
				"lastVoucherDate":  dateOrNil(row.Value("LAST_VOUCHER_DATE")),
				"totalSpent":       row.Float("TOTAL_SPENT"),
			},
		}
	},
}
