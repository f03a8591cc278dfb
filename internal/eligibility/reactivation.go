package eligibility

import (
	"fmt"

	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/snowflake"
)

// ReactivationStartDay is the first local day of month the campaign runs.
const ReactivationStartDay = 20

var reactivationRule = Rule{
	Type: domain.CampaignReactivation,
	Gate: func(w Window) (bool, string) {
		if w.Day() < ReactivationStartDay {
			return false, fmt.Sprintf("reactivation runs from day %d of the month", ReactivationStartDay)
		}
		return true, ""
	},
	Query: func(t Tables, w Window, s domain.CampaignSettings) (string, []any, error) {
		q := fmt.Sprintf(`WITH last_purchase AS (
  SELECT CPF_CLIENTE, MAX(DATA) AS LAST_PURCHASE_DATE
  FROM %[1]s
  WHERE %[2]s
  GROUP BY CPF_CLIENTE
),
voucher_usage AS (
  SELECT DISTINCT CPF_CLIENTE
  FROM %[1]s
  WHERE %[2]s
    AND %[3]s
    AND %[4]s >= TO_DATE(@month_start)
),
%[5]s
SELECT %[6]s,
  lp.LAST_PURCHASE_DATE AS LAST_PURCHASE_DATE,
  DATEDIFF(day, %[7]s, TO_DATE(@today)) AS DAYS_SINCE_LAST_PURCHASE
FROM %[8]s c
JOIN last_purchase lp ON lp.CPF_CLIENTE = c.CPF
LEFT JOIN voucher_usage vu ON vu.CPF_CLIENTE = c.CPF
LEFT JOIN message_history mh ON mh.USER_ID = c.ID
WHERE %[7]s < TO_DATE(@month_start)
  AND %[7]s <= TO_DATE(@inactive_since)
  AND vu.CPF_CLIENTE IS NULL
  AND (mh.LAST_MESSAGE_SENT IS NULL OR %[9]s < TO_DATE(@month_start))
  AND %[10]s`,
			t.Sales, successfulSale, voucherPredicate, localDate("DATA"),
			historyCTE(t), customerColumns, localDate("lp.LAST_PURCHASE_DATE"),
			t.Customers, localDate("mh.LAST_MESSAGE_SENT"), phonePredicate)
		sql, args := bindNamed(q, map[string]any{
			"campaign_type":  string(domain.CampaignReactivation),
			"month_start":    dateArg(w.MonthStart),
			"today":          dateArg(w.Today),
			"inactive_since": dateArg(w.DaysAgo(s.InactiveDays)),
		})
		return sql, args, nil
	},
	Map: func(row snowflake.Row) domain.Target {
		return domain.Target{
			CustomerID: row.String("CUSTOMER_ID"),
			Name:       row.String("NAME"),
			Phone:      row.String("PHONE"),
			Data: map[string]any{
				"lastPurchaseDate":      dateOrNil(row.Value("LAST_PURCHASE_DATE")),
				"daysSinceLastPurchase": row.Int("DAYS_SINCE_LAST_PURCHASE"),
			},
		}
	},
}
