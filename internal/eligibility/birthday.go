package eligibility

import (
	"fmt"
	"time"

	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/snowflake"
)

// Birth dates are calendar dates, so they are compared without a zone shift.
// Customers born on Feb 29 are matched on Feb 28 in non-leap years.
var birthdayRule = Rule{
	Type: domain.CampaignBirthday,
	Query: func(t Tables, w Window, _ domain.CampaignSettings) (string, []any, error) {
		q := fmt.Sprintf(`WITH %s
SELECT %s,
  c.DATA_NASCIMENTO AS BIRTH_DATE,
  c.DATA_CADASTRO AS REGISTRATION_DATE
FROM %s c
LEFT JOIN message_history mh ON mh.USER_ID = c.ID
WHERE c.DATA_NASCIMENTO IS NOT NULL
  AND ((MONTH(TO_DATE(c.DATA_NASCIMENTO)) = @month AND DAY(TO_DATE(c.DATA_NASCIMENTO)) = @day)
    OR (@leap_day AND MONTH(TO_DATE(c.DATA_NASCIMENTO)) = 2 AND DAY(TO_DATE(c.DATA_NASCIMENTO)) = 29))
  AND (mh.LAST_MESSAGE_SENT IS NULL OR %s < TO_DATE(@year_start))
  AND %s`,
			historyCTE(t), customerColumns, t.Customers,
			localDate("mh.LAST_MESSAGE_SENT"), phonePredicate)
		sql, args := bindNamed(q, map[string]any{
			"campaign_type": string(domain.CampaignBirthday),
			"month":         int(w.Today.Month()),
			"day":           w.Today.Day(),
			"leap_day":      observesLeapBirthday(w.Today),
			"year_start":    dateArg(w.YearStart),
		})
		return sql, args, nil
	},
	Map: func(row snowflake.Row) domain.Target {
		return domain.Target{
			CustomerID: row.String("CUSTOMER_ID"),
			Name:       row.String("NAME"),
			Phone:      row.String("PHONE"),
			Data: map[string]any{
				"birthDate":        dateOrNil(row.Value("BIRTH_DATE")),
				"registrationDate": dateOrNil(row.Value("REGISTRATION_DATE")),
			},
		}
	},
}

// observesLeapBirthday reports whether d is Feb 28 of a year without Feb 29.
func observesLeapBirthday(d time.Time) bool {
	if d.Month() != time.February || d.Day() != 28 {
		return false
	}
	return time.Date(d.Year(), time.February, 29, 0, 0, 0, 0, time.UTC).Month() != time.February
}
