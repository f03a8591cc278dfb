package eligibility

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/snowflake"
)

// CanonicalDateLayout is the single timestamp format targets carry.
const CanonicalDateLayout = "2006-01-02T15:04:05.000Z"

const brazilCountryCode = "55"

var dateInputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05.999999999",
	dateLayout,
}

// Dropped is a row the normalizer refused to turn into a target.
type Dropped struct {
	CustomerID string
	Phone      string
	Err        error
}

// NormalizePhone reduces a Brazilian phone number to digits with the 55
// country code. 11 digits are area code plus mobile; 10 digits are a legacy
// mobile missing the leading 9; 12 or more are assumed to carry a country code.
func NormalizePhone(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	switch n := len(digits); {
	case n == 11:
		return brazilCountryCode + digits, nil
	case n == 10:
		return brazilCountryCode + "9" + digits, nil
	case n >= 12:
		return digits, nil
	default:
		return "", fmt.Errorf("%w: %d digits", domain.ErrInvalidPhoneFormat, n)
	}
}

// NormalizeDate renders any date representation the warehouse driver hands
// back as a UTC timestamp in CanonicalDateLayout. ok is false for NULLs and
// values it cannot read. Normalizing its own output is a no-op.
func NormalizeDate(v any) (string, bool) {
	switch d := v.(type) {
	case nil:
		return "", false
	case time.Time:
		if d.IsZero() {
			return "", false
		}
		return d.UTC().Format(CanonicalDateLayout), true
	case *time.Time:
		if d == nil {
			return "", false
		}
		return NormalizeDate(*d)
	case sql.NullTime:
		if !d.Valid {
			return "", false
		}
		return NormalizeDate(d.Time)
	case sql.NullString:
		if !d.Valid {
			return "", false
		}
		return NormalizeDate(d.String)
	case []byte:
		return NormalizeDate(string(d))
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return "", false
		}
		for _, layout := range dateInputLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return NormalizeDate(t)
			}
		}
		return "", false
	case map[string]any:
		return NormalizeDate(d["value"])
	default:
		return "", false
	}
}

// dateOrNil keeps unreadable non-null values as text so nothing is lost.
func dateOrNil(v any) any {
	if s, ok := NormalizeDate(v); ok {
		return s
	}
	switch d := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(d) == "" {
			return nil
		}
		return d
	case sql.NullString, sql.NullTime, *time.Time, time.Time:
		return nil
	default:
		return fmt.Sprint(d)
	}
}

// Normalize maps rows into targets of campaign t, normalizing phones and
// trimming names. Rows with unusable phones are returned as Dropped.
func Normalize(t domain.CampaignType, rows []snowflake.Row, mapRow RowMapper) ([]domain.Target, []Dropped) {
	targets := make([]domain.Target, 0, len(rows))
	var dropped []Dropped
	for _, row := range rows {
		target := mapRow(row)
		phone, err := NormalizePhone(target.Phone)
		if err != nil {
			dropped = append(dropped, Dropped{CustomerID: target.CustomerID, Phone: target.Phone, Err: err})
			continue
		}
		target.Phone = phone
		target.Name = strings.TrimSpace(target.Name)
		target.CampaignType = t
		if target.Data == nil {
			target.Data = map[string]any{}
		}
		targets = append(targets, target)
	}
	return targets, dropped
}
