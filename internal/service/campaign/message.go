package campaign

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/eligibility"
	"github.com/osteele/liquid"
)

// MessageRenderer renders campaign messages with Liquid. Parsed templates are
// cached by source text.
type MessageRenderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewMessageRenderer creates a renderer with the campaign filters registered.
func NewMessageRenderer() *MessageRenderer {
	r := &MessageRenderer{engine: liquid.NewEngine()}
	r.registerFilters()
	return r
}

func (r *MessageRenderer) registerFilters() {
	// {{ name | default: "cliente" }}
	r.engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprint(value); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	// {{ name | first_name }}
	r.engine.RegisterFilter("first_name", func(s string) string {
		if fields := strings.Fields(s); len(fields) > 0 {
			return fields[0]
		}
		return ""
	})

	// {{ totalSpent | brl }} -> R$ 1.234,56
	r.engine.RegisterFilter("brl", func(value interface{}) string {
		var f float64
		switch v := value.(type) {
		case float64:
			f = v
		case int64:
			f = float64(v)
		case int:
			f = float64(v)
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return v
			}
			f = parsed
		default:
			return fmt.Sprint(value)
		}
		return formatBRL(f)
	})
}

// Validate parses src and reports syntax errors.
func (r *MessageRenderer) Validate(src string) error {
	_, err := r.template(src)
	return err
}

// Render fills the target's Message and Coupon from the campaign settings.
// An empty template leaves Message empty for the messaging side to fill.
func (r *MessageRenderer) Render(settings domain.CampaignSettings, target *domain.Target, now time.Time) error {
	if settings.Coupon != "" {
		target.Coupon = settings.Coupon
	}
	if strings.TrimSpace(settings.Message) == "" {
		return nil
	}
	tpl, err := r.template(settings.Message)
	if err != nil {
		return err
	}
	out, rerr := tpl.RenderString(bindings(settings, *target, now))
	if rerr != nil {
		return fmt.Errorf("%w: %v", ErrTemplate, rerr)
	}
	target.Message = strings.TrimSpace(out)
	return nil
}

func (r *MessageRenderer) template(src string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(src); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := r.engine.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	r.cache.Store(src, tpl)
	return tpl, nil
}

func bindings(settings domain.CampaignSettings, t domain.Target, now time.Time) map[string]interface{} {
	b := make(map[string]interface{}, len(t.Data)+6)
	for k, v := range t.Data {
		b[k] = v
	}
	b["name"] = t.Name
	b["firstName"] = firstName(t.Name)
	b["phone"] = t.Phone
	b["customerId"] = t.CustomerID
	b["campaignType"] = string(t.CampaignType)
	b["coupon"] = t.Coupon
	if settings.CouponValidityDays > 0 {
		expires := now.In(eligibility.Location).AddDate(0, 0, settings.CouponValidityDays)
		b["couponExpiresAt"] = expires.Format("02/01/2006")
	}
	return b
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// formatBRL renders f in Brazilian currency notation.
func formatBRL(f float64) string {
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	s := strconv.FormatFloat(f, 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	var grouped strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(c)
	}
	return sign + "R$ " + grouped.String() + "," + frac
}
