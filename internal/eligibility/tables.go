package eligibility

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ignite/campaign-targeting/internal/domain"
)

var tenantIdentRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// Tables are the fully qualified, quoted warehouse tables of one tenant.
type Tables struct {
	Customers      string
	Sales          string
	MessageHistory string
}

// TablesFor scopes the warehouse tables to a tax id. The id is embedded in
// database names, so anything but [A-Za-z0-9_] is rejected.
func TablesFor(taxID string) (Tables, error) {
	if !tenantIdentRe.MatchString(taxID) {
		return Tables{}, fmt.Errorf("%w: %q", domain.ErrInvalidTenantIdentifier, taxID)
	}
	raw := quoteIdent(taxID + "_RAW")
	campaign := quoteIdent(taxID + "_CAMPAIGN")
	return Tables{
		Customers:      raw + ".PUBLIC.CLIENTES",
		Sales:          raw + ".PUBLIC.VENDAS",
		MessageHistory: campaign + ".PUBLIC.MESSAGE_HISTORY",
	}, nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

var namedParamRe = regexp.MustCompile(`@([a-z_]+)`)

// bindNamed rewrites @name placeholders into positional ? markers and
// returns the matching argument list in textual order. A placeholder with
// no value is a programming error and panics.
func bindNamed(query string, params map[string]any) (string, []any) {
	var args []any
	out := namedParamRe.ReplaceAllStringFunc(query, func(m string) string {
		name := m[1:]
		v, ok := params[name]
		if !ok {
			panic(fmt.Sprintf("eligibility: no value for @%s", name))
		}
		args = append(args, v)
		return "?"
	})
	return out, args
}

// paramNames lists the placeholders a query uses, for tests and debugging.
func paramNames(query string) []string {
	seen := map[string]bool{}
	for _, m := range namedParamRe.FindAllStringSubmatch(query, -1) {
		seen[m[1]] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
