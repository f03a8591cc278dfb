// Command targetctl is the operator tool for seeding tenants and campaign
// settings, inspecting staged targets and archived runs, and running one
// tenant's campaigns by hand.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ignite/campaign-targeting/internal/app"
	"github.com/ignite/campaign-targeting/internal/config"
	"github.com/ignite/campaign-targeting/internal/domain"
	"github.com/ignite/campaign-targeting/internal/pkg/logger"
	"gopkg.in/yaml.v3"
)

const usage = `usage: targetctl [-config path] <command> [flags]

commands:
  put-tenant    -account ID -tax TAXID [-status provisioned]
  put-settings  -account ID -file settings.yaml
  list-targets  -account ID -campaign TYPE
  show-report   -key S3KEY
  run           -account ID [-campaign TYPE]
`

func main() {
	configFile := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, "console", "targetctl"); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := run(ctx, a, flag.Arg(0), flag.Args()[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", flag.Arg(0), err)
		a.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, cmd string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	account := fs.String("account", "", "account id")
	tax := fs.String("tax", "", "tenant tax id")
	status := fs.String("status", string(domain.ProvisioningProvisioned), "provisioning status")
	campaignType := fs.String("campaign", "", "campaign type")
	file := fs.String("file", "", "settings file (yaml or json)")
	key := fs.String("key", "", "report object key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch cmd {
	case "put-tenant":
		if *account == "" || *tax == "" {
			return fmt.Errorf("-account and -tax are required")
		}
		now := time.Now().UTC()
		return a.Store.PutTenant(ctx, domain.TenantConfig{
			AccountID: *account,
			TaxID:     *tax,
			Status:    domain.ProvisioningStatus(*status),
			CreatedAt: now,
			UpdatedAt: now,
		})

	case "put-settings":
		if *account == "" || *file == "" {
			return fmt.Errorf("-account and -file are required")
		}
		settings, err := readSettings(*file)
		if err != nil {
			return err
		}
		for _, s := range settings {
			if !s.Type.Valid() {
				return fmt.Errorf("%w: %q", domain.ErrUnknownCampaign, s.Type)
			}
			if err := a.Store.PutSettings(ctx, *account, s); err != nil {
				return err
			}
			fmt.Fprintf(out, "stored %s settings for %s\n", s.Type, *account)
		}
		return nil

	case "list-targets":
		t, err := domain.ParseCampaignType(*campaignType)
		if err != nil {
			return err
		}
		targets, err := a.Store.ListTargets(ctx, *account, t)
		if err != nil {
			return err
		}
		return printJSON(out, targets)

	case "show-report":
		if a.Reporter == nil {
			return fmt.Errorf("storage.report_bucket is not configured")
		}
		res, err := a.Reporter.Load(ctx, *key)
		if err != nil {
			return err
		}
		return printJSON(out, res)

	case "run":
		tenant, err := a.Tenants.Resolve(ctx, *account)
		if err != nil {
			return err
		}
		if *campaignType == "" {
			return printJSON(out, a.Campaigns.RunAll(ctx, tenant))
		}
		t, err := domain.ParseCampaignType(*campaignType)
		if err != nil {
			return err
		}
		return printJSON(out, a.Campaigns.ProcessCampaign(ctx, tenant, t))

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func readSettings(path string) ([]domain.CampaignSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseSettings(data)
}

// parseSettings accepts YAML, which also covers JSON documents.
func parseSettings(data []byte) ([]domain.CampaignSettings, error) {
	var raw struct {
		Campaigns []struct {
			Type               string `yaml:"type"`
			Enabled            *bool  `yaml:"enabled"`
			Message            string `yaml:"message"`
			Coupon             string `yaml:"coupon"`
			InactiveDays       int    `yaml:"inactiveDays"`
			CouponValidityDays int    `yaml:"couponValidityDays"`
			MinimumPurchases   int    `yaml:"minimumPurchases"`
			ProgramStart       string `yaml:"programStart"`
			CooldownDays       int    `yaml:"cooldownDays"`
		} `yaml:"campaigns"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	out := make([]domain.CampaignSettings, 0, len(raw.Campaigns))
	for _, c := range raw.Campaigns {
		enabled := true
		if c.Enabled != nil {
			enabled = *c.Enabled
		}
		out = append(out, domain.CampaignSettings{
			Type:               domain.CampaignType(c.Type),
			Enabled:            enabled,
			Message:            c.Message,
			Coupon:             c.Coupon,
			InactiveDays:       c.InactiveDays,
			CouponValidityDays: c.CouponValidityDays,
			MinimumPurchases:   c.MinimumPurchases,
			ProgramStart:       c.ProgramStart,
			CooldownDays:       c.CooldownDays,
		})
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
