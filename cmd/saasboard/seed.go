package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/alecgard/saasboard/internal/auth"
	"github.com/alecgard/saasboard/internal/config"
	"github.com/alecgard/saasboard/internal/inventory"
	"github.com/alecgard/saasboard/internal/plan"
	"github.com/alecgard/saasboard/internal/sales"
	"github.com/alecgard/saasboard/internal/tenant"
	"github.com/alecgard/saasboard/internal/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the plan catalogue and demo tenants",
	RunE:  runSeed,
}

var seedPassword string

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "saasboard-demo", "password for every seeded user")
	rootCmd.AddCommand(seedCmd)
}

var planNames = map[string]string{
	plan.CodeFree:       "Free",
	plan.CodeBasic:      "Basic",
	plan.CodePro:        "Pro",
	plan.CodeEnterprise: "Enterprise",
}

type demoTenant struct {
	name     string
	slug     string
	planCode string
	status   string
	users    []user.CreateUserInput
	products []inventory.CreateProductInput
}

var demoTenants = []demoTenant{
	{
		name:     "SaaSBoard Platform",
		slug:     "platform",
		planCode: plan.CodeEnterprise,
		status:   plan.StatusActive,
		users: []user.CreateUserInput{
			{Email: "owner@saasboard.test", Name: "Platform Owner", Role: auth.RoleOwner},
		},
	},
	{
		name:     "Souq Al Madina",
		slug:     "souq",
		planCode: plan.CodePro,
		status:   plan.StatusActive,
		users: []user.CreateUserInput{
			{Email: "admin@souq.test", Name: "Layla Haddad", Role: auth.RoleAdmin},
			{Email: "staff@souq.test", Name: "Omar Nasser"},
		},
		products: []inventory.CreateProductInput{
			{SKU: "DATE-500", Name: "Medjool dates 500g", Quantity: 120, UnitPrice: 1850},
			{SKU: "TEA-100", Name: "Mint tea 100 bags", Quantity: 4, UnitPrice: 990},
			{SKU: "OIL-1L", Name: "Olive oil 1L", Quantity: 35, UnitPrice: 2400},
		},
	},
	{
		name:     "Corner Bakery",
		slug:     "bakery",
		planCode: plan.CodeBasic,
		status:   plan.StatusTrialing,
		users: []user.CreateUserInput{
			{Email: "manager@bakery.test", Name: "Sam Rivera", Role: auth.RoleManager},
		},
		products: []inventory.CreateProductInput{
			{SKU: "BRD-SOUR", Name: "Sourdough loaf", Quantity: 18, UnitPrice: 650},
			{SKU: "CRS-BUT", Name: "Butter croissant", Quantity: 40, UnitPrice: 280},
		},
	},
	{
		name:  "Lapsed Studio",
		slug:  "lapsed",
		users: []user.CreateUserInput{{Email: "admin@lapsed.test", Name: "Alex Kim", Role: auth.RoleAdmin}},
	},
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	planStore := plan.NewStore(pool)
	tenantStore := tenant.NewStore(pool)

	plans := make(map[string]*plan.Plan, len(plan.Catalog))
	for code, features := range plan.Catalog {
		p, err := planStore.UpsertPlan(ctx, code, planNames[code], features)
		if err != nil {
			return fmt.Errorf("seeding plan %s: %w", code, err)
		}
		plans[code] = p
	}
	slog.Info("plan catalogue seeded", "plans", len(plans))

	// Check if seed has already run.
	if _, err := tenantStore.GetBySlug(ctx, demoTenants[0].slug); err == nil {
		slog.Info("demo tenants already exist, skipping seed")
		return nil
	} else if !errors.Is(err, tenant.ErrNotFound) {
		return fmt.Errorf("checking existing tenants: %w", err)
	}

	for _, d := range demoTenants {
		if err := seedTenant(ctx, pool, planStore, tenantStore, plans, d); err != nil {
			return err
		}
	}

	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("Tenants:   %d\n", len(demoTenants))
	fmt.Printf("Password:  %s\n", seedPassword)
	for _, d := range demoTenants {
		for _, u := range d.users {
			fmt.Printf("  %-24s %s\n", u.Email, d.name)
		}
	}
	fmt.Printf("\nSign in at http://%s/%s/login\n", cfg.Addr(), cfg.Locale.Default)
	return nil
}

func seedTenant(ctx context.Context, pool *pgxpool.Pool, planStore *plan.Store, tenantStore *tenant.Store, plans map[string]*plan.Plan, d demoTenant) error {
	t, err := tenantStore.Create(ctx, tenant.CreateTenantInput{Name: d.name, Slug: d.slug})
	if err != nil {
		return fmt.Errorf("creating tenant %q: %w", d.slug, err)
	}
	slog.Info("created tenant", "name", t.Name, "id", t.ID)

	if d.planCode != "" {
		var trialEnds *time.Time
		if d.status == plan.StatusTrialing {
			end := time.Now().Add(14 * 24 * time.Hour)
			trialEnds = &end
		}
		if _, err := planStore.CreateSubscription(ctx, t.ID, plans[d.planCode].ID, d.status, trialEnds); err != nil {
			return fmt.Errorf("subscribing tenant %q: %w", d.slug, err)
		}
	}

	users := user.NewStore(pool)
	for _, in := range d.users {
		in.TenantID = t.ID
		in.Password = seedPassword
		if _, err := users.Create(ctx, in); err != nil {
			return fmt.Errorf("creating user %q: %w", in.Email, err)
		}
	}

	products := inventory.NewStore(pool)
	salesStore := sales.NewStore(pool)
	for i, in := range d.products {
		p, err := products.Create(ctx, t.ID, in)
		if err != nil {
			return fmt.Errorf("creating product %q: %w", in.SKU, err)
		}
		// A couple of sales per product so the accounting pages have data.
		if qty := min(i+1, p.Quantity); qty > 0 {
			if _, err := salesStore.Record(ctx, t.ID, p.ID, qty); err != nil {
				return fmt.Errorf("recording sale for %q: %w", in.SKU, err)
			}
		}
	}
	return nil
}
