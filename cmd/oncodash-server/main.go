package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/oncodash/oncodash/internal/config"
	"github.com/oncodash/oncodash/internal/domain/access"
	"github.com/oncodash/oncodash/internal/domain/drug"
	"github.com/oncodash/oncodash/internal/domain/genomics"
	"github.com/oncodash/oncodash/internal/domain/patient"
	"github.com/oncodash/oncodash/internal/platform/db"
	"github.com/oncodash/oncodash/internal/platform/rulebook"
	"github.com/oncodash/oncodash/migrations"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "oncodash-server",
		Short:        "Oncology clinical decision support API",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(siteCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(rulesCmd())
	return root
}

// newLogger writes JSON to out, or human-readable lines in development.
func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(os.Getenv("ENV"), os.Stdout)
			log.Logger = logger

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, logger)
		},
	}
}

// connect loads the configuration and opens the pool for one-shot
// commands.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func newAccessService(pool *pgxpool.Pool) *access.Service {
	return access.NewService(access.NewSiteRepoPG(pool), access.NewGrantRepoPG(pool),
		func(ctx context.Context, slug string) error {
			return db.CreateSiteSchema(ctx, pool, slug, migrations.Site())
		})
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to the shared schema and every site",
		RunE: func(cmd *cobra.Command, args []string) error {
			only, _ := cmd.Flags().GetString("site")

			ctx := cmd.Context()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := db.NewMigrator(pool, migrations.Shared()).Up(ctx, db.SharedSchema)
			if err != nil {
				return fmt.Errorf("shared migrations: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %d applied\n", db.SharedSchema, n)

			sites, err := newAccessService(pool).ListSites(ctx)
			if err != nil {
				return err
			}
			site := db.NewMigrator(pool, migrations.Site())
			for _, s := range sites {
				if only != "" && s.Slug != only {
					continue
				}
				n, err := site.Up(ctx, db.SiteSchema(s.Slug))
				if err != nil {
					return fmt.Errorf("site %s: %w", s.Slug, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %d applied\n", db.SiteSchema(s.Slug), n)
			}
			return nil
		},
	}
	upCmd.Flags().String("site", "", "Only migrate this site's schema (shared is always migrated)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			site, _ := cmd.Flags().GetString("site")

			ctx := cmd.Context()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema, files := db.SharedSchema, migrations.Shared()
			if site != "" {
				if !db.ValidSiteID(site) {
					return fmt.Errorf("invalid site: %s", site)
				}
				schema, files = db.SiteSchema(site), migrations.Site()
			}
			statuses, err := db.NewMigrator(pool, files).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Migration status for schema: %s\n", schema)
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("site", "", "Site whose schema to report on (default: shared)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func siteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Manage sites",
	}

	createCmd := &cobra.Command{
		Use:   "create <slug>",
		Short: "Register a site and provision its schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")

			ctx := cmd.Context()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			s := &access.Site{Slug: args[0], Name: name}
			err = newAccessService(pool).CreateSite(ctx, s)
			if errors.Is(err, access.ErrSiteExists) {
				fmt.Fprintf(cmd.OutOrStdout(), "site %s already exists\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created site %s (%s) in schema %s\n", s.Slug, s.Name, db.SiteSchema(s.Slug))
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Display name (defaults to the slug)")
	cmd.AddCommand(createCmd)
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the drug catalog and demo patients with mock NGS reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			site, _ := cmd.Flags().GetString("site")
			n, _ := cmd.Flags().GetInt("patients")
			seed, _ := cmd.Flags().GetInt64("seed")

			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if site == "" {
				site = cfg.DefaultSite
			}

			patients := patient.NewService(patient.NewRepoPG(pool), patient.NewSelectionRepoPG(pool), nil)
			drugs := drug.NewService(drug.NewRepoPG(pool), drug.NewComparisonRepoPG(pool), drug.NewPopularityRepoPG(pool), patients)
			reports := genomics.NewService(genomics.NewReportRepoPG(pool), patients, nil)

			count, err := drugs.Seed(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "drugs: %d upserted\n", count)

			ctx, release, err := db.BindSite(ctx, pool, site)
			if err != nil {
				return err
			}
			defer release()

			created, err := patients.Seed(ctx, seed, n)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "patients: %d created in %s\n", created, db.SiteSchema(site))

			list, _, err := patients.List(ctx, n, 0)
			if err != nil {
				return err
			}
			mocked := 0
			for i, p := range list {
				if _, err := reports.Latest(ctx, p.ID); !errors.Is(err, genomics.ErrNotFound) {
					continue
				}
				if _, err := reports.GenerateMock(ctx, p.ID, seed+int64(i)+1); err != nil {
					return err
				}
				mocked++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ngs reports: %d generated\n", mocked)
			return nil
		},
	}
	cmd.Flags().String("site", "", "Site to seed (default: DEFAULT_SITE)")
	cmd.Flags().Int("patients", 25, "Number of demo patients")
	cmd.Flags().Int64("seed", 42, "Generator seed")
	return cmd
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect clinical rule files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a rule file without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rulebook.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d thresholds, %d opioid factors, %d workflow templates)\n",
				args[0], len(r.Thresholds), len(r.Factors), len(r.Templates))
			return nil
		},
	})
	return cmd
}
