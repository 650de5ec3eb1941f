package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jangsa/recon/internal/logging"
	"github.com/jangsa/recon/internal/output"
	"github.com/jangsa/recon/internal/source"
	"github.com/jangsa/recon/pkg/recon"
	"github.com/jangsa/recon/pkg/recon/config"
	"github.com/jangsa/recon/pkg/recon/facility"
	"github.com/jangsa/recon/pkg/recon/internalerr"
	"github.com/jangsa/recon/pkg/recon/match"
	"github.com/jangsa/recon/pkg/recon/store"
	"github.com/jangsa/recon/pkg/recon/store/sqlite"
)

// app carries state shared by the subcommands of one invocation.
type app struct {
	configPath string
	cfg        *runConfig
	log        *logrus.Logger
	stdout     io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{stdout: os.Stdout}

	root := &cobra.Command{
		Use:           "facility-recon",
		Short:         "Reconcile facility lists and classify price items",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(viper.New(), cmd.Flags(), a.configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger
			a.stdout = cmd.OutOrStdout()
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (default: recon.yaml in . or ./configs)")
	pf.String("rules", "", "Classifier rule file (YAML, optional)")
	pf.String("out", "out", "Output directory")
	pf.String("db", "", "SQLite archive path (optional)")
	pf.String("delimiter", "", "Price row delimiter: one character or \"tab\" (default from rules, else ',')")
	pf.String("id-prefix", match.DefaultIDPrefix, "Facility ID prefix")
	pf.Int("workers", 4, "Facilities processed in parallel")
	pf.String("log-level", "info", "Log level")
	pf.String("log-format", "text", "Log format: text or json")

	root.AddCommand(
		a.runCmd(),
		a.matchCmd(),
		a.pricesCmd(),
		a.renumberCmd(),
		a.runsCmd(),
	)
	return root
}

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile facilities and process price rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), true)
		},
	}
	referenceFlags(cmd)
	cmd.Flags().String("prices", "", "Raw price rows (delimited text)")
	return cmd
}

func (a *app) matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Reconcile facilities only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), false)
		},
	}
	referenceFlags(cmd)
	return cmd
}

func referenceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("reference", "", "Reference list (.csv or .xlsx)")
	f.String("sheet", "", "Reference sheet name for .xlsx (default: first sheet)")
	f.String("pool", "", "Facility pool (JSON array or JSON Lines)")
	f.Bool("pool-from-db", false, "Use the latest archived facility list as the pool")
	f.Bool("renumber", false, "Renumber IDs by reference position and write id-migration.json")
}

func (a *app) pricesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Process price rows against an existing facility list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.prices(cmd.Context())
		},
	}
	cmd.Flags().String("prices", "", "Raw price rows (delimited text)")
	cmd.Flags().String("facilities", "", "Canonical facility list (facilities.json)")
	return cmd
}

func (a *app) renumberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "renumber",
		Short: "Renumber a canonical facility list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.renumber()
		},
	}
	cmd.Flags().String("facilities", "", "Canonical facility list (facilities.json)")
	return cmd
}

func (a *app) runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listRuns(cmd.Context())
		},
	}
	cmd.Flags().Int("limit", store.DefaultRunLimit, "Number of runs to list")
	return cmd
}

func (a *app) components() (*config.Components, error) {
	loader := config.Loader{RulesPath: a.cfg.Rules, Delimiter: a.cfg.delimiter()}
	return loader.Load()
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	if a.cfg.DB == "" {
		return nil, nil
	}
	return sqlite.OpenSQLite(ctx, a.cfg.DB)
}

// run implements both run and match; withPrices selects the price stages.
func (a *app) run(ctx context.Context, withPrices bool) error {
	cfg := a.cfg
	if err := cfg.require("reference"); err != nil {
		return err
	}
	if cfg.PoolFromDB {
		if err := cfg.require("db"); err != nil {
			return err
		}
	}

	reference, err := source.LoadReference(cfg.Reference, cfg.Sheet)
	if err != nil {
		return err
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	pool, err := a.loadPool(ctx, st)
	if err != nil {
		return err
	}

	comp, err := a.components()
	if err != nil {
		return err
	}
	p, err := recon.New(recon.Options{
		Components: comp,
		Logger:     a.log,
		Workers:    cfg.Workers,
		Match:      match.Options{IDPrefix: cfg.IDPrefix, Renumber: cfg.Renumber},
		Store:      st,
	})
	if err != nil {
		return err
	}

	in := recon.Input{Reference: reference, Pool: pool}
	if withPrices && cfg.Prices != "" {
		f, err := os.Open(cfg.Prices)
		if err != nil {
			return fmt.Errorf("open prices: %w", err)
		}
		defer f.Close()
		in.Prices = f
	}

	res, err := p.Run(ctx, in)
	if err != nil {
		return err
	}

	files := []output.File{
		{Name: output.FacilitiesFile, Value: res.Facilities},
		{Name: output.AnomaliesFile, Value: res.Report},
	}
	if withPrices {
		files = append(files, output.File{Name: output.PricesFile, Value: res.Prices})
	}
	if cfg.Renumber {
		files = append(files, output.File{Name: output.MigrationFile, Value: migrationValue(res.Migration)})
	}
	if err := output.Write(cfg.Out, files...); err != nil {
		return err
	}
	a.log.WithField("out", cfg.Out).Info("outputs written")
	return nil
}

func (a *app) loadPool(ctx context.Context, st store.Store) ([]facility.Record, error) {
	if a.cfg.PoolFromDB {
		recs, runID, err := st.LatestFacilities(ctx)
		if errors.Is(err, internalerr.ErrNotFound) {
			a.log.Warn("archive is empty, starting from an empty pool")
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		a.log.WithField("run_id", runID).Info("pool loaded from archive")
		return recs, nil
	}
	if a.cfg.Pool == "" {
		a.log.Warn("no pool given, every reference entry becomes a placeholder")
		return nil, nil
	}
	return source.LoadFacilities(a.cfg.Pool)
}

func (a *app) prices(ctx context.Context) error {
	cfg := a.cfg
	if err := cfg.require("prices", "facilities"); err != nil {
		return err
	}
	facilities, err := source.LoadFacilities(cfg.Facilities)
	if err != nil {
		return err
	}

	comp, err := a.components()
	if err != nil {
		return err
	}
	p, err := recon.New(recon.Options{Components: comp, Logger: a.log, Workers: cfg.Workers})
	if err != nil {
		return err
	}

	f, err := os.Open(cfg.Prices)
	if err != nil {
		return fmt.Errorf("open prices: %w", err)
	}
	defer f.Close()

	res, err := p.Prices(ctx, f, facilities, nil)
	if err != nil {
		return err
	}
	return output.Write(cfg.Out,
		output.File{Name: output.PricesFile, Value: res.Document},
		output.File{Name: output.AnomaliesFile, Value: res.Report},
	)
}

func (a *app) renumber() error {
	cfg := a.cfg
	if err := cfg.require("facilities"); err != nil {
		return err
	}
	records, err := source.LoadFacilities(cfg.Facilities)
	if err != nil {
		return err
	}
	out, changes := match.Renumber(records, cfg.IDPrefix)
	a.log.WithFields(logrus.Fields{
		"records": len(out),
		"changed": len(changes),
	}).Info("facilities renumbered")

	return output.Write(cfg.Out,
		output.File{Name: output.FacilitiesFile, Value: out},
		output.File{Name: output.MigrationFile, Value: migrationValue(changes)},
	)
}

func (a *app) listRuns(ctx context.Context) error {
	if err := a.cfg.require("db"); err != nil {
		return err
	}
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.Runs(ctx, a.cfg.Limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tCREATED\tFACILITIES\tITEMS\tANOMALIES")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Facilities, r.Items, r.Anomalies)
	}
	return w.Flush()
}

// migrationValue keeps id-migration.json an array when nothing changed.
func migrationValue(changes []match.IDChange) []match.IDChange {
	if changes == nil {
		return []match.IDChange{}
	}
	return changes
}
