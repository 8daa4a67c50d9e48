package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"zeitprognose/api"
	"zeitprognose/config"
	"zeitprognose/features"
	"zeitprognose/forest"
	"zeitprognose/lookup"
	"zeitprognose/models"
	"zeitprognose/regressor"
	"zeitprognose/scraper/applus"
	"zeitprognose/services"
	"zeitprognose/storage"
	"zeitprognose/utils"
)

type app struct {
	cfg    *config.Config
	logger *utils.Logger
}

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(cfg.LogMode)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, logger: logger}
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		logger.Error("%v", err)
		stop()
		logger.Sync()
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "zeitprognose",
		Short:         "Drawing and BOM time estimation for steel-construction projects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(a.trainCmd(), a.serveCmd(), a.estimateCmd(), a.ordersCmd(), a.historyCmd(), a.modelCmd())
	return root
}

func (a *app) trainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Fit the regressor on the historical table and persist it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a.logger.Info("=== Training run starting ===")
			a.logger.Info("Config: source: %s | schema: %s | policy: %s | trees: %d | seed: %d",
				a.cfg.HistorySource, a.cfg.SchemaKind, a.cfg.FlattenPolicy, a.cfg.ForestTrees, a.cfg.ForestSeed)

			domains, err := config.LoadDomains(a.cfg.DomainsPath)
			if err != nil {
				return err
			}
			projects, report, err := a.loadHistory(ctx, domains)
			if err != nil {
				return err
			}

			model, stats, err := services.NewTrainer(domains.Categories, a.trainOptions(), a.logger).Train(ctx, projects)
			if errors.Is(err, models.ErrNoTrainingData) {
				a.logger.Error("Nothing to train on, %s left untouched", a.cfg.ModelPath)
				return err
			}
			if err != nil {
				return err
			}

			b := model.Bundle()
			if err := storage.SaveBundle(a.cfg.ModelPath, b); err != nil {
				return err
			}
			a.logger.Info("Model %s saved to %s", b.ID, a.cfg.ModelPath)

			if a.cfg.SnapshotDSN != "" {
				store, err := storage.OpenSnapshotStore(a.cfg.SnapshotDriver, a.cfg.SnapshotDSN)
				if err != nil {
					return err
				}
				defer store.Close()
				snap, err := store.Save(ctx, a.cfg.SnapshotKey, b)
				if err != nil {
					return err
				}
				a.logger.Info("Snapshot %s v%d is now active", snap.ModelKey, snap.Version)
			}

			services.PrintTraining(os.Stdout, report, stats, b)
			return nil
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve estimates over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a.logger.Info("=== Estimation API starting ===")

			est, model, n, err := a.buildEstimator(ctx)
			if err != nil {
				return err
			}
			h := api.NewHandler(est, model, n, applus.NewSource(a.cfg, a.logger), a.logger)
			return api.NewServer(a.cfg.HTTPAddr, api.NewRouter(h, a.logger), a.logger).Run(ctx)
		},
	}
}

func (a *app) estimateCmd() *cobra.Command {
	var (
		systemFlags []string
		employee    string
		order       string
		csvPath     string
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate drawing and BOM time for systems or an ap+ order",
		Example: `  zeitprognose estimate --system "Carport;100;Ohne;Trapezblech;2"
  zeitprognose estimate --order AUFTRAG-001 --employee 1 --csv ./output/estimate.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			label := "manual"
			var systems []models.System
			for _, f := range systemFlags {
				s, err := parseSystemFlag(f)
				if err != nil {
					return err
				}
				systems = append(systems, s)
			}
			if order != "" {
				o, err := applus.NewSource(a.cfg, a.logger).Order(ctx, order)
				if err != nil {
					return err
				}
				label = o.Number
				systems = append(systems, o.Systems...)
				a.logger.Info("Order %s: %d systems, assigned to %q", o.Number, len(o.Systems), o.AssignedEmployee)
			}

			est, _, _, err := a.buildEstimator(ctx)
			if err != nil {
				return err
			}
			result := est.Estimate(ctx, models.EstimateRequest{Systems: systems, Employee: strings.TrimSpace(employee)})
			services.PrintEstimate(os.Stdout, "Estimate "+label, systems, result)

			if csvPath != "" {
				var w storage.EstimateWriter
				w, err = storage.NewCSVWriter(csvPath)
				if err != nil {
					return err
				}
				defer w.Close()
				if err := w.WriteEstimate(label, systems, result); err != nil {
					return err
				}
				a.logger.Info("Estimate saved to %s", csvPath)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&systemFlags, "system", nil, `system as "product;area;cladding;roof;trades" (repeatable, empty fields are imputed)`)
	cmd.Flags().StringVar(&employee, "employee", "", "search this employee's projects first")
	cmd.Flags().StringVar(&order, "order", "", "ap+ order number to estimate")
	cmd.Flags().StringVar(&csvPath, "csv", "", "also export the estimate to this CSV file")
	return cmd
}

func (a *app) ordersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List the orders known to ap+",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orders, err := applus.NewSource(a.cfg, a.logger).Orders(cmd.Context())
			if err != nil {
				return err
			}
			for _, o := range orders {
				fmt.Printf("%-14s employee %-6s %d systems\n", o.Number, o.AssignedEmployee, len(o.Systems))
			}
			return nil
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the historical project table",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import",
		Short: "Copy the historical file into PostgreSQL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			domains, err := config.LoadDomains(a.cfg.DomainsPath)
			if err != nil {
				return err
			}
			file := a.fileHistory(domains)
			projects, report, err := file.Load(ctx)
			if err != nil {
				return err
			}
			a.logger.Info("Parsed %d projects (%d rows skipped)", len(projects), report.RowsSkipped)

			var pg storage.HistoryWriter
			pg, err = storage.NewPostgresHistory(ctx, a.cfg.DSN(), a.logger)
			if err != nil {
				a.logger.Error("Make sure PostgreSQL is reachable: docker compose up -d")
				return err
			}
			defer pg.Close()
			if err := pg.Write(ctx, projects); err != nil {
				return err
			}
			a.logger.Info("Historical projects stored in PostgreSQL (table: historical_projects)")
			return nil
		},
	})
	return cmd
}

func (a *app) modelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect and roll back model snapshots",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "versions",
		Short: "List stored model versions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.snapshotStore()
			if err != nil {
				return err
			}
			defer store.Close()
			snaps, err := store.List(cmd.Context(), a.cfg.SnapshotKey, 0)
			if err != nil {
				return err
			}
			for _, s := range snaps {
				mark := " "
				if s.Active {
					mark = "*"
				}
				fmt.Printf("%s v%-4d %s  %d examples  %s\n", mark, s.Version, s.BundleID, s.Examples, s.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "activate <version>",
		Short: "Make a stored version the active model and write it to MODEL_PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := utils.ParsePositiveInt(args[0])
			if err != nil {
				return err
			}
			store, err := a.snapshotStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Activate(cmd.Context(), a.cfg.SnapshotKey, version); err != nil {
				return err
			}
			snap, err := store.Active(cmd.Context(), a.cfg.SnapshotKey)
			if err != nil {
				return err
			}
			b, err := snap.Bundle()
			if err != nil {
				return err
			}
			if err := storage.SaveBundle(a.cfg.ModelPath, b); err != nil {
				return err
			}
			a.logger.Info("Version %d active, written to %s", version, a.cfg.ModelPath)
			return nil
		},
	})
	return cmd
}

func (a *app) snapshotStore() (*storage.SnapshotStore, error) {
	if a.cfg.SnapshotDSN == "" {
		return nil, errors.New("SNAPSHOT_DSN is not set")
	}
	return storage.OpenSnapshotStore(a.cfg.SnapshotDriver, a.cfg.SnapshotDSN)
}

func (a *app) trainOptions() services.TrainOptions {
	policy := services.Lenient
	if a.cfg.StrictFlatten() {
		policy = services.Strict
	}
	params := forest.DefaultParams()
	params.Trees = a.cfg.ForestTrees
	params.Seed = a.cfg.ForestSeed
	params.MaxDepth = a.cfg.ForestMaxDepth
	params.MinLeaf = a.cfg.ForestMinLeaf
	params.Workers = a.cfg.ForestWorkers
	return services.TrainOptions{
		Kind:         features.ParseKind(a.cfg.SchemaKind),
		Policy:       policy,
		Params:       params,
		TestFraction: a.cfg.TestFraction,
	}
}

func (a *app) fileHistory(domains *config.Domains) *services.FileHistory {
	return &services.FileHistory{
		Path:      a.cfg.HistoryPath,
		Sheet:     a.cfg.HistorySheet,
		HeaderRow: a.cfg.HistoryHeaderRow,
		Parser:    services.NewHistoryParser(domains.Columns, a.logger),
	}
}

// loadHistory reads the configured history source. The parse report is only
// available for file sources.
func (a *app) loadHistory(ctx context.Context, domains *config.Domains) ([]models.HistoricalProject, services.ParseReport, error) {
	src, err := services.OpenHistory(ctx, a.cfg, domains.Columns, a.logger)
	if err != nil {
		return nil, services.ParseReport{}, err
	}
	defer src.Close()

	if fh, ok := src.(*services.FileHistory); ok {
		projects, report, err := fh.Load(ctx)
		if err == nil {
			for _, w := range report.Warnings {
				a.logger.Warn("[history] %v", w)
			}
		}
		return projects, report, err
	}
	projects, err := src.Projects(ctx)
	return projects, services.ParseReport{RowsRead: len(projects)}, err
}

// loadModel prefers the active snapshot when a snapshot store is configured
// and falls back to the model file.
func (a *app) loadModel(ctx context.Context) (*regressor.Model, error) {
	if a.cfg.SnapshotDSN != "" {
		store, err := a.snapshotStore()
		if err != nil {
			return nil, err
		}
		defer store.Close()
		snap, err := store.Active(ctx, a.cfg.SnapshotKey)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			b, err := snap.Bundle()
			if err != nil {
				return nil, err
			}
			a.logger.Info("Using snapshot %s v%d", snap.ModelKey, snap.Version)
			return regressor.New(b, a.logger)
		}
		a.logger.Warn("No snapshot stored for %s, reading %s", a.cfg.SnapshotKey, a.cfg.ModelPath)
	}

	b, err := storage.LoadBundle(a.cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	return regressor.New(b, a.logger)
}

// buildEstimator loads the model and the history lookup. A missing model is
// fatal; an unreadable history only disables the lookup.
func (a *app) buildEstimator(ctx context.Context) (*services.Estimator, *regressor.Model, int, error) {
	model, err := a.loadModel(ctx)
	if err != nil {
		a.logger.Error("Run \"zeitprognose train\" first")
		return nil, nil, 0, err
	}

	domains, err := config.LoadDomains(a.cfg.DomainsPath)
	if err != nil {
		return nil, nil, 0, err
	}
	projects, _, err := a.loadHistory(ctx, domains)
	if err != nil {
		a.logger.Warn("Historical lookup disabled: %v", err)
		projects = nil
	}
	a.logger.Info("Loaded model %s (%s) and %d historical projects", model.Bundle().ID, model.Kind(), len(projects))

	return services.NewEstimator(lookup.New(projects), model, a.logger), model, len(projects), nil
}
