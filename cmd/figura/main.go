package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clioworks/figura/internal/config"
	"github.com/clioworks/figura/internal/driver"
	"github.com/clioworks/figura/internal/enrich"
	"github.com/clioworks/figura/internal/harvest"
	"github.com/clioworks/figura/internal/kanban"
	"github.com/clioworks/figura/internal/llm"
	"github.com/clioworks/figura/internal/merge"
	"github.com/clioworks/figura/internal/qa"
	"github.com/clioworks/figura/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
)

func main() {
	// No .env file is fine; config falls back to defaults.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "figura",
	Short:   "Historical figures in fiction: graph ingestion pipeline",
	Long:    "figura harvests media works from Wikidata, enriches them with portrayal metadata, and merges figures, works, and appearances into the graph.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}

		if cmd.Name() == "version" {
			return nil
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "Path to config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(harvestCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(workCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(qaCmd)

	harvestCmd.Flags().String("query", "all", "Named query to run, or 'all'")
	workCmd.Flags().Int("limit", 0, "Stop after N works (0 = drain the queue)")
	qaExistsCmd.Flags().StringSlice("ids", nil, "External IDs to probe")

	qaCmd.AddCommand(qaSchemaCmd)
	qaCmd.AddCommand(qaExistsCmd)
	qaCmd.AddCommand(qaAppearanceCmd)
	qaCmd.AddCommand(qaOrphansCmd)
	qaCmd.AddCommand(qaUsersCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("figura", version)
	},
}

// signalContext is cancelled on SIGINT/SIGTERM. Interrupting mid-work is
// safe: todo is immutable and done/failed land atomically.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func connectGraph(ctx context.Context) (driver.GraphDriver, error) {
	if err := cfg.RequireGraphCredentials(); err != nil {
		return nil, err
	}
	d, err := driver.NewNeo4jDriver(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password)
	if err != nil {
		if errors.Is(err, driver.ErrUnauthorized) {
			return nil, fmt.Errorf("graph credentials rejected, check NEO4J_USERNAME/NEO4J_PASSWORD: %w", err)
		}
		return nil, err
	}
	return d, nil
}

func openStore() *kanban.Store {
	return kanban.NewStore(cfg.DataDir, logger)
}

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run SPARQL harvests and write data/<name>_harvest.json files",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		name, _ := cmd.Flags().GetString("query")
		queries := cfg.SPARQL.Queries
		if name != "all" {
			q, ok := cfg.Query(name)
			if !ok {
				return fmt.Errorf("no query named %q in config", name)
			}
			queries = []config.SPARQLQuery{q}
		}

		client := harvest.NewSPARQLClient(cfg.SPARQL.Endpoint, time.Duration(cfg.SPARQL.TimeoutSeconds)*time.Second, logger)
		h := harvest.NewHarvester(client, cfg.DataDir, logger)

		total := 0
		for _, q := range queries {
			records, err := h.Run(ctx, q)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d works\n", q.Name, len(records))
			total += len(records)
		}
		fmt.Printf("✅ Done (%d works across %d harvests)\n", total, len(queries))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the todo queue from all harvest files",
	RunE: func(cmd *cobra.Command, args []string) error {
		var paths []string
		for _, q := range cfg.SPARQL.Queries {
			path := harvest.FilePath(cfg.DataDir, q.Name)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		}
		if len(paths) == 0 {
			return fmt.Errorf("no harvest files in %s, run 'figura harvest' first", cfg.DataDir)
		}

		n, err := openStore().Seed(paths)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Done (%d works seeded from %d files)\n", n, len(paths))
		return nil
	},
}

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Enrich pending works until the queue drains",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		limit, _ := cmd.Flags().GetInt("limit")

		client, err := llm.NewClient(ctx, cfg.LLM)
		if err != nil {
			return err
		}

		enricher := enrich.NewLLMEnricher(client,
			time.Duration(cfg.LLM.TimeoutSeconds)*time.Second,
			uuid.New().String(), logger)
		worker := enrich.NewWorker(openStore(), enricher, logger)

		summary, err := worker.Run(ctx, limit)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Printf("✅ Done (%d processed: %d done, %d failed)\n",
			summary.Processed, summary.Done, summary.Failed)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Merge enriched works, figures, and appearances into the graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		d, err := connectGraph(ctx)
		if err != nil {
			return err
		}
		defer d.Close(ctx)

		merger := merge.NewMerger(d, logger)
		if err := merger.EnsureConstraints(ctx); err != nil {
			return err
		}

		summary, err := merger.MigrateDone(ctx, openStore(), cfg.Curator.Email)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Done (%d works, %d figures, %d appearances, %d interactions, %d failures)\n",
			summary.Works, summary.Figures, summary.Appearances, summary.Interactions, summary.Failures)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show kanban queue counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := openStore().Status()
		if err != nil {
			return err
		}
		fmt.Printf("todo: %d\ndone: %d\nfailed: %d\nremaining: %d\n",
			status.Todo, status.Done, status.Failed, status.Remaining)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only status endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		d, err := connectGraph(ctx)
		if err != nil {
			return err
		}
		defer d.Close(ctx)

		srv := server.NewServer(openStore(), d, logger)
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("serving status endpoint", zap.String("addr", addr))
		return srv.SetupRouter().Run(addr)
	},
}

var qaCmd = &cobra.Command{
	Use:   "qa",
	Short: "Operational probes against the live graph",
}

var qaSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Report legacy vs current property usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		d, err := connectGraph(ctx)
		if err != nil {
			return err
		}
		defer d.Close(ctx)

		report, err := qa.NewProber(d, logger).SchemaConsistency(ctx)
		if err != nil {
			return err
		}
		report.WriteTable(os.Stdout)
		return nil
	},
}

var qaExistsCmd = &cobra.Command{
	Use:   "exists",
	Short: "Check which external IDs are present in the graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		ids, _ := cmd.Flags().GetStringSlice("ids")
		if len(ids) == 0 {
			return fmt.Errorf("pass --ids Q38370,MW_1463,...")
		}

		d, err := connectGraph(ctx)
		if err != nil {
			return err
		}
		defer d.Close(ctx)

		ex, err := qa.NewProber(d, logger).Exists(ctx, ids)
		if err != nil {
			return err
		}
		ex.WriteTable(os.Stdout)
		return nil
	},
}

var qaAppearanceCmd = &cobra.Command{
	Use:   "appearance",
	Short: "End-to-end appearance upsert against the live store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		d, err := connectGraph(ctx)
		if err != nil {
			return err
		}
		defer d.Close(ctx)

		merger := merge.NewMerger(d, logger)
		prober := qa.NewProber(d, logger)
		if err := prober.AppearanceProbe(ctx, merger, "Q38370", "MW_1463", cfg.Curator.Email); err != nil {
			return err
		}
		fmt.Println("✅ Done")
		return nil
	},
}

var qaOrphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Find figures and works no appearance touches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		d, err := connectGraph(ctx)
		if err != nil {
			return err
		}
		defer d.Close(ctx)

		orphans, err := qa.NewProber(d, logger).OrphanScan(ctx)
		if err != nil {
			return err
		}
		orphans.WriteTable(os.Stdout)
		return nil
	},
}

var qaUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Check which curator emails have User nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		d, err := connectGraph(ctx)
		if err != nil {
			return err
		}
		defer d.Close(ctx)

		emails := []string{cfg.Curator.Email}
		ex, err := qa.NewProber(d, logger).Users(ctx, emails)
		if err != nil {
			return err
		}
		for _, email := range ex.Present {
			fmt.Printf("%s\tpresent\n", email)
		}
		for _, email := range ex.Missing {
			fmt.Printf("%s\tMISSING (seed via the front-end before ingesting)\n", email)
		}
		if len(ex.Missing) > 0 {
			return fmt.Errorf("%d curator user(s) missing", len(ex.Missing))
		}
		fmt.Println("✅ Done")
		return nil
	},
}
