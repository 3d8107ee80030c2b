package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"energy-analytics/internal/catalog"
	"energy-analytics/internal/config"
	"energy-analytics/internal/models"
	"energy-analytics/internal/repository"
	"energy-analytics/internal/services"
	"energy-analytics/pkg/database"
	"energy-analytics/pkg/logging"
	"energy-analytics/pkg/metrics"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	catalogPath := flag.String("catalog", cfg.Data.CatalogPath, "Source catalog YAML (empty uses the built-in catalog)")
	dataDir := flag.String("data-dir", cfg.Data.Dir, "Directory containing the raw energy datasets")
	topN := flag.Int("top-n", -1, "Number of countries to compare, ranked by activity (negative keeps TOP_N or the catalog value)")
	workers := flag.Int("workers", cfg.Data.Workers, "Number of sources normalized concurrently")
	persist := flag.Bool("persist", cfg.Database.Enabled, "Store the run in the configured database")
	asJSON := flag.Bool("json", false, "Print the full result as JSON instead of tables")
	flag.Parse()

	cfg.Data.Dir = *dataDir
	if *topN >= 0 {
		cfg.Data.TopN = topN
	}
	cfg.Data.Workers = *workers
	cfg.Database.Enabled = *persist
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("energy-analyze", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	if *asJSON {
		// keep stdout clean for the JSON document
		logger.SetOutput(os.Stderr)
	}

	ctx := context.Background()
	logger.Info(ctx, "[ANALYZE_START] Starting energy analysis", logging.Fields{
		"version":  "1.0.0",
		"catalog":  *catalogPath,
		"data_dir": cfg.Data.Dir,
		"top_n":    cfg.Data.TopN,
		"workers":  cfg.Data.Workers,
		"persist":  cfg.Database.Enabled,
	})

	metricsCollector := metrics.NewCollector("energy_analyze", nil)

	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		logger.Fatal(ctx, "[ANALYZE_ERROR] Failed to load source catalog", logging.Fields{"catalog": *catalogPath}, err)
	}
	cat = cat.WithDataDir(cfg.Data.Dir)
	if n, ok := cfg.Data.TopNOverride(); ok {
		cat.LCOE.TopN = n
	}

	var repo repository.AnalysisRepository
	if cfg.Database.Enabled {
		db, err := database.Open(cfg.DatabaseConnConfig(), logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[ANALYZE_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()

		if err := repository.Migrate(ctx, db); err != nil {
			logger.Fatal(ctx, "[ANALYZE_ERROR] Failed to migrate database", logging.Fields{}, err)
		}
		repo = repository.NewAnalysisRepository(db, logger, metricsCollector)
	}

	normalizer := services.NewNormalizer(cfg.Data.Workers, logger, metricsCollector)
	analysis := services.NewAnalysisService(cat, normalizer, logger, metricsCollector)
	summary := services.NewSummaryService(analysis, repo, logger, metricsCollector)

	result, err := summary.Refresh(ctx)
	if result == nil {
		logger.Fatal(ctx, "[ANALYZE_ERROR] Analysis failed", logging.Fields{}, err)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run was not persisted: %v\n", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printResult(result)

	logger.Info(ctx, "[ANALYZE_COMPLETE] Analysis completed", logging.Fields{
		"run_id":           result.RunID,
		"warnings":         len(result.Warnings),
		"duration_seconds": result.FinishedAt.Sub(result.StartedAt).Seconds(),
	})
}

func printResult(result *models.AnalysisResult) {
	banner("ENERGY ANALYSIS " + result.RunID)
	fmt.Printf("Started:  %s\n", result.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration: %v\n", result.FinishedAt.Sub(result.StartedAt))

	if lcoe := result.LCOE; lcoe != nil {
		banner("SOURCES")
		for _, s := range lcoe.Sources {
			fmt.Printf("%-24s %-18s read %6d  kept %6d  dropped %5d\n", s.Name, s.Status, s.RowsRead, s.RecordsKept, s.Dropped())
		}

		banner("MEAN LCOE BY CATEGORY (USD/MWh)")
		for _, row := range lcoe.CategoryMeans {
			fmt.Printf("%-14s %10.2f\n", row.Category, row.Metric)
		}

		banner(fmt.Sprintf("FOCUS COUNTRIES (%s, %d requested)", lcoe.Focus.Mode, lcoe.Focus.Requested))
		fmt.Printf("Priced in every category: %d\n", len(lcoe.CompleteKeys))
		for _, row := range lcoe.FocusMeans {
			fmt.Printf("%-24s %-14s %10.2f\n", row.Key, row.Category, row.Metric)
		}
	}

	if eu := result.EUPrices; eu != nil {
		banner("EU DAY-AHEAD PRICES BY HOUR (EUR/MWh)")
		for _, h := range eu.Hourly {
			fmt.Printf("%02d:00  green %8s  conventional %8s  spread %8s\n", h.Hour, optional(h.Green), optional(h.Conventional), optional(h.Spread))
		}
	}

	if m := result.Mortality; m != nil {
		banner("DEATHS PER TWh")
		for _, r := range m.Rates {
			fmt.Printf("%-24s %10.2f\n", r.Entity, r.Value)
		}
	}

	if mix := result.EnergyMix; mix != nil {
		banner(fmt.Sprintf("PRIMARY ENERGY MIX %d-%d", mix.FirstYear, mix.LastYear))
		for _, s := range mix.LastYearMix {
			fmt.Printf("%-24s %12.1f  %5.1f%%\n", s.Source, s.Value, s.Share*100)
		}
	}

	if sus := result.Sustainable; sus != nil {
		banner(fmt.Sprintf("ELECTRICITY GENERATION %d (TWh)", sus.LatestYear))
		for i, e := range sus.Latest {
			if i == 10 {
				fmt.Printf("... and %d more entities\n", len(sus.Latest)-10)
				break
			}
			fmt.Printf("%-24s fossil %9.1f  nuclear %8.1f  renewables %9.1f\n", e.Entity, e.Fossil, e.Nuclear, e.Renewables)
		}

		banner("GLOBAL GENERATION MIX (%)")
		for _, g := range sus.Global {
			fmt.Printf("%d  fossil %5.1f  nuclear %5.1f  renewables %5.1f\n", g.Year, g.FossilShare, g.NuclearShare, g.RenewablesShare)
		}
	}

	if len(result.Warnings) > 0 {
		banner(fmt.Sprintf("WARNINGS (%d)", len(result.Warnings)))
		for _, w := range result.Warnings {
			fmt.Printf("  - [%s] %s: %s\n", w.Kind, w.Source, w.Message)
		}
	}
}

func banner(title string) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 80))
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
