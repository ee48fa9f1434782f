// Package main provides the datawarp CLI: discover, load, and inspect
// statistical publications.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eamazon/datawarp-v3.1/internal/discovery"
	"github.com/eamazon/datawarp-v3.1/internal/metrics"
	"github.com/eamazon/datawarp-v3.1/internal/metrics/datadog"
	"github.com/eamazon/datawarp-v3.1/internal/period"
	"github.com/eamazon/datawarp-v3.1/internal/pipeline"
	"github.com/eamazon/datawarp-v3.1/internal/sheet"
	"github.com/eamazon/datawarp-v3.1/internal/storage"

	// Register all storage backends; the --db-kind flag picks one at
	// runtime.
	_ "github.com/eamazon/datawarp-v3.1/internal/storage/all"
)

var (
	dbKind         string
	dbDSN          string
	metricsBackend string
	metricsTags    string
	verbose        bool

	pipelineName string
	periodFlag   string
	sourceURL    string
	downloadDir  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "datawarp",
		Short: "Load messy statistical spreadsheets into queryable tables",
		Long: `datawarp infers the structure of published spreadsheets (header
blocks, merged cells, footnotes), classifies what each table describes,
and loads the rows into a database with stable column identities and
idempotent per-period replacement.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbKind, "db-kind", "", "storage backend: postgres, sqlite, mssql (env DW_DB_KIND)")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db-dsn", "", "storage DSN (env DW_DB_DSN)")
	rootCmd.PersistentFlags().StringVar(&metricsBackend, "metrics-backend", "", "metrics backend: datadog, none (env DW_METRICS_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&metricsTags, "metrics-tags", "", "extra metric tags, e.g. env:prod,team:data")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logs")

	rootCmd.AddCommand(loadCmd(), scanCmd(), historyCmd(), pipelinesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [file...]",
		Short: "Load local spreadsheet or CSV files into the pipeline's tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			mb, closeMetrics, err := openMetrics(ctx)
			if err != nil {
				return err
			}
			defer closeMetrics()

			cfg, err := pipeline.LoadConfig(ctx, repo, pipelineName)
			if err != nil {
				return err
			}

			runner := pipeline.NewRunner(repo)
			runner.Metrics = mb
			runner.Verbose = verbose

			failures := 0
			for _, path := range args {
				p, err := resolvePeriod(path)
				if err != nil {
					return err
				}

				src, err := openSource(path)
				if err != nil {
					return err
				}

				outcomes, err := runner.ProcessFile(ctx, cfg, src, path, p)
				_ = src.Close()
				if err != nil {
					return err
				}
				failures += printOutcomes(path, p, outcomes)
			}
			if failures > 0 {
				return fmt.Errorf("%d sheet(s) failed", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "pipeline name (required)")
	cmd.Flags().StringVar(&periodFlag, "period", "", "reporting period YYYY-MM (default: parsed from file name)")
	_ = cmd.MarkFlagRequired("pipeline")
	return cmd
}

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a publication listing page for downloadable data files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			mb, closeMetrics, err := openMetrics(ctx)
			if err != nil {
				return err
			}
			defer closeMetrics()

			cfg, err := pipeline.LoadConfig(ctx, repo, pipelineName)
			if err != nil {
				return err
			}
			url := sourceURL
			if url == "" {
				url = cfg.SourceURL
			}
			if url == "" {
				return fmt.Errorf("pipeline %s has no source URL; pass --url", pipelineName)
			}

			client := &http.Client{Timeout: 60 * time.Second}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("fetch listing %s: %w", url, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("fetch listing %s: unexpected status %s", url, resp.Status)
			}

			files, err := discovery.FindDataFiles(url, resp.Body)
			if err != nil {
				return err
			}
			files = discovery.Filter(files, cfg.FilePatterns)

			runner := pipeline.NewRunner(repo)
			runner.Metrics = mb
			runner.Verbose = verbose

			failures := 0
			for _, f := range files {
				marker := " "
				if !f.Period.IsZero() && cfg.ShouldFetch(f.Period.String()) {
					marker = "*"
				}
				fmt.Printf("%s %-8s %s\n", marker, periodLabel(f), f.Name)

				if downloadDir == "" || marker != "*" {
					continue
				}
				dest, n, err := discovery.Download(ctx, client, f, downloadDir)
				if err != nil {
					mb.ObserveHistogram(metrics.DownloadBytes, float64(n), metrics.Labels{"status": "failed"})
					log.Printf("download %s: %v", f.Name, err)
					failures++
					continue
				}
				mb.ObserveHistogram(metrics.DownloadBytes, float64(n), metrics.Labels{"status": "ok"})
				fmt.Printf("  -> %s (%d bytes)\n", dest, n)

				src, err := openSource(dest)
				if err != nil {
					// Archives and legacy formats land on disk for manual
					// handling but are not loaded.
					fmt.Printf("     not loaded: %v\n", err)
					continue
				}
				outcomes, err := runner.ProcessFile(ctx, cfg, src, f.URL, f.Period)
				_ = src.Close()
				if err != nil {
					return err
				}
				failures += printOutcomes(dest, f.Period, outcomes)
			}

			// Remember the URL so the next scan needs no flag.
			if sourceURL != "" && cfg.SourceURL != sourceURL {
				cfg.SourceURL = sourceURL
				if err := cfg.Save(ctx, repo); err != nil {
					return err
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d download/load failure(s)", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "pipeline name (required)")
	cmd.Flags().StringVar(&sourceURL, "url", "", "listing page URL (default: pipeline's saved source URL)")
	cmd.Flags().StringVar(&downloadDir, "download", "", "download new-period files into this directory")
	_ = cmd.MarkFlagRequired("pipeline")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a pipeline's load history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			recs, err := repo.History(ctx, pipelineName)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Printf("no loads recorded for pipeline %s\n", pipelineName)
				return nil
			}
			for _, r := range recs {
				line := fmt.Sprintf("%s  %-7s  %-18s  v%-3d  %d/%d rows  %s",
					r.LoadedAt.Format("2006-01-02 15:04"), r.Period, r.Status,
					r.MappingsVersion, r.RowsWritten, r.RowsRead, r.Table)
				if r.Source != "" {
					line += "  " + r.Source
				}
				if r.Error != "" {
					line += "  " + r.Error
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "pipeline name (required)")
	_ = cmd.MarkFlagRequired("pipeline")
	return cmd
}

func pipelinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List saved pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			names, err := repo.ListPipelines(ctx)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}

// resolve applies flag -> env -> default precedence.
func resolve(flagVal, envKey, def string) string {
	if flagVal != "" {
		return flagVal
	}
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	return def
}

func openRepo(ctx context.Context) (storage.Repository, error) {
	cfg := storage.Config{
		Kind: resolve(dbKind, "DW_DB_KIND", "sqlite"),
		DSN:  resolve(dbDSN, "DW_DB_DSN", "datawarp.db"),
	}
	repo, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage (%s): %w", cfg.Kind, err)
	}
	return repo, nil
}

func openMetrics(ctx context.Context) (metrics.Backend, func(), error) {
	switch resolve(metricsBackend, "DW_METRICS_BACKEND", "none") {
	case "datadog":
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName: "datawarp",
			Tags:    datadog.ParseTagsCSV(metricsTags),
		})
		if err != nil {
			return nil, nil, err
		}
		return b, func() {
			if err := b.Close(); err != nil {
				log.Printf("metrics flush: %v", err)
			}
		}, nil
	case "none", "":
		return metrics.Nop{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown metrics backend %q", metricsBackend)
	}
}

func resolvePeriod(path string) (period.Period, error) {
	if periodFlag != "" {
		return period.Parse(periodFlag)
	}
	if p, ok := period.FromFilename(filepath.Base(path)); ok {
		return p, nil
	}
	return period.Period{}, fmt.Errorf("no period in file name %q; pass --period", filepath.Base(path))
}

func openSource(path string) (sheet.Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return sheet.OpenWorkbook(path)
	case ".csv", ".txt":
		return sheet.OpenCSV(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

func printOutcomes(path string, p period.Period, outcomes []pipeline.Outcome) (failures int) {
	fmt.Printf("%s (period %s)\n", filepath.Base(path), p)
	for _, o := range outcomes {
		switch o.Status {
		case "loaded":
			fmt.Printf("  loaded  %-30s -> %s (%d rows, grain %s)\n", o.Sheet, o.Table, o.Rows, o.Grain.Entity)
			if o.Drift.Drifted() {
				fmt.Printf("          drift: added=%v removed=%v returned=%v\n",
					o.Drift.Added, o.Drift.Removed, o.Drift.Returned)
			}
		case "skipped":
			fmt.Printf("  skipped %-30s (%s)\n", o.Sheet, o.Reason)
		default:
			failures++
			fmt.Printf("  FAILED  %-30s %v\n", o.Sheet, o.Err)
		}
	}
	return failures
}

func periodLabel(f discovery.DataFile) string {
	if f.Period.IsZero() {
		return "-"
	}
	return f.Period.String()
}
