package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"report_spider/internal/app"
	"report_spider/internal/config"
	"report_spider/internal/logging"
	"report_spider/internal/models"
	"report_spider/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const cliClient = "cli"

var (
	configPath  string
	websiteHint string
	year        int
	companyName string
)

var rootCmd = &cobra.Command{
	Use:   "report_spider",
	Short: "Find and rank the financial reports of Australian companies",
	Long: `report_spider resolves a company's website, crawls it, searches the web
and ranks the documents most likely to be its annual report.

Run "serve" for the HTTP API or "discover" for a one-off lookup.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var discoverCmd = &cobra.Command{
	Use:   "discover <company name>",
	Short: "Discover and rank financial documents for one company",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiscover,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <document url>",
	Short: "Extract revenue, assets and employees from a report",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config")

	discoverCmd.Flags().StringVar(&websiteHint, "website", "", "known company website")
	discoverCmd.Flags().IntVar(&year, "year", 0, "financial year to prefer")

	analyzeCmd.Flags().StringVar(&companyName, "company", "", "company the report belongs to")
	_ = analyzeCmd.MarkFlagRequired("company")

	rootCmd.AddCommand(serveCmd, discoverCmd, analyzeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config and logger and wires the app. The caller closes both.
func setup(ctx context.Context) (*config.SpiderConfig, *zap.Logger, *app.SpiderApp, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	spider, err := app.NewSpiderApp(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, err
	}
	return cfg, logger, spider, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, spider, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer spider.Close()

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.NewRouter(spider, logger.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, logger, spider, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer spider.Close()

	resp, err := spider.Discover(ctx, cliClient, models.CompanyQuery{
		Name:        args[0],
		WebsiteHint: websiteHint,
		Year:        year,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, resp)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, logger, spider, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer spider.Close()

	report, err := spider.Analyze(ctx, cliClient, args[0], companyName)
	if err != nil {
		return err
	}
	return printJSON(cmd, report)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
