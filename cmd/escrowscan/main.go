package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"

	"github.com/screwyprof/escrowscan/aggregator"
	"github.com/screwyprof/escrowscan/aggregator/source/ethsource"
	"github.com/screwyprof/escrowscan/aggregator/store/filestore"
	"github.com/screwyprof/escrowscan/aggregator/store/pgxstore"
	"github.com/screwyprof/escrowscan/cmd/escrowscan/config"
	"github.com/screwyprof/escrowscan/pkg/logger"
	"github.com/screwyprof/escrowscan/pkg/pgxdb"
	"github.com/screwyprof/escrowscan/pkg/snxdata"
)

var (
	outputFile  string
	providerURL string
	databaseURL string
	network     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "escrowscan",
		Short: "Report escrowed SNX held by accounts that withdrew over the bridge",
		Long: `escrowscan scans withdrawal events across every historical deployment of
the Synthetix bridge contract, deduplicates the withdrawer accounts and sums
their escrowed SNX balances into a resumable JSON report.

Progress is checkpointed after every recorded account, so re-running the
command after a failure resumes where the previous run stopped.`,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVar(&outputFile, "output-file", "", "path of the checkpointed report (required)")
	rootCmd.Flags().StringVar(&providerURL, "provider-url", "", "Ethereum RPC endpoint (default from ESCROWSCAN_PROVIDER_URL)")
	rootCmd.Flags().StringVar(&databaseURL, "database-url", "", "keep the checkpoint in PostgreSQL instead of the output file")
	rootCmd.Flags().StringVar(&network, "network", "", "Synthetix network name (default from ESCROWSCAN_NETWORK)")
	_ = rootCmd.MarkFlagRequired("output-file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	// Load configuration
	cfg := config.New()
	if providerURL == "" {
		providerURL = cfg.DefaultProviderURL
	}
	if network == "" {
		network = cfg.Network
	}

	// Initialize logger and set as default
	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
	})
	slog.SetDefault(log)

	// Prepare context with signal handling
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Network provider
	client, err := ethclient.DialContext(ctx, providerURL)
	if err != nil {
		return fmt.Errorf("connecting to provider: %w", err)
	}
	defer client.Close()

	// Release registry and chain-backed collaborators
	registry := snxdata.NewClient(&http.Client{Timeout: cfg.HTTPClientTimeout}, cfg.RegistryURL)
	source := ethsource.New(registry, client, network)

	// Checkpoint store: the output file by default, PostgreSQL when requested.
	// With a database checkpoint the file is still written at the end as the
	// report artifact.
	report := filestore.New(outputFile)
	var store aggregator.Store = report
	if databaseURL != "" {
		pool, err := pgxdb.NewConnection(ctx, databaseURL)
		if err != nil {
			return err
		}
		if err := pgxdb.ApplyMigrations(pool, "./migrations"); err != nil {
			pool.Close()
			return err
		}
		pgStore, storeCloser := pgxstore.New(pool)
		defer storeCloser()
		store = pgStore
	}

	// Create and start the aggregation service
	svc := aggregator.NewService(source, source, source, store)

	log.InfoContext(ctx, "Starting escrow withdrawal scan",
		slog.String("network", network),
		slog.String("outputFile", outputFile),
	)
	events, done := svc.Start(ctx)

	// Subscribe to events for logging and error capture
	var runErr error
	subCloser := setupEventLogging(ctx, events, log, &runErr)

	<-done
	subCloser()

	if runErr != nil {
		return runErr
	}

	if databaseURL != "" {
		// Mirror the database checkpoint into the report file
		cp, err := store.Load(ctx)
		if err != nil {
			return err
		}
		if err := report.Save(ctx, cp); err != nil {
			return err
		}
	}

	log.InfoContext(ctx, "Report written", slog.String("outputFile", outputFile))
	return nil
}

// setupEventLogging configures event handlers using slog directly
func setupEventLogging(ctx context.Context, events <-chan aggregator.Event, log *slog.Logger, runErr *error) func() {
	return aggregator.NewSubscriber(events,
		aggregator.OnRunStarted(func(event aggregator.RunStarted) {
			log.InfoContext(ctx, "Run started",
				slog.String("startedAt", event.StartedAt.Format(logger.BritishTimeFormat)),
				slog.Int("recordedAccounts", event.Recorded),
			)
		}),
		aggregator.OnVersionScanned(func(event aggregator.VersionScanned) {
			log.InfoContext(ctx, "Bridge version scanned",
				slog.String("release", event.Release),
				slog.String("tag", event.Tag),
				slog.String("address", event.Address),
				slog.Int("events", event.Events),
			)
		}),
		aggregator.OnCollectDone(func(event aggregator.CollectDone) {
			log.InfoContext(ctx, "Event collection completed",
				slog.Int("versions", event.Versions),
				slog.Int("events", event.Events),
			)
		}),
		aggregator.OnDedupDone(func(event aggregator.DedupDone) {
			log.InfoContext(ctx, "Withdrawers deduplicated",
				slog.Int("events", event.Events),
				slog.Int("unique", event.Unique),
			)
		}),
		aggregator.OnBalanceSkipped(func(event aggregator.BalanceSkipped) {
			log.DebugContext(ctx, "Balance already recorded, skipping",
				slog.String("account", event.Account),
			)
		}),
		aggregator.OnBalanceRecorded(func(event aggregator.BalanceRecorded) {
			log.InfoContext(ctx, "Balance recorded",
				slog.String("account", event.Account),
				slog.String("balance", event.Balance),
				slog.String("progress", fmt.Sprintf("%d/%d", event.Position, event.Total)),
			)
		}),
		aggregator.OnRunDone(func(event aggregator.RunDone) {
			log.InfoContext(ctx, "Run completed",
				slog.String("totalEscrowedSNX", event.TotalEscrowed),
				slog.Uint64("numWithdrawers", event.Withdrawers),
				slog.Duration("duration", event.Duration),
			)
		}),
		aggregator.OnRunError(func(event aggregator.RunError) {
			log.ErrorContext(ctx, "Run failed", slog.Any("error", event.Err))
			*runErr = event.Err
		}),
	)
}
