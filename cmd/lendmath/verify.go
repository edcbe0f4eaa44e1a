package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/holiman/uint256"

	"nftlend/chain"
	"nftlend/config"
	"nftlend/native/auction"
	"nftlend/native/lending"
	"nftlend/observability"
	"nftlend/observability/logging"
	"nftlend/storage/reports"
	"nftlend/verification"
)

// liveUtilizations are the debt shares, out of 100, sampled on each rate market.
var liveUtilizations = []uint64{0, 40, 80, 90, 100}

func runVerify(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the markets TOML file")
	vectorsPath := fs.String("vectors", "", "YAML vector file")
	rpc := fs.String("rpc", "", "Ethereum JSON-RPC endpoint for live checks; defaults to Service.RPCEndpoint")
	live := fs.Bool("live", false, "Compare against deployed strategy contracts")
	block := fs.Uint64("block", 0, "Pin live calls to a block height")
	liveTicks := fs.Uint64("ticks", 24, "Auction ticks sampled per live auction check")
	save := fs.Bool("save", false, "Persist the report to Service.ReportDSN")
	store := fs.String("store", "", "Report DSN; implies -save")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *vectorsPath == "" && !*live {
		return fmt.Errorf("-vectors or -live is required")
	}
	cfg, tables, err := loadTables(*configPath)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, serviceName, cfg.Service.Environment)
	if cfg.Service.LogFile != "" {
		var closer io.Closer
		logger, closer = logging.SetupFile(serviceName, cfg.Service.Environment, cfg.Service.LogFile)
		defer closer.Close()
	}
	verifier, err := verification.New(tables,
		verification.WithLogger(logger),
		verification.WithMetrics(observability.Verification()))
	if err != nil {
		return err
	}

	var runs []*verification.Report
	if *vectorsPath != "" {
		vectors, err := verification.LoadVectors(*vectorsPath)
		if err != nil {
			return err
		}
		report, err := verifier.Run(ctx, vectors)
		if err != nil {
			return err
		}
		runs = append(runs, report)
	}
	if *live {
		endpoint := *rpc
		if endpoint == "" {
			endpoint = cfg.Service.RPCEndpoint
		}
		logger.Info("starting live verification", logging.Endpoint("rpc", endpoint))
		reader, closeReader, err := chain.Dial(ctx, endpoint)
		if err != nil {
			return err
		}
		defer closeReader()
		if *block > 0 {
			reader = reader.AtBlock(*block)
		}
		report, err := verifier.RunLive(ctx, chain.Observer{Reader: reader}, liveTargets(tables, *liveTicks))
		if err != nil {
			return err
		}
		runs = append(runs, report)
	}

	for _, report := range runs {
		printReport(out, report)
	}
	if *save || *store != "" {
		dsn := *store
		if dsn == "" {
			dsn = cfg.Service.ReportDSN
		}
		if err := persistReports(ctx, dsn, runs, logger); err != nil {
			return err
		}
	}
	for _, report := range runs {
		if !report.Passed() {
			return fmt.Errorf("%d of %d checks failed in report %s", report.Failures(), len(report.Checks), report.ID)
		}
	}
	return nil
}

// liveTargets samples every market that has a contract address.
func liveTargets(tables *config.Tables, ticks uint64) []verification.Target {
	var targets []verification.Target
	for _, symbol := range tables.Symbols() {
		market, err := tables.Rate(symbol)
		if err != nil || market.Address == nil {
			continue
		}
		for _, share := range liveUtilizations {
			targets = append(targets, verification.Target{
				Name:   fmt.Sprintf("%s-u%d", symbol, share),
				Kind:   verification.KindRates,
				Market: symbol,
				Snapshot: lending.ReserveSnapshot{
					TotalVariableDebt:  uint256.NewInt(share * 1_000_000),
					AvailableLiquidity: uint256.NewInt((100 - share) * 1_000_000),
					ReserveFactor:      market.ReserveFactorBps,
				},
			})
		}
	}
	for _, name := range tables.AuctionNames() {
		market, err := tables.Auction(name)
		if err != nil || market.Address == nil {
			continue
		}
		tick := market.Strategy.TickLength()
		for k := uint64(0); k <= ticks; k++ {
			targets = append(targets, verification.Target{
				Name:    fmt.Sprintf("%s-t%d", name, k),
				Kind:    verification.KindAuction,
				Market:  name,
				Auction: auction.State{StartTimestamp: 0, CurrentTimestamp: k * tick},
			})
		}
	}
	return targets
}

func persistReports(ctx context.Context, dsn string, runs []*verification.Report, logger *slog.Logger) error {
	store, err := reports.Open(dsn)
	if err != nil {
		return err
	}
	defer store.Close()
	for _, report := range runs {
		if err := store.Save(ctx, report); err != nil {
			return err
		}
		logger.Info("report stored", slog.String("report_id", report.ID), logging.Endpoint("dsn", dsn))
	}
	return nil
}

func printReport(out io.Writer, report *verification.Report) {
	fmt.Fprintf(out, "report %s (%s, %s) %d checks, %d failed, %s\n",
		report.ID, report.Source, report.Network, len(report.Checks), report.Failures(),
		report.Finished.Sub(report.Started).Round(time.Millisecond))
	for _, check := range report.Checks {
		status := "PASS"
		if !check.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(out, "  %s %-8s %-28s %s\n", status, check.Kind, check.Name, check.Actual)
		if !check.Passed {
			if check.Expected != "" {
				fmt.Fprintf(out, "       expected %s\n", check.Expected)
			}
			if check.Error != "" {
				fmt.Fprintf(out, "       error    %s\n", check.Error)
			}
		}
	}
}

func runReports(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reports", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the markets TOML file")
	store := fs.String("store", "", "Report DSN; defaults to Service.ReportDSN")
	id := fs.String("id", "", "Show a single report with its checks")
	limit := fs.Int("limit", 20, "Number of recent reports to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	dsn := *store
	if dsn == "" {
		dsn = cfg.Service.ReportDSN
	}
	db, err := reports.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if *id != "" {
		report, err := db.Get(ctx, *id)
		if err != nil {
			return err
		}
		printReport(out, report)
		return nil
	}
	recent, err := db.Recent(ctx, *limit)
	if err != nil {
		return err
	}
	for _, report := range recent {
		fmt.Fprintf(out, "%s %s %-7s %s\n", report.ID, report.Started.Format(time.RFC3339), report.Source, report.Network)
	}
	return nil
}
