package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/holiman/uint256"

	"nftlend/config"
	"nftlend/native/lending"
	"nftlend/native/wadray"
)

func loadTables(path string) (*config.Markets, *config.Tables, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	tables, err := cfg.Compile()
	if err != nil {
		return nil, nil, err
	}
	return cfg, tables, nil
}

func runRates(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("rates", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the markets TOML file")
	symbol := fs.String("symbol", "", "Market symbol; all markets when empty")
	utilization := fs.String("utilization", "", "Utilization as a decimal fraction, e.g. 0.8")
	debt := fs.String("debt", "", "Total variable debt (integer units)")
	available := fs.String("available", "", "Available liquidity (integer units)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, tables, err := loadTables(*configPath)
	if err != nil {
		return err
	}

	symbols := tables.Symbols()
	if *symbol != "" {
		symbols = []string{*symbol}
	}
	for _, sym := range symbols {
		market, err := tables.Rate(sym)
		if err != nil {
			return err
		}
		u, err := resolveUtilization(*utilization, *debt, *available, market.ReserveFactorBps)
		if err != nil {
			return err
		}
		rates, err := market.Strategy.CalculateRates(u, market.ReserveFactorBps)
		if err != nil {
			return fmt.Errorf("%s: %w", market.Symbol, err)
		}
		fmt.Fprintf(out, "%-6s utilization=%s borrow=%s liquidity=%s\n",
			market.Symbol,
			wadray.FormatDecimal(u, wadray.RayDecimals),
			wadray.FormatDecimal(rates.VariableBorrowRate, wadray.RayDecimals),
			wadray.FormatDecimal(rates.LiquidityRate, wadray.RayDecimals))
	}
	return nil
}

func resolveUtilization(utilization, debt, available string, reserveFactor uint64) (*uint256.Int, error) {
	if utilization != "" {
		return wadray.ParseRay(utilization)
	}
	if debt == "" && available == "" {
		return nil, fmt.Errorf("either -utilization or -debt/-available is required")
	}
	snapshot := lending.ReserveSnapshot{ReserveFactor: reserveFactor}
	var err error
	if snapshot.TotalVariableDebt, err = wadray.ParseDecimal(orZero(debt), 0); err != nil {
		return nil, fmt.Errorf("debt: %w", err)
	}
	if snapshot.AvailableLiquidity, err = wadray.ParseDecimal(orZero(available), 0); err != nil {
		return nil, fmt.Errorf("available: %w", err)
	}
	return lending.CalculateUtilization(snapshot)
}

func runAccrue(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("accrue", flag.ContinueOnError)
	rate := fs.String("rate", "", "Annual rate as a decimal fraction, e.g. 0.05")
	dt := fs.Uint64("dt", 0, "Elapsed seconds")
	modeName := fs.String("mode", "compounded", "Interest mode: linear or compounded")
	index := fs.String("index", "", "Previous index as a decimal, e.g. 1.02; prints the updated index when set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	r, err := wadray.ParseRay(*rate)
	if err != nil {
		return fmt.Errorf("rate: %w", err)
	}
	mode, err := lending.ParseInterestMode(*modeName)
	if err != nil {
		return err
	}
	factor, err := lending.CumulatedInterest(r, *dt, mode)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "factor=%s (%s)\n", factor.Dec(), wadray.FormatDecimal(factor, wadray.RayDecimals))
	if *index == "" {
		return nil
	}
	previous, err := wadray.ParseRay(*index)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	updated, err := lending.UpdateIndex(previous, r, *dt, mode)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "index=%s (%s)\n", updated.Dec(), wadray.FormatDecimal(updated, wadray.RayDecimals))
	return nil
}

func runAuction(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("auction", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the markets TOML file")
	name := fs.String("strategy", "exp", "Auction strategy name")
	ticks := fs.Uint64("ticks", 24, "Number of ticks to print")
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, tables, err := loadTables(*configPath)
	if err != nil {
		return err
	}
	market, err := tables.Auction(*name)
	if err != nil {
		return err
	}
	schedule, err := market.Strategy.Schedule(*ticks)
	if err != nil {
		return err
	}
	tick := market.Strategy.TickLength()
	for k, m := range schedule {
		fmt.Fprintf(out, "tick=%-4d t=%-8d multiplier=%s\n", k, uint64(k)*tick, wadray.FormatDecimal(m, wadray.WadDecimals))
	}
	return nil
}

func runInitConfig(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init-config", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Destination path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := config.Write(*configPath, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", *configPath)
	return nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
