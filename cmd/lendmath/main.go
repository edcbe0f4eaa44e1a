package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const (
	serviceName   = "lendmath"
	defaultConfig = "./markets.toml"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "rates":
		err = runRates(args, os.Stdout)
	case "accrue":
		err = runAccrue(args, os.Stdout)
	case "auction":
		err = runAuction(args, os.Stdout)
	case "verify":
		err = runVerify(ctx, args, os.Stdout)
	case "reports":
		err = runReports(ctx, args, os.Stdout)
	case "serve":
		err = runServe(ctx, args)
	case "init-config":
		err = runInitConfig(args, os.Stdout)
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	default:
		usage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: lendmath <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  rates        quote borrow and liquidity rates for a market")
	fmt.Fprintln(w, "  accrue       compute cumulated interest or an updated index")
	fmt.Fprintln(w, "  auction      print an auction price multiplier schedule")
	fmt.Fprintln(w, "  verify       check reference vectors or live contracts against the engine")
	fmt.Fprintln(w, "  reports      list or show stored verification reports")
	fmt.Fprintln(w, "  serve        run the HTTP quote gateway")
	fmt.Fprintln(w, "  init-config  write the built-in market presets to a TOML file")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Every command accepts -config (default %s); a missing file selects the presets.\n", defaultConfig)
}
