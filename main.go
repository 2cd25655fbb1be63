package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/config"
	"github.com/mrlokans/patterns/internal/entrypoint"
	"github.com/mrlokans/patterns/internal/importers"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	cfg := config.NewConfig()
	logger, err := entrypoint.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		if err := entrypoint.Run(cfg, Version, logger); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
		return
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "import":
		targets, hints := parseImportFlags("import", args)
		if len(targets) == 0 {
			fmt.Fprintf(os.Stderr, "Error: at least one URL or file is required\n")
			os.Exit(2)
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		ok, err := entrypoint.Import(ctx, cfg, logger, targets, hints, os.Stdout)
		stop()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			os.Exit(1)
		}

	case "enqueue":
		urls, hints := parseImportFlags("enqueue", args)
		if len(urls) == 0 {
			fmt.Fprintf(os.Stderr, "Error: at least one URL is required\n")
			os.Exit(2)
		}
		ids, err := entrypoint.Enqueue(cfg, logger, urls, hints)
		for _, id := range ids {
			fmt.Println(id)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "version":
		fmt.Printf("patterns %s (%s)\n", Version, Commit)

	case "-h", "--help", "help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func parseImportFlags(name string, args []string) ([]string, importers.Hints) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var hints importers.Hints
	fs.StringVar(&hints.Name, "name", "", "Pattern name, overrides the detected one")
	fs.StringVar(&hints.Category, "category", "", "Pattern category")
	fs.StringVar(&hints.Brand, "brand", "", "Designer or brand")
	_ = fs.Parse(args)
	return fs.Args(), hints
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve                        Start the HTTP server and import workers (default)\n")
	fmt.Fprintf(os.Stderr, "  import [flags] <url|file>... Import patterns now and print each result as JSON\n")
	fmt.Fprintf(os.Stderr, "  enqueue [flags] <url>...     Queue URL imports for the server to process\n")
	fmt.Fprintf(os.Stderr, "  version                      Print version information\n")
	fmt.Fprintf(os.Stderr, "\nImport flags: -name, -category, -brand\n")
}
