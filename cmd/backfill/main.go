// Command backfill runs a one-shot historical gap backfill and exits. It is
// the operator-facing counterpart to the daemon's scheduled backfill: point it
// at a league, pick the categories and lookback window, and it fills whatever
// daily observations are missing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/exilewatch/exilewatch/internal/app"
	"github.com/exilewatch/exilewatch/internal/backfill"
	"github.com/exilewatch/exilewatch/internal/config"
	"github.com/exilewatch/exilewatch/internal/domain"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	league := flag.String("league", "", "league to backfill (required unless -list-leagues)")
	typeFlag := flag.String("type", "", "comma-separated categories to backfill (currency, divination_cards, unique_items); empty means all")
	days := flag.Int("days", 0, "lookback window in days; 0 uses the configured default")
	listLeagues := flag.Bool("list-leagues", false, "print known leagues and exit")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := app.Wire(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wire dependencies: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if *listLeagues {
		if err := printLeagues(ctx, deps); err != nil {
			fmt.Fprintf(os.Stderr, "list leagues: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *league == "" {
		fmt.Fprintln(os.Stderr, "-league is required (or use -list-leagues)")
		flag.Usage()
		os.Exit(2)
	}

	categories, err := parseCategories(*typeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	lookback := cfg.Backfill.LookbackDays
	if *days > 0 {
		lookback = *days
	}

	result, err := deps.Backfiller.Run(ctx, *league, categories, lookback)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backfill %s: %v\n", *league, err)
		os.Exit(1)
	}
	printResult(result)

	for _, cr := range result.Categories {
		if cr.Err != nil {
			os.Exit(1)
		}
	}
}

func parseCategories(s string) ([]domain.Category, error) {
	if strings.TrimSpace(s) == "" {
		return domain.Categories, nil
	}
	var out []domain.Category
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, ok := domain.ParseCategory(part)
		if !ok {
			return nil, fmt.Errorf("unknown category %q (want one of: currency, divination_cards, unique_items)", part)
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return domain.Categories, nil
	}
	return out, nil
}

func printLeagues(ctx context.Context, deps *app.Dependencies) error {
	leagues, err := deps.Registry.List(ctx, nil)
	if err != nil {
		return err
	}
	fmt.Printf("%-30s %-10s %s\n", "LEAGUE", "STATUS", "START")
	for _, lg := range leagues {
		fmt.Printf("%-30s %-10s %s\n", lg.Name, lg.Status, lg.StartDate.Format("2006-01-02"))
	}
	return nil
}

func printResult(result backfill.RunResult) {
	fmt.Printf("run %s league %q\n", result.RunID, result.League.Name)
	for _, cr := range result.Categories {
		if cr.Err != nil {
			fmt.Printf("  %-18s FAILED: %v\n", cr.Category, cr.Err)
			continue
		}
		fmt.Printf("  %-18s entities=%d records=%d\n", cr.Category, cr.EntitiesProcessed, cr.RecordsWritten)
	}
}
