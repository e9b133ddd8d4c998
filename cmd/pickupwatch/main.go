package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"pickupwatch/internal/app"
)

func main() {
	var (
		cfgPath    string
		once       bool
		force      bool
		selfTest   bool
		showQuota  bool
		setLastRun string
	)
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config file (json or yaml)")
	flag.BoolVar(&once, "once", false, "run a single check (respects active hours)")
	flag.BoolVar(&force, "force", false, "run a single check ignoring active hours")
	flag.BoolVar(&selfTest, "test", false, "test configuration and connections")
	flag.BoolVar(&showQuota, "quota", false, "print the Odds API quota ledger")
	flag.StringVar(&setLastRun, "set-last-run", "", `set the watermark: "now", a duration ago ("24h"), RFC 3339 or "YYYY-MM-DD HH:MM:SS" (UTC)`)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	switch {
	case selfTest:
		os.Exit(runSelfTest(ctx, a))
	case showQuota:
		printQuota(a)
		a.Close()
	case setLastRun != "":
		t, err := a.SetLastRun(ctx, setLastRun)
		a.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "❌", err)
			os.Exit(1)
		}
		fmt.Printf("✅ Set last run time to: %s\n", t.Format(time.RFC3339))
	case once || force:
		rep, err := a.RunOnce(ctx, force)
		a.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "check failed:", err)
			os.Exit(1)
		}
		if rep.Skipped {
			fmt.Println("Skipped: outside active hours")
			return
		}
		fmt.Printf("Alerts: %d, delivered: %d, failed: %d\n", rep.Alerts, rep.Delivered, rep.Failed)
	default:
		runDaemon(ctx, a)
	}
}

func runDaemon(ctx context.Context, a *app.App) {
	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		_ = a.Stop(context.Background(), app.StopFatalError)
		os.Exit(1)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		}
	}
	err := a.Err()

	stopCtx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	_ = a.Stop(stopCtx, reason)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func runSelfTest(ctx context.Context, a *app.App) int {
	defer a.Close()
	results, ok := a.SelfTest(ctx)
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("❌ %-8s %v\n", r.Name, r.Err)
			continue
		}
		fmt.Printf("✅ %-8s %s\n", r.Name, r.Detail)
	}
	if !ok {
		return 1
	}
	fmt.Println("✅ All tests passed! Configuration is valid.")
	return 0
}

func printQuota(a *app.App) {
	q := a.QuotaReport()
	fmt.Println("Odds API quota")
	fmt.Printf("  requests used:      %d\n", q.RequestsUsed)
	fmt.Printf("  requests remaining: %d\n", q.RequestsRemaining)
	if q.LastReset != nil {
		fmt.Printf("  last update:        %s\n", q.LastReset.Format(time.RFC3339))
	}
	days := make([]string, 0, len(q.DailyUsage))
	for d := range q.DailyUsage {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		fmt.Printf("  %s: %d calls\n", d, q.DailyUsage[d])
	}
}
