package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"entprobe/internal/config"
	"entprobe/internal/debug"
	"entprobe/internal/experiment"
	"entprobe/internal/history"
	"entprobe/internal/ingest"
	"entprobe/internal/progress"
	"entprobe/internal/query"
	"entprobe/internal/ratelimit"
	"entprobe/internal/report"
	"entprobe/internal/runner"
	"entprobe/internal/schema"
	"entprobe/internal/verify"
)

const (
	ExitSuccess           = 0
	ExitExpectationFailed = 1
	ExitError             = 2
)

// paramsFlag collects repeated -param key=value flags.
type paramsFlag map[string]string

func (p paramsFlag) String() string { return fmt.Sprintf("%v", map[string]string(p)) }

func (p paramsFlag) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	p[key] = val
	return nil
}

func main() {
	params := make(paramsFlag)
	configPath := flag.String("config", "", "path to YAML config file (environment fills gaps)")
	schemasPath := flag.String("schemas", "schemas.yaml", "path to entity schema registry")
	output := flag.String("output", "text", "output format: text, json")
	quiet := flag.Bool("quiet", false, "suppress progress output")
	verbose := flag.Bool("verbose", false, "log requests and responses (credentials redacted)")
	historyPath := flag.String("history", "", "archive runs to this bbolt database (empty = off)")
	concurrency := flag.Int("concurrency", runner.DefaultConcurrency, "concurrent experiment runs")
	queryRPS := flag.Int("query-rps", 5, "max read-side queries per second across all poll loops")
	pollInterval := flag.Duration("poll-interval", 0, "override configured polling interval")
	deadline := flag.Duration("deadline", 0, "override configured overall verification deadline")
	flag.Var(params, "param", "experiment parameter key=value (repeatable)")
	flag.Parse()

	experimentFiles := flag.Args()
	if len(experimentFiles) == 0 {
		fmt.Fprintln(os.Stderr, "error: at least one experiment file is required")
		flag.Usage()
		os.Exit(ExitError)
	}
	if *output != "text" && *output != "json" {
		fmt.Fprintf(os.Stderr, "error: --output must be 'text' or 'json', got %q\n", *output)
		os.Exit(ExitError)
	}

	cfg, err := config.Resolve(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}
	if *pollInterval > 0 {
		cfg.PollInterval = *pollInterval
	}
	if *deadline > 0 {
		cfg.Deadline = *deadline
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	registry, err := schema.LoadRegistry(*schemasPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	var experiments []experiment.Experiment
	for _, path := range experimentFiles {
		exps, err := experiment.Load(path, params)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(ExitError)
		}
		experiments = append(experiments, exps...)
	}

	var debugLogger *debug.Logger
	if *verbose {
		debugLogger = debug.NewLogger(os.Stderr)
	}

	httpClient := &http.Client{}
	poller := verify.NewPoller(
		query.NewClient(cfg, httpClient, debugLogger),
		query.NewGraphClient(cfg, httpClient, debugLogger),
		ratelimit.NewLimiter(*queryRPS),
		cfg.PollInterval,
		cfg.Deadline,
	)
	run := runner.New(registry, ingest.NewClient(cfg, httpClient, debugLogger), poller)

	if *historyPath != "" {
		store, err := history.Open(*historyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(ExitError)
		}
		defer store.Close()
		run.SetStore(store)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	interrupted := false
	go func() {
		<-sigCh
		interrupted = true
		if !*quiet {
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		}
		cancel()
	}()

	prog := progress.NewTracker(len(experiments), *quiet)
	run.SetReporter(prog)

	prog.Printf("entprobe starting: %d experiments against account %s", len(experiments), cfg.AccountID)
	prog.Start()
	results := run.RunAll(ctx, experiments, *concurrency)
	prog.Stop()

	if *output == "json" {
		report.FormatJSON(os.Stdout, results)
	} else {
		report.FormatText(os.Stdout, results)
	}

	if interrupted {
		os.Exit(ExitError)
	}
	if !report.Compute(results).AllPassed() {
		if *output == "text" {
			fmt.Fprintln(os.Stderr, "\nSome expectations were not met")
		}
		os.Exit(ExitExpectationFailed)
	}
	os.Exit(ExitSuccess)
}
