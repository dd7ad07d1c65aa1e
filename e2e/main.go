// Command e2e runs end-to-end scenarios against a running catalogd.
//
//	go run ./e2e -env local
//	go run ./e2e -test 'upload-*'
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cornjacket/catalog-ingest/e2e/client"
	"github.com/cornjacket/catalog-ingest/e2e/runner"
	_ "github.com/cornjacket/catalog-ingest/e2e/tests" // Register all tests
)

func main() {
	env := flag.String("env", "local", "Environment (local, dev, staging)")
	pattern := flag.String("test", "", "Run only tests matching this pattern (all if empty)")
	list := flag.Bool("list", false, "List available tests")
	flag.Parse()

	if *list {
		runner.ListTests(os.Stdout)
		return
	}

	os.Exit(run(*env, *pattern))
}

func run(env, pattern string) int {
	cfg := runner.LoadConfig(env)
	if cfg.BaseURL == "" {
		fmt.Fprintf(os.Stderr, "no service URL for env %q; set E2E_BASE_URL\n", env)
		return 2
	}

	selected, err := runner.Select(pattern)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("catalogd e2e  env=%s  url=%s  tests=%d\n\n", cfg.Env, cfg.BaseURL, len(selected))

	if err := client.CheckHealth(ctx, cfg.BaseURL); err != nil {
		fmt.Fprintf(os.Stderr, "service not healthy: %v\n", err)
		return 1
	}

	if !runner.PrintSummary(runner.Run(ctx, selected, cfg)) {
		return 1
	}
	return 0
}
