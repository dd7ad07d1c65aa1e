// Package runner holds the e2e test registry and executes tests against a
// running catalogd.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"slices"
	"strings"
	"text/tabwriter"
	"time"
)

// Test is one end-to-end scenario. Run returns nil on success.
type Test struct {
	Name        string
	Description string
	Run         func(ctx context.Context, cfg *Config) error
}

// Config holds test runner configuration.
type Config struct {
	BaseURL string
	Env     string
	Timeout time.Duration
	// ReceiverHost is the host name the service under test uses to reach
	// webhook receivers started by the runner.
	ReceiverHost string
}

// Result is the outcome of one test.
type Result struct {
	Test     *Test
	Passed   bool
	Duration time.Duration
	Error    error
}

// tests stays sorted by name.
var tests []*Test

// Register adds t to the registry. Test files call it from init.
func Register(t *Test) {
	i, found := slices.BinarySearchFunc(tests, t.Name, func(e *Test, name string) int {
		return strings.Compare(e.Name, name)
	})
	if found {
		panic(fmt.Sprintf("test %q already registered", t.Name))
	}
	tests = slices.Insert(tests, i, t)
}

// Select returns the registered tests whose names match pattern (path.Match
// syntax). An empty pattern selects every test.
func Select(pattern string) ([]*Test, error) {
	if pattern == "" {
		return slices.Clone(tests), nil
	}

	var selected []*Test
	for _, t := range tests {
		ok, err := path.Match(pattern, t.Name)
		if err != nil {
			return nil, fmt.Errorf("bad test pattern %q: %w", pattern, err)
		}
		if ok {
			selected = append(selected, t)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no test matches %q", pattern)
	}
	return selected, nil
}

// ListTests prints the registry to w.
func ListTests(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TEST\tDESCRIPTION")
	for _, t := range tests {
		fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.Description)
	}
	tw.Flush()
}

// Run executes selected in order, each under cfg.Timeout, printing a line
// per test. It stops early if ctx is cancelled.
func Run(ctx context.Context, selected []*Test, cfg *Config) []*Result {
	results := make([]*Result, 0, len(selected))
	for _, t := range selected {
		if ctx.Err() != nil {
			break
		}
		r := runOne(ctx, t, cfg)
		printResult(r)
		results = append(results, r)
	}
	return results
}

func runOne(ctx context.Context, t *Test, cfg *Config) *Result {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := t.Run(ctx, cfg)
	return &Result{Test: t, Passed: err == nil, Duration: time.Since(start), Error: err}
}

func printResult(r *Result) {
	status := "PASS"
	if !r.Passed {
		status = "FAIL"
	}
	fmt.Printf("%s  %-20s  %v\n", status, r.Test.Name, r.Duration.Round(time.Millisecond))
	if r.Error != nil {
		fmt.Fprintf(os.Stderr, "      %v\n", r.Error)
	}
}

// PrintSummary prints totals and reports whether every test passed.
func PrintSummary(results []*Result) bool {
	var failed []*Result
	var total time.Duration
	for _, r := range results {
		total += r.Duration
		if !r.Passed {
			failed = append(failed, r)
		}
	}

	fmt.Printf("\n%d run, %d passed, %d failed in %v\n",
		len(results), len(results)-len(failed), len(failed), total.Round(time.Millisecond))
	for _, r := range failed {
		fmt.Printf("  - %s: %v\n", r.Test.Name, r.Error)
	}
	return len(failed) == 0
}

// LoadConfig creates a Config from environment variables.
func LoadConfig(env string) *Config {
	cfg := &Config{
		Env:          env,
		Timeout:      30 * time.Second,
		BaseURL:      os.Getenv("E2E_BASE_URL"),
		ReceiverHost: os.Getenv("E2E_RECEIVER_HOST"),
	}

	if cfg.BaseURL == "" {
		switch env {
		case "local":
			cfg.BaseURL = "http://localhost:8080"
		case "dev":
			cfg.BaseURL = "https://catalog-dev.cornjacket.com"
		case "staging":
			cfg.BaseURL = "https://catalog-staging.cornjacket.com"
		}
	}
	if cfg.ReceiverHost == "" {
		cfg.ReceiverHost = "localhost"
	}

	return cfg
}
