package tests

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cornjacket/catalog-ingest/e2e/client"
	"github.com/cornjacket/catalog-ingest/e2e/runner"
)

func init() {
	runner.Register(&runner.Test{
		Name:        "upload-flow",
		Description: "Upload a CSV, poll to completion, verify the imported products",
		Run:         runUploadFlowTest,
	})
}

func runUploadFlowTest(ctx context.Context, cfg *runner.Config) error {
	c := &client.Config{BaseURL: cfg.BaseURL}

	// Unique SKU prefix so reruns don't collide with earlier imports
	prefix := client.UniqueID("E2E")

	var csv bytes.Buffer
	csv.WriteString("SKU,Name,Description,Price\n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&csv, "%s-%d,Widget %d,imported by e2e,%d.50\n", prefix, i, i, i)
	}
	// Duplicate SKU in a different case: the later row wins
	fmt.Fprintf(&csv, "%s-1,Widget One Renamed,,9.99\n", strings.ToLower(prefix))
	// Missing key is skipped
	csv.WriteString(",Nameless,,1.00\n")

	upload, err := client.UploadCSV(ctx, c, "e2e.csv", csv.Bytes())
	if err != nil {
		return fmt.Errorf("failed to upload: %w", err)
	}
	if upload.Status != "started" {
		return fmt.Errorf("expected status started, got %q", upload.Status)
	}

	progress, err := client.WaitForJob(ctx, c, upload.JobID, 20*time.Second)
	if err != nil {
		return fmt.Errorf("job did not finish: %w", err)
	}
	if progress.Status != "completed" {
		msg := ""
		if progress.ErrorMessage != nil {
			msg = *progress.ErrorMessage
		}
		return fmt.Errorf("expected job completed, got %s (%s)", progress.Status, msg)
	}
	if progress.Progress != 100 {
		return fmt.Errorf("expected progress 100, got %d", progress.Progress)
	}
	if progress.SkippedRows != 1 {
		return fmt.Errorf("expected 1 skipped row, got %d", progress.SkippedRows)
	}

	page, err := client.SearchProducts(ctx, c, prefix)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}
	if page.TotalCount != 3 {
		return fmt.Errorf("expected 3 imported products, got %d", page.TotalCount)
	}

	for _, p := range page.Products {
		if p.SKU == prefix+"-1" && p.Name != "Widget One Renamed" {
			return fmt.Errorf("expected last duplicate row to win, got name %q", p.Name)
		}
		if !p.IsActive {
			return fmt.Errorf("expected imported product %s to be active", p.SKU)
		}
	}

	return nil
}
