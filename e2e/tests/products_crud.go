package tests

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cornjacket/catalog-ingest/e2e/client"
	"github.com/cornjacket/catalog-ingest/e2e/runner"
)

func init() {
	runner.Register(&runner.Test{
		Name:        "products-crud",
		Description: "Create, conflict, update and delete a product through the API",
		Run:         runProductsCRUDTest,
	})
}

func runProductsCRUDTest(ctx context.Context, cfg *runner.Config) error {
	c := &client.Config{BaseURL: cfg.BaseURL}
	sku := client.UniqueID("CRUD")

	created, err := client.CreateProduct(ctx, c, sku, "Gadget")
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	if created.ID == 0 {
		return fmt.Errorf("expected assigned id")
	}

	// SKUs are case-insensitive
	_, err = client.CreateProduct(ctx, c, "  "+sku+"  ", "Gadget Again")
	var se *client.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusConflict {
		return fmt.Errorf("expected 409 for duplicate sku, got %v", err)
	}

	updated, err := client.UpdateProduct(ctx, c, created.ID, map[string]any{
		"name":      "Gadget Pro",
		"is_active": false,
	})
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if updated.Name != "Gadget Pro" || updated.IsActive {
		return fmt.Errorf("update not applied: %+v", updated)
	}

	got, err := client.GetProduct(ctx, c, created.ID)
	if err != nil {
		return fmt.Errorf("failed to get product: %w", err)
	}
	if got == nil || got.Name != "Gadget Pro" {
		return fmt.Errorf("expected updated product, got %+v", got)
	}

	if err := client.DeleteProduct(ctx, c, created.ID); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	gone, err := client.GetProduct(ctx, c, created.ID)
	if err != nil {
		return fmt.Errorf("failed to get deleted product: %w", err)
	}
	if gone != nil {
		return fmt.Errorf("expected product to be gone after delete")
	}

	return nil
}
