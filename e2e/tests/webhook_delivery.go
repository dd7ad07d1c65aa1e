package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cornjacket/catalog-ingest/e2e/client"
	"github.com/cornjacket/catalog-ingest/e2e/runner"
)

func init() {
	runner.Register(&runner.Test{
		Name:        "webhook-delivery",
		Description: "Register a webhook, create a product, verify delivery and log",
		Run:         runWebhookDeliveryTest,
	})
}

func runWebhookDeliveryTest(ctx context.Context, cfg *runner.Config) error {
	c := &client.Config{BaseURL: cfg.BaseURL}

	// 1. Start a receiver the service can reach
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	received := make(chan map[string]any, 8)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if json.Unmarshal(body, &payload) == nil {
			received <- payload
		}
		w.WriteHeader(http.StatusOK)
	})}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("http://%s:%d/hook", cfg.ReceiverHost, port)

	// 2. Subscribe to product.created
	hook, err := client.CreateWebhook(ctx, c, url, "product.created")
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	defer func() { _ = client.DeleteWebhook(context.Background(), c, hook.ID) }()

	// 3. Trigger the event
	sku := client.UniqueID("HOOK")
	product, err := client.CreateProduct(ctx, c, sku, "Hooked")
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	defer func() { _ = client.DeleteProduct(context.Background(), c, product.ID) }()

	// 4. Wait for the delivery carrying our product
	timeout := time.After(10 * time.Second)
	for found := false; !found; {
		select {
		case payload := <-received:
			found = payload["sku"] == product.SKU
		case <-timeout:
			return fmt.Errorf("no delivery for %s within timeout", sku)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// 5. The attempt is logged with the receiver's status code
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		logs, err := client.WebhookLogs(ctx, c, hook.ID)
		if err != nil {
			return fmt.Errorf("failed to get webhook logs: %w", err)
		}
		for _, l := range logs {
			if l.ResponseCode != nil && *l.ResponseCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("delivery log not recorded for webhook %d", hook.ID)
}
