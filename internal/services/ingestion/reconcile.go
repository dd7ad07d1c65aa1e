package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/catalog"
	"github.com/cornjacket/catalog-ingest/internal/shared/domain/clock"
)

// ReconcileResult counts what one batch did to the catalog.
type ReconcileResult struct {
	Inserted  int
	Updated   int
	Conflicts int // inserts dropped because a concurrent writer created the key first
}

// Reconciler applies a batch of canonical records as inserts or in-place
// updates inside a single transaction.
type Reconciler struct {
	store  CatalogStore
	logger *slog.Logger
}

// NewReconciler creates a Reconciler over store.
func NewReconciler(store CatalogStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger.With("component", "reconciler"),
	}
}

// Reconcile partitions records by existence and applies both sets atomically.
// Duplicate keys collapse to their last occurrence.
func (r *Reconciler) Reconcile(ctx context.Context, records []catalog.Record) (ReconcileResult, error) {
	batch := dedupe(records)
	if len(batch) == 0 {
		return ReconcileResult{}, nil
	}

	var res ReconcileResult
	err := r.store.InBatch(ctx, func(tx CatalogTx) error {
		res = ReconcileResult{}

		skus := make([]string, len(batch))
		for i, rec := range batch {
			skus[i] = rec.SKU
		}

		existing, err := tx.ExistingSKUs(ctx, skus)
		if err != nil {
			return fmt.Errorf("failed to look up existing skus: %w", err)
		}

		now := clock.Now()
		var inserts []catalog.Record
		var updates []catalog.ItemUpdate
		for _, rec := range batch {
			if _, ok := existing[rec.SKU]; ok {
				updates = append(updates, catalog.UpdateFrom(rec, now))
			} else {
				inserts = append(inserts, rec)
			}
		}

		if len(inserts) > 0 {
			inserted, err := tx.InsertItems(ctx, inserts, now)
			if err != nil {
				return fmt.Errorf("failed to insert items: %w", err)
			}
			res.Inserted = int(inserted)
			res.Conflicts = len(inserts) - int(inserted)
		}

		if len(updates) > 0 {
			updated, err := tx.UpdateItems(ctx, updates)
			if err != nil {
				return fmt.Errorf("failed to update items: %w", err)
			}
			res.Updated = int(updated)
		}

		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	if res.Conflicts > 0 {
		r.logger.Warn("insert conflicts ignored", "conflicts", res.Conflicts, "batch_size", len(batch))
	}

	return res, nil
}

// dedupe keeps the last record per key, in first-occurrence order.
func dedupe(records []catalog.Record) []catalog.Record {
	index := make(map[string]int, len(records))
	out := make([]catalog.Record, 0, len(records))
	for _, rec := range records {
		rec.SKU = catalog.NormalizeSKU(rec.SKU)
		if rec.SKU == "" {
			continue
		}
		if i, ok := index[rec.SKU]; ok {
			out[i] = rec
			continue
		}
		index[rec.SKU] = len(out)
		out = append(out, rec)
	}
	return out
}
