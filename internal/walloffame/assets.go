package walloffame

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"deligma/pkg/logger"
)

// AssetRemover deletes a stored image by filename.
type AssetRemover interface {
	Remove(ctx context.Context, filename string) error
}

// AssetCoordinator removes image files orphaned by successful writes. It
// never touches the database and never returns an error: the row is the
// source of truth, a leftover file is only a leak.
type AssetCoordinator struct {
	remover AssetRemover
	logg    *logger.Logger
	cleanup metric.Int64Counter
}

func NewAssetCoordinator(remover AssetRemover, logg *logger.Logger) *AssetCoordinator {
	if logg == nil {
		logg = logger.Nop()
	}
	counter, err := otel.Meter("deligma/walloffame").Int64Counter(
		"walloffame_asset_cleanup_total",
		metric.WithDescription("Image files removed after member writes, by outcome"),
	)
	if err != nil {
		logg.Warn(context.Background(), "asset.cleanup_counter_unavailable", err)
	}
	return &AssetCoordinator{remover: remover, logg: logg, cleanup: counter}
}

// AfterUpdate removes the previous image once an update that uploaded a
// different file has been committed.
func (c *AssetCoordinator) AfterUpdate(ctx context.Context, previous *Member, uploaded string) {
	if uploaded == "" {
		return
	}
	old := previous.ImageName()
	if old == "" || old == uploaded {
		return
	}
	c.remove(ctx, old, "replaced")
}

// AfterDelete removes the image of a member whose row is gone.
func (c *AssetCoordinator) AfterDelete(ctx context.Context, snapshot *Member) {
	if name := snapshot.ImageName(); name != "" {
		c.remove(ctx, name, "deleted")
	}
}

// Discard removes a freshly uploaded file whose write failed.
func (c *AssetCoordinator) Discard(ctx context.Context, uploaded string) {
	if uploaded != "" {
		c.remove(ctx, uploaded, "discarded")
	}
}

func (c *AssetCoordinator) remove(ctx context.Context, filename, reason string) {
	ctx = c.logg.WithFields(ctx, map[string]any{"asset": filename, "reason": reason})

	outcome := "removed"
	if err := c.remover.Remove(ctx, filename); err != nil {
		outcome = "failed"
		c.logg.Warn(ctx, "asset.cleanup_failed", err)
	} else {
		c.logg.Debug(ctx, "asset.cleanup")
	}

	if c.cleanup != nil {
		c.cleanup.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", reason),
			attribute.String("outcome", outcome),
		))
	}
}
