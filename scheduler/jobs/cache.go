package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type CardReferenceRevalidator interface {
	RevalidateCache(ctx context.Context) error
}

// RevalidateCards downloads the reference card database again and refreshes its cache.
func RevalidateCards(ctx context.Context, cards CardReferenceRevalidator, logger *slog.Logger) error {
	logger.Info("Starting card reference revalidation")
	start := time.Now()

	if err := cards.RevalidateCache(ctx); err != nil {
		logger.Error("Error revalidating the card reference", "error", err)
		return fmt.Errorf("card reference revalidation failed: %w", err)
	}

	logger.Info("Card reference revalidation completed successfully", "elapsed", time.Since(start).String())
	return nil
}
