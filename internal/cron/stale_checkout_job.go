package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/campusworks/campusworks-backend/pkg/db/models"
	"github.com/campusworks/campusworks-backend/pkg/logger"
)

const staleCheckoutBatchSize = 200

// staleCheckoutStore exposes the order operations the sweeper needs.
type staleCheckoutStore interface {
	ListStaleCheckouts(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	ExpireStaleCheckout(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// StaleCheckoutJobParams configure the stale checkout sweeper.
type StaleCheckoutJobParams struct {
	Logger *logger.Logger
	Orders staleCheckoutStore
	TTL    time.Duration
}

// NewStaleCheckoutJob builds the cron job that expires checkouts that never
// reached a payment outcome.
func NewStaleCheckoutJob(params StaleCheckoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders store required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("checkout ttl must be positive")
	}
	return &staleCheckoutJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    params.TTL,
		now:    time.Now,
	}, nil
}

type staleCheckoutJob struct {
	logg   *logger.Logger
	orders staleCheckoutStore
	ttl    time.Duration
	now    func() time.Time
}

func (j *staleCheckoutJob) Name() string { return "stale-checkout" }

func (j *staleCheckoutJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	orders, err := j.orders.ListStaleCheckouts(ctx, cutoff, staleCheckoutBatchSize)
	if err != nil {
		return fmt.Errorf("query stale checkouts: %w", err)
	}

	var errs []error
	expired := 0
	for _, order := range orders {
		// Each order is expired independently so one failure does not
		// strand the rest of the batch.
		moved, expireErr := j.orders.ExpireStaleCheckout(ctx, order.ID)
		if expireErr != nil {
			errs = append(errs, fmt.Errorf("expire checkout %s: %w", order.ID, expireErr))
			continue
		}
		if moved {
			expired++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(orders),
		"expired":    expired,
		"failed":     len(errs),
	})
	j.logg.Info(logCtx, "stale checkout sweep complete")
	return multierr.Combine(errs...)
}
