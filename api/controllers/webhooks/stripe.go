package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/campusworks/campusworks-backend/api/responses"
	internalorders "github.com/campusworks/campusworks-backend/internal/orders"
	"github.com/campusworks/campusworks-backend/internal/payments"
	pkgerrors "github.com/campusworks/campusworks-backend/pkg/errors"
	"github.com/campusworks/campusworks-backend/pkg/logger"
	"github.com/campusworks/campusworks-backend/pkg/metrics"
)

// Reconciler folds verified gateway events into local order state.
type Reconciler interface {
	Reconcile(ctx context.Context, event *payments.Event) (internalorders.ReconcileOutcome, error)
}

type stripeWebhookGuard interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook receives payment lifecycle events. A 200 means the event was
// durably applied (or safely skipped); anything else tells Stripe to retry.
func StripeWebhook(rec Reconciler, client stripeClient, guard stripeWebhookGuard, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if rec == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := payments.VerifyAndParse(payload, sigHeader, client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		alreadyProcessed, err := guard.IsProcessed(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			m.IncOutcome(event.Kind.String(), string(internalorders.OutcomeDuplicate))
			responses.WriteSuccess(w, map[string]string{"outcome": string(internalorders.OutcomeDuplicate)})
			return
		}

		start := time.Now()
		outcome, err := rec.Reconcile(ctx, event)
		m.ObserveDuration(event.Kind.String(), time.Since(start))
		if err != nil {
			// Nothing was marked, so the gateway retry reaches Reconcile again.
			responses.WriteError(ctx, logg, w, err)
			return
		}
		m.IncOutcome(event.Kind.String(), string(outcome))

		// Mark only after the apply is durable. If the process dies between
		// Reconcile and here, the retry re-applies the event and the engine
		// reports it as a duplicate; if the mark write itself fails, the same
		// path saves us, so the failure is only logged.
		if markErr := guard.MarkProcessed(ctx, event.ID); markErr != nil && logg != nil {
			logg.Error(ctx, "recording webhook idempotency mark", markErr)
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("stripe event %s %s", event.ID, outcome))
		}
		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
