package payments

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/campusworks/campusworks-backend/pkg/errors"
)

// EventKind is the closed set of gateway notifications the engine reacts to.
// Anything else maps to EventKindUnhandled and is acknowledged without state
// change so the gateway stops retrying.
type EventKind int

const (
	EventKindUnhandled EventKind = iota
	EventKindIntentSucceeded
	EventKindIntentProcessing
	EventKindIntentFailed
	EventKindChargeRefunded
	EventKindAccountUpdated
)

// String implements fmt.Stringer.
func (k EventKind) String() string {
	switch k {
	case EventKindIntentSucceeded:
		return "payment_intent.succeeded"
	case EventKindIntentProcessing:
		return "payment_intent.processing"
	case EventKindIntentFailed:
		return "payment_intent.payment_failed"
	case EventKindChargeRefunded:
		return "charge.refunded"
	case EventKindAccountUpdated:
		return "account.updated"
	}
	return "unhandled"
}

var eventKindByType = map[stripe.EventType]EventKind{
	stripe.EventTypePaymentIntentSucceeded:     EventKindIntentSucceeded,
	stripe.EventTypePaymentIntentProcessing:    EventKindIntentProcessing,
	stripe.EventTypePaymentIntentPaymentFailed: EventKindIntentFailed,
	stripe.EventTypeChargeRefunded:             EventKindChargeRefunded,
	stripe.EventTypeAccountUpdated:             EventKindAccountUpdated,
}

// AccountSnapshot carries the readiness flags extracted from account.updated.
type AccountSnapshot struct {
	AccountID        string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// Event is the gateway-agnostic view of one webhook delivery. Only the fields
// the lifecycle engine consumes survive the boundary; raw Stripe payload
// shapes do not leak past this package.
type Event struct {
	ID             string
	Kind           EventKind
	IntentID       string
	FailureMessage string
	Account        *AccountSnapshot
}

// VerifyAndParse checks the event signature against the signing secret and
// maps the payload into an Event. Signature or payload failures return a
// validation error and must cause no state change upstream.
func VerifyAndParse(payload []byte, sigHeader, secret string) (*Event, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, sigHeader, secret)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook signature")
	}
	return mapEvent(&stripeEvent)
}

func mapEvent(stripeEvent *stripe.Event) (*Event, error) {
	if stripeEvent == nil || stripeEvent.Data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event data required")
	}

	event := &Event{
		ID:   stripeEvent.ID,
		Kind: eventKindByType[stripeEvent.Type],
	}

	switch event.Kind {
	case EventKindIntentSucceeded, EventKindIntentProcessing, EventKindIntentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(stripeEvent.Data.Raw, &intent); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		if intent.ID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
		}
		event.IntentID = intent.ID
		if intent.LastPaymentError != nil {
			event.FailureMessage = intent.LastPaymentError.Msg
		}
	case EventKindChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(stripeEvent.Data.Raw, &charge); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
		}
		if charge.PaymentIntent != nil {
			event.IntentID = charge.PaymentIntent.ID
		}
	case EventKindAccountUpdated:
		var account stripe.Account
		if err := json.Unmarshal(stripeEvent.Data.Raw, &account); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode account event")
		}
		if account.ID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id missing")
		}
		event.Account = &AccountSnapshot{
			AccountID:        account.ID,
			ChargesEnabled:   account.ChargesEnabled,
			PayoutsEnabled:   account.PayoutsEnabled,
			DetailsSubmitted: account.DetailsSubmitted,
		}
	}

	return event, nil
}
