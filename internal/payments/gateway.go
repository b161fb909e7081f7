package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	pkgerrors "github.com/campusworks/campusworks-backend/pkg/errors"
	pkgstripe "github.com/campusworks/campusworks-backend/pkg/stripe"
)

// IntentRequest describes one payment-intent creation call against the gateway.
type IntentRequest struct {
	Amount               decimal.Decimal
	Currency             string
	OrderID              uuid.UUID
	Description          string
	DestinationAccountID string
	PlatformFee          decimal.Decimal
}

// IntentResult carries the identifiers the engine persists and the secret the
// frontend needs to confirm the payment.
type IntentResult struct {
	IntentID     string
	ClientSecret string
}

// IntentCreator is the outbound gateway contract used by the lifecycle engine.
type IntentCreator interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error)
}

// StripeGateway opens payment intents with a destination-account split.
type StripeGateway struct{}

// NewStripeGateway wraps the initialized Stripe client. The client carries the
// API key globally, so only its presence is required here.
func NewStripeGateway(client *pkgstripe.Client) (*StripeGateway, error) {
	if client == nil {
		return nil, errors.New("stripe client required")
	}
	return &StripeGateway{}, nil
}

// CreateIntent opens one intent sized at the order amount, declaring the
// platform fee and the provider's connected account as transfer destination.
// Amounts convert to minor units here and nowhere else.
func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	if req.DestinationAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destination account id required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(MinorUnits(req.Amount)),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
		ApplicationFeeAmount: stripe.Int64(MinorUnits(req.PlatformFee)),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(req.DestinationAccountID),
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("platform_fee", req.PlatformFee.StringFixed(2))

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, gatewayMessage(err))
	}

	return &IntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

func gatewayMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return fmt.Sprintf("payment intent creation failed: %v", err)
}
