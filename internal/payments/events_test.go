package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/campusworks/campusworks-backend/pkg/errors"
)

const testSigningSecret = "whsec_test"

func TestVerifyAndParse_IntentSucceeded(t *testing.T) {
	payload, header := signedIntentEvent(t, stripe.EventTypePaymentIntentSucceeded, "pi_123", "")

	event, err := VerifyAndParse(payload, header, testSigningSecret)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.Kind != EventKindIntentSucceeded {
		t.Fatalf("expected succeeded kind, got %s", event.Kind)
	}
	if event.IntentID != "pi_123" {
		t.Fatalf("expected intent id pi_123, got %s", event.IntentID)
	}
}

func TestVerifyAndParse_IntentFailedCarriesMessage(t *testing.T) {
	payload, header := signedIntentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, "pi_456", "card declined")

	event, err := VerifyAndParse(payload, header, testSigningSecret)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.Kind != EventKindIntentFailed {
		t.Fatalf("expected failed kind, got %s", event.Kind)
	}
	if event.FailureMessage != "card declined" {
		t.Fatalf("expected failure message, got %q", event.FailureMessage)
	}
}

func TestVerifyAndParse_AccountUpdated(t *testing.T) {
	account := &stripe.Account{
		ID:               "acct_1",
		ChargesEnabled:   true,
		PayoutsEnabled:   true,
		DetailsSubmitted: true,
	}
	payload, header := signedEvent(t, stripe.EventTypeAccountUpdated, account)

	event, err := VerifyAndParse(payload, header, testSigningSecret)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.Kind != EventKindAccountUpdated {
		t.Fatalf("expected account kind, got %s", event.Kind)
	}
	if event.Account == nil || event.Account.AccountID != "acct_1" {
		t.Fatalf("expected account snapshot, got %+v", event.Account)
	}
	if !event.Account.ChargesEnabled || !event.Account.PayoutsEnabled || !event.Account.DetailsSubmitted {
		t.Fatalf("expected all readiness flags set, got %+v", event.Account)
	}
}

func TestVerifyAndParse_UnhandledTypeMapsToUnhandled(t *testing.T) {
	payload, header := signedEvent(t, stripe.EventTypeCustomerCreated, &stripe.Customer{ID: "cus_1"})

	event, err := VerifyAndParse(payload, header, testSigningSecret)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.Kind != EventKindUnhandled {
		t.Fatalf("expected unhandled kind, got %s", event.Kind)
	}
}

func TestVerifyAndParse_InvalidSignature(t *testing.T) {
	payload, _ := signedIntentEvent(t, stripe.EventTypePaymentIntentSucceeded, "pi_789", "")

	_, err := VerifyAndParse(payload, "t=1,v1=deadbeef", testSigningSecret)
	if err == nil {
		t.Fatalf("expected signature error")
	}
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation code, got %v", err)
	}
}

func TestVerifyAndParse_IntentMissingID(t *testing.T) {
	payload, header := signedEvent(t, stripe.EventTypePaymentIntentSucceeded, &stripe.PaymentIntent{})

	_, err := VerifyAndParse(payload, header, testSigningSecret)
	if err == nil {
		t.Fatalf("expected error for missing intent id")
	}
}

func signedIntentEvent(t *testing.T, eventType stripe.EventType, intentID, failureMsg string) ([]byte, string) {
	t.Helper()
	intent := &stripe.PaymentIntent{ID: intentID}
	if failureMsg != "" {
		intent.LastPaymentError = &stripe.Error{Msg: failureMsg}
	}
	return signedEvent(t, eventType, intent)
}

func signedEvent(t *testing.T, eventType stripe.EventType, object any) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal object: %v", err)
	}
	event := &stripe.Event{
		ID:         "evt_test",
		Type:       eventType,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data: &stripe.EventData{
			Raw: raw,
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload, buildSignatureHeader(payload, testSigningSecret, time.Now().Unix())
}

func buildSignatureHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
