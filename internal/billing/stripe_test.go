package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload builds a Stripe-Signature header value for payload.
func signPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(typ, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":"2020-08-27","type":%q,"data":{"object":%s}}`, typ, object))
}

func TestParseWebhook(t *testing.T) {
	p := NewStripeProvider("sk_test_unused", testWebhookSecret)

	tests := []struct {
		name string
		typ  string
		obj  string
		want Event
	}{
		{
			name: "checkout session",
			typ:  EventCheckoutCompleted,
			obj:  `{"id":"cs_1","object":"checkout.session","mode":"subscription","customer":"cus_1","subscription":"sub_1","metadata":{"userId":"65f000000000000000000001"}}`,
			want: Event{
				ID: "evt_1", Type: EventCheckoutCompleted, Mode: "subscription",
				UserID: "65f000000000000000000001", CustomerID: "cus_1", SubscriptionID: "sub_1",
			},
		},
		{
			name: "subscription updated",
			typ:  EventSubscriptionUpdated,
			obj:  `{"id":"sub_1","object":"subscription","customer":"cus_1","status":"past_due","trial_end":0}`,
			want: Event{ID: "evt_1", Type: EventSubscriptionUpdated, CustomerID: "cus_1", SubscriptionID: "sub_1", Status: "past_due"},
		},
		{
			name: "invoice",
			typ:  EventInvoicePaymentFailed,
			obj:  `{"id":"in_1","object":"invoice","customer":"cus_1","subscription":"sub_1"}`,
			want: Event{ID: "evt_1", Type: EventInvoicePaymentFailed, CustomerID: "cus_1", SubscriptionID: "sub_1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := eventPayload(tt.typ, tt.obj)
			ev, err := p.ParseWebhook(payload, signPayload(payload, testWebhookSecret, time.Now()))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestParseWebhook_TrialEnd(t *testing.T) {
	p := NewStripeProvider("sk_test_unused", testWebhookSecret)
	payload := eventPayload(EventSubscriptionCreated,
		`{"id":"sub_1","object":"subscription","customer":"cus_1","status":"trialing","trial_end":1751328000}`)

	ev, err := p.ParseWebhook(payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	require.NotNil(t, ev.TrialEnd)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), *ev.TrialEnd)
}

func TestParseWebhook_RejectsBadSignatures(t *testing.T) {
	p := NewStripeProvider("sk_test_unused", testWebhookSecret)
	payload := eventPayload(EventSubscriptionDeleted, `{"id":"sub_1","object":"subscription","customer":"cus_1"}`)

	tests := []struct {
		name      string
		signature string
	}{
		{"missing", ""},
		{"wrong secret", signPayload(payload, "whsec_other", time.Now())},
		{"stale timestamp", signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))},
		{"garbage", "t=abc,v1=zzz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseWebhook(payload, tt.signature)
			assert.Error(t, err)
		})
	}

	tampered := append([]byte(nil), payload...)
	sig := signPayload(payload, testWebhookSecret, time.Now())
	tampered[len(tampered)-3] = ' '
	_, err := p.ParseWebhook(tampered, sig)
	assert.Error(t, err)
}
