package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStripe serves the few Stripe endpoints the service calls.
type fakeStripe struct {
	customers     map[string]string // email -> customer ID
	subscriptions map[string]string // customer ID -> JSON subscription object
	failLists     bool
	updates       []string
}

func (f *fakeStripe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if f.failLists && r.Method == http.MethodGet {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"boom"}}`))
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v1/customers":
		var data []string
		if id, ok := f.customers[r.URL.Query().Get("email")]; ok {
			data = append(data, `{"id":"`+id+`","object":"customer"}`)
		}
		writeList(w, "/v1/customers", data)

	case r.Method == http.MethodPost && r.URL.Path == "/v1/customers":
		_ = r.ParseForm()
		_, _ = w.Write([]byte(`{"id":"cus_new","object":"customer","email":"` + r.PostForm.Get("email") + `"}`))

	case r.Method == http.MethodGet && r.URL.Path == "/v1/subscriptions":
		var data []string
		if r.URL.Query().Get("status") == "active" {
			if sub, ok := f.subscriptions[r.URL.Query().Get("customer")]; ok {
				data = append(data, sub)
			}
		}
		writeList(w, "/v1/subscriptions", data)

	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/v1/subscriptions/"):
		_ = r.ParseForm()
		id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
		f.updates = append(f.updates, id+":"+r.PostForm.Get("cancel_at_period_end"))
		_, _ = w.Write([]byte(`{"id":"` + id + `","object":"subscription"}`))

	case r.Method == http.MethodPost && r.URL.Path == "/v1/checkout/sessions":
		_, _ = w.Write([]byte(`{"id":"cs_1","object":"checkout.session","url":"https://checkout.test/cs_1"}`))

	case r.Method == http.MethodPost && r.URL.Path == "/v1/billing_portal/sessions":
		_, _ = w.Write([]byte(`{"id":"bps_1","object":"billing_portal.session","url":"https://portal.test/bps_1"}`))

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"unknown route"}}`))
	}
}

func writeList(w http.ResponseWriter, url string, data []string) {
	_, _ = w.Write([]byte(`{"object":"list","url":"` + url + `","has_more":false,"data":[` + strings.Join(data, ",") + `]}`))
}

func newTestService(t *testing.T, fake *fakeStripe) Service {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewStripeService(Options{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		APIURL:        srv.URL,
		HTTPClient:    srv.Client(),
	})
}

const activeSub = `{
	"id": "sub_1",
	"object": "subscription",
	"status": "active",
	"cancel_at_period_end": true,
	"current_period_end": 1767225600,
	"items": {"object": "list", "data": [{"id": "si_1", "object": "subscription_item", "price": {"id": "price_pro_m", "object": "price"}}]}
}`

func TestSubscriptionStatus(t *testing.T) {
	fake := &fakeStripe{
		customers:     map[string]string{"paid@example.com": "cus_paid", "lapsed@example.com": "cus_lapsed"},
		subscriptions: map[string]string{"cus_paid": activeSub},
	}
	svc := newTestService(t, fake)
	ctx := context.Background()

	t.Run("active subscription", func(t *testing.T) {
		status, err := svc.SubscriptionStatus(ctx, "paid@example.com")
		require.NoError(t, err)
		assert.True(t, status.Subscribed)
		assert.Equal(t, "price_pro_m", status.PriceID)
		assert.True(t, status.Canceled)
		assert.Equal(t, "active", status.Status)
		assert.Equal(t, time.Unix(1767225600, 0).UTC(), status.CurrentPeriodEnd)
	})

	t.Run("customer without subscription", func(t *testing.T) {
		status, err := svc.SubscriptionStatus(ctx, "lapsed@example.com")
		require.NoError(t, err)
		assert.False(t, status.Subscribed)
		assert.Empty(t, status.PriceID)
	})

	t.Run("unknown customer", func(t *testing.T) {
		status, err := svc.SubscriptionStatus(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, status.Subscribed)
	})
}

func TestSubscriptionStatus_APIError(t *testing.T) {
	svc := newTestService(t, &fakeStripe{failLists: true})

	_, err := svc.SubscriptionStatus(context.Background(), "paid@example.com")
	assert.Error(t, err)
}

func TestActiveSubscription_None(t *testing.T) {
	svc := newTestService(t, &fakeStripe{})

	_, err := svc.ActiveSubscription(context.Background(), "cus_none")
	assert.ErrorIs(t, err, ErrNoSubscription)
}

func TestFindOrCreateCustomer(t *testing.T) {
	fake := &fakeStripe{customers: map[string]string{"known@example.com": "cus_known"}}
	svc := newTestService(t, fake)
	ctx := context.Background()

	id, err := svc.FindOrCreateCustomer(ctx, "known@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "cus_known", id)

	id, err = svc.FindOrCreateCustomer(ctx, "new@example.com", "New Person")
	require.NoError(t, err)
	assert.Equal(t, "cus_new", id)
}

func TestCancelAndReactivate(t *testing.T) {
	fake := &fakeStripe{}
	svc := newTestService(t, fake)
	ctx := context.Background()

	require.NoError(t, svc.CancelSubscription(ctx, "sub_1"))
	require.NoError(t, svc.ReactivateSubscription(ctx, "sub_1"))
	assert.Equal(t, []string{"sub_1:true", "sub_1:false"}, fake.updates)
}

func TestSessions(t *testing.T) {
	svc := newTestService(t, &fakeStripe{})
	ctx := context.Background()

	url, err := svc.CreateCheckoutSession(ctx, "cus_1", "price_pro_m", "https://app.test/ok", "https://app.test/cancel")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.test/cs_1", url)

	url, err = svc.CreatePortalSession(ctx, "cus_1", "https://app.test/settings")
	require.NoError(t, err)
	assert.Equal(t, "https://portal.test/bps_1", url)
}

func TestVerifyWebhookSignature(t *testing.T) {
	svc := newTestService(t, &fakeStripe{})

	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        "customer.subscription.updated",
		"api_version": "2020-08-27",
		"data":        map[string]any{"object": map[string]any{"id": "sub_1", "object": "subscription"}},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	event, err := svc.VerifyWebhookSignature(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "customer.subscription.updated", string(event.Type))

	_, err = svc.VerifyWebhookSignature(payload, "t=1,v1=bad")
	assert.Error(t, err)
}
