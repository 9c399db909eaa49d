package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/reelscout/internal/billing"
	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/service"
)

func newBillingSubs() *fakeSubscriptions {
	return &fakeSubscriptions{
		tiers: domain.NewTierTable(domain.DefaultTiers(domain.PriceConfig{ProMonthlyPriceID: "price_pro"})),
		resolution: service.TierResolution{
			Tier:   proTier(),
			Status: domain.SubscriptionStatus{Subscribed: true, PriceID: "price_pro", Canceled: true},
		},
	}
}

func newBillingMux(b billing.Service, users *fakeUsers, subs *fakeSubscriptions) *http.ServeMux {
	mux := http.NewServeMux()
	NewBillingHandler(b, users, subs, "https://app.example.com/", discardLogger()).RegisterRoutes(mux, passUser)
	return mux
}

func TestBillingHandler_NotConfigured(t *testing.T) {
	mux := newBillingMux(nil, &fakeUsers{}, newBillingSubs())

	for _, path := range []string{"/api/billing/checkout", "/api/billing/portal", "/api/billing/cancel", "/api/billing/reactivate"} {
		rec := serve(t, mux, testUser(), httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusNotImplemented, rec.Code, path)
	}
}

func TestBillingHandler_CheckoutUnknownPrice(t *testing.T) {
	fb := &fakeBilling{customerID: "cus_1", checkoutURL: "https://checkout.stripe.com/x"}
	mux := newBillingMux(fb, &fakeUsers{}, newBillingSubs())

	req := httptest.NewRequest(http.MethodPost, "/api/billing/checkout", strings.NewReader(`{"priceId":"price_unknown"}`))
	rec := serve(t, mux, testUser(), req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, domain.EINVALID, body.Error.Code)
	assert.Contains(t, body.Error.Fields, "priceId")
	assert.Empty(t, fb.gotPriceID)
}

func TestBillingHandler_CheckoutCreatesCustomer(t *testing.T) {
	fb := &fakeBilling{customerID: "cus_new", checkoutURL: "https://checkout.stripe.com/x"}
	users := &fakeUsers{}
	mux := newBillingMux(fb, users, newBillingSubs())

	req := httptest.NewRequest(http.MethodPost, "/api/billing/checkout", strings.NewReader(`{"priceId":"price_pro"}`))
	rec := serve(t, mux, testUser(), req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body RedirectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://checkout.stripe.com/x", body.URL)
	assert.Equal(t, "price_pro", fb.gotPriceID)
	assert.Equal(t, "cus_new", users.updatedCustomer)
}

func TestBillingHandler_CheckoutExistingCustomer(t *testing.T) {
	fb := &fakeBilling{customerID: "cus_other", checkoutURL: "https://checkout.stripe.com/y"}
	users := &fakeUsers{}
	mux := newBillingMux(fb, users, newBillingSubs())

	user := testUser()
	user.StripeCustomerID = "cus_1"
	req := httptest.NewRequest(http.MethodPost, "/api/billing/checkout", strings.NewReader(`{"priceId":"price_pro"}`))
	rec := serve(t, mux, user, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, users.updatedCustomer)
}

func TestBillingHandler_PortalWithoutCustomer(t *testing.T) {
	mux := newBillingMux(&fakeBilling{portalURL: "https://billing.stripe.com/p"}, &fakeUsers{}, newBillingSubs())

	rec := serve(t, mux, testUser(), httptest.NewRequest(http.MethodPost, "/api/billing/portal", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBillingHandler_Portal(t *testing.T) {
	fb := &fakeBilling{portalURL: "https://billing.stripe.com/p"}
	mux := newBillingMux(fb, &fakeUsers{}, newBillingSubs())

	user := testUser()
	user.StripeCustomerID = "cus_1"
	rec := serve(t, mux, user, httptest.NewRequest(http.MethodPost, "/api/billing/portal", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com/billing", fb.gotReturnURL)
}

func TestBillingHandler_CancelWithoutSubscription(t *testing.T) {
	fb := &fakeBilling{activeErr: billing.ErrNoSubscription}
	subs := newBillingSubs()
	mux := newBillingMux(fb, &fakeUsers{}, subs)

	user := testUser()
	user.StripeCustomerID = "cus_1"
	rec := serve(t, mux, user, httptest.NewRequest(http.MethodPost, "/api/billing/cancel", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, fb.canceled)
	assert.Empty(t, subs.invalidated)
}

func TestBillingHandler_CancelProviderError(t *testing.T) {
	fb := &fakeBilling{activeErr: errors.New("stripe: timeout")}
	mux := newBillingMux(fb, &fakeUsers{}, newBillingSubs())

	user := testUser()
	user.StripeCustomerID = "cus_1"
	rec := serve(t, mux, user, httptest.NewRequest(http.MethodPost, "/api/billing/cancel", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "timeout")
}

func TestBillingHandler_CancelAndReactivate(t *testing.T) {
	fb := &fakeBilling{active: &billing.Subscription{ID: "sub_1", CustomerID: "cus_1", PriceID: "price_pro"}}
	subs := newBillingSubs()
	mux := newBillingMux(fb, &fakeUsers{}, subs)

	user := testUser()
	user.StripeCustomerID = "cus_1"

	rec := serve(t, mux, user, httptest.NewRequest(http.MethodPost, "/api/billing/cancel", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sub_1", fb.canceled)

	var body SubscriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Status.Canceled)
	assert.Equal(t, domain.TierPro, body.Tier.ID)

	rec = serve(t, mux, user, httptest.NewRequest(http.MethodPost, "/api/billing/reactivate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sub_1", fb.reactivated)

	require.Len(t, subs.invalidated, 2)
	assert.Equal(t, user.ID, subs.invalidated[0])
}
