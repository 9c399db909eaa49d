package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"

	"github.com/DukeRupert/reelscout/internal/auth"
	"github.com/DukeRupert/reelscout/internal/billing"
	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/ratelimit"
	"github.com/DukeRupert/reelscout/internal/service"
)

// =============================================================================
// Fake services
// =============================================================================

type fakeSubscriptions struct {
	mu            sync.Mutex
	resolution    service.TierResolution
	tiers         *domain.TierTable
	invalidated   []uuid.UUID
	customers     []string
	invalidateErr error
}

func (f *fakeSubscriptions) Resolve(ctx context.Context, user *domain.User) service.TierResolution {
	return f.resolution
}

func (f *fakeSubscriptions) Status(ctx context.Context, user *domain.User) (domain.SubscriptionStatus, error) {
	return f.resolution.Status, nil
}

func (f *fakeSubscriptions) Invalidate(ctx context.Context, userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, userID)
}

func (f *fakeSubscriptions) InvalidateCustomer(ctx context.Context, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers = append(f.customers, customerID)
	return f.invalidateErr
}

func (f *fakeSubscriptions) Tiers() *domain.TierTable {
	if f.tiers == nil {
		return domain.NewTierTable(nil)
	}
	return f.tiers
}

type fakeUsage struct {
	summary    *service.UsageSummary
	summaryErr error
	click      domain.Usage
	clickErr   error
}

func (f *fakeUsage) Meter(ctx context.Context, userID uuid.UUID, tier domain.SubscriptionTier, d domain.QuotaDimension) (domain.Usage, error) {
	return domain.Usage{}, errors.New("not used")
}

func (f *fakeUsage) Check(ctx context.Context, userID uuid.UUID, tier domain.SubscriptionTier, d domain.QuotaDimension) (domain.Usage, error) {
	return domain.Usage{}, errors.New("not used")
}

func (f *fakeUsage) Record(ctx context.Context, userID uuid.UUID, d domain.QuotaDimension) error {
	return errors.New("not used")
}

func (f *fakeUsage) Summary(ctx context.Context, user *domain.User) (*service.UsageSummary, error) {
	return f.summary, f.summaryErr
}

func (f *fakeUsage) ConsumeClick(ctx context.Context, user *domain.User) (domain.Usage, error) {
	return f.click, f.clickErr
}

type fakeSearch struct {
	searchFn   func(ctx context.Context, user *domain.User, req service.SearchRequest) (*service.SearchResult, error)
	lockStatus ratelimit.Status
	lockErr    error
}

func (f *fakeSearch) Search(ctx context.Context, user *domain.User, req service.SearchRequest) (*service.SearchResult, error) {
	return f.searchFn(ctx, user, req)
}

func (f *fakeSearch) LockStatus(ctx context.Context, userID uuid.UUID) (ratelimit.Status, error) {
	return f.lockStatus, f.lockErr
}

func (f *fakeSearch) LockKey(userID uuid.UUID) string {
	return userID.String()
}

type fakeHistory struct {
	list       []domain.SearchHistory
	listLimit  int
	entry      *domain.SearchHistory
	results    *domain.SearchResults
	err        error
	deletedID  uuid.UUID
	deletedAll int64
}

func (f *fakeHistory) Save(ctx context.Context, userID uuid.UUID, query string, platform domain.Platform, posts []domain.Post) (*domain.SearchHistory, error) {
	return nil, errors.New("not used")
}

func (f *fakeHistory) List(ctx context.Context, userID uuid.UUID, limit int) ([]domain.SearchHistory, error) {
	f.listLimit = limit
	return f.list, f.err
}

func (f *fakeHistory) Get(ctx context.Context, userID, id uuid.UUID) (*domain.SearchHistory, error) {
	return f.entry, f.err
}

func (f *fakeHistory) Results(ctx context.Context, userID, id uuid.UUID) (*domain.SearchHistory, *domain.SearchResults, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.entry, f.results, nil
}

func (f *fakeHistory) Delete(ctx context.Context, userID, id uuid.UUID) error {
	f.deletedID = id
	return f.err
}

func (f *fakeHistory) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	return f.deletedAll, f.err
}

type fakeExports struct {
	gotQuery service.ResultsQuery
	result   *service.ExportResult
	err      error
}

func (f *fakeExports) Export(ctx context.Context, user *domain.User, historyID uuid.UUID, q service.ResultsQuery) (*service.ExportResult, error) {
	f.gotQuery = q
	return f.result, f.err
}

type fakePreferences struct {
	values map[string][]byte
	putErr error
}

func (f *fakePreferences) Get(ctx context.Context, userID uuid.UUID, name string) ([]byte, error) {
	v, ok := f.values[userID.String()+"/"+name]
	if !ok {
		return nil, domain.NotFound("preferences.get", "preference", name)
	}
	return v, nil
}

func (f *fakePreferences) Put(ctx context.Context, userID uuid.UUID, name string, value []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	if f.values == nil {
		f.values = make(map[string][]byte)
	}
	f.values[userID.String()+"/"+name] = value
	return nil
}

type fakeUsers struct {
	updatedCustomer string
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return nil, domain.NotFound("user.get", "user", id.String())
}

func (f *fakeUsers) UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error {
	f.updatedCustomer = stripeCustomerID
	return nil
}

// fakeBilling accepts webhooks signed "valid" and records subscription changes.
type fakeBilling struct {
	customerID   string
	checkoutURL  string
	portalURL    string
	active       *billing.Subscription
	activeErr    error
	canceled     string
	reactivated  string
	gotPriceID   string
	gotReturnURL string
}

func (f *fakeBilling) SubscriptionStatus(ctx context.Context, email string) (domain.SubscriptionStatus, error) {
	return domain.SubscriptionStatus{}, nil
}

func (f *fakeBilling) ActiveSubscription(ctx context.Context, customerID string) (*billing.Subscription, error) {
	return f.active, f.activeErr
}

func (f *fakeBilling) FindOrCreateCustomer(ctx context.Context, email, name string) (string, error) {
	return f.customerID, nil
}

func (f *fakeBilling) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (string, error) {
	f.gotPriceID = priceID
	return f.checkoutURL, nil
}

func (f *fakeBilling) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	f.gotReturnURL = returnURL
	return f.portalURL, nil
}

func (f *fakeBilling) CancelSubscription(ctx context.Context, subscriptionID string) error {
	f.canceled = subscriptionID
	return nil
}

func (f *fakeBilling) ReactivateSubscription(ctx context.Context, subscriptionID string) error {
	f.reactivated = subscriptionID
	return nil
}

func (f *fakeBilling) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	var event stripe.Event
	if signature != "valid" {
		return event, errors.New("bad signature")
	}
	err := json.Unmarshal(payload, &event)
	return event, err
}

// =============================================================================
// Helpers
// =============================================================================

func testUser() *domain.User {
	return &domain.User{
		ID:        uuid.New(),
		Email:     "creator@example.com",
		Name:      "Creator",
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// passUser stands in for the auth middleware: it rejects anonymous requests
// the way RequireUser does.
func passUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			UnauthorizedResponse(w, r, discardLogger())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// serve routes req through mux as user. A nil user sends the request anonymously.
func serve(t *testing.T, mux *http.ServeMux, user *domain.User, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if user != nil {
		req = req.WithContext(auth.WithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func proTier() domain.SubscriptionTier {
	return domain.NewTierTable(domain.DefaultTiers(domain.PriceConfig{ProMonthlyPriceID: "price_pro"})).Lookup(domain.TierPro)
}
