// Package billing provides Stripe billing integration for subscription management.
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/DukeRupert/reelscout/internal/domain"
)

// ErrNoCustomer is returned when no Stripe customer exists for an email.
var ErrNoCustomer = errors.New("billing: no stripe customer for email")

// ErrNoSubscription is returned when a customer has no active subscription.
var ErrNoSubscription = errors.New("billing: no active subscription")

// Subscription is the subset of a Stripe subscription the application reads.
type Subscription struct {
	ID                string
	CustomerID        string
	PriceID           string
	Status            string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  time.Time
}

// Service defines the interface for billing operations.
type Service interface {
	// SubscriptionStatus looks up the customer by email and reports its first
	// active subscription. A missing customer or subscription is reported as
	// not subscribed, not as an error.
	SubscriptionStatus(ctx context.Context, email string) (domain.SubscriptionStatus, error)

	// ActiveSubscription returns the customer's first active subscription or ErrNoSubscription.
	ActiveSubscription(ctx context.Context, customerID string) (*Subscription, error)

	// FindOrCreateCustomer returns the ID of the customer with this email,
	// creating one if none exists.
	FindOrCreateCustomer(ctx context.Context, email, name string) (string, error)

	// CreateCheckoutSession creates a Stripe Checkout session for subscribing.
	// Returns the checkout URL to redirect the user to.
	CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (string, error)

	// CreatePortalSession creates a Stripe Customer Portal session.
	// Returns the portal URL to redirect the user to.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// CancelSubscription sets a subscription to cancel at period end.
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// ReactivateSubscription removes the cancel_at_period_end flag.
	ReactivateSubscription(ctx context.Context, subscriptionID string) error

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

// Options configures the Stripe client.
type Options struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides the Stripe API base URL. Used by tests.
	APIURL     string
	HTTPClient *http.Client
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	api           *client.API
	webhookSecret string
}

// NewStripeService creates a new Stripe billing service.
//
// The secret key authenticates Stripe API calls and the webhook secret is used
// to verify incoming webhook signatures. Each service owns its own API client
// so that tests can point it at a local server.
func NewStripeService(opts Options) Service {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	cfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(2),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if opts.APIURL != "" {
		cfg.URL = stripe.String(opts.APIURL)
	}

	api := &client.API{}
	api.Init(opts.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	})

	return &stripeService{
		api:           api,
		webhookSecret: opts.WebhookSecret,
	}
}

func (s *stripeService) findCustomer(ctx context.Context, email string) (*stripe.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := s.api.Customers.List(params)
	if iter.Next() {
		return iter.Customer(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe list customers: %w", err)
	}
	return nil, ErrNoCustomer
}

func (s *stripeService) SubscriptionStatus(ctx context.Context, email string) (domain.SubscriptionStatus, error) {
	cust, err := s.findCustomer(ctx, email)
	if errors.Is(err, ErrNoCustomer) {
		return domain.SubscriptionStatus{Subscribed: false}, nil
	}
	if err != nil {
		return domain.SubscriptionStatus{}, err
	}

	sub, err := s.ActiveSubscription(ctx, cust.ID)
	if errors.Is(err, ErrNoSubscription) {
		return domain.SubscriptionStatus{Subscribed: false}, nil
	}
	if err != nil {
		return domain.SubscriptionStatus{}, err
	}

	return domain.SubscriptionStatus{
		Subscribed:       true,
		PriceID:          sub.PriceID,
		Canceled:         sub.CancelAtPeriodEnd,
		Status:           sub.Status,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}, nil
}

func (s *stripeService) ActiveSubscription(ctx context.Context, customerID string) (*Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.AddExpand("data.items.data.price")

	iter := s.api.Subscriptions.List(params)
	if !iter.Next() {
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("stripe list subscriptions: %w", err)
		}
		return nil, ErrNoSubscription
	}

	sub := iter.Subscription()
	out := &Subscription{
		ID:                sub.ID,
		CustomerID:        customerID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	return out, nil
}

func (s *stripeService) FindOrCreateCustomer(ctx context.Context, email, name string) (string, error) {
	cust, err := s.findCustomer(ctx, email)
	if err == nil {
		return cust.ID, nil
	}
	if !errors.Is(err, ErrNoCustomer) {
		return "", err
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx
	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (s *stripeService) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx
	_, err := s.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return fmt.Errorf("stripe cancel subscription: %w", err)
	}
	return nil
}

func (s *stripeService) ReactivateSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	params.Context = ctx
	_, err := s.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return fmt.Errorf("stripe reactivate subscription: %w", err)
	}
	return nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}
