package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/musclelog/server/internal/auth"
)

// maxWebhookBodySize bounds the Stripe webhook payload (64KB, per Stripe docs).
const maxWebhookBodySize = 65536

// HandleCheckout handles POST /api/billing/checkout: creates a Stripe
// Checkout session for the Pro subscription and returns its URL.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.cfg.Stripe.SecretKey == "" || h.cfg.Stripe.ProPriceID == "" {
		Error(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}

	profile, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if profile == nil {
		Error(w, http.StatusNotFound, "profile not found")
		return
	}

	customerID := profile.StripeCustomerID
	if customerID == "" {
		params := &stripe.CustomerParams{
			Email: stripe.String(profile.Email),
		}
		params.AddMetadata("user_id", userID)
		cust, err := customer.New(params)
		if err != nil {
			slog.Error("stripe customer create failed", "user_id", userID, "error", err)
			Error(w, http.StatusBadGateway, "failed to create billing customer")
			return
		}
		customerID = cust.ID
		if err := h.repo.SetStripeCustomerID(r.Context(), userID, customerID); err != nil {
			Error(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	sess, err := session.New(&stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(h.cfg.Stripe.ProPriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(h.cfg.FrontendURL + "/assistant?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(h.cfg.FrontendURL + "/assistant"),
	})
	if err != nil {
		slog.Error("stripe checkout create failed", "user_id", userID, "error", err)
		Error(w, http.StatusBadGateway, "failed to create checkout session")
		return
	}

	slog.Info("checkout session created", "user_id", userID, "session_id", sess.ID)
	JSON(w, http.StatusOK, map[string]string{"url": sess.URL})
}

// HandleStripeWebhook handles POST /webhooks/stripe. Registered outside the
// auth middleware; the signature header is the credential.
func (h *Handler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		Error(w, http.StatusBadRequest, "failed to read body")
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.cfg.Stripe.WebhookSecret)
	if err != nil {
		slog.Warn("stripe webhook signature rejected", "error", err)
		Error(w, http.StatusBadRequest, "invalid signature")
		return
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		sub, err := parseSubscription(event.Data.Raw)
		if err != nil {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		isPro := sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing
		var endsAt *time.Time
		if sub.CurrentPeriodEnd > 0 {
			t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			endsAt = &t
		}
		if err := h.repo.SetSubscriptionByCustomer(r.Context(), sub.Customer.ID, isPro, endsAt); err != nil {
			Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		slog.Info("subscription updated", "customer_id", sub.Customer.ID, "status", sub.Status, "pro", isPro)

	case "customer.subscription.deleted":
		sub, err := parseSubscription(event.Data.Raw)
		if err != nil {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.repo.SetSubscriptionByCustomer(r.Context(), sub.Customer.ID, false, nil); err != nil {
			Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		slog.Info("subscription cancelled", "customer_id", sub.Customer.ID)

	default:
		slog.Debug("ignoring stripe event", "type", event.Type)
	}

	JSON(w, http.StatusOK, map[string]bool{"received": true})
}

func parseSubscription(raw json.RawMessage) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse subscription event: %w", err)
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return nil, fmt.Errorf("subscription event missing customer")
	}
	return &sub, nil
}
