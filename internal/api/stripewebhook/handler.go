package stripewebhooks

import (
	"encoding/json"
	"io"
	"net/http"

	"course-ledger/internal/api/apierror"
	"course-ledger/internal/logging"
	"course-ledger/internal/services/checkout"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

const maxBodyBytes = 65536

type Handler struct {
	gate           *checkout.Gate
	endpointSecret string
}

func NewHandler(gate *checkout.Gate, endpointSecret string) *Handler {
	return &Handler{gate: gate, endpointSecret: endpointSecret}
}

func (h *Handler) StripeWebhook(c *gin.Context) {
	log := logging.From(c)
	if h.endpointSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		h.endpointSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		log.Warn("stripe signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse payment intent"})
			return
		}
		h.handlePaymentIntentSucceeded(c, &pi)
		return

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err == nil {
			log.Warn("stripe payment failed", "order_id", pi.ID, "event_id", event.ID)
		}
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return

	default:
		// Acknowledge unknown events to avoid retries
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
}

func (h *Handler) handlePaymentIntentSucceeded(c *gin.Context, pi *stripe.PaymentIntent) {
	paymentID := pi.ID
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		paymentID = pi.LatestCharge.ID
	}

	res, err := h.gate.ConfirmProviderPayment(c.Request.Context(), checkout.ProviderConfirmation{
		OrderID:   pi.ID,
		PaymentID: paymentID,
		Amount:    pi.AmountReceived,
		Currency:  string(pi.Currency),
	})
	if err != nil {
		// Stripe retries on 5xx only; domain errors will not get better.
		if apierror.Status(err) == http.StatusInternalServerError {
			apierror.Respond(c, err)
			return
		}
		logging.From(c).Warn("stripe payment not settled", "order_id", pi.ID, "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received", "already_enrolled": res.AlreadyEnrolled})
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
