package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

// Stripe mints a PaymentIntent per checkout and exposes it as an order.
type Stripe struct {
	api *client.API
}

func NewStripe(secretKey string) *Stripe {
	return &Stripe{api: client.New(secretKey, nil)}
}

func (s *Stripe) Name() string { return ProviderStripe }

func (s *Stripe) Configured() bool { return s.api != nil }

func (s *Stripe) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Receipt),
	}
	params.Context = ctx
	for k, v := range req.Notes {
		params.AddMetadata(k, v)
	}
	params.AddMetadata("receipt", req.Receipt)
	if req.UserID != 0 {
		params.AddMetadata("user_id", fmt.Sprint(req.UserID))
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}

	return &Order{
		ID:         pi.ID,
		Entity:     "order",
		Amount:     pi.Amount,
		AmountPaid: pi.AmountReceived,
		AmountDue:  pi.Amount - pi.AmountReceived,
		Currency:   strings.ToUpper(string(pi.Currency)),
		Receipt:    req.Receipt,
		Status:     NormalizeIntentStatus(string(pi.Status)),
		Notes:      req.Notes,
		CreatedAt:  pi.Created,

		ClientSecret: pi.ClientSecret,
	}, nil
}

// NormalizeIntentStatus maps PaymentIntent states onto order states.
func NormalizeIntentStatus(s string) string {
	switch strings.TrimSpace(s) {
	case "", "requires_payment_method", "requires_confirmation", "requires_action":
		return "created"
	case "processing", "requires_capture":
		return "attempted"
	case "succeeded":
		return "paid"
	case "canceled":
		return "canceled"
	default:
		return strings.TrimSpace(s)
	}
}
