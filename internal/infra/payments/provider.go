// Package payments talks to the external payment provider. Only order
// creation goes over the network; callback signatures are checked locally.
package payments

import (
	"context"
	"errors"
	"time"
)

const (
	ProviderRazorpay = "razorpay"
	ProviderStripe   = "stripe"
	ProviderMock     = "mock"
)

var ErrKeysMissing = errors.New("payment provider keys not configured")

// Config is injected into the checkout gate at construction time.
type Config struct {
	Provider string
	// KeyID identifies the account to the provider API (Razorpay key id).
	KeyID string
	// KeySecret signs order/payment pairs (Razorpay key secret) and
	// authenticates API calls.
	KeySecret string
	// PublicKey is handed to the checkout UI; empty when unset.
	PublicKey string
	MockMode  bool
	Timeout   time.Duration
	BaseURL   string
}

// OrderRequest is what checkout asks the provider to mint.
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
	// UserID is attached as provider metadata where the provider supports it.
	UserID uint
}

// Order mirrors the provider's order resource.
type Order struct {
	ID         string            `json:"id"`
	Entity     string            `json:"entity"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	AmountDue  int64             `json:"amount_due"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     string            `json:"status"`
	Attempts   int               `json:"attempts"`
	Notes      map[string]string `json:"notes"`
	CreatedAt  int64             `json:"created_at"`

	// ClientSecret is set by providers whose checkout UI confirms a
	// server-created intent (Stripe).
	ClientSecret string `json:"client_secret,omitempty"`
}

type Provider interface {
	Name() string
	// Configured reports whether keys are present. An unconfigured provider
	// fails every call with ErrKeysMissing.
	Configured() bool
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
}

// NewProvider picks the configured variant, or Unconfigured when keys are absent.
func NewProvider(cfg Config) Provider {
	switch cfg.Provider {
	case ProviderStripe:
		if cfg.KeySecret == "" {
			return Unconfigured{name: ProviderStripe}
		}
		return NewStripe(cfg.KeySecret)
	default:
		if cfg.KeyID == "" || cfg.KeySecret == "" {
			return Unconfigured{name: ProviderRazorpay}
		}
		return NewRazorpay(cfg.BaseURL, cfg.KeyID, cfg.KeySecret, cfg.Timeout)
	}
}

// Unconfigured stands in for a provider whose keys are absent.
type Unconfigured struct {
	name string
}

func (u Unconfigured) Name() string {
	if u.name == "" {
		return ProviderRazorpay
	}
	return u.name
}

func (Unconfigured) Configured() bool { return false }

func (Unconfigured) CreateOrder(context.Context, OrderRequest) (*Order, error) {
	return nil, ErrKeysMissing
}
