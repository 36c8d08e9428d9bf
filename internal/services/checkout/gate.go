// Package checkout is the order and verification gate: it prices a checkout,
// mints a provider order, and turns a verified payment into exactly one
// enrollment, one SUCCESS payment and one instructor credit.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"course-ledger/internal/domain/billing"
	"course-ledger/internal/domain/courses"
	"course-ledger/internal/domain/pricing"
	"course-ledger/internal/infra/events"
	"course-ledger/internal/infra/payments"
	"course-ledger/internal/logging"
	"course-ledger/internal/metrics"
	"course-ledger/internal/services/ledger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReplayCache remembers completed verifications. It is an optimization only.
type ReplayCache interface {
	Recall(ctx context.Context, key string) (string, bool, error)
	Remember(ctx context.Context, key, value string) error
}

type Option func(*Gate)

func WithReplayCache(c ReplayCache) Option {
	return func(g *Gate) { g.cache = c }
}

func WithEvents(p events.Publisher) Option {
	return func(g *Gate) { g.events = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.log = l }
}

type Gate struct {
	db       *gorm.DB
	provider payments.Provider
	cfg      payments.Config
	ledger   *ledger.Ledger
	cache    ReplayCache
	events   events.Publisher
	log      *slog.Logger
}

func NewGate(db *gorm.DB, provider payments.Provider, cfg payments.Config, l *ledger.Ledger, opts ...Option) *Gate {
	g := &Gate{
		db:       db,
		provider: provider,
		cfg:      cfg,
		ledger:   l,
		events:   events.Noop{},
		log:      logging.New("checkout"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type CreateOrderInput struct {
	UserID   uint
	CourseID uint
	Plan     string
}

// OrderView mirrors the provider's order resource plus what the checkout UI
// needs to open the payment widget.
type OrderView struct {
	ID           string            `json:"id"`
	Entity       string            `json:"entity"`
	Amount       int64             `json:"amount"`
	AmountPaid   int64             `json:"amount_paid"`
	AmountDue    int64             `json:"amount_due"`
	Currency     string            `json:"currency"`
	Receipt      string            `json:"receipt"`
	Status       string            `json:"status"`
	Notes        map[string]string `json:"notes"`
	Key          string            `json:"key"`
	Plan         pricing.Plan      `json:"plan"`
	Installments int               `json:"installments"`
	Mock         bool              `json:"mock"`
	ClientSecret string            `json:"client_secret,omitempty"`
}

func (g *Gate) CreateOrder(ctx context.Context, in CreateOrderInput) (*OrderView, error) {
	var course courses.Course
	if err := g.db.WithContext(ctx).First(&course, in.CourseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.NotFound("Course not found")
		}
		return nil, fmt.Errorf("load course %d: %w", in.CourseID, err)
	}

	var enrolled int64
	err := g.db.WithContext(ctx).Model(&courses.Enrollment{}).
		Where("user_id = ? AND course_id = ?", in.UserID, course.ID).
		Count(&enrolled).Error
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if enrolled > 0 {
		return nil, billing.Conflict("Already enrolled in this course")
	}

	plan := pricing.ParsePlan(in.Plan)
	amount := pricing.Quote(course.ReferencePrice(), plan)
	req := payments.OrderRequest{
		Amount:   amount,
		Currency: billing.CurrencyINR,
		Receipt:  newReceipt(course.ID),
		Notes: map[string]string{
			"courseId": strconv.FormatUint(uint64(course.ID), 10),
			"plan":     string(plan),
		},
		UserID: in.UserID,
	}

	order, mock, err := g.mintOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	provider := g.provider.Name()
	if mock {
		provider = payments.ProviderMock
	}
	row := billing.Order{
		ID:               order.ID,
		UserID:           in.UserID,
		CourseID:         course.ID,
		Plan:             string(plan),
		AmountMinorUnits: amount,
		Currency:         billing.CurrencyINR,
		Receipt:          req.Receipt,
		Provider:         provider,
		Mock:             mock,
		Status:           billing.OrderCreated,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("persist order %s: %w", order.ID, err)
	}

	metrics.OrdersCreated.WithLabelValues(provider, strconv.FormatBool(mock)).Inc()
	logging.FromCtx(ctx).Info("order created",
		"order_id", order.ID,
		"user_id", in.UserID,
		"course_id", course.ID,
		"plan", plan,
		"amount", amount,
		"mock", mock,
	)

	return &OrderView{
		ID:           order.ID,
		Entity:       "order",
		Amount:       order.Amount,
		AmountPaid:   order.AmountPaid,
		AmountDue:    order.AmountDue,
		Currency:     order.Currency,
		Receipt:      order.Receipt,
		Status:       order.Status,
		Notes:        order.Notes,
		Key:          g.cfg.PublicKey,
		Plan:         plan,
		Installments: pricing.InstallmentCount(plan),
		Mock:         mock,
		ClientSecret: order.ClientSecret,
	}, nil
}

// mintOrder asks the provider for an order. In mock mode an unconfigured
// provider is skipped and a failing one is downgraded to a synthetic order;
// outside mock mode any provider failure is returned.
func (g *Gate) mintOrder(ctx context.Context, req payments.OrderRequest) (*payments.Order, bool, error) {
	if g.cfg.MockMode && !g.provider.Configured() {
		return payments.NewMockOrder(req), true, nil
	}

	cctx := ctx
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	order, err := g.provider.CreateOrder(cctx, req)
	if err == nil {
		return order, false, nil
	}

	if g.cfg.MockMode {
		logging.FromCtx(ctx).Warn("provider order failed, using mock order",
			"provider", g.provider.Name(),
			"receipt", req.Receipt,
			"error", err,
		)
		return payments.NewMockOrder(req), true, nil
	}

	logging.FromCtx(ctx).Error("provider order failed",
		"provider", g.provider.Name(),
		"receipt", req.Receipt,
		"error", err,
	)
	return nil, false, billing.ProviderUnavailable("Payment provider unavailable", err)
}

// newReceipt is unique enough to tell checkout attempts apart; providers cap
// receipts at 40 characters.
func newReceipt(courseID uint) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("rcpt_%d_%s", courseID, id)
}

func replayKey(userID, courseID uint, orderID, paymentID string) string {
	return fmt.Sprintf("%d:%d:%s:%s", userID, courseID, orderID, paymentID)
}

func now() time.Time { return time.Now().UTC() }
