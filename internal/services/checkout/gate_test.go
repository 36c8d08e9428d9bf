package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"course-ledger/internal/domain/billing"
	"course-ledger/internal/domain/courses"
	"course-ledger/internal/domain/pricing"
	"course-ledger/internal/domain/users"
	"course-ledger/internal/infra/events"
	"course-ledger/internal/infra/payments"
	"course-ledger/internal/services/ledger"
	"course-ledger/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const secret = "rzp_test_secret"

type fakeProvider struct {
	name  string
	err   error
	block bool
	calls atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Configured() bool { return true }

func (f *fakeProvider) CreateOrder(ctx context.Context, req payments.OrderRequest) (*payments.Order, error) {
	n := f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &payments.Order{
		ID:        "order_live_" + string(rune('A'+n)),
		Entity:    "order",
		Amount:    req.Amount,
		AmountDue: req.Amount,
		Currency:  req.Currency,
		Receipt:   req.Receipt,
		Status:    "created",
		Notes:     req.Notes,
	}, nil
}

type memCache struct {
	mu sync.Mutex
	m  map[string]string
}

func (c *memCache) Recall(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *memCache) Remember(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string]string{}
	}
	c.m[key] = value
	return nil
}

type fixture struct {
	db         *gorm.DB
	ledger     *ledger.Ledger
	events     *events.Memory
	instructor *users.User
	student    *users.User
	course     *courses.Course
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	inst := testutil.CreateUser(t, db, "ana", users.RoleInstructor)
	return &fixture{
		db:         db,
		ledger:     ledger.New(db),
		events:     &events.Memory{},
		instructor: inst,
		student:    testutil.CreateUser(t, db, "sam", users.RoleStudent),
		course:     testutil.CreateCourse(t, db, inst.ID, "Go Concurrency", 1000, nil),
	}
}

func (f *fixture) gate(p payments.Provider, cfg payments.Config, opts ...Option) *Gate {
	if cfg.KeySecret == "" && !cfg.MockMode {
		cfg.KeySecret = secret
	}
	opts = append([]Option{WithEvents(f.events)}, opts...)
	return NewGate(f.db, p, cfg, f.ledger, opts...)
}

func (f *fixture) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func TestCreateOrderAndVerifyFullPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.gate(&fakeProvider{name: payments.ProviderRazorpay}, payments.Config{PublicKey: "rzp_test_key", Timeout: time.Second})

	order, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID, Plan: "FULL"})
	require.NoError(t, err)
	assert.Equal(t, int64(800), order.Amount)
	assert.Equal(t, int64(0), order.AmountPaid)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "created", order.Status)
	assert.Equal(t, "rzp_test_key", order.Key)
	assert.False(t, order.Mock)
	assert.Equal(t, pricing.PlanFull, order.Plan)
	assert.Equal(t, 1, order.Installments)
	assert.Equal(t, "FULL", order.Notes["plan"])
	assert.True(t, strings.HasPrefix(order.Receipt, "rcpt_"))

	var stored billing.Order
	require.NoError(t, f.db.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, int64(800), stored.AmountMinorUnits)
	assert.Equal(t, billing.OrderCreated, stored.Status)

	res, err := g.VerifyPayment(ctx, VerifyInput{
		OrderID:        order.ID,
		PaymentID:      "pay_1",
		Signature:      payments.Sign(secret, order.ID, "pay_1"),
		UserID:         f.student.ID,
		CourseID:       f.course.ID,
		BillingDetails: map[string]any{"name": "Sam", "city": "Pune"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.AlreadyEnrolled)
	assert.NotZero(t, res.PaymentID)

	var payment billing.Payment
	require.NoError(t, f.db.First(&payment, res.PaymentID).Error)
	assert.Equal(t, billing.PaymentSuccess, payment.Status)
	assert.Equal(t, int64(1000), payment.AmountMinorUnits)
	assert.Equal(t, "pay_1", payment.ProviderPaymentID)
	assert.JSONEq(t, `{"name":"Sam","city":"Pune"}`, string(payment.BillingDetails))

	inst := testutil.Reload(t, f.db, f.instructor.ID)
	assert.Equal(t, int64(700), inst.WalletBalance)
	assert.Equal(t, int64(700), inst.TotalEarnings)
	assert.Equal(t, int64(1), f.count(t, &courses.Enrollment{}, "user_id = ? AND course_id = ?", f.student.ID, f.course.ID))
	assert.Equal(t, []string{events.KeyPaymentVerified}, f.events.Keys())
}

func TestInstallmentPlansQuoteFromDiscountedPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	discounted := int64(600)
	course := testutil.CreateCourse(t, f.db, f.instructor.ID, "Discounted", 1000, &discounted)
	g := f.gate(&fakeProvider{name: payments.ProviderRazorpay}, payments.Config{})

	o2, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: course.ID, Plan: "installment_2"})
	require.NoError(t, err)
	assert.Equal(t, int64(270), o2.Amount)
	assert.Equal(t, 2, o2.Installments)

	o4, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: course.ID, Plan: "INSTALLMENT_4"})
	require.NoError(t, err)
	assert.Equal(t, int64(150), o4.Amount)

	fallback, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: course.ID, Plan: "weekly"})
	require.NoError(t, err)
	assert.Equal(t, pricing.PlanFull, fallback.Plan)
	assert.Equal(t, int64(480), fallback.Amount)
}

func TestVerifyTwiceIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.gate(&fakeProvider{name: payments.ProviderRazorpay}, payments.Config{})

	order, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID})
	require.NoError(t, err)
	in := VerifyInput{
		OrderID:   order.ID,
		PaymentID: "pay_9",
		Signature: payments.Sign(secret, order.ID, "pay_9"),
		UserID:    f.student.ID,
		CourseID:  f.course.ID,
	}

	first, err := g.VerifyPayment(ctx, in)
	require.NoError(t, err)
	second, err := g.VerifyPayment(ctx, in)
	require.NoError(t, err)

	assert.False(t, first.AlreadyEnrolled)
	assert.True(t, second.Success)
	assert.True(t, second.AlreadyEnrolled)

	assert.Equal(t, int64(1), f.count(t, &courses.Enrollment{}, "user_id = ?", f.student.ID))
	assert.Equal(t, int64(1), f.count(t, &billing.Payment{}, "status = ?", billing.PaymentSuccess))
	assert.Equal(t, int64(1), f.count(t, &billing.LedgerEntry{}, "instructor_id = ?", f.instructor.ID))
	assert.Equal(t, int64(700), testutil.Reload(t, f.db, f.instructor.ID).WalletBalance)
	assert.Len(t, f.events.Keys(), 1)
}

func TestBadSignatureNeverEnrolls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.gate(&fakeProvider{name: payments.ProviderRazorpay}, payments.Config{})

	order, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID})
	require.NoError(t, err)
	in := VerifyInput{
		OrderID:   order.ID,
		PaymentID: "pay_2",
		Signature: payments.Sign("other-secret", order.ID, "pay_2"),
		UserID:    f.student.ID,
		CourseID:  f.course.ID,
	}

	_, err = g.VerifyPayment(ctx, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrVerificationFailed)
	assert.NotErrorIs(t, err, billing.ErrConflict)

	var failed billing.Payment
	require.NoError(t, f.db.Where("status = ?", billing.PaymentFailed).First(&failed).Error)
	assert.Equal(t, order.ID, failed.ProviderOrderID)
	assert.Equal(t, int64(800), failed.AmountMinorUnits)

	// the same bad pair again is a conflict and writes nothing new
	_, err = g.VerifyPayment(ctx, in)
	assert.ErrorIs(t, err, billing.ErrConflict)
	assert.ErrorIs(t, err, billing.ErrVerificationFailed)
	assert.Equal(t, int64(1), f.count(t, &billing.Payment{}, "status = ?", billing.PaymentFailed))

	assert.Zero(t, f.count(t, &courses.Enrollment{}, "user_id = ?", f.student.ID))
	assert.Equal(t, int64(0), testutil.Reload(t, f.db, f.instructor.ID).WalletBalance)
	assert.Empty(t, f.events.Keys())
}

func TestEmptySecretNeverVerifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := NewGate(f.db, &fakeProvider{name: payments.ProviderRazorpay}, payments.Config{}, f.ledger)

	order, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID})
	require.NoError(t, err)

	_, err = g.VerifyPayment(ctx, VerifyInput{
		OrderID:   order.ID,
		PaymentID: "pay_3",
		Signature: payments.Sign("", order.ID, "pay_3"),
		UserID:    f.student.ID,
		CourseID:  f.course.ID,
	})
	assert.ErrorIs(t, err, billing.ErrVerificationFailed)
}

func TestSignedOrderForAnotherCourseIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pricey := testutil.CreateCourse(t, f.db, f.instructor.ID, "Pricey", 90000, nil)
	g := f.gate(&fakeProvider{name: payments.ProviderRazorpay}, payments.Config{})

	order, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID})
	require.NoError(t, err)

	_, err = g.VerifyPayment(ctx, VerifyInput{
		OrderID:   order.ID,
		PaymentID: "pay_4",
		Signature: payments.Sign(secret, order.ID, "pay_4"),
		UserID:    f.student.ID,
		CourseID:  pricey.ID,
	})
	assert.ErrorIs(t, err, billing.ErrVerificationFailed)
	assert.Zero(t, f.count(t, &courses.Enrollment{}, "course_id = ?", pricey.ID))
}

func TestMockModeWithoutKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := payments.Config{Provider: payments.ProviderRazorpay, MockMode: true}
	g := f.gate(payments.NewProvider(cfg), cfg)

	order, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID, Plan: "FULL"})
	require.NoError(t, err)
	assert.True(t, payments.IsMockOrder(order.ID))
	assert.True(t, order.Mock)
	assert.Equal(t, "", order.Key)
	assert.Equal(t, int64(800), order.Amount)
	assert.Equal(t, int64(800), order.AmountDue)
	assert.Equal(t, "created", order.Status)

	res, err := g.VerifyPayment(ctx, VerifyInput{
		OrderID:   order.ID,
		PaymentID: "pay_mock_1",
		Signature: "whatever",
		UserID:    f.student.ID,
		CourseID:  f.course.ID,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)

	var payment billing.Payment
	require.NoError(t, f.db.First(&payment, res.PaymentID).Error)
	assert.Equal(t, payments.ProviderMock, payment.Provider)
	assert.Nil(t, payment.Signature)
	assert.Equal(t, int64(700), testutil.Reload(t, f.db, f.instructor.ID).WalletBalance)
}

func TestMockOrderMustHaveBeenMintedHere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := payments.Config{MockMode: true}
	g := f.gate(payments.NewProvider(cfg), cfg)

	_, err := g.VerifyPayment(ctx, VerifyInput{
		OrderID:   payments.MockOrderPrefix + "forged",
		PaymentID: "pay_x",
		UserID:    f.student.ID,
		CourseID:  f.course.ID,
	})
	assert.ErrorIs(t, err, billing.ErrVerificationFailed)

	// a real mock order cannot be redeemed by someone else
	order, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID})
	require.NoError(t, err)
	other := testutil.CreateUser(t, f.db, "eve", users.RoleStudent)
	_, err = g.VerifyPayment(ctx, VerifyInput{
		OrderID:   order.ID,
		PaymentID: "pay_y",
		UserID:    other.ID,
		CourseID:  f.course.ID,
	})
	assert.ErrorIs(t, err, billing.ErrVerificationFailed)
	assert.Zero(t, f.count(t, &courses.Enrollment{}, "1 = 1"))
}

func TestProviderFailure(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("mock off fails fast", func(t *testing.T) {
		f := newFixture(t)
		g := f.gate(&fakeProvider{name: payments.ProviderRazorpay, err: boom}, payments.Config{})

		_, err := g.CreateOrder(context.Background(), CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID})
		assert.ErrorIs(t, err, billing.ErrProviderUnavailable)
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, f.count(t, &billing.Order{}, "1 = 1"))
	})

	t.Run("mock on falls back", func(t *testing.T) {
		f := newFixture(t)
		p := &fakeProvider{name: payments.ProviderRazorpay, err: boom}
		g := f.gate(p, payments.Config{MockMode: true, KeySecret: secret})

		order, err := g.CreateOrder(context.Background(), CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID})
		require.NoError(t, err)
		assert.Equal(t, int32(1), p.calls.Load())
		assert.True(t, payments.IsMockOrder(order.ID))
		assert.Equal(t, int64(800), order.Amount)
	})

	t.Run("timeout is a provider failure", func(t *testing.T) {
		f := newFixture(t)
		g := f.gate(&fakeProvider{name: payments.ProviderRazorpay, block: true}, payments.Config{Timeout: 20 * time.Millisecond})

		start := time.Now()
		_, err := g.CreateOrder(context.Background(), CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID})
		assert.ErrorIs(t, err, billing.ErrProviderUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestCreateOrderPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.gate(&fakeProvider{name: payments.ProviderRazorpay}, payments.Config{})

	_, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: 4242})
	assert.ErrorIs(t, err, billing.ErrNotFound)

	require.NoError(t, f.db.Create(&courses.Enrollment{UserID: f.student.ID, CourseID: f.course.ID}).Error)
	_, err = g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID})
	assert.ErrorIs(t, err, billing.ErrConflict)
}

func TestVerifyRequiresIdentifiers(t *testing.T) {
	f := newFixture(t)
	g := f.gate(&fakeProvider{name: payments.ProviderRazorpay}, payments.Config{})

	_, err := g.VerifyPayment(context.Background(), VerifyInput{OrderID: "order_1", UserID: f.student.ID, CourseID: f.course.ID})
	assert.ErrorIs(t, err, billing.ErrInvalidInput)
}

func TestConcurrentVerificationsCreditOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.gate(&fakeProvider{name: payments.ProviderRazorpay}, payments.Config{})

	order, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID})
	require.NoError(t, err)
	in := VerifyInput{
		OrderID:   order.ID,
		PaymentID: "pay_c",
		Signature: payments.Sign(secret, order.ID, "pay_c"),
		UserID:    f.student.ID,
		CourseID:  f.course.ID,
	}

	const n = 6
	var (
		wg       sync.WaitGroup
		enrolled atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := g.VerifyPayment(ctx, in)
			if assert.NoError(t, err) && !res.AlreadyEnrolled {
				enrolled.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), enrolled.Load())
	assert.Equal(t, int64(1), f.count(t, &billing.Payment{}, "status = ?", billing.PaymentSuccess))
	assert.Equal(t, int64(700), testutil.Reload(t, f.db, f.instructor.ID).WalletBalance)
}

func TestReplayCacheAnswersRepeatCallbacks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := &memCache{}
	g := f.gate(&fakeProvider{name: payments.ProviderRazorpay}, payments.Config{}, WithReplayCache(cache))

	order, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID})
	require.NoError(t, err)
	in := VerifyInput{
		OrderID:   order.ID,
		PaymentID: "pay_r",
		Signature: payments.Sign(secret, order.ID, "pay_r"),
		UserID:    f.student.ID,
		CourseID:  f.course.ID,
	}

	first, err := g.VerifyPayment(ctx, in)
	require.NoError(t, err)
	second, err := g.VerifyPayment(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, msgReplayed, second.Message)
	assert.Equal(t, first.PaymentID, second.PaymentID)

	// a forged signature is still rejected before the cache is consulted
	in.Signature = "00"
	_, err = g.VerifyPayment(ctx, in)
	assert.ErrorIs(t, err, billing.ErrVerificationFailed)
}

func TestConfirmProviderPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.gate(&fakeProvider{name: payments.ProviderStripe}, payments.Config{Provider: payments.ProviderStripe})

	order, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID})
	require.NoError(t, err)

	res, err := g.ConfirmProviderPayment(ctx, ProviderConfirmation{OrderID: order.ID, PaymentID: "ch_1"})
	require.NoError(t, err)
	assert.False(t, res.AlreadyEnrolled)

	again, err := g.ConfirmProviderPayment(ctx, ProviderConfirmation{OrderID: order.ID, PaymentID: "ch_1"})
	require.NoError(t, err)
	assert.True(t, again.AlreadyEnrolled)

	var payment billing.Payment
	require.NoError(t, f.db.First(&payment, res.PaymentID).Error)
	assert.Equal(t, payments.ProviderStripe, payment.Provider)
	assert.Equal(t, f.student.ID, payment.UserID)
	assert.Equal(t, int64(700), testutil.Reload(t, f.db, f.instructor.ID).WalletBalance)

	_, err = g.ConfirmProviderPayment(ctx, ProviderConfirmation{OrderID: "pi_unknown"})
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

func TestConfirmProviderPaymentChecksCollectedAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.gate(&fakeProvider{name: payments.ProviderStripe}, payments.Config{Provider: payments.ProviderStripe})

	order, err := g.CreateOrder(ctx, CreateOrderInput{UserID: f.student.ID, CourseID: f.course.ID})
	require.NoError(t, err)
	require.Equal(t, int64(800), order.Amount)

	tests := []struct {
		name     string
		amount   int64
		currency string
	}{
		{"underpaid", 500, "inr"},
		{"wrong currency", 800, "usd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.ConfirmProviderPayment(ctx, ProviderConfirmation{
				OrderID:   order.ID,
				PaymentID: "ch_1",
				Amount:    tt.amount,
				Currency:  tt.currency,
			})
			assert.ErrorIs(t, err, billing.ErrVerificationFailed)
		})
	}

	var enrolled int64
	require.NoError(t, f.db.Model(&courses.Enrollment{}).Count(&enrolled).Error)
	assert.Zero(t, enrolled)
	assert.Zero(t, testutil.Reload(t, f.db, f.instructor.ID).WalletBalance)

	res, err := g.ConfirmProviderPayment(ctx, ProviderConfirmation{
		OrderID:   order.ID,
		PaymentID: "ch_1",
		Amount:    800,
		Currency:  "inr",
	})
	require.NoError(t, err)
	assert.False(t, res.AlreadyEnrolled)
	assert.Equal(t, int64(700), testutil.Reload(t, f.db, f.instructor.ID).WalletBalance)
}
