package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"course-ledger/database"
	"course-ledger/internal/domain/billing"
	"course-ledger/internal/domain/courses"
	"course-ledger/internal/infra/events"
	"course-ledger/internal/infra/payments"
	"course-ledger/internal/logging"
	"course-ledger/internal/metrics"
	"course-ledger/internal/services/ledger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	msgEnrolled        = "Payment verified, enrollment confirmed"
	msgAlreadyEnrolled = "Already enrolled"
	msgReplayed        = "Payment already verified"
)

type VerifyInput struct {
	OrderID        string
	PaymentID      string
	Signature      string
	UserID         uint
	CourseID       uint
	BillingDetails map[string]any
}

type VerifyResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	PaymentID       uint   `json:"payment_id,omitempty"`
	AlreadyEnrolled bool   `json:"already_enrolled"`
}

// ProviderConfirmation is a payment the provider reported through an
// authenticated webhook; the signature check already happened upstream.
// Amount and Currency are what the provider says it collected; zero values
// mean it did not say.
type ProviderConfirmation struct {
	OrderID   string
	PaymentID string
	Amount    int64
	Currency  string
}

// VerifyPayment checks a checkout callback and settles it. A bad signature
// is recorded as a FAILED payment and never enrolls.
func (g *Gate) VerifyPayment(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	if in.OrderID == "" || in.PaymentID == "" || in.CourseID == 0 {
		return nil, billing.InvalidInput("Order id, payment id and course id are required")
	}

	order, err := g.findOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	mock := payments.IsMockOrder(in.OrderID)
	if mock {
		// trusted only because this service minted it for this user and course
		if order == nil || order.UserID != in.UserID || order.CourseID != in.CourseID {
			metrics.PaymentVerifications.WithLabelValues("failed").Inc()
			return nil, billing.VerificationFailed("Unknown order")
		}
	} else if !payments.VerifySignature(g.cfg.KeySecret, in.OrderID, in.PaymentID, in.Signature) {
		return nil, g.recordFailure(ctx, in, order)
	}

	if order != nil && (order.UserID != in.UserID || order.CourseID != in.CourseID) {
		metrics.PaymentVerifications.WithLabelValues("failed").Inc()
		return nil, billing.VerificationFailed("Order does not match this checkout")
	}

	key := replayKey(in.UserID, in.CourseID, in.OrderID, in.PaymentID)
	if res, ok := g.recall(ctx, key); ok {
		return res, nil
	}

	billingJSON, err := marshalBilling(in.BillingDetails)
	if err != nil {
		return nil, err
	}

	provider := g.provider.Name()
	var signature *string
	if mock {
		provider = payments.ProviderMock
	} else {
		signature = &in.Signature
	}

	res, err := g.settle(ctx, settlement{
		UserID:         in.UserID,
		CourseID:       in.CourseID,
		Provider:       provider,
		OrderID:        in.OrderID,
		PaymentID:      in.PaymentID,
		Signature:      signature,
		BillingDetails: billingJSON,
	})
	if err != nil {
		return nil, err
	}

	g.remember(ctx, key, res)
	return res, nil
}

// ConfirmProviderPayment settles a payment reported by a provider webhook.
// User and course come from the stored order, not from the webhook payload.
func (g *Gate) ConfirmProviderPayment(ctx context.Context, pc ProviderConfirmation) (*VerifyResult, error) {
	order, err := g.findOrder(ctx, pc.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, billing.NotFound("Order not found")
	}
	amountOff := pc.Amount != 0 && pc.Amount != order.AmountMinorUnits
	currencyOff := pc.Currency != "" && !strings.EqualFold(pc.Currency, order.Currency)
	if amountOff || currencyOff {
		metrics.PaymentVerifications.WithLabelValues("failed").Inc()
		logging.FromCtx(ctx).Warn("provider payment does not match order",
			"order_id", order.ID,
			"order_amount", order.AmountMinorUnits,
			"order_currency", order.Currency,
			"paid_amount", pc.Amount,
			"paid_currency", pc.Currency,
		)
		return nil, billing.VerificationFailed("Paid amount does not match the order")
	}

	paymentID := pc.PaymentID
	if paymentID == "" {
		paymentID = pc.OrderID
	}

	return g.settle(ctx, settlement{
		UserID:    order.UserID,
		CourseID:  order.CourseID,
		Provider:  order.Provider,
		OrderID:   order.ID,
		PaymentID: paymentID,
	})
}

type settlement struct {
	UserID         uint
	CourseID       uint
	Provider       string
	OrderID        string
	PaymentID      string
	Signature      *string
	BillingDetails datatypes.JSON
}

// settle enrolls, records the SUCCESS payment and credits the instructor in
// one transaction. An existing enrollment turns the whole call into a no-op.
func (g *Gate) settle(ctx context.Context, s settlement) (*VerifyResult, error) {
	var (
		course  courses.Course
		payment billing.Payment
		credit  *billing.LedgerEntry
		already bool
	)

	err := database.Transact(ctx, g.db, func(tx *gorm.DB) error {
		credit, already = nil, false

		if err := tx.First(&course, s.CourseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return billing.NotFound("Course not found")
			}
			return fmt.Errorf("load course %d: %w", s.CourseID, err)
		}

		enrollment := courses.Enrollment{UserID: s.UserID, CourseID: course.ID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&enrollment)
		if res.Error != nil {
			return fmt.Errorf("create enrollment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			already = true
			return nil
		}

		// the instructor is credited off the list price, whatever plan was paid
		payment = billing.Payment{
			UserID:            s.UserID,
			CourseID:          course.ID,
			AmountMinorUnits:  course.Price,
			Currency:          billing.CurrencyINR,
			Status:            billing.PaymentSuccess,
			Provider:          s.Provider,
			ProviderOrderID:   s.OrderID,
			ProviderPaymentID: s.PaymentID,
			Signature:         s.Signature,
			BillingDetails:    s.BillingDetails,
		}
		if err := tx.Create(&payment).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return billing.Conflict("Payment already used for another enrollment")
			}
			return fmt.Errorf("record payment: %w", err)
		}

		entry, err := g.ledger.CreditSaleTx(tx, ledger.Sale{
			InstructorID: course.InstructorID,
			CourseID:     course.ID,
			CourseTitle:  course.Title,
			Gross:        course.Price,
		})
		if err != nil {
			return err
		}
		credit = entry
		return nil
	})
	if err != nil {
		metrics.PaymentVerifications.WithLabelValues("error").Inc()
		return nil, err
	}

	log := logging.FromCtx(ctx)
	if already {
		metrics.PaymentVerifications.WithLabelValues("already_enrolled").Inc()
		log.Info("payment replay, already enrolled",
			"order_id", s.OrderID,
			"user_id", s.UserID,
			"course_id", s.CourseID,
		)
		return &VerifyResult{Success: true, Message: msgAlreadyEnrolled, AlreadyEnrolled: true}, nil
	}

	metrics.PaymentVerifications.WithLabelValues("enrolled").Inc()
	metrics.LedgerCredited.Add(float64(credit.Amount))
	log.Info("payment verified",
		"order_id", s.OrderID,
		"payment_id", payment.ID,
		"user_id", s.UserID,
		"course_id", s.CourseID,
		"instructor_id", course.InstructorID,
		"share", credit.Amount,
	)

	msg := events.PaymentVerified{
		PaymentID:       payment.ID,
		UserID:          s.UserID,
		CourseID:        course.ID,
		InstructorID:    course.InstructorID,
		Amount:          payment.AmountMinorUnits,
		InstructorShare: credit.Amount,
		Currency:        payment.Currency,
		Provider:        s.Provider,
		OccurredAt:      now(),
	}
	if err := g.events.Publish(ctx, events.KeyPaymentVerified, msg); err != nil {
		log.Warn("publish payment event failed", "payment_id", payment.ID, "error", err)
	}

	return &VerifyResult{Success: true, Message: msgEnrolled, PaymentID: payment.ID}, nil
}

// recordFailure writes the FAILED audit row once per order/payment pair.
// A repeat of an already failed pair is a conflict and writes nothing.
func (g *Gate) recordFailure(ctx context.Context, in VerifyInput, order *billing.Order) error {
	metrics.PaymentVerifications.WithLabelValues("failed").Inc()
	log := logging.FromCtx(ctx)
	repeat := &billing.DomainError{
		Kind:    billing.KindConflict,
		Message: "Payment verification already failed",
		Err:     billing.ErrVerificationFailed,
	}

	db := g.db.WithContext(ctx)
	var failed int64
	err := db.Model(&billing.Payment{}).
		Where("provider_order_id = ? AND provider_payment_id = ? AND status = ?", in.OrderID, in.PaymentID, billing.PaymentFailed).
		Count(&failed).Error
	if err != nil {
		return fmt.Errorf("check failed payments: %w", err)
	}
	if failed > 0 {
		log.Warn("repeated failed verification", "order_id", in.OrderID, "user_id", in.UserID)
		return repeat
	}

	var amount int64
	if order != nil {
		amount = order.AmountMinorUnits
	}
	var signature *string
	if in.Signature != "" {
		signature = &in.Signature
	}

	audit := billing.Payment{
		UserID:            in.UserID,
		CourseID:          in.CourseID,
		AmountMinorUnits:  amount,
		Currency:          billing.CurrencyINR,
		Status:            billing.PaymentFailed,
		Provider:          g.provider.Name(),
		ProviderOrderID:   in.OrderID,
		ProviderPaymentID: in.PaymentID,
		Signature:         signature,
	}
	if err := db.Create(&audit).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return repeat
		}
		return fmt.Errorf("record failed payment: %w", err)
	}

	log.Warn("payment signature mismatch",
		"order_id", in.OrderID,
		"user_id", in.UserID,
		"course_id", in.CourseID,
	)
	return billing.VerificationFailed("Payment verification failed")
}

func (g *Gate) findOrder(ctx context.Context, id string) (*billing.Order, error) {
	var o billing.Order
	err := g.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&o).Error
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}
	if o.ID == "" {
		return nil, nil
	}
	return &o, nil
}

func (g *Gate) recall(ctx context.Context, key string) (*VerifyResult, bool) {
	if g.cache == nil {
		return nil, false
	}
	val, ok, err := g.cache.Recall(ctx, key)
	if err != nil {
		g.log.Warn("replay cache read failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	id, _ := strconv.ParseUint(val, 10, 64)
	metrics.PaymentVerifications.WithLabelValues("replayed").Inc()
	return &VerifyResult{Success: true, Message: msgReplayed, PaymentID: uint(id), AlreadyEnrolled: true}, true
}

func (g *Gate) remember(ctx context.Context, key string, res *VerifyResult) {
	if g.cache == nil || res.PaymentID == 0 {
		return
	}
	if err := g.cache.Remember(ctx, key, strconv.FormatUint(uint64(res.PaymentID), 10)); err != nil {
		g.log.Warn("replay cache write failed", "error", err)
	}
}

func marshalBilling(details map[string]any) (datatypes.JSON, error) {
	if len(details) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, billing.InvalidInput("Billing details are not valid JSON")
	}
	return datatypes.JSON(b), nil
}
