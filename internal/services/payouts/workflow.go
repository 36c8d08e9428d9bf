// Package payouts runs instructor withdrawals: REQUESTED, then exactly one of
// PROCESSED or REJECTED. The wallet is debited in full when the request is
// made and credited back only on rejection.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"course-ledger/database"
	"course-ledger/internal/domain/billing"
	"course-ledger/internal/infra/events"
	"course-ledger/internal/logging"
	"course-ledger/internal/metrics"
	"course-ledger/internal/services/ledger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionApprove, ActionReject:
		return a, nil
	default:
		return "", billing.InvalidInput("Action must be APPROVE or REJECT")
	}
}

type Workflow struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	events events.Publisher
	log    *slog.Logger
}

func New(db *gorm.DB, l *ledger.Ledger, pub events.Publisher) *Workflow {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Workflow{db: db, ledger: l, events: pub, log: logging.New("payouts")}
}

// RequestPayout snapshots the whole wallet balance into a new REQUESTED payout.
func (w *Workflow) RequestPayout(ctx context.Context, instructorID uint) (*billing.Payout, error) {
	var payout *billing.Payout
	err := database.Transact(ctx, w.db, func(tx *gorm.DB) error {
		instructor, err := ledger.LockWallet(tx, instructorID)
		if err != nil {
			return err
		}

		var pending int64
		err = tx.Model(&billing.Payout{}).
			Where("instructor_id = ? AND status = ?", instructorID, billing.PayoutRequested).
			Count(&pending).Error
		if err != nil {
			return fmt.Errorf("count pending payouts: %w", err)
		}
		if pending > 0 {
			return billing.Conflict("Payout already pending")
		}
		if instructor.WalletBalance <= 0 {
			return billing.InsufficientFunds("Insufficient balance")
		}

		p := &billing.Payout{
			InstructorID: instructor.ID,
			Amount:       instructor.WalletBalance,
			Status:       billing.PayoutRequested,
			RequestedAt:  time.Now().UTC(),
		}
		if err := tx.Create(p).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return billing.Conflict("Payout already pending")
			}
			return fmt.Errorf("create payout: %w", err)
		}

		if _, err := w.ledger.RecordWithdrawalTx(tx, p); err != nil {
			return err
		}
		payout = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PayoutTransitions.WithLabelValues(billing.PayoutRequested).Inc()
	logging.FromCtx(ctx).Info("payout requested",
		"payout_id", payout.ID,
		"instructor_id", payout.InstructorID,
		"amount", payout.Amount,
	)
	w.publish(ctx, events.KeyPayoutRequested, payout)
	return payout, nil
}

// ProcessPayout moves a REQUESTED payout to its terminal state. APPROVE only
// records the out-of-band transfer; REJECT returns the funds to the wallet.
func (w *Workflow) ProcessPayout(ctx context.Context, payoutID uint, transactionRef string, action Action) (*billing.Payout, error) {
	ref := strings.TrimSpace(transactionRef)
	switch action {
	case ActionApprove:
		if ref == "" {
			return nil, billing.InvalidInput("Transaction reference is required")
		}
	case ActionReject:
	default:
		return nil, billing.InvalidInput("Action must be APPROVE or REJECT")
	}

	var payout billing.Payout
	err := database.Transact(ctx, w.db, func(tx *gorm.DB) error {
		// payout row first, then the instructor row inside RecordRefundTx
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&payout, payoutID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return billing.NotFound("Payout not found")
			}
			return fmt.Errorf("load payout %d: %w", payoutID, err)
		}
		if payout.IsTerminal() {
			return billing.Conflict("Payout already processed")
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{"processed_at": now}
		if action == ActionApprove {
			updates["status"] = billing.PayoutProcessed
			updates["transaction_ref"] = ref
		} else {
			updates["status"] = billing.PayoutRejected
		}

		res := tx.Model(&billing.Payout{}).
			Where("id = ? AND status = ?", payout.ID, billing.PayoutRequested).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update payout %d: %w", payout.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return billing.Conflict("Payout already processed")
		}

		payout.Status = updates["status"].(string)
		payout.ProcessedAt = &now
		if action == ActionApprove {
			payout.TransactionRef = &ref
			return nil
		}

		_, err = w.ledger.RecordRefundTx(tx, &payout)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.PayoutTransitions.WithLabelValues(payout.Status).Inc()
	logging.FromCtx(ctx).Info("payout processed",
		"payout_id", payout.ID,
		"instructor_id", payout.InstructorID,
		"status", payout.Status,
	)

	key := events.KeyPayoutProcessed
	if payout.Status == billing.PayoutRejected {
		key = events.KeyPayoutRejected
	}
	w.publish(ctx, key, &payout)
	return &payout, nil
}

func (w *Workflow) publish(ctx context.Context, key string, p *billing.Payout) {
	msg := events.PayoutChanged{
		PayoutID:     p.ID,
		InstructorID: p.InstructorID,
		Amount:       p.Amount,
		Status:       p.Status,
		OccurredAt:   time.Now().UTC(),
	}
	if p.TransactionRef != nil {
		msg.TransactionRef = *p.TransactionRef
	}
	if err := w.events.Publish(ctx, key, msg); err != nil {
		w.log.Warn("publish payout event failed", "payout_id", p.ID, "key", key, "error", err)
	}
}
