package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"course-ledger/internal/domain/billing"
	"course-ledger/internal/domain/users"

	"gorm.io/gorm"
)

type Filter struct {
	Status       string
	InstructorID uint
	Page         billing.Page
}

// List returns payouts newest first, with the instructor preloaded.
func (w *Workflow) List(ctx context.Context, f Filter) ([]billing.Payout, int64, error) {
	q := w.db.WithContext(ctx).Model(&billing.Payout{})
	if s := strings.ToUpper(strings.TrimSpace(f.Status)); s != "" {
		q = q.Where("status = ?", s)
	}
	if f.InstructorID != 0 {
		q = q.Where("instructor_id = ?", f.InstructorID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count payouts: %w", err)
	}

	var out []billing.Payout
	err := q.Preload("Instructor").
		Order("requested_at DESC").Order("id DESC").
		Limit(f.Page.Limit()).
		Offset(f.Page.Offset()).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list payouts: %w", err)
	}
	return out, total, nil
}

func (w *Workflow) Get(ctx context.Context, id uint) (*billing.Payout, error) {
	var p billing.Payout
	err := w.db.WithContext(ctx).Preload("Instructor").First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.NotFound("Payout not found")
		}
		return nil, fmt.Errorf("load payout %d: %w", id, err)
	}
	return &p, nil
}

// UpdateBankDetails stores the details admins use for manual transfers.
// They are never read by balance computations.
func (w *Workflow) UpdateBankDetails(ctx context.Context, instructorID uint, d users.BankDetails) (*users.BankDetails, error) {
	d = users.BankDetails{
		AccountHolder: strings.TrimSpace(d.AccountHolder),
		AccountNumber: strings.TrimSpace(d.AccountNumber),
		IFSC:          strings.ToUpper(strings.TrimSpace(d.IFSC)),
		UPIID:         strings.TrimSpace(d.UPIID),
	}
	if d.IsEmpty() {
		return nil, billing.InvalidInput("Account number or UPI ID is required")
	}

	res := w.db.WithContext(ctx).Model(&users.User{}).
		Where("id = ?", instructorID).
		Updates(map[string]interface{}{
			"bank_account_holder": d.AccountHolder,
			"bank_account_number": d.AccountNumber,
			"bank_ifsc":           d.IFSC,
			"bank_upi_id":         d.UPIID,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update bank details: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, billing.NotFound("Instructor not found")
	}

	w.log.Info("bank details updated", "instructor_id", instructorID)
	return &d, nil
}
