package ledger

import (
	"context"
	"errors"
	"fmt"

	"course-ledger/internal/domain/billing"
	"course-ledger/internal/domain/users"

	"gorm.io/gorm"
)

// Wallet is the instructor-facing view of the balance projection.
type Wallet struct {
	InstructorID  uint              `json:"instructor_id"`
	Balance       int64             `json:"balance"`
	TotalEarnings int64             `json:"total_earnings"`
	BankDetails   users.BankDetails `json:"bank_details"`
}

func (l *Ledger) Balance(ctx context.Context, instructorID uint) (*Wallet, error) {
	var u users.User
	err := l.db.WithContext(ctx).First(&u, instructorID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.NotFound("Instructor not found")
		}
		return nil, fmt.Errorf("load wallet %d: %w", instructorID, err)
	}

	return &Wallet{
		InstructorID:  u.ID,
		Balance:       u.WalletBalance,
		TotalEarnings: u.TotalEarnings,
		BankDetails:   u.BankDetails,
	}, nil
}

// Entries lists an instructor's ledger, newest first.
func (l *Ledger) Entries(ctx context.Context, instructorID uint, page billing.Page) ([]billing.LedgerEntry, int64, error) {
	q := l.db.WithContext(ctx).Model(&billing.LedgerEntry{}).Where("instructor_id = ?", instructorID).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	var entries []billing.LedgerEntry
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(page.Limit()).
		Offset(page.Offset()).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, total, nil
}

// Sum totals an instructor's ledger entries.
func (l *Ledger) Sum(ctx context.Context, instructorID uint) (int64, error) {
	var sum int64
	err := l.db.WithContext(ctx).
		Model(&billing.LedgerEntry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("instructor_id = ?", instructorID).
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("sum ledger entries: %w", err)
	}
	return sum, nil
}

// Drift is a wallet whose balance no longer matches its ledger.
type Drift struct {
	InstructorID  uint  `json:"instructor_id"`
	WalletBalance int64 `json:"wallet_balance"`
	LedgerSum     int64 `json:"ledger_sum"`
}

// Reconcile reports every user whose wallet balance differs from the sum of
// their ledger entries. It never repairs anything.
func (l *Ledger) Reconcile(ctx context.Context) ([]Drift, error) {
	var drifts []Drift
	err := l.db.WithContext(ctx).
		Table("users").
		Select("users.id AS instructor_id, users.wallet_balance AS wallet_balance, COALESCE(SUM(e.amount), 0) AS ledger_sum").
		Joins("LEFT JOIN earnings_ledger_entries e ON e.instructor_id = users.id").
		Group("users.id, users.wallet_balance").
		Having("users.wallet_balance <> COALESCE(SUM(e.amount), 0)").
		Order("users.id").
		Scan(&drifts).Error
	if err != nil {
		return nil, fmt.Errorf("reconcile wallets: %w", err)
	}
	return drifts, nil
}
