// Package ledger owns instructor wallets and the append-only earnings ledger.
// Every wallet mutation happens here, under a row lock on the instructor,
// together with the ledger entry that explains it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"course-ledger/database"
	"course-ledger/internal/domain/billing"
	"course-ledger/internal/domain/courses"
	"course-ledger/internal/domain/users"
	"course-ledger/internal/logging"
	"course-ledger/internal/metrics"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InstructorShare is the fraction of gross revenue credited to the instructor.
// The platform keeps the remaining 30%.
var InstructorShare = decimal.RequireFromString("0.70")

type Ledger struct {
	db  *gorm.DB
	log *slog.Logger
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db, log: logging.New("ledger")}
}

// Share returns round(gross * 0.70), half away from zero.
func Share(gross int64) int64 {
	return decimal.NewFromInt(gross).Mul(InstructorShare).Round(0).IntPart()
}

// Sale describes a course sale to credit.
type Sale struct {
	InstructorID uint
	CourseID     uint
	CourseTitle  string
	Gross        int64
}

// CreditSale credits the instructor's share of gross in its own transaction.
func (l *Ledger) CreditSale(ctx context.Context, instructorID, courseID uint, gross int64) (*billing.LedgerEntry, error) {
	var entry *billing.LedgerEntry
	err := database.Transact(ctx, l.db, func(tx *gorm.DB) error {
		var course courses.Course
		if err := tx.Select("id", "title").First(&course, courseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return billing.NotFound("Course not found")
			}
			return fmt.Errorf("load course %d: %w", courseID, err)
		}

		e, err := l.CreditSaleTx(tx, Sale{
			InstructorID: instructorID,
			CourseID:     course.ID,
			CourseTitle:  course.Title,
			Gross:        gross,
		})
		entry = e
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.LedgerCredited.Add(float64(entry.Amount))
	return entry, nil
}

// CreditSaleTx is CreditSale inside a caller-owned transaction.
func (l *Ledger) CreditSaleTx(tx *gorm.DB, sale Sale) (*billing.LedgerEntry, error) {
	if sale.Gross <= 0 {
		return nil, billing.InvalidInput("Sale amount must be positive")
	}

	instructor, err := LockWallet(tx, sale.InstructorID)
	if err != nil {
		return nil, err
	}

	share := Share(sale.Gross)
	if err := adjustWallet(tx, instructor.ID, share, share); err != nil {
		return nil, err
	}

	courseID := sale.CourseID
	entry := &billing.LedgerEntry{
		InstructorID: instructor.ID,
		CourseID:     &courseID,
		Amount:       share,
		Type:         billing.EntryCourseSale,
		Description:  fmt.Sprintf("Sale of course %q", sale.CourseTitle),
	}
	if err := appendEntry(tx, entry); err != nil {
		return nil, err
	}

	l.log.Info("sale credited",
		"instructor_id", instructor.ID,
		"course_id", sale.CourseID,
		"gross", sale.Gross,
		"share", share,
	)
	return entry, nil
}

// RecordWithdrawalTx debits a freshly requested payout from the wallet.
// The caller must already hold the instructor lock (LockWallet).
func (l *Ledger) RecordWithdrawalTx(tx *gorm.DB, payout *billing.Payout) (*billing.LedgerEntry, error) {
	if err := adjustWallet(tx, payout.InstructorID, -payout.Amount, 0); err != nil {
		return nil, err
	}

	payoutID := payout.ID
	entry := &billing.LedgerEntry{
		InstructorID: payout.InstructorID,
		PayoutID:     &payoutID,
		Amount:       -payout.Amount,
		Type:         billing.EntryWithdrawalRequest,
		Description:  fmt.Sprintf("Withdrawal request #%d", payout.ID),
	}
	if err := appendEntry(tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordRefundTx returns a rejected payout's amount to the wallet.
// totalEarnings is untouched: the money was earned once.
func (l *Ledger) RecordRefundTx(tx *gorm.DB, payout *billing.Payout) (*billing.LedgerEntry, error) {
	if _, err := LockWallet(tx, payout.InstructorID); err != nil {
		return nil, err
	}
	if err := adjustWallet(tx, payout.InstructorID, payout.Amount, 0); err != nil {
		return nil, err
	}

	payoutID := payout.ID
	entry := &billing.LedgerEntry{
		InstructorID: payout.InstructorID,
		PayoutID:     &payoutID,
		Amount:       payout.Amount,
		Type:         billing.EntryRefund,
		Description:  fmt.Sprintf("Payout #%d rejected, funds returned to wallet", payout.ID),
	}
	if err := appendEntry(tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// LockWallet loads the instructor row with SELECT ... FOR UPDATE.
func LockWallet(tx *gorm.DB, instructorID uint) (*users.User, error) {
	var u users.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, instructorID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.NotFound("Instructor not found")
		}
		return nil, fmt.Errorf("lock wallet %d: %w", instructorID, err)
	}
	return &u, nil
}

func adjustWallet(tx *gorm.DB, instructorID uint, balanceDelta, earningsDelta int64) error {
	updates := map[string]interface{}{
		"wallet_balance": gorm.Expr("wallet_balance + ?", balanceDelta),
	}
	if earningsDelta != 0 {
		updates["total_earnings"] = gorm.Expr("total_earnings + ?", earningsDelta)
	}

	res := tx.Model(&users.User{}).Where("id = ?", instructorID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update wallet %d: %w", instructorID, res.Error)
	}
	if res.RowsAffected == 0 {
		return billing.NotFound("Instructor not found")
	}
	return nil
}

func appendEntry(tx *gorm.DB, entry *billing.LedgerEntry) error {
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}
