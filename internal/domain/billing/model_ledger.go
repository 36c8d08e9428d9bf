package billing

import "time"

const (
	EntryCourseSale        = "COURSE_SALE"
	EntryWithdrawalRequest = "WITHDRAWAL_REQUEST"
	EntryRefund            = "REFUND"
)

// LedgerEntry is append-only. Amount is signed: credits are positive,
// debits negative. The sum of an instructor's entries equals the wallet balance.
type LedgerEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	InstructorID uint      `gorm:"not null;index" json:"instructor_id"`
	CourseID     *uint     `json:"course_id,omitempty"`
	PayoutID     *uint     `gorm:"index" json:"payout_id,omitempty"`
	Amount       int64     `gorm:"not null" json:"amount"`
	Type         string    `gorm:"type:varchar(30);not null" json:"type"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "earnings_ledger_entries"
}
