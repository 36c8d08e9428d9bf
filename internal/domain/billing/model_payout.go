package billing

import (
	"time"

	"course-ledger/internal/domain/users"
)

const (
	PayoutRequested = "REQUESTED"
	PayoutProcessed = "PROCESSED"
	PayoutRejected  = "REJECTED"
)

// Payout moves from REQUESTED to exactly one terminal state. The partial
// unique index keeps a single open request per instructor.
type Payout struct {
	ID             uint       `gorm:"primaryKey"`
	InstructorID   uint       `gorm:"not null;index;uniqueIndex:idx_payouts_open_request,where:status = 'REQUESTED'"`
	Instructor     users.User `gorm:"foreignKey:InstructorID"`
	Amount         int64      `gorm:"not null"`
	Status         string     `gorm:"type:varchar(20);not null;index"`
	RequestedAt    time.Time  `gorm:"not null"`
	ProcessedAt    *time.Time
	TransactionRef *string `gorm:"type:varchar(100)"`
	UpdatedAt      time.Time
}

func (p Payout) IsTerminal() bool {
	return p.Status == PayoutProcessed || p.Status == PayoutRejected
}
