package billing

import (
	"time"

	"course-ledger/internal/domain/users"

	"gorm.io/datatypes"
)

const (
	PaymentSuccess  = "SUCCESS"
	PaymentFailed   = "FAILED"
	PaymentRefunded = "REFUNDED"

	OrderCreated = "CREATED"

	CurrencyINR = "INR"
)

// Order is written once per checkout attempt and never updated.
type Order struct {
	ID               string `gorm:"primaryKey;type:varchar(100)"`
	UserID           uint   `gorm:"not null;index"`
	CourseID         uint   `gorm:"not null;index"`
	Plan             string `gorm:"type:varchar(20);not null"`
	AmountMinorUnits int64  `gorm:"not null"`
	Currency         string `gorm:"type:varchar(10);not null;default:'INR'"`
	Receipt          string `gorm:"type:varchar(100)"`
	Provider         string `gorm:"type:varchar(20)"`
	Mock             bool
	Status           string `gorm:"type:varchar(20);not null"`
	CreatedAt        time.Time
}

// Payment records each verification outcome. A (provider order, provider
// payment) pair holds at most one row per status.
type Payment struct {
	ID                uint `gorm:"primaryKey"`
	UserID            uint `gorm:"not null;index"`
	User              users.User
	CourseID          uint   `gorm:"not null;index"`
	AmountMinorUnits  int64  `gorm:"not null"`
	Currency          string `gorm:"type:varchar(10);not null;default:'INR'"`
	Status            string `gorm:"type:varchar(20);not null;uniqueIndex:idx_payments_provider_ref"`
	Provider          string `gorm:"type:varchar(20)"`
	ProviderOrderID   string `gorm:"type:varchar(100);not null;uniqueIndex:idx_payments_provider_ref"`
	ProviderPaymentID string `gorm:"type:varchar(100);not null;uniqueIndex:idx_payments_provider_ref"`
	Signature         *string
	BillingDetails    datatypes.JSON
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
