package users

import "time"

const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// BankDetails is stored as-is for admins performing manual transfers.
// It never takes part in balance computations.
type BankDetails struct {
	AccountHolder string `gorm:"column:account_holder" json:"account_holder"`
	AccountNumber string `gorm:"column:account_number" json:"account_number"`
	IFSC          string `gorm:"column:ifsc" json:"ifsc"`
	UPIID         string `gorm:"column:upi_id" json:"upi_id"`
}

func (b BankDetails) IsEmpty() bool {
	return b.AccountNumber == "" && b.UPIID == ""
}

type User struct {
	ID    uint `gorm:"primaryKey"`
	Name  string
	Email string `gorm:"not null;uniqueIndex:idx_users_email"`
	Role  string `gorm:"type:varchar(20);not null;default:'student'"`

	// Wallet projection. Written only by the ledger and payout services;
	// the earnings ledger is the source of truth.
	WalletBalance int64 `gorm:"column:wallet_balance;not null;default:0"`
	TotalEarnings int64 `gorm:"column:total_earnings;not null;default:0"`

	BankDetails BankDetails `gorm:"embedded;embeddedPrefix:bank_"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
