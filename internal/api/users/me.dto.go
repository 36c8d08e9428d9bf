package users

type MeResponse struct {
	User        UserDTO    `json:"user"`
	Enrollments int64      `json:"enrollments"`
	Wallet      *WalletDTO `json:"wallet"`
}

type UserDTO struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// WalletDTO is only set for instructors.
type WalletDTO struct {
	Balance        int64 `json:"balance"`
	TotalEarnings  int64 `json:"total_earnings"`
	HasBankDetails bool  `json:"has_bank_details"`
	PendingPayout  bool  `json:"pending_payout"`
}
