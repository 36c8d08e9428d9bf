package users

import (
	"errors"
	"net/http"

	"course-ledger/internal/api/apierror"
	"course-ledger/internal/domain/billing"
	"course-ledger/internal/domain/courses"
	"course-ledger/internal/domain/users"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) GetCurrentUser(c *gin.Context) {
	userID := c.GetUint("user_id")
	db := h.db.WithContext(c.Request.Context())

	var user users.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			apierror.Respond(c, billing.NotFound("User not found"))
			return
		}
		apierror.Respond(c, err)
		return
	}

	resp := MeResponse{
		User: UserDTO{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		},
	}

	if err := db.Model(&courses.Enrollment{}).Where("user_id = ?", user.ID).Count(&resp.Enrollments).Error; err != nil {
		apierror.Respond(c, err)
		return
	}

	if user.Role == users.RoleInstructor {
		var pending int64
		if err := db.Model(&billing.Payout{}).
			Where("instructor_id = ? AND status = ?", user.ID, billing.PayoutRequested).
			Count(&pending).Error; err != nil {
			apierror.Respond(c, err)
			return
		}
		resp.Wallet = &WalletDTO{
			Balance:        user.WalletBalance,
			TotalEarnings:  user.TotalEarnings,
			HasBankDetails: !user.BankDetails.IsEmpty(),
			PendingPayout:  pending > 0,
		}
	}

	c.JSON(http.StatusOK, resp)
}
