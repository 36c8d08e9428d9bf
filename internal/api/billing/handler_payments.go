package billing

import (
	"net/http"
	"time"

	"course-ledger/internal/api/params"
	"course-ledger/internal/domain/billing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

type PaymentView struct {
	ID                uint      `json:"id"`
	CourseID          uint      `json:"course_id"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	Provider          string    `json:"provider"`
	ProviderOrderID   string    `json:"provider_order_id"`
	ProviderPaymentID string    `json:"provider_payment_id"`
	CreatedAt         time.Time `json:"created_at"`
}

func NewPaymentView(p billing.Payment) PaymentView {
	return PaymentView{
		ID:                p.ID,
		CourseID:          p.CourseID,
		Amount:            p.AmountMinorUnits,
		Currency:          p.Currency,
		Status:            p.Status,
		Provider:          p.Provider,
		ProviderOrderID:   p.ProviderOrderID,
		ProviderPaymentID: p.ProviderPaymentID,
		CreatedAt:         p.CreatedAt,
	}
}

// GetPaymentHistory lists the caller's own payments, failed attempts included.
func (h *Handler) GetPaymentHistory(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	page := params.Page(c)

	q := h.db.WithContext(c.Request.Context()).
		Model(&billing.Payment{}).
		Where("user_id = ?", userID).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}

	var payments []billing.Payment
	if err := q.Order("created_at DESC").Order("id DESC").
		Limit(page.Limit()).
		Offset(page.Offset()).
		Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}

	views := make([]PaymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, NewPaymentView(p))
	}
	c.JSON(http.StatusOK, params.Listing(views, total, page))
}
