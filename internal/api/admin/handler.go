package admin

import (
	"net/http"
	"strings"
	"time"

	"course-ledger/internal/api/apierror"
	"course-ledger/internal/api/earnings"
	"course-ledger/internal/api/params"
	"course-ledger/internal/domain/billing"
	"course-ledger/internal/services/ledger"
	"course-ledger/internal/services/payouts"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	db      *gorm.DB
	ledger  *ledger.Ledger
	payouts *payouts.Workflow
}

func NewHandler(db *gorm.DB, l *ledger.Ledger, w *payouts.Workflow) *Handler {
	return &Handler{db: db, ledger: l, payouts: w}
}

type AdminPayment struct {
	ID                uint   `json:"id"`
	Email             string `json:"email"`
	CourseID          uint   `json:"course_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
	Provider          string `json:"provider"`
	ProviderOrderID   string `json:"provider_order_id"`
	ProviderPaymentID string `json:"provider_payment_id"`
	CreatedAt         string `json:"created_at"`
}

type AdminStats struct {
	TotalRevenue       int64 `json:"total_revenue"`
	RecentRevenue      int64 `json:"recent_revenue"`
	SuccessfulPayments int64 `json:"successful_payments"`
	FailedPayments     int64 `json:"failed_payments"`
	InstructorEarnings int64 `json:"instructor_earnings"`
	PendingPayouts     int64 `json:"pending_payouts"`
	PendingPayoutTotal int64 `json:"pending_payout_total"`
	PaidOutTotal       int64 `json:"paid_out_total"`
}

// ListTransactions is a read projection over payments; ?status= filters.
func (h *Handler) ListTransactions(c *gin.Context) {
	page := params.Page(c)
	q := h.db.WithContext(c.Request.Context()).Model(&billing.Payment{})
	if s := strings.ToUpper(strings.TrimSpace(c.Query("status"))); s != "" {
		q = q.Where("status = ?", s)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}

	var payments []billing.Payment
	err := q.Preload("User").
		Order("created_at DESC").Order("id DESC").
		Limit(page.Limit()).
		Offset(page.Offset()).
		Find(&payments).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}

	result := make([]AdminPayment, 0, len(payments))
	for _, p := range payments {
		result = append(result, AdminPayment{
			ID:                p.ID,
			Email:             p.User.Email,
			CourseID:          p.CourseID,
			Amount:            p.AmountMinorUnits,
			Currency:          p.Currency,
			Status:            p.Status,
			Provider:          p.Provider,
			ProviderOrderID:   p.ProviderOrderID,
			ProviderPaymentID: p.ProviderPaymentID,
			CreatedAt:         p.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	c.JSON(http.StatusOK, params.Listing(result, total, page))
}

func (h *Handler) ListPayouts(c *gin.Context) {
	page := params.Page(c)
	list, total, err := h.payouts.List(c.Request.Context(), payouts.Filter{
		Status: c.Query("status"),
		Page:   page,
	})
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	views := make([]earnings.PayoutView, 0, len(list))
	for _, p := range list {
		views = append(views, earnings.NewPayoutView(p))
	}
	c.JSON(http.StatusOK, params.Listing(views, total, page))
}

// GetPayout includes the instructor's bank details for the manual transfer.
func (h *Handler) GetPayout(c *gin.Context) {
	id, err := params.ID(c, "id")
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	p, err := h.payouts.Get(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payout":       earnings.NewPayoutView(*p),
		"bank_details": p.Instructor.BankDetails,
	})
}

type processRequest struct {
	Action         string `json:"action" binding:"required,payout_action"`
	TransactionRef string `json:"transaction_ref" binding:"max=100"`
}

func (h *Handler) ProcessPayout(c *gin.Context) {
	id, err := params.ID(c, "id")
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Action must be APPROVE or REJECT"})
		return
	}
	action, err := payouts.ParseAction(req.Action)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	p, err := h.payouts.ProcessPayout(c.Request.Context(), id, req.TransactionRef, action)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, earnings.NewPayoutView(*p))
}

func (h *Handler) GetAdminStats(c *gin.Context) {
	var stats AdminStats
	db := h.db.WithContext(c.Request.Context())

	sum := func(model interface{}, column string, dest *int64, where string, args ...interface{}) error {
		return db.Model(model).Where(where, args...).Select("COALESCE(SUM(" + column + "), 0)").Scan(dest).Error
	}
	count := func(model interface{}, dest *int64, where string, args ...interface{}) error {
		return db.Model(model).Where(where, args...).Count(dest).Error
	}

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	queries := []func() error{
		func() error {
			return sum(&billing.Payment{}, "amount_minor_units", &stats.TotalRevenue, "status = ?", billing.PaymentSuccess)
		},
		func() error {
			return sum(&billing.Payment{}, "amount_minor_units", &stats.RecentRevenue, "status = ? AND created_at >= ?", billing.PaymentSuccess, thirtyDaysAgo)
		},
		func() error { return count(&billing.Payment{}, &stats.SuccessfulPayments, "status = ?", billing.PaymentSuccess) },
		func() error { return count(&billing.Payment{}, &stats.FailedPayments, "status = ?", billing.PaymentFailed) },
		func() error { return sum(&billing.LedgerEntry{}, "amount", &stats.InstructorEarnings, "type = ?", billing.EntryCourseSale) },
		func() error { return count(&billing.Payout{}, &stats.PendingPayouts, "status = ?", billing.PayoutRequested) },
		func() error { return sum(&billing.Payout{}, "amount", &stats.PendingPayoutTotal, "status = ?", billing.PayoutRequested) },
		func() error { return sum(&billing.Payout{}, "amount", &stats.PaidOutTotal, "status = ?", billing.PayoutProcessed) },
	}
	for _, q := range queries {
		if err := q(); err != nil {
			apierror.Respond(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, stats)
}

// GetUserWallet shows an instructor's wallet next to their ledger sum.
func (h *Handler) GetUserWallet(c *gin.Context) {
	id, err := params.ID(c, "id")
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	ctx := c.Request.Context()

	wallet, err := h.ledger.Balance(ctx, id)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	sum, err := h.ledger.Sum(ctx, id)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet":     wallet,
		"ledger_sum": sum,
		"in_sync":    sum == wallet.Balance,
	})
}

// Reconcile runs the wallet/ledger comparison on demand. Read-only.
func (h *Handler) Reconcile(c *gin.Context) {
	drifts, err := h.ledger.Reconcile(c.Request.Context())
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if drifts == nil {
		drifts = []ledger.Drift{}
	}
	c.JSON(http.StatusOK, gin.H{"drifts": drifts, "count": len(drifts)})
}
