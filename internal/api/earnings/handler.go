// Package earnings serves the instructor wallet, ledger and payout requests.
package earnings

import (
	"net/http"
	"time"

	"course-ledger/internal/api/apierror"
	"course-ledger/internal/api/params"
	"course-ledger/internal/domain/billing"
	"course-ledger/internal/domain/users"
	"course-ledger/internal/services/ledger"
	"course-ledger/internal/services/payouts"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	ledger  *ledger.Ledger
	payouts *payouts.Workflow
}

func NewHandler(l *ledger.Ledger, w *payouts.Workflow) *Handler {
	return &Handler{ledger: l, payouts: w}
}

type PayoutView struct {
	ID             uint       `json:"id"`
	InstructorID   uint       `json:"instructor_id"`
	InstructorName string     `json:"instructor_name,omitempty"`
	Amount         int64      `json:"amount"`
	Status         string     `json:"status"`
	RequestedAt    time.Time  `json:"requested_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	TransactionRef *string    `json:"transaction_ref,omitempty"`
}

func NewPayoutView(p billing.Payout) PayoutView {
	return PayoutView{
		ID:             p.ID,
		InstructorID:   p.InstructorID,
		InstructorName: p.Instructor.Name,
		Amount:         p.Amount,
		Status:         p.Status,
		RequestedAt:    p.RequestedAt,
		ProcessedAt:    p.ProcessedAt,
		TransactionRef: p.TransactionRef,
	}
}

func (h *Handler) GetWallet(c *gin.Context) {
	wallet, err := h.ledger.Balance(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

func (h *Handler) ListLedger(c *gin.Context) {
	page := params.Page(c)
	entries, total, err := h.ledger.Entries(c.Request.Context(), c.GetUint("user_id"), page)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, params.Listing(entries, total, page))
}

type bankDetailsRequest struct {
	AccountHolder string `json:"account_holder" binding:"max=100"`
	AccountNumber string `json:"account_number" binding:"omitempty,numeric,min=6,max=20"`
	IFSC          string `json:"ifsc" binding:"omitempty,alphanum,len=11"`
	UPIID         string `json:"upi_id" binding:"omitempty,max=60,contains=@"`
}

func (h *Handler) UpdateBankDetails(c *gin.Context) {
	var req bankDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bank details"})
		return
	}

	details, err := h.payouts.UpdateBankDetails(c.Request.Context(), c.GetUint("user_id"), users.BankDetails{
		AccountHolder: req.AccountHolder,
		AccountNumber: req.AccountNumber,
		IFSC:          req.IFSC,
		UPIID:         req.UPIID,
	})
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *Handler) RequestPayout(c *gin.Context) {
	p, err := h.payouts.RequestPayout(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewPayoutView(*p))
}

func (h *Handler) ListPayouts(c *gin.Context) {
	page := params.Page(c)
	list, total, err := h.payouts.List(c.Request.Context(), payouts.Filter{
		InstructorID: c.GetUint("user_id"),
		Status:       c.Query("status"),
		Page:         page,
	})
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	views := make([]PayoutView, 0, len(list))
	for _, p := range list {
		views = append(views, NewPayoutView(p))
	}
	c.JSON(http.StatusOK, params.Listing(views, total, page))
}
