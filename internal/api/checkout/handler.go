package checkout

import (
	"net/http"

	"course-ledger/internal/api/apierror"
	"course-ledger/internal/domain/billing"
	checkoutsvc "course-ledger/internal/services/checkout"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	gate *checkoutsvc.Gate
}

func NewHandler(gate *checkoutsvc.Gate) *Handler {
	return &Handler{gate: gate}
}

type createOrderRequest struct {
	CourseID uint   `json:"course_id" binding:"required"`
	Plan     string `json:"plan"`
}

func (h *Handler) CreateOrder(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "course_id is required"})
		return
	}

	order, err := h.gate.CreateOrder(c.Request.Context(), checkoutsvc.CreateOrderInput{
		UserID:   userID,
		CourseID: req.CourseID,
		Plan:     req.Plan,
	})
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// Field names follow the provider's checkout callback.
type verifyRequest struct {
	OrderID        string                 `json:"razorpay_order_id" binding:"required"`
	PaymentID      string                 `json:"razorpay_payment_id" binding:"required"`
	Signature      string                 `json:"razorpay_signature"`
	CourseID       uint                   `json:"course_id" binding:"required"`
	BillingDetails map[string]interface{} `json:"billing_details"`
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing payment details"})
		return
	}

	res, err := h.gate.VerifyPayment(c.Request.Context(), checkoutsvc.VerifyInput{
		OrderID:        req.OrderID,
		PaymentID:      req.PaymentID,
		Signature:      req.Signature,
		UserID:         userID,
		CourseID:       req.CourseID,
		BillingDetails: req.BillingDetails,
	})
	if err != nil {
		status := apierror.Status(err)
		if status == http.StatusInternalServerError {
			apierror.Respond(c, err)
			return
		}
		c.JSON(status, gin.H{"success": false, "message": billing.Message(err, "Payment verification failed")})
		return
	}

	c.JSON(http.StatusOK, res)
}
