package routes

import (
	"net/http"

	adminapi "course-ledger/internal/api/admin"
	billingapi "course-ledger/internal/api/billing"
	checkoutapi "course-ledger/internal/api/checkout"
	"course-ledger/internal/api/earnings"
	"course-ledger/internal/api/params"
	stripewebhooks "course-ledger/internal/api/stripewebhook"
	usersapi "course-ledger/internal/api/users"
	"course-ledger/internal/app/http/middleware"
	"course-ledger/internal/domain/users"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Checkout *checkoutapi.Handler
	Payments *billingapi.Handler
	Earnings *earnings.Handler
	Admin    *adminapi.Handler
	Stripe   *stripewebhooks.Handler
	Users    *usersapi.Handler
}

func RegisterRoutes(r *gin.Engine, h Handlers, jwtSecret string) {
	params.RegisterValidators()

	// raw body: the Stripe signature covers the exact bytes
	r.POST("/webhook/stripe", h.Stripe.StripeWebhook)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(jwtSecret), middleware.SanitizeAndCleanInputMiddleware())
	auth.GET("/me", h.Users.GetCurrentUser)
	auth.POST("/checkout/orders", h.Checkout.CreateOrder)
	auth.POST("/checkout/verify", h.Checkout.VerifyPayment)
	auth.GET("/payments", h.Payments.GetPaymentHistory)

	// Instructors
	instructor := auth.Group("/instructor")
	instructor.Use(middleware.RequireRole(users.RoleInstructor))
	instructor.GET("/wallet", h.Earnings.GetWallet)
	instructor.GET("/ledger", h.Earnings.ListLedger)
	instructor.PUT("/bank-details", h.Earnings.UpdateBankDetails)
	instructor.POST("/payouts", h.Earnings.RequestPayout)
	instructor.GET("/payouts", h.Earnings.ListPayouts)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtSecret), middleware.RequireRole(users.RoleAdmin), middleware.SanitizeAndCleanInputMiddleware())
	admin.GET("/transactions", h.Admin.ListTransactions)
	admin.GET("/payouts", h.Admin.ListPayouts)
	admin.GET("/payouts/:id", h.Admin.GetPayout)
	admin.POST("/payouts/:id/process", h.Admin.ProcessPayout)
	admin.GET("/stats", h.Admin.GetAdminStats)
	admin.GET("/users/:id/wallet", h.Admin.GetUserWallet)
	admin.POST("/reconcile", h.Admin.Reconcile)
}
