package api

import (
	"net/http"

	"creator-subscription-api/internal/middleware"
	"creator-subscription-api/internal/models"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up all routes. auth authenticates the caller and stores
// their identity on the context.
func SetupRoutes(r *gin.Engine, h *Handler, auth gin.HandlerFunc, serviceName string) {
	api := r.Group("/api")
	{
		// Payment provider routes (no authentication, signatures are checked per provider)
		payments := api.Group("/payments")
		{
			payments.POST("/callback/:provider", h.PaymentWebhook)
			payments.GET("/callback", h.PaymentRedirect)
		}

		authed := api.Group("")
		authed.Use(auth, middleware.SanitizeInputMiddleware())
		{
			subscriptions := authed.Group("/subscriptions")
			{
				subscriptions.POST("", h.CreateSubscription)
				subscriptions.GET("", h.ListSubscriptions)
				subscriptions.GET("/active", h.GetActiveSubscription)
				subscriptions.GET("/:reference/status", h.GetSubscriptionStatus)
				subscriptions.DELETE("/:reference/poll", h.CancelPolling)
			}

			authed.GET("/pricing/:owner_id", h.GetPricing)

			creator := authed.Group("/creator")
			creator.Use(middleware.RequireRole(models.RoleOwner, models.RoleAdmin))
			{
				creator.GET("/earnings/balance", h.GetBalance)
				creator.GET("/earnings", h.GetEarnings)
				creator.POST("/withdrawals", h.RequestWithdrawal)
				creator.GET("/withdrawals", h.ListWithdrawals)
				creator.GET("/subscribers", h.ListSubscribers)
				creator.PUT("/pricing", h.SetCreatorPrice)
			}

			admin := authed.Group("/admin")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.POST("/withdrawals/:id/decision", h.DecideWithdrawal)
				admin.GET("/withdrawals", h.AdminListWithdrawals)
				admin.GET("/earnings", h.AdminListEarnings)
				admin.GET("/earnings/summary", h.AdminEarningsSummary)
				admin.PUT("/pricing/global", h.SetGlobalPrice)
				admin.PUT("/pricing/:owner_id/rate", h.SetCreatorRate)
			}
		}
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
		})
	})
}
