package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/rental/config"
	"example.com/backstage/services/rental/internal/core"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, handlers *APIHandlers, services *core.ServiceRegistry, cfg config.ServerConfig, limiter RateCounter, logger *logrus.Logger) {
	// Global middleware
	router.Use(Recovery(logger))
	router.Use(RequestLogger(logger))
	router.Use(CORS(cfg.AllowedOrigins))

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(RateLimiter(limiter, cfg.RateLimitPerMinute, logger))

	// Public endpoints
	v1.POST("/auth/signup", handlers.SignUp)
	v1.POST("/auth/signin", handlers.SignIn)
	v1.POST("/bookings/quote", handlers.QuoteBooking)
	v1.GET("/properties", handlers.ListProperties)
	v1.GET("/properties/:id", handlers.GetProperty)

	authAPI := v1.Group("")
	authAPI.Use(SessionAuthentication(services.Authentication))
	{
		authAPI.POST("/auth/signout", handlers.SignOut)
		authAPI.GET("/me", handlers.Me)

		hosts := authAPI.Group("")
		hosts.Use(RequireRole(core.RoleHost, core.RoleAdmin))
		{
			hosts.POST("/properties", handlers.SubmitProperty)
			hosts.GET("/me/properties", handlers.ListMyProperties)
		}

		// Landlord tenancy management
		landlord := authAPI.Group("/landlord")
		landlord.Use(RequireRole(core.RoleHost, core.RoleAdmin))
		{
			landlord.GET("/stats", handlers.LandlordStats)
			landlord.GET("/tenants", handlers.ListTenants)
			landlord.POST("/tenants", handlers.CreateTenant)
			landlord.GET("/tenants/:id", handlers.GetTenant)
			landlord.POST("/tenants/:id/end", handlers.EndTenancy)
			landlord.POST("/tenants/:id/schedule", handlers.GenerateSchedule)
			landlord.GET("/tenants/:id/payments", handlers.ListPayments)
			landlord.POST("/tenants/:id/payments", handlers.RecordPayment)
			landlord.POST("/payments/:id/waive", handlers.WaivePayment)
			landlord.POST("/payments/:id/late-fee", handlers.AddLateFee)
			landlord.GET("/payments/:id/receipts", handlers.ListReceipts)
		}

		// Either party signs; the service checks who may sign for whom.
		authAPI.POST("/leases/:id/sign", handlers.SignLease)
		authAPI.GET("/tenants/:id/contact", handlers.TenantContact)

		bookings := authAPI.Group("/bookings")
		{
			bookings.GET("", handlers.ListBookings)
			bookings.POST("", handlers.CreateBooking)
			bookings.GET("/:id", handlers.GetBooking)
			bookings.POST("/:id/confirm", handlers.ConfirmBooking)
			bookings.POST("/:id/complete", handlers.CompleteBooking)
			bookings.POST("/:id/cancel", handlers.CancelBooking)
			bookings.POST("/:id/review", handlers.CreateReview)
		}

		admin := authAPI.Group("/admin")
		admin.Use(RequireRole(core.RoleAdmin))
		{
			admin.GET("/stats", handlers.DashboardStats)
			admin.GET("/users", handlers.ListUsers)
			admin.GET("/users/:id", handlers.GetUser)
			admin.DELETE("/users/:id", handlers.DeleteUser)

			admin.GET("/properties", handlers.AdminListProperties)
			admin.POST("/properties/:id/approve", handlers.ApproveProperty)
			admin.POST("/properties/:id/reject", handlers.RejectProperty)
			admin.POST("/properties/bulk-approve", handlers.BulkApproveProperties)
			admin.POST("/properties/bulk-reject", handlers.BulkRejectProperties)
			admin.GET("/rejection-categories", handlers.RejectionCategories)

			admin.GET("/audit-logs", handlers.ListAuditLogs)
			admin.POST("/audit-logs", handlers.LogAdminAction)
		}
	}
}
