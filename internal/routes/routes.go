package routes

import (
	"net/http"

	"maternity-companion-server/internal/assistant"
	"maternity-companion-server/internal/handlers"
	"maternity-companion-server/internal/metrics"
	"maternity-companion-server/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps handlers.Deps, assistantSvc *assistant.Service, m *metrics.Metrics) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(deps)
	pregnancyHandler := handlers.NewPregnancyHandler(deps)
	appointmentHandler := handlers.NewAppointmentHandler(deps)
	logHandler := handlers.NewLogHandler(deps)
	insightHandler := handlers.NewInsightHandler(deps, assistantSvc)
	chatHandler := handlers.NewChatHandler(deps, assistantSvc)
	vaccinationHandler := handlers.NewVaccinationHandler(deps)

	aiLimiter := middleware.NewUserRateLimiter(deps.Cfg.Assistant.RequestsPerMinute, deps.Cfg.Assistant.Burst)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
			authRoutes.POST("/verify-email", authHandler.VerifyEmail)
			authRoutes.POST("/forgot-password", authHandler.ForgotPassword)
			authRoutes.POST("/reset-password", authHandler.ResetPassword)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(deps.Cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
			authRoutesPrivate.POST("/resend-verification", authHandler.ResendVerification)
		}

		private.GET("/pregnancy", pregnancyHandler.GetSummary)

		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointments)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.PUT("/:id", appointmentHandler.UpdateAppointment)
			appointmentRoutes.DELETE("/:id", appointmentHandler.DeleteAppointment)
			appointmentRoutes.PATCH("/:id/attendance", appointmentHandler.UpdateAttendance)
		}

		logRoutes := private.Group("/logs")
		{
			logRoutes.POST("/symptoms", logHandler.CreateSymptomLog)
			logRoutes.GET("/symptoms", logHandler.GetSymptomLogs)
			logRoutes.POST("/weight", logHandler.CreateWeightLog)
			logRoutes.GET("/weight", logHandler.GetWeightLogs)
		}

		vaccinationRoutes := private.Group("/vaccinations")
		{
			vaccinationRoutes.GET("", vaccinationHandler.GetVaccinations)
			vaccinationRoutes.PATCH("/:id", vaccinationHandler.UpdateVaccination)
		}

		// AI-backed routes share a per-user budget
		insightRoutes := private.Group("/insights")
		insightRoutes.Use(aiLimiter.Middleware())
		{
			insightRoutes.GET("/baby-update", insightHandler.GetBabyUpdate)
			insightRoutes.GET("/health-tips", insightHandler.GetHealthTips)
			insightRoutes.GET("/dashboard-tip", insightHandler.GetDashboardTip)
		}

		chatRoutes := private.Group("/chat")
		{
			chatRoutes.GET("", chatHandler.GetHistory)
			chatRoutes.POST("", aiLimiter.Middleware(), chatHandler.SendMessage)
			chatRoutes.DELETE("", chatHandler.ClearHistory)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := deps.DB.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}
}
