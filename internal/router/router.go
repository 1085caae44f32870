package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "signet/docs" // registers the generated OpenAPI spec
	"signet/internal/handler"
	"signet/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	verifier middleware.OwnerVerifier,
	allowedOrigins []string,
	docH *handler.DocumentHandler,
	signH *handler.SignHandler,
	statsH *handler.StatsHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")

	// Recipient routes - the token in the path is the credential
	sign := v1.Group("/sign/:token")
	sign.GET("", signH.Get)
	sign.GET("/file-url", signH.FileURL)
	sign.PUT("/signature", signH.SaveSignature)
	sign.PUT("/fields/:fieldId", signH.SaveFieldValue)
	sign.POST("/complete", signH.Complete)
	sign.POST("/decline", signH.Decline)

	// Owner routes - require a valid bearer token
	docs := v1.Group("/documents")
	docs.Use(middleware.AuthMiddleware(verifier))
	docs.POST("", docH.Create)
	docs.GET("", docH.List)
	docs.GET("/:id", docH.GetByID)
	docs.DELETE("/:id", docH.Delete)
	docs.POST("/:id/recipients", docH.AddRecipients)
	docs.PUT("/:id/recipients/:requestId/fields", docH.UpdateFields)
	docs.POST("/:id/send", docH.Send)
	docs.POST("/:id/resend", docH.Resend)
	docs.POST("/:id/cancel", docH.Cancel)
	docs.POST("/:id/restore", docH.Restore)
	docs.GET("/:id/download", docH.Download)
	docs.GET("/:id/audit", docH.AuditTrail)
	docs.GET("/:id/audit/export", docH.ExportAudit)

	stats := v1.Group("/stats")
	stats.Use(middleware.AuthMiddleware(verifier))
	stats.GET("", statsH.GetStats)

	return r
}
