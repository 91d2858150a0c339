package employer

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/config"
	"github.com/hiredeck/hiredeck/internal/hiring"
	handlers "github.com/hiredeck/hiredeck/internal/http/api/employer/handlers"
	"github.com/hiredeck/hiredeck/internal/models"
	"github.com/hiredeck/hiredeck/internal/security"
	"github.com/hiredeck/hiredeck/internal/subscription"
	"gorm.io/gorm"
)

// RegisterEmployerRoutes registers employer routes, middleware, and handlers.
func RegisterEmployerRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, orch *subscription.Orchestrator, engine *hiring.Engine) {
	if r == nil || db == nil {
		return
	}

	planHandler := handlers.NewPlanHandler(db)
	r.GET("/v1/plans", planHandler.List)
	r.GET("/v1/plans/:id", planHandler.Get)

	group := r.Group("/v1/employer")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	group.POST("/register", authHandler.Register)
	group.POST("/login", authHandler.Login)

	authed := group.Group("")
	authed.Use(employerAuthMiddleware(db, jwtCfg))

	subscriptionHandler := handlers.NewSubscriptionHandler(db, orch)
	authed.POST("/subscriptions/checkout", subscriptionHandler.Checkout)
	authed.POST("/subscriptions/verify", subscriptionHandler.Verify)
	authed.POST("/subscriptions/complete", subscriptionHandler.Complete)
	authed.GET("/subscriptions", subscriptionHandler.List)
	authed.GET("/subscriptions/active", subscriptionHandler.Active)
	authed.POST("/subscriptions/:id/cancel", subscriptionHandler.Cancel)
	authed.POST("/subscriptions/:id/resume", subscriptionHandler.Resume)
	authed.POST("/subscriptions/:id/change-plan", subscriptionHandler.ChangePlan)

	jobHandler := handlers.NewJobHandler(db)
	authed.POST("/jobs", jobHandler.Create)
	authed.GET("/jobs", jobHandler.List)
	authed.GET("/jobs/:id", jobHandler.Get)
	authed.PUT("/jobs/:id", jobHandler.Update)
	authed.POST("/jobs/:id/feature", jobHandler.Feature)
	authed.POST("/jobs/:id/close", jobHandler.Close)

	applicationHandler := handlers.NewApplicationHandler(db, engine, orch)
	authed.GET("/jobs/:id/applications", applicationHandler.ListByJob)
	authed.PUT("/applications/:id/status", applicationHandler.ChangeStatus)
	authed.PUT("/applications/status", applicationHandler.BatchChangeStatus)
	authed.GET("/applications/:id/resume", applicationHandler.DownloadResume)

	notificationHandler := handlers.NewNotificationHandler(db)
	authed.GET("/notifications", notificationHandler.List)
	authed.POST("/notifications/:id/read", notificationHandler.MarkRead)
}

// employerAuthMiddleware validates employer JWTs and loads employer context.
func employerAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil || claims.Actor != security.ActorEmployer {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var employer models.Employer
		if errFind := db.WithContext(c.Request.Context()).First(&employer, claims.AccountID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "employer not found"})
			return
		}
		if !employer.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}

		c.Set("employer", &employer)
		c.Set("employerID", employer.ID)
		c.Next()
	}
}
