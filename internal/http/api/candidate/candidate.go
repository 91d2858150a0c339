package candidate

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hiredeck/hiredeck/internal/config"
	"github.com/hiredeck/hiredeck/internal/hiring"
	handlers "github.com/hiredeck/hiredeck/internal/http/api/candidate/handlers"
	"github.com/hiredeck/hiredeck/internal/models"
	"github.com/hiredeck/hiredeck/internal/security"
	"gorm.io/gorm"
)

// RegisterCandidateRoutes registers candidate routes, middleware, and handlers.
func RegisterCandidateRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, engine *hiring.Engine) {
	if r == nil || db == nil {
		return
	}

	jobHandler := handlers.NewJobHandler(db)
	r.GET("/v1/jobs", jobHandler.List)
	r.GET("/v1/jobs/:id", jobHandler.Get)

	group := r.Group("/v1/candidate")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	group.POST("/register", authHandler.Register)
	group.POST("/login", authHandler.Login)

	authed := group.Group("")
	authed.Use(candidateAuthMiddleware(db, jwtCfg))

	resumeHandler := handlers.NewResumeHandler(db)
	authed.POST("/resumes", resumeHandler.Create)
	authed.GET("/resumes", resumeHandler.List)
	authed.DELETE("/resumes/:id", resumeHandler.Delete)

	applicationHandler := handlers.NewApplicationHandler(db, engine)
	authed.POST("/jobs/:id/apply", applicationHandler.Apply)
	authed.GET("/applications", applicationHandler.List)
	authed.POST("/applications/:id/withdraw", applicationHandler.Withdraw)
}

// candidateAuthMiddleware validates candidate JWTs and loads candidate context.
func candidateAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
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
		if errJWT != nil || claims.Actor != security.ActorCandidate {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var candidate models.Candidate
		if errFind := db.WithContext(c.Request.Context()).First(&candidate, claims.AccountID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "candidate not found"})
			return
		}
		if !candidate.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}

		c.Set("candidate", &candidate)
		c.Set("candidateID", candidate.ID)
		c.Next()
	}
}
