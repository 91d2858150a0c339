package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hiredeck/hiredeck/internal/config"
	"github.com/hiredeck/hiredeck/internal/db"
	"github.com/hiredeck/hiredeck/internal/gateway"
	"github.com/hiredeck/hiredeck/internal/hiring"
	"github.com/hiredeck/hiredeck/internal/http/api/candidate"
	"github.com/hiredeck/hiredeck/internal/http/api/employer"
	"github.com/hiredeck/hiredeck/internal/http/api/webhooks"
	"github.com/hiredeck/hiredeck/internal/notify"
	"github.com/hiredeck/hiredeck/internal/subscription"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// expireSweepInterval is how often overdue subscriptions are deactivated in
// the background.
const expireSweepInterval = time.Hour

// RunServer boots the API server with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	gatewayConfig, _ := config.LoadGatewayConfig(configPath)

	notifier := notify.NewStoreDispatcher(conn)
	orchestrator := subscription.NewOrchestrator(conn, gateway.NewFactory(gatewayConfig), notifier)
	engine := hiring.NewEngine(conn, notifier)

	router := buildRouter(conn, jwtConfig, orchestrator, engine)

	go expireSweepLoop(ctx, orchestrator)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			log.WithError(errShutdown).Warn("server shutdown")
		}
	}()

	log.Infof("starting server on :%d with config=%s", port, configPath)
	if errServe := server.ListenAndServe(); errServe != nil && errServe != http.ErrServerClosed {
		return errServe
	}
	return nil
}

// buildRouter assembles the gin engine with all route groups.
func buildRouter(conn *gorm.DB, jwtConfig config.JWTConfig, orchestrator *subscription.Orchestrator, engine *hiring.Engine) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		sqlDB, errDB := conn.DB()
		if errDB != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	employer.RegisterEmployerRoutes(router, conn, jwtConfig, orchestrator, engine)
	candidate.RegisterCandidateRoutes(router, conn, jwtConfig, engine)
	webhooks.RegisterWebhookRoutes(router, orchestrator)

	return router
}

// expireSweepLoop periodically deactivates overdue subscriptions so expiry
// is enforced even without read traffic.
func expireSweepLoop(ctx context.Context, orchestrator *subscription.Orchestrator) {
	ticker := time.NewTicker(expireSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, errSweep := orchestrator.ExpireOverdue(ctx)
			if errSweep != nil {
				log.WithError(errSweep).Warn("subscription expiry sweep failed")
				continue
			}
			if n > 0 {
				log.Infof("deactivated %d expired subscriptions", n)
			}
		}
	}
}
