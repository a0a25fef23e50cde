package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/solecare/solecare-api/config"
	"github.com/solecare/solecare-api/controllers"
	"github.com/solecare/solecare-api/metrics"
	"github.com/solecare/solecare-api/middleware"
	"github.com/solecare/solecare-api/realtime"
	"github.com/solecare/solecare-api/services"
	"github.com/solecare/solecare-api/utils"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "solecare",
		Short:   "SoleCare shoe repair API",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the real-time relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := config.ConnectDatabase(cfg.DatabaseURL); err != nil {
				return err
			}
			if err := config.Migrate(config.GetDB()); err != nil {
				return err
			}
			log.Println("Database migration completed successfully")
			return nil
		},
	}
}

func runServe() error {
	log.Println("Starting SoleCare API server...")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := config.ConnectDatabase(cfg.DatabaseURL); err != nil {
		return err
	}
	db := config.GetDB()
	if err := config.Migrate(db); err != nil {
		return err
	}
	log.Println("Database migration completed successfully")

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	closeServices, err := initServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeServices()

	hub := realtime.NewHub(cfg.RealtimeBranchScoped)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	monitor := realtime.NewStoreMonitor(sqlDB, cfg.StoreHealthInterval)
	go monitor.Run(ctx)

	relay := realtime.NewRelay(realtime.NewGormFeed(db, cfg.ChangeFeedPollInterval).WithCommitGrace(cfg.ChangeFeedCommitGrace), hub, realtime.Options{})
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Run(ctx, monitor.Events())
	}()

	janitor := realtime.NewJanitor(db, cfg.ChangeFeedRetention)
	if err := janitor.Start("@hourly"); err != nil {
		return err
	}
	defer janitor.Stop()

	server := newServer(cfg, hub)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Server is running on http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN server shutdown: %v", err)
	}
	<-relayDone
	return nil
}

// newServer wires the router into an http.Server whose shutdown also ends
// every open event stream; SSE handlers would otherwise hold Shutdown until
// its deadline.
func newServer(cfg *config.Config, hub *realtime.Hub) *http.Server {
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: setupRouter(cfg, hub),
	}
	server.RegisterOnShutdown(hub.CloseAll)
	return server
}

// initServices installs the optional backends. Every one of them has a
// working fallback, so a missing credential degrades a feature instead of
// stopping the server.
func initServices(ctx context.Context, cfg *config.Config) (func(), error) {
	policy, err := services.PaymentStatusPolicyFor(cfg.PaymentStatusPolicy)
	if err != nil {
		return nil, err
	}
	services.SetPaymentStatusPolicy(policy)
	log.Printf("Payment status policy: %s", cfg.PaymentStatusPolicy)

	closers := []func(){}

	if cfg.RedisAddr != "" {
		cache := services.NewRedisTransactionCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TransactionCacheTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := cache.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Printf("WARN Redis unavailable at %s, transaction cache disabled: %v", cfg.RedisAddr, err)
			cache.Close()
		} else {
			services.SetTransactionCache(cache)
			closers = append(closers, func() { cache.Close() })
			log.Printf("Transaction cache: redis %s (ttl %s)", cfg.RedisAddr, cfg.TransactionCacheTTL)
		}
	}

	if cfg.TwilioEnabled() {
		services.InitTwilioNotifier(config.GetDB(), cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		log.Println("Push notifications: twilio")
	} else {
		log.Println("Twilio not configured, push notifications disabled")
	}

	if cfg.S3Enabled() {
		bucket, err := services.NewS3PhotoBucket(ctx, cfg)
		if err != nil {
			log.Printf("WARN S3 unavailable, storing images locally: %v", err)
			services.InitLocalImageService(utils.UploadDir)
		} else {
			services.InitImageService(bucket)
			log.Printf("Image storage: s3://%s", cfg.AWSS3Bucket)
		}
	} else {
		services.InitLocalImageService(utils.UploadDir)
		log.Printf("Image storage: local %s", utils.UploadDir)
	}

	return func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

// setupRouter builds the HTTP surface. Auth guards the domain routes only
// when a JWT secret is configured.
func setupRouter(cfg *config.Config, hub *realtime.Hub) *gin.Engine {
	router := gin.Default()

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(cfg.CORSAllowedOrigins) == 0 || (len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.Metrics())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)
		v1.GET("/uploads/:filename", controllers.GetUploadedImage)
	}

	api := v1.Group("")
	if cfg.AuthEnabled() {
		api.Use(middleware.EnsureValidToken(cfg))
	} else {
		log.Println("WARN JWT_SECRET not set, API routes are unauthenticated")
	}
	{
		api.POST("/service-request", controllers.CreateServiceRequest)

		api.GET("/transactions", controllers.ListTransactions)
		api.GET("/transactions/:transaction_id", controllers.GetTransaction)
		api.POST("/transactions/:transaction_id/apply-payment", controllers.ApplyPayment)

		api.POST("/payments", controllers.CreatePayment)
		api.GET("/payments/:payment_id", controllers.GetPayment)
		api.GET("/payments/transaction/:transaction_id/latest", controllers.GetLatestPayment)

		api.GET("/appointments/approved", controllers.ListApprovedAppointments)
		api.GET("/appointments/pending", controllers.ListPendingAppointments)
		api.POST("/appointments/cancel-affected", controllers.CancelAffectedAppointments)
		api.PUT("/appointments/:appointment_id/status", controllers.UpdateAppointmentStatus)

		api.POST("/unavailability", controllers.CreateUnavailability)
		api.GET("/unavailability", controllers.ListUnavailability)
		api.GET("/unavailability/:id", controllers.GetUnavailability)
		api.DELETE("/unavailability/:id", controllers.DeleteUnavailability)

		api.GET("/line-items", controllers.ListLineItems)
		api.GET("/line-items/status/:status", controllers.ListLineItemsByStatus)
		api.PUT("/line-items/status", controllers.UpdateLineItemStatus)
		api.PUT("/line-items/:line_item_id/image", controllers.UpdateLineItemImage)
		api.POST("/line-items/:line_item_id/image/:type", controllers.UploadLineItemImage)
		api.PUT("/line-items/:line_item_id/storage-fee", controllers.AddStorageFee)

		api.GET("/events", controllers.StreamChanges(hub))
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "SoleCare API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	tables, err := db.Migrator().GetTables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
