// Package main runs the learning platform HTTP API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/learnhub/backend/config"
	"github.com/learnhub/backend/internal/articles"
	"github.com/learnhub/backend/internal/auth"
	"github.com/learnhub/backend/internal/catalog"
	"github.com/learnhub/backend/internal/courses"
	"github.com/learnhub/backend/internal/events"
	"github.com/learnhub/backend/internal/media"
	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/payment"
	"github.com/learnhub/backend/internal/people"
	"github.com/learnhub/backend/internal/promocodes"
	"github.com/learnhub/backend/internal/reviews"
	"github.com/learnhub/backend/internal/roles"
	"github.com/learnhub/backend/internal/taxonomy"
	"github.com/learnhub/backend/internal/transactions"
	"github.com/learnhub/backend/pkg/broker"
	"github.com/learnhub/backend/pkg/cache"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/metrics"
	"github.com/learnhub/backend/pkg/queue"
	"github.com/learnhub/backend/pkg/redis"
	"github.com/learnhub/backend/pkg/response"
	"github.com/learnhub/backend/pkg/storage"
	"github.com/learnhub/backend/pkg/validation"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := validation.Register(); err != nil {
		logger.Fatal("register validators", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		Bucket:               cfg.AWS.MediaBucket,
		PublicBaseURL:        cfg.AWS.PublicBaseURL,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	var pub broker.Publisher = broker.Nop{}
	if cfg.AMQP.URL != "" {
		amqpPub, err := broker.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Warn("rabbitmq disabled", zap.Error(err))
		} else {
			defer amqpPub.Close()
			pub = amqpPub
		}
	}

	m := metrics.Default()
	respCache := cache.New(rdb.Client, cache.Config{
		Enabled:      cfg.Cache.Enabled,
		Prefix:       cfg.Cache.Prefix,
		TTL:          cfg.Cache.TTL,
		MaxBodyBytes: cfg.Cache.MaxBodyBytes,
	}, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	uploader := media.NewUploader(s3Client, cfg.AWS.MaxUploadBytes, logger)
	gateway := payment.NewClient(payment.Config{
		ServerKey:       cfg.Midtrans.ServerKey,
		BaseURL:         cfg.Midtrans.BaseURL,
		EnabledPayments: cfg.Midtrans.EnabledPayments,
		Timeout:         time.Duration(cfg.Midtrans.TimeoutSec) * time.Second,
	}, m, logger)

	// Repositories
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	peopleRepo := people.NewRepository(pool)
	roleRepo := roles.NewRepository(pool)
	courseRepo := courses.NewRepository(pool)
	articleRepo := articles.NewRepository(pool)
	promoRepo := promocodes.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	txRepo := transactions.NewRepository(pool)
	reviewRepo := reviews.NewRepository(pool)

	// Services
	authSvc := auth.NewService(authRepo, jwtService, logger)
	promoSvc := promocodes.NewService(promoRepo, courseRepo, m, logger)
	txSvc := transactions.NewService(txRepo, courseRepo, gateway, pub, respCache, m, logger)
	eventSvc := events.NewService(eventRepo, uploader, pub, m, logger)
	reviewSvc := reviews.NewService(reviewRepo, pub, respCache, logger)
	catalogSvc := catalog.NewService(catalog.NewRepository(pool), reviewRepo, logger)

	// Handlers
	authHandler := auth.NewHandler(authSvc, logger)
	peopleHandler := people.NewHandler(peopleRepo, respCache, logger)
	roleHandler := roles.NewHandler(roleRepo, logger)
	courseHandler := courses.NewHandler(courseRepo, respCache, logger)
	articleHandler := articles.NewHandler(articleRepo, peopleRepo, respCache, logger)
	promoHandler := promocodes.NewHandler(promoRepo, promoSvc, logger)
	eventHandler := events.NewHandler(eventRepo, eventSvc, respCache, logger)
	txHandler := transactions.NewHandler(txRepo, txSvc, logger)
	reviewHandler := reviews.NewHandler(reviewRepo, reviewSvc, logger)
	catalogHandler := catalog.NewHandler(catalogSvc, logger)
	mediaHandler := media.NewHandler(uploader, logger)
	notifyHandler := payment.NewNotificationHandler(cfg.Midtrans.ServerKey, jobQueue, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	r.Use(middleware.Logger(logger))
	r.Use(m.Middleware())

	r.GET("/health", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(hctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		if err := rdb.Healthy(hctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	authLimit := middleware.RateLimit(cfg.RateLimit, rdb.Client, "auth", logger)
	publicAuth := r.Group("/auth", authLimit)
	publicAuth.POST("/register", authHandler.Register)
	publicAuth.POST("/login", authHandler.Login)

	catalogHandler.Routes(r.Group("/catalog"), respCache)
	reviewHandler.PublicRoutes(r.Group("/courses/:id/reviews", respCache.Middleware(cache.TagReviews, cache.TagCourses)), models.ProductCourse)
	reviewHandler.PublicRoutes(r.Group("/events/:id/reviews", respCache.Middleware(cache.TagReviews, cache.TagEvents)), models.ProductEvent)

	r.POST("/payments/notification", notifyHandler.Notify)

	// Authenticated
	api := r.Group("")
	api.Use(middleware.JWT(jwtService))
	api.GET("/auth/me", authHandler.Me)

	promoLimit := middleware.RateLimit(cfg.RateLimit, rdb.Client, "promo", logger)
	api.GET("/promo-codes/:code/validate", promoLimit, promoHandler.Validate)
	api.POST("/promo-codes/:code/quote", promoLimit, promoHandler.Quote)

	student := api.Group("", middleware.RequireStudent(peopleRepo, logger))
	student.GET("/me/transactions", txHandler.MyTransactions)
	student.GET("/me/registrations", eventHandler.MyRegistrations)
	student.POST("/courses/:id/checkout", middleware.RateLimit(cfg.RateLimit, rdb.Client, "checkout", logger), txHandler.Checkout)
	student.POST("/events/:id/register", eventHandler.Register)
	reviewHandler.StudentRoutes(student.Group("/courses/:id/reviews"), models.ProductCourse)
	reviewHandler.StudentRoutes(student.Group("/events/:id/reviews"), models.ProductEvent)

	// Admin
	admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	peopleHandler.MentorRoutes(admin.Group("/mentors"))
	peopleHandler.StudentRoutes(admin.Group("/students"))
	peopleHandler.WriterRoutes(admin.Group("/writers"))
	courseHandler.Routes(admin.Group("/courses"))
	courseHandler.ToolRoutes(admin.Group("/tools"))
	for path, kind := range map[string]taxonomy.Kind{
		"/course-categories":  taxonomy.CourseCategories,
		"/course-types":       taxonomy.CourseTypes,
		"/article-categories": taxonomy.ArticleCategories,
		"/tags":               taxonomy.Tags,
	} {
		taxonomy.NewHandler(taxonomy.NewRepository(pool, kind), respCache, logger).Routes(admin.Group(path))
	}
	adminRoles := admin.Group("/roles")
	adminRoles.GET("", roleHandler.List)
	adminRoles.GET("/:id", roleHandler.Get)
	adminRoles.POST("", roleHandler.Create)
	adminRoles.PUT("/:id", roleHandler.Update)
	adminRoles.DELETE("/:id", roleHandler.Delete)
	promoHandler.Routes(admin.Group("/promo-codes"))
	eventHandler.Routes(admin.Group("/events"))
	eventHandler.RegistrantRoutes(admin.Group("/event-registrants"))
	txHandler.Routes(admin.Group("/course-transactions"))
	reviewHandler.AdminRoutes(admin.Group("/course-reviews"), models.ProductCourse)
	reviewHandler.AdminRoutes(admin.Group("/event-reviews"), models.ProductEvent)
	mediaHandler.Routes(admin.Group("/uploads"))

	// Writers manage their own articles; admins manage all.
	articleHandler.Routes(api.Group("/admin/articles", middleware.RequireRole(models.RoleAdmin, models.RoleWriter)))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
