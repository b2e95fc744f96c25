package router

import (
	"context"
	"net/http"
	"strings"

	"app/internal/api/v1/handler"
	"app/internal/cache"
	"app/internal/config"
	"app/internal/middleware"
	"app/internal/pubsub"
	"app/internal/repository"
	"app/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires the full API: database, storage, Redis, Pub/Sub, repositories,
// services and handlers, mounted under /v1.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	dsn := cfg.DBConnectionString
	// Local development rarely has SSL configured on Postgres.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	s3Config, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	})

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	publisher, err := pubsub.NewPublisher(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepo(pool)
	creditRepo := repository.NewCreditRepo(pool)
	sessionRepo := repository.NewGuestSessionRepo(pool)
	mockupRepo := repository.NewMockupRepo(pool)
	rateLimitRepo := repository.NewRateLimitRepo(pool)
	dlqRepo := repository.NewDLQRepository(pool)

	generator := service.NewGenerator(cfg, s3Client, logger)
	guestSvc := service.NewGuestSessionService(sessionRepo, rateLimitRepo, generator, publisher, cfg, logger)
	mockupSvc := service.NewMockupService(creditRepo, mockupRepo, generator, s3Client, cfg, logger)
	stripeSvc := service.NewStripeService(cfg, userRepo, creditRepo, redisClient, logger)
	userSvc := service.NewUserService(userRepo, cfg.SignupBonusCredits, logger)
	dlqSvc := service.NewDLQService(dlqRepo)

	guestHandler := handler.NewGuestHandler(guestSvc, validate, logger)
	mockupHandler := handler.NewMockupHandler(mockupSvc, validate, logger)
	billingHandler := handler.NewBillingHandler(stripeSvc, validate, logger)
	userHandler := handler.NewUserHandler(userSvc, validate, logger)
	adminHandler := handler.NewAdminHandler(creditRepo, cfg.AdminEmailList(), validate, logger)
	dlqHandler := handler.NewDLQHandler(dlqSvc, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)
	isLocalDev := cfg.PubSubEmulatorHost != ""
	pubsubAuthMiddleware := middleware.PubSubAuthMiddleware(isLocalDev, cfg.DLQEndpointURL, cfg.PubSubPushServiceAccountEmail, logger)

	apiV1Mux := http.NewServeMux()
	guestHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	mockupHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	billingHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	userHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	adminHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	dlqHandler.RegisterRoutes(apiV1Mux, pubsubAuthMiddleware)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Root-level requests fall through to /v1 so older clients keep working.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/v1"+r.URL.Path, http.StatusMovedPermanently)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux)), pool, nil
}

// removeDisableGzip works around signature errors against some S3-compatible
// services. See https://github.com/supabase/storage/issues/577.
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
