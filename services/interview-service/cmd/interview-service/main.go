package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/adoptly/adoptly/libs/auth"
	"github.com/adoptly/adoptly/libs/clock"
	"github.com/adoptly/adoptly/libs/config"
	"github.com/adoptly/adoptly/libs/grpcx"
	"github.com/adoptly/adoptly/libs/httpx"
	otelx "github.com/adoptly/adoptly/libs/otel"
	"github.com/adoptly/adoptly/libs/runtime"
	"github.com/adoptly/adoptly/services/interview-service/internal/civiltime"
	"github.com/adoptly/adoptly/services/interview-service/internal/handlers"
	"github.com/adoptly/adoptly/services/interview-service/internal/inflight"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "interview-service")
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		grpcPort, err := config.Port("GRPC_PORT", "9090")
		if err == nil {
			err = probeHealth(context.Background(), "127.0.0.1:"+grpcPort, service)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "unhealthy:", err)
			os.Exit(1)
		}
		return
	}

	port, err := config.Port("PORT", "8090")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	sched, err := loadSchedulingConfig()
	if err != nil {
		logger.Error("invalid scheduling config", "err", err)
		panic(err)
	}

	var checks []runtime.ReadyCheck

	store, storeChecks, closeStore, err := openStore(ctx, logger)
	if err != nil {
		logger.Error("submission store init failed", "err", err)
		panic(err)
	}
	defer closeStore()
	checks = append(checks, storeChecks...)

	var (
		rdb   *redis.Client
		guard inflight.Guard
	)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisDB, err := config.Int("REDIS_DB", 0, 0, 15)
		if err != nil {
			panic(err)
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()
		guard = inflight.NewRedis(rdb, service+":inflight:", 30*time.Second)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		logger.Warn("REDIS_ADDR not set; commit guard and rate limiting are process-local")
	}

	interviewHandler := handlers.NewInterviewHandler(store, logger, handlers.Options{
		Clock:        clock.Real{},
		Calendar:     civiltime.NewCalendar(sched.location),
		Step:         sched.step,
		DisplayStart: sched.displayStart,
		DisplayEnd:   sched.displayEnd,
		Guard:        guard,
	})

	mux := runtime.NewBaseMuxWithReady(checks...)
	api := http.NewServeMux()
	api.HandleFunc("/api/v1/interview", interviewHandler.Get)
	api.HandleFunc("/api/v1/interview/calendar", interviewHandler.Calendar)
	api.HandleFunc("/api/v1/interview/slots", interviewHandler.Slots)
	api.HandleFunc("/api/v1/interview/confirm", interviewHandler.Confirm)

	// The limiter sits inside auth so authenticated adopters get their own bucket.
	var limiter httpx.Middleware
	if rdb != nil {
		perMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 120, 1, 100000)
		if err != nil {
			panic(err)
		}
		limiter = httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, service).
			KeyedBy(adopterKey).
			Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	}
	apiHandler := httpx.Chain(api, limiter)
	if secret := config.String("JWT_SECRET", ""); secret != "" {
		apiHandler = auth.RequireBearer(secret, clock.Real{})(apiHandler)
	} else {
		logger.Warn("JWT_SECRET not set; interview API is unauthenticated")
	}
	mux.Handle("/api/v1/", apiHandler)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(16<<10),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "interview")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "timezone", sched.location.String(), "slot_step_minutes", sched.step)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	grpcPort := config.String("GRPC_PORT", "")
	grpcSrv, healthSrv := grpcx.NewHealthServer(logger, service)
	if grpcPort != "" {
		lis, err := net.Listen("tcp", ":"+grpcPort)
		if err != nil {
			logger.Error("grpc listen failed", "err", err)
			panic(err)
		}
		go func() {
			logger.Info("grpc health server starting", "addr", lis.Addr().String())
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("grpc server error", "err", err)
			}
		}()
	}

	<-ctx.Done()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthSrv.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	if grpcPort != "" {
		grpcSrv.GracefulStop()
	}
	logger.Info("http server stopped")
}

func adopterKey(r *http.Request) string {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.Sub != "" {
		return "sub:" + claims.Sub
	}
	return ""
}
