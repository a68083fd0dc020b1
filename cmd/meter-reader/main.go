// Package main runs the meter reader backend: an HTTP service that turns
// uploaded meter photographs into structured readings via a vision model
// and stores them per user in Supabase.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/metervision/meter-reader/internal/config"
	svcerrors "github.com/metervision/meter-reader/internal/errors"
	"github.com/metervision/meter-reader/internal/httputil"
	"github.com/metervision/meter-reader/internal/logging"
	"github.com/metervision/meter-reader/internal/metrics"
	"github.com/metervision/meter-reader/internal/middleware"
	"github.com/metervision/meter-reader/internal/vision"
	"github.com/metervision/meter-reader/services/reader"
	readersupabase "github.com/metervision/meter-reader/services/reader/supabase"
	"github.com/metervision/meter-reader/supabase/client"
)

func main() {
	// .env is a local development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger := logging.New(reader.ServiceID, cfg.LogLevel)
	m := metrics.New(reader.ServiceID)

	supaClient, err := client.New(client.Config{
		URL:    cfg.SupabaseURL,
		APIKey: cfg.SupabaseKey,
	})
	if err != nil {
		logger.Fatalf("supabase client: %v", err)
	}

	visionClient, err := vision.NewClient(vision.Config{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.VisionModel,
		BaseURL:   cfg.VisionBaseURL,
		MaxTokens: cfg.VisionMaxTokens,
	})
	if err != nil {
		logger.Fatalf("vision client: %v", err)
	}

	svc, err := reader.New(reader.Config{
		Store:          readersupabase.NewRepository(supaClient),
		Extractor:      reader.NewExtractor(visionClient),
		Logger:         logger,
		Metrics:        m,
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxFileSizeBytes(),
	})
	if err != nil {
		logger.Fatalf("reader service: %v", err)
	}

	router := buildRouter(cfg, logger, m, supaClient, svc)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		logger.Infof("%s v%s listening on %s", reader.ServiceName, reader.Version, addr)
		logger.Infof("endpoints: POST /meter-reading, GET /readings, GET /readings/{meter_id}, GET /stats, GET /health, GET /info, GET /metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Infof("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, svcerrors.NotFound("endpoint not found"))
	})
}

func methodNotAllowedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// skipAuthPaths are served without a bearer token.
var skipAuthPaths = []string{"/health", "/info", "/metrics"}

// rateLimiterCleanupInterval paces the eviction of idle per-client buckets.
const rateLimiterCleanupInterval = 10 * time.Minute

// buildRouter assembles the HTTP surface. CORS, logging, and metrics wrap
// the router from the outside: mux middleware only runs for matched routes,
// so preflight OPTIONS, 404, and 405 responses would otherwise skip them.
func buildRouter(cfg *config.Config, logger *logging.Logger, m *metrics.Metrics, supaClient *client.Client, svc *reader.Service) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = notFoundHandler()
	router.MethodNotAllowedHandler = methodNotAllowedHandler()

	auth := middleware.NewAuthMiddleware(cfg.SupabaseJWTSecret, supaClient.Auth(), logger, skipAuthPaths)
	router.Use(auth.Handler)

	if cfg.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitRPS*2)
		limiter.StartCleanup(rateLimiterCleanupInterval)
		router.Use(limiter.Handler)
	}

	svc.RegisterRoutes(router)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	var handler http.Handler = router
	handler = middleware.NewCORSMiddleware(cfg.Origins()).Handler(handler)
	handler = middleware.MetricsMiddleware(m, router)(handler)
	handler = middleware.LoggingMiddleware(logger)(handler)
	return handler
}
