package main

import (
	"context"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"patientportal/docs"
	"patientportal/internal/config"
	"patientportal/internal/database"
	"patientportal/internal/database/migration"
	handlers "patientportal/internal/http/handler"
	"patientportal/internal/http/middleware"
	"patientportal/internal/logger"
	"patientportal/internal/otel"
	"patientportal/internal/repository/postgres"
	"patientportal/internal/service"
	"patientportal/internal/storage"
)

// multipartOverhead leaves room for form boundaries and headers above the file limit.
const multipartOverhead = 1 << 20

// bodyLimit sizes Fiber's request body limit from the upload limit.
// A non-positive maxBytes disables the upload limit; Fiber treats a zero or negative
// BodyLimit as its 4MB default, so that case gets an explicit ceiling instead.
func bodyLimit(maxBytes int64) int {
	if maxBytes <= 0 {
		return math.MaxInt32
	}
	return int(maxBytes) + multipartOverhead
}

// @title Patient Portal Document API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	log := logger.New(cfg.Log)
	defer log.Sync()

	ctx := context.Background()

	shutdownTracing, err := otel.Init(ctx, "patientportal-api", log)
	if err != nil {
		log.Fatal("tracing_init_failed", zap.Error(err))
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal("database_connect_failed", zap.Error(err))
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log, database.Host(cfg.Database)); err != nil {
		log.Fatal("migration_failed", zap.Error(err))
	}

	objStore, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		log.Fatal("storage_init_failed", zap.Error(err))
	}

	docRepo := postgres.NewDocumentPostgres(db)
	docSvc := service.NewDocumentService(objStore, docRepo, cfg.Upload.MaxBytes)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatal("metrics_init_failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    bodyLimit(cfg.Upload.MaxBytes),
	})

	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.CORSOrigins, ","),
		AllowMethods:  "GET,POST,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept," + middleware.RequestIDHeader,
		ExposeHeaders: middleware.RequestIDHeader,
	}))

	handlers.RegisterRoutes(app, db, docSvc, log)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	addr := ":" + cfg.Port

	go func() {
		log.Info("server_starting", zap.String("addr", addr), zap.String("app_host", cfg.AppHost))
		if err := app.Listen(addr); err != nil {
			log.Error("server_stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("server_shutting_down", zap.String("signal", sig.String()))

	// Stop accepting new requests, finish in-flight ones within 30s
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("server_forced_shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing_shutdown_failed", zap.Error(err))
	}

	log.Info("server_exited")
}
