package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"patientportal/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers translate between HTTP and the service; they hold no business logic.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api")
	api.Get("/health", APIHealth())

	docs := api.Group("/documents")
	docs.Get("", ListDocuments(docSvc, log))
	docs.Post("/upload", UploadDocument(docSvc, log))
	// Must precede /:id so "download" is not read as an id.
	docs.Get("/download/:id", DownloadDocument(docSvc, log))
	docs.Get("/:id", GetDocument(docSvc))
	docs.Delete("/:id", DeleteDocument(docSvc, log))
}
