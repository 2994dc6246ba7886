package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"patientportal/internal/service"
)

// parseID reads the :id path parameter. Only positive integers are valid.
func parseID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func isNotFound(err error) bool {
	return errors.Is(err, service.ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}

// ListDocuments returns every document, newest first.
//
// @Summary  List documents
// @Tags     documents
// @Produce  json
// @Success  200 {array}  model.Document
// @Failure  500 {object} errorPayload
// @Router   /api/documents [get]
func ListDocuments(docSvc service.DocumentService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := docSvc.List(c.UserContext())
		if err != nil {
			log.Error("list_documents_failed", zap.String("request_id", requestIDFromCtx(c)), zap.Error(err))
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Could not load documents")
		}
		return c.JSON(docs)
	}
}

// UploadDocument stores a PDF sent as multipart/form-data in the "file" field.
//
// @Summary  Upload a PDF
// @Tags     documents
// @Accept   multipart/form-data
// @Produce  json
// @Param    file formData file true "PDF document"
// @Success  201 {object} model.Document
// @Failure  400 {object} errorPayload
// @Failure  413 {object} errorPayload
// @Failure  500 {object} errorPayload
// @Router   /api/documents/upload [post]
func UploadDocument(docSvc service.DocumentService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "No file provided")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "Cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		doc, err := docSvc.Upload(c.UserContext(), f, fh.Filename, ct, fh.Size)
		switch {
		case err == nil:
			return c.Status(fiber.StatusCreated).JSON(doc)
		case errors.Is(err, service.ErrUnsupportedType):
			return writeError(c, fiber.StatusBadRequest, "UNSUPPORTED_TYPE", "Only PDF files are allowed")
		case errors.Is(err, service.ErrEmptyFile):
			return writeError(c, fiber.StatusBadRequest, "EMPTY_FILE", "The uploaded file is empty")
		case errors.Is(err, service.ErrFileTooLarge):
			return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the maximum allowed size")
		default:
			log.Error("upload_document_failed",
				zap.String("request_id", requestIDFromCtx(c)),
				zap.String("filename", fh.Filename),
				zap.Error(err),
			)
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Could not save file")
		}
	}
}

// GetDocument returns one document's metadata.
//
// @Summary  Get a document
// @Tags     documents
// @Produce  json
// @Param    id  path     int true "Document ID"
// @Success  200 {object} model.Document
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Router   /api/documents/{id} [get]
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "Invalid document id")
		}
		doc, err := docSvc.Get(c.UserContext(), id)
		if err != nil {
			if isNotFound(err) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "Document not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}
		return c.JSON(doc)
	}
}

// DeleteDocument removes the stored file and its record.
//
// @Summary  Delete a document
// @Tags     documents
// @Produce  json
// @Param    id  path     int true "Document ID"
// @Success  200 {object} messagePayload
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Failure  500 {object} errorPayload
// @Router   /api/documents/{id} [delete]
func DeleteDocument(docSvc service.DocumentService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "Invalid document id")
		}
		if err := docSvc.Delete(c.UserContext(), id); err != nil {
			if isNotFound(err) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "Document not found")
			}
			log.Error("delete_document_failed",
				zap.String("request_id", requestIDFromCtx(c)),
				zap.Int64("document_id", id),
				zap.Error(err),
			)
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Error deleting document")
		}
		return c.JSON(messagePayload{Message: "Document deleted successfully"})
	}
}

// DownloadDocument streams the stored PDF as an attachment.
//
// @Summary  Download a document
// @Tags     documents
// @Produce  application/pdf
// @Param    id  path     int true "Document ID"
// @Success  200 {file}   binary
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Router   /api/documents/download/{id} [get]
func DownloadDocument(docSvc service.DocumentService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "Invalid document id")
		}
		rc, doc, err := docSvc.Open(c.UserContext(), id)
		switch {
		case err == nil:
		case isNotFound(err):
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "Document not found")
		case errors.Is(err, service.ErrFileMissing):
			return writeError(c, fiber.StatusNotFound, "FILE_MISSING", "File not found on server")
		default:
			log.Error("download_document_failed",
				zap.String("request_id", requestIDFromCtx(c)),
				zap.Int64("document_id", id),
				zap.Error(err),
			)
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Error downloading document")
		}

		c.Set(fiber.HeaderContentType, service.PDFContentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.Filename))
		// SendStream closes rc once the body has been written.
		return c.SendStream(rc, int(doc.Filesize))
	}
}
