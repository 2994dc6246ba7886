package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"patientportal/internal/model"
	"patientportal/internal/repository"
	"patientportal/internal/storage"
)

// PDFContentType is the only content type the portal stores.
const PDFContentType = "application/pdf"

var (
	ErrNotFound        = errors.New("document not found")
	ErrFileMissing     = errors.New("file not found on server")
	ErrReaderNil       = errors.New("reader is nil")
	ErrUnsupportedType = errors.New("only PDF files are allowed")
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
)

// sniffLen matches mimetype's default read limit.
const sniffLen = 3072

var tracer = otel.Tracer("patientportal/internal/service")

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload validates a PDF, streams it to object storage and records its metadata.
	// The object is removed again if the metadata insert fails.
	Upload(ctx context.Context, r io.Reader, originalFilename string, contentType string, size int64) (*model.Document, error)

	// List returns every document, newest first.
	List(ctx context.Context) ([]model.Document, error)

	// Get returns a single document by its ID.
	Get(ctx context.Context, id int64) (*model.Document, error)

	// Delete removes a document from storage and then its record.
	Delete(ctx context.Context, id int64) error

	// Open returns the stored body for download. The caller closes the reader.
	Open(ctx context.Context, id int64) (io.ReadCloser, *model.Document, error)
}

type documentService struct {
	store    storage.Storage
	repo     repository.DocumentRepository
	maxBytes int64
	now      func() time.Time
}

// NewDocumentService constructs a new DocumentService. maxBytes <= 0 disables the size limit.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, maxBytes int64) DocumentService {
	return &documentService{store: store, repo: repo, maxBytes: maxBytes, now: time.Now}
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, originalFilename string, contentType string, size int64) (*model.Document, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Upload")
	defer span.End()
	span.SetAttributes(attribute.String("document.filename", originalFilename), attribute.Int64("document.size", size))

	doc, err := s.upload(ctx, r, originalFilename, contentType, size)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return doc, err
}

func (s *documentService) upload(ctx context.Context, r io.Reader, originalFilename string, contentType string, size int64) (*model.Document, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if mediaType(contentType) != PDFContentType {
		return nil, ErrUnsupportedType
	}
	if size == 0 {
		return nil, ErrEmptyFile
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	// The declared type comes from the client; confirm the bytes agree before storing.
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, ErrEmptyFile
	}
	if !mimetype.Detect(head).Is(PDFContentType) {
		return nil, ErrUnsupportedType
	}
	body := io.MultiReader(bytes.NewReader(head), r)

	name := filepath.Base(originalFilename)
	key := s.storageKey(name)

	objInfo, err := s.store.Put(ctx, key, body, storage.PutObjectOptions{
		Size:        size,
		ContentType: PDFContentType,
		Metadata: map[string]string{
			"original-filename": name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	stored, err := s.repo.Create(ctx, &model.Document{
		Filename:    name,
		Filepath:    objInfo.Key,
		Filesize:    objInfo.Size,
		ContentType: PDFContentType,
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

// storageKey builds documents/<YYYYmmdd_HHMMSS>_<8 hex>_<name>, unique per upload and
// still readable when browsing the bucket.
func (s *documentService) storageKey(name string) string {
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	unique := fmt.Sprintf("%s_%s_%s", s.now().Format("20060102_150405"), short, name)
	return filepath.ToSlash(filepath.Join("documents", unique))
}

func (s *documentService) List(ctx context.Context) ([]model.Document, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.List")
	defer span.End()

	docs, err := s.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return docs, nil
}

func (s *documentService) Get(ctx context.Context, id int64) (*model.Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// Delete removes the object first; if that fails the row is kept so the body is not orphaned.
func (s *documentService) Delete(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "DocumentService.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("document.id", id))

	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, doc.Filepath); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete storage: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *documentService) Open(ctx context.Context, id int64) (io.ReadCloser, *model.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, doc.Filepath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, ErrFileMissing
		}
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return rc, doc, nil
}

// mediaType strips parameters such as "; charset=binary".
func mediaType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
