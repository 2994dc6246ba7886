package repository

import (
	"context"

	"patientportal/internal/model"
)

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here, only persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record. ID and CreatedAt are assigned by the database
	// and returned on the stored document.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID, or sql.ErrNoRows.
	FindByID(ctx context.Context, id int64) (*model.Document, error)

	// List returns every document, newest first.
	List(ctx context.Context) ([]model.Document, error)

	// Delete removes a document by ID. It returns sql.ErrNoRows if no row matched.
	Delete(ctx context.Context, id int64) error
}
