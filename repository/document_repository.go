package repository

import (
	"context"
	"errors"
	"fmt"

	"clinical-annotator/models"
	"clinical-annotator/storage"
)

// ErrIO marks failures reading or writing the backing document file
var ErrIO = errors.New("document i/o failure")

// DocumentRepository loads and saves annotation documents through a Storage backend
type DocumentRepository struct {
	storage storage.Storage
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(s storage.Storage) *DocumentRepository {
	return &DocumentRepository{storage: s}
}

// Load reads and validates the named document
func (r *DocumentRepository) Load(ctx context.Context, name string) (*models.Document, error) {
	data, err := r.Raw(ctx, name)
	if err != nil {
		return nil, err
	}
	return models.ParseDocument(data)
}

// Save writes doc wholesale to the named file
func (r *DocumentRepository) Save(ctx context.Context, name string, doc *models.Document) error {
	data, err := models.EncodeDocument(doc)
	if err != nil {
		return err
	}
	if err := storage.WriteBytes(ctx, r.storage, name, data); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// Raw returns the stored bytes of the named document
func (r *DocumentRepository) Raw(ctx context.Context, name string) ([]byte, error) {
	data, err := storage.ReadBytes(ctx, r.storage, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return data, nil
}

// Import stores an uploaded document and loads the stored copy. The upload is
// validated first. An existing file with the same name is kept, so earlier
// annotations resume, unless overwrite is set.
func (r *DocumentRepository) Import(ctx context.Context, name string, data []byte, overwrite bool) (*models.Document, error) {
	if _, err := models.ParseDocument(data); err != nil {
		return nil, err
	}

	exists, err := r.storage.Exists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if !exists || overwrite {
		if err := storage.WriteBytes(ctx, r.storage, name, data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
	}

	return r.Load(ctx, name)
}

// Delete removes the named document. Deleting a missing document is not an error.
func (r *DocumentRepository) Delete(ctx context.Context, name string) error {
	if err := r.storage.Delete(ctx, name); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// List returns the names of stored documents
func (r *DocumentRepository) List(ctx context.Context) ([]string, error) {
	names, err := r.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return names, nil
}
