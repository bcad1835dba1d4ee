package database

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
)

// Filter is a single where-clause, e.g. {"serviceId", "==", "netflix"}.
type Filter struct {
	Path  string
	Op    string
	Value interface{}
}

// QueryOptions narrows a collection query.
type QueryOptions struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Document is a decoded-on-demand snapshot.
type Document struct {
	ID     string
	decode func(dst interface{}) error
}

// NewDocument builds a Document whose DataTo is served by decode.
func NewDocument(id string, decode func(dst interface{}) error) Document {
	return Document{ID: id, decode: decode}
}

// DataTo decodes the document fields into dst.
func (d Document) DataTo(dst interface{}) error {
	if d.decode == nil {
		return ErrNotFound
	}
	return d.decode(dst)
}

// FirestoreDB defines the interface for Firestore database operations.
type FirestoreDB interface {
	Get(ctx context.Context, collection, docID string, dst interface{}) error
	Set(ctx context.Context, collection, docID string, data interface{}) error
	Add(ctx context.Context, collection string, data interface{}) (string, error)
	Update(ctx context.Context, collection, docID string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, docID string) error
	Query(ctx context.Context, collection string, opts QueryOptions) ([]Document, error)
	// Listen calls fn with every snapshot of a single document until ctx ends.
	// exists is false when the document is absent or was deleted.
	Listen(ctx context.Context, collection, docID string, fn func(doc Document, exists bool)) error
}
