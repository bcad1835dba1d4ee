package database

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreService implements the FirestoreDB interface.
type FirestoreService struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreServiceConfig contains options for creating a new FirestoreService.
type NewFirestoreServiceConfig struct {
	ProjectID       string
	CredentialsFile string // Path to the service account key JSON file. If empty, ADC will be used.
}

// NewFirestoreService dials a dedicated client.
func NewFirestoreService(ctx context.Context, cfg NewFirestoreServiceConfig, logger *zap.Logger) (*FirestoreService, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreService{client: client, logger: logger}, nil
}

// NewFirestoreServiceFromClient wraps a client that is already initialized,
// typically the one created through the Firebase app.
func NewFirestoreServiceFromClient(client *firestore.Client, logger *zap.Logger) *FirestoreService {
	return &FirestoreService{client: client, logger: logger}
}

// MapError translates gRPC status codes into the package sentinels.
func MapError(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	return err
}

// Get decodes a single document into dst.
func (s *FirestoreService) Get(ctx context.Context, collection, docID string, dst interface{}) error {
	snap, err := s.client.Collection(collection).Doc(docID).Get(ctx)
	if err != nil {
		return MapError(err)
	}
	if err := snap.DataTo(dst); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", collection, docID, err)
	}
	return nil
}

// Set overwrites a document.
func (s *FirestoreService) Set(ctx context.Context, collection, docID string, data interface{}) error {
	if _, err := s.client.Collection(collection).Doc(docID).Set(ctx, data); err != nil {
		s.logger.Error("Firestore set failed", zap.String("path", collection+"/"+docID), zap.Error(err))
		return MapError(err)
	}
	return nil
}

// Add adds a new document to a Firestore collection.
// Returns the ID of the newly created document.
func (s *FirestoreService) Add(ctx context.Context, collection string, data interface{}) (string, error) {
	docRef, _, err := s.client.Collection(collection).Add(ctx, data)
	if err != nil {
		s.logger.Error("Firestore add failed", zap.String("collection", collection), zap.Error(err))
		return "", MapError(err)
	}
	return docRef.ID, nil
}

// Update changes the given top-level fields of an existing document.
// A missing document yields ErrNotFound.
func (s *FirestoreService) Update(ctx context.Context, collection, docID string, fields map[string]interface{}) error {
	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{path}, Value: value})
	}
	if _, err := s.client.Collection(collection).Doc(docID).Update(ctx, updates); err != nil {
		return MapError(err)
	}
	return nil
}

// Delete removes a document from a Firestore collection.
func (s *FirestoreService) Delete(ctx context.Context, collection, docID string) error {
	if _, err := s.client.Collection(collection).Doc(docID).Delete(ctx); err != nil {
		return MapError(err)
	}
	return nil
}

// Query runs a filtered, ordered query against a collection.
func (s *FirestoreService) Query(ctx context.Context, collection string, opts QueryOptions) ([]Document, error) {
	q := s.client.Collection(collection).Query
	for _, f := range opts.Filters {
		q = q.Where(f.Path, f.Op, f.Value)
	}
	if opts.OrderBy != "" {
		dir := firestore.Asc
		if opts.Descending {
			dir = firestore.Desc
		}
		q = q.OrderBy(opts.OrderBy, dir)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var docs []Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
		}
		docs = append(docs, NewDocument(snap.Ref.ID, snap.DataTo))
	}
	return docs, nil
}

// Listen streams snapshots of one document.
func (s *FirestoreService) Listen(ctx context.Context, collection, docID string, fn func(doc Document, exists bool)) error {
	it := s.client.Collection(collection).Doc(docID).Snapshots(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, iterator.Done) {
				return nil
			}
			return fmt.Errorf("listener on %s/%s failed: %w", collection, docID, err)
		}
		if !snap.Exists() {
			fn(Document{ID: docID}, false)
			continue
		}
		fn(NewDocument(docID, snap.DataTo), true)
	}
}

// Close closes the Firestore client.
func (s *FirestoreService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
