// Package store defines the document storage primitives used by the matching
// pipeline. Backends live in the mongo and sqlite subpackages.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNoDocument is returned by FindOne when nothing matches the filter.
	ErrNoDocument = errors.New("document not found")
	// ErrDuplicateKey is returned by InsertOne when a unique index rejects the document.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Document is a schemaless record. Values are plain Go values: strings, numbers,
// booleans, time.Time, []any and map[string]any.
type Document = map[string]any

// Filter matches documents whose fields equal the given values. A nil value
// matches documents where the field is missing or null.
type Filter = map[string]any

// IDField is the document identifier key.
const IDField = "_id"

// UpdateResult reports the outcome of UpdateOne.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// Collection is a named set of documents.
type Collection interface {
	FindOne(ctx context.Context, filter Filter) (Document, error)
	Find(ctx context.Context, filter Filter) ([]Document, error)
	InsertOne(ctx context.Context, doc Document) (string, error)
	// UpdateOne sets the given fields on the first document matching filter.
	UpdateOne(ctx context.Context, filter Filter, set Document) (UpdateResult, error)
	EnsureUniqueIndex(ctx context.Context, fields ...string) error
}

// Database hands out collections of one storage backend.
type Database interface {
	Collection(name string) Collection
	Close(ctx context.Context) error
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateField rejects field and collection names that are not plain identifiers.
func ValidateField(name string) error {
	if !fieldPattern.MatchString(name) {
		return fmt.Errorf("invalid field name %q", name)
	}
	return nil
}
