// Package docstore is a small collection-oriented document store client.
//
// Documents are flat field maps addressed by (collection, id). Besides one-shot
// reads and writes the store offers push subscriptions: a subscription runs a
// query and re-delivers the full result every time the queried collection
// changes. Consumers replace their view with each delivery; no diffs are ever
// produced.
package docstore

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrMalformedDocument = errors.New("malformed document")
	ErrInvalidQuery      = errors.New("invalid query")
)

type Fields map[string]any

type Document struct {
	ID     string
	Fields Fields
}

type Store interface {
	// Get returns ErrNotFound if the document does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Add inserts a document and returns the id the store assigned to it.
	Add(ctx context.Context, collection string, fields Fields) (string, error)

	// Put inserts a document under a caller-chosen id.
	Put(ctx context.Context, collection, id string, fields Fields) error

	// Delete returns ErrNotFound if there was nothing to delete.
	Delete(ctx context.Context, collection, id string) error

	// Find runs a one-shot query. Without a sort key documents come back
	// in insertion order.
	Find(ctx context.Context, q Query) ([]Document, error)

	Count(ctx context.Context, collection string) (int64, error)

	// Subscribe delivers the result of q to fn once right away and again
	// after every change to q's collection. Deliveries for one subscription
	// never overlap and never go back in time. The subscription ends when
	// Cancel is called or ctx is done, whichever comes first.
	Subscribe(ctx context.Context, q Query, fn func([]Document)) (Subscription, error)

	Close(ctx context.Context) error
}

type Subscription interface {
	// Cancel stops delivery and releases the resources held for the
	// subscription. Once Cancel returns fn is not called again. Calling it
	// more than once is fine; calling it from inside fn deadlocks.
	Cancel()
}
