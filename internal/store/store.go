package store

import (
	"context"
	"errors"

	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

// ErrNotFound is returned by FindOne and Replace when no document matches.
var ErrNotFound = errors.New("document not found")

// Order controls the order of Find results.
type Order int

const (
	// OrderInserted returns documents in insertion order.
	OrderInserted Order = iota
	// OrderNameNumericDesc sorts by name as an integer, highest first. It is
	// how the latest version of a subset is found.
	OrderNameNumericDesc
	// OrderName sorts by name.
	OrderName
)

// Filter selects documents. Empty fields match anything.
type Filter struct {
	ID     string
	Type   string
	Name   string
	Parent string
	Order  Order
	Limit  int
}

// Store is the asset database.
type Store interface {
	FindOne(ctx context.Context, filter Filter) (api.Document, error)
	Find(ctx context.Context, filter Filter) ([]api.Document, error)
	Insert(ctx context.Context, doc api.Document) (string, error)
	Replace(ctx context.Context, doc api.Document) error

	// Parenthood returns the ancestors of doc, nearest first. A missing
	// ancestor yields *errors.IntegrityError.
	Parenthood(ctx context.Context, doc api.Document) ([]api.Document, error)

	Close() error
}
